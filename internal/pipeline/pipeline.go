package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jfowler/readaloud/internal/segment"
	"github.com/jfowler/readaloud/internal/synth"
	"github.com/jfowler/readaloud/internal/translate"
)

// Config bounds the two collaborator calls.
type Config struct {
	TranslateTimeout time.Duration
	SynthTimeout     time.Duration
}

// DefaultConfig returns the stock stage deadlines.
func DefaultConfig() Config {
	return Config{
		TranslateTimeout: 45 * time.Second,
		SynthTimeout:     180 * time.Second,
	}
}

// Pipeline runs one segment through translate (optional) and synthesize.
type Pipeline struct {
	translator translate.Translator
	synth      synth.Synthesizer
	cfg        Config
	log        *slog.Logger
}

func New(translator translate.Translator, syn synth.Synthesizer, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = 45 * time.Second
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = 180 * time.Second
	}
	return &Pipeline{translator: translator, synth: syn, cfg: cfg, log: log}
}

// Options configure one Process call.
type Options struct {
	Translate      bool   // Skip the translate stage entirely when false.
	SourceLanguage string // Detected document language.
	TargetLanguage string // Language the listener asked for.
	Voice          VoiceConfig
	OutPath        string // Where the audio artifact is written.
}

// Result is the outcome of one successfully processed segment.
type Result struct {
	SpokenText string
	Translated bool
	AudioPath  string
	Timings    []synth.WordTiming
}

// Process translates and synthesizes one segment.
//
// Translation failures degrade to the original text rather than failing the
// segment: one slow or broken translation must not stall the reading
// session. Synthesis of translated text gets a single retry with the
// original text; if that also fails the segment fails terminally and no
// artifact is left on disk.
func (p *Pipeline) Process(ctx context.Context, seg segment.Segment, opts Options) (Result, error) {
	spoken := seg.Text
	translated := false

	if opts.Translate {
		out, err := runWithTimeout(ctx, p.cfg.TranslateTimeout, func(ctx context.Context) (string, error) {
			return p.translateOnce(ctx, seg.Text, opts)
		})
		if err != nil {
			p.log.Warn("translation failed, speaking original text",
				"target", opts.TargetLanguage, "error", err)
		} else if strings.TrimSpace(out) != "" {
			spoken = out
			translated = true
		}
	}

	res, err := p.synthesize(ctx, spoken, opts)
	if err != nil && translated {
		p.log.Warn("synthesis of translated text failed, retrying with original",
			"target", opts.TargetLanguage, "error", err)
		spoken = seg.Text
		translated = false
		res, err = p.synthesize(ctx, spoken, opts)
	}
	if err != nil {
		// No artifact may remain after a terminal failure.
		os.Remove(opts.OutPath)
		return Result{}, fmt.Errorf("synthesize segment: %w", err)
	}

	return Result{
		SpokenText: spoken,
		Translated: translated,
		AudioPath:  res.AudioPath,
		Timings:    res.Timings,
	}, nil
}

// translateOnce calls the translator, retrying a single time after a delay
// when the service signals a rate limit.
func (p *Pipeline) translateOnce(ctx context.Context, text string, opts Options) (string, error) {
	out, err := p.translator.Translate(ctx, text, opts.SourceLanguage, opts.TargetLanguage)
	if err == nil || !translate.IsRateLimited(err) {
		return out, err
	}
	select {
	case <-time.After(backoff(0)):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return p.translator.Translate(ctx, text, opts.SourceLanguage, opts.TargetLanguage)
}

func (p *Pipeline) synthesize(ctx context.Context, text string, opts Options) (synth.Result, error) {
	return runWithTimeout(ctx, p.cfg.SynthTimeout, func(ctx context.Context) (synth.Result, error) {
		return p.synth.Synthesize(ctx, synth.Request{
			Text:     text,
			Language: opts.TargetLanguage,
			Gender:   string(opts.Voice.Gender),
			Speed:    opts.Voice.Speed,
			OutPath:  opts.OutPath,
		})
	})
}
