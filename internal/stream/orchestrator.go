package stream

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/jfowler/readaloud/internal/language"
	"github.com/jfowler/readaloud/internal/pipeline"
	"github.com/jfowler/readaloud/internal/segment"
	"github.com/jfowler/readaloud/internal/session"
)

// Request is one page-read stream request. Speed and VoiceGender arrive raw
// from the client and are normalized here.
type Request struct {
	SessionID      string
	TargetLanguage string
	PageIndex      int
	StartOffset    int
	Speed          string
	VoiceGender    string
}

// InputError is a synchronously reported request problem; no stream is
// opened for it.
type InputError struct{ msg string }

func (e *InputError) Error() string { return e.msg }

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

// AudioURLPrefix is where artifact files are served.
const AudioURLPrefix = "/api/audio"

// Orchestrator turns read requests into ordered event streams.
type Orchestrator struct {
	sessions *session.Registry
	pipe     *pipeline.Pipeline
	log      *slog.Logger
}

func NewOrchestrator(sessions *session.Registry, pipe *pipeline.Pipeline, log *slog.Logger) *Orchestrator {
	return &Orchestrator{sessions: sessions, pipe: pipe, log: log}
}

// Stream is one prepared page read: validated, segmented and registered on
// its session. Run drives it to completion.
type Stream struct {
	orch   *Orchestrator
	doc    *session.Document
	handle *session.Handle
	req    Request
	segs   []segment.Segment
	needs  bool
	voice  pipeline.VoiceConfig
	target string
}

// NewStream validates a request and prepares its segment plan. Input errors
// are returned here, before any event is emitted.
func (o *Orchestrator) NewStream(req Request) (*Stream, error) {
	doc, ok := o.sessions.Get(req.SessionID)
	if !ok {
		return nil, inputErrorf("unknown session %q", req.SessionID)
	}
	if req.PageIndex < 0 || req.PageIndex >= len(doc.Pages) {
		return nil, inputErrorf("page index %d out of range (document has %d pages)", req.PageIndex, len(doc.Pages))
	}
	pageText := doc.Pages[req.PageIndex]
	if len(pageText) == 0 {
		return nil, inputErrorf("page %d is empty", req.PageIndex)
	}

	offset := req.StartOffset
	if offset < 0 {
		offset = 0
	}
	if offset > len(pageText)-1 {
		offset = len(pageText) - 1
	}

	target := req.TargetLanguage
	if target == "" {
		target = doc.Language.Code
	}

	handle, err := o.sessions.OpenStream(req.SessionID)
	if err != nil {
		return nil, inputErrorf("open stream: %s", err)
	}

	return &Stream{
		orch:   o,
		doc:    doc,
		handle: handle,
		req:    req,
		segs:   segment.Split(pageText, offset, segment.Micro),
		needs:  language.NeedsTranslation(doc.Language.Code, target),
		voice:  pipeline.NewVoiceConfig(req.Speed, req.VoiceGender),
		target: target,
	}, nil
}

// Close releases the stream's session registration without running it.
// Callers that abandon a prepared stream before Run must close it, or the
// handle lingers in the registry until session teardown.
func (s *Stream) Close() {
	s.orch.sessions.CloseStream(s.handle)
}

// Run processes segments strictly in order: segment i+1's work does not
// start until segment i's result has been sent. The client plays segments
// in delivery order with no reordering buffer.
func (s *Stream) Run(ctx context.Context, sink Sink) error {
	o := s.orch
	log := o.log.With("session_id", s.doc.ID, "stream_id", s.handle.ID, "page", s.req.PageIndex)
	defer o.sessions.CloseStream(s.handle)

	// Failures outside the per-segment scope end the stream with a terminal
	// error event instead of a dropped connection.
	defer func() {
		if r := recover(); r != nil {
			log.Error("stream failed", "panic", r)
			sink.Send(KindError, StreamError{Message: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	err := sink.Send(KindStreamStart, StreamStart{
		TotalSegments:    len(s.segs),
		PageIndex:        s.req.PageIndex,
		DetectedLanguage: s.doc.Language,
		NeedsTranslation: s.needs,
	})
	if err != nil {
		s.handle.Stop()
		return fmt.Errorf("send stream-start: %w", err)
	}

	log.Info("stream started",
		"segments", len(s.segs), "target", s.target, "translate", s.needs)

	for i, seg := range s.segs {
		// Cancellation is cooperative: checked before each segment, and a
		// transport disconnect clears the same flag an explicit stop does.
		if ctx.Err() != nil {
			s.handle.Stop()
		}
		if !s.handle.Active() {
			log.Info("stream stopped", "at_segment", i)
			sink.Send(KindStopped, Stopped{})
			return nil
		}

		outPath := filepath.Join(s.doc.AudioDir,
			fmt.Sprintf("page%d_seg%d_%s.mp3", s.req.PageIndex, i, shortID(s.handle.ID)))

		res, err := o.pipe.Process(ctx, seg, pipeline.Options{
			Translate:      s.needs,
			SourceLanguage: s.doc.Language.Code,
			TargetLanguage: s.target,
			Voice:          s.voice,
			OutPath:        outPath,
		})
		if err != nil {
			// One bad segment produces a gap, not a session abort.
			log.Error("segment failed", "index", i, "error", err)
			if sendErr := sink.Send(KindChunkError, ChunkError{Index: i, Message: err.Error()}); sendErr != nil {
				s.handle.Stop()
				return fmt.Errorf("send chunk-error: %w", sendErr)
			}
			continue
		}

		ready := ChunkReady{
			Index:         i,
			TotalSegments: len(s.segs),
			AudioURL:      path.Join(AudioURLPrefix, s.doc.ID, filepath.Base(res.AudioPath)),
			Timings:       res.Timings,
			OriginalText:  seg.Text,
			SpokenText:    res.SpokenText,
			CharStart:     seg.CharStart,
			CharEnd:       seg.CharEnd,
			Translated:    res.Translated,
		}
		if err := sink.Send(KindChunkReady, ready); err != nil {
			s.handle.Stop()
			return fmt.Errorf("send chunk-ready: %w", err)
		}
	}

	if err := sink.Send(KindPageDone, PageDone{PageIndex: s.req.PageIndex}); err != nil {
		return fmt.Errorf("send page-done: %w", err)
	}
	log.Info("stream completed", "segments", len(s.segs))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
