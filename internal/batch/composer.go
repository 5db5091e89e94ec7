package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jfowler/readaloud/internal/language"
	"github.com/jfowler/readaloud/internal/pipeline"
	"github.com/jfowler/readaloud/internal/segment"
	"github.com/jfowler/readaloud/internal/session"
)

// Composer synthesizes a whole document into one audio file. Unlike the
// streaming path, any terminal segment failure aborts the job and removes
// every partial artifact: a half-generated audiobook is worse than an
// explicit failure.
type Composer struct {
	sessions *session.Registry
	pipe     *pipeline.Pipeline
	log      *slog.Logger
}

func NewComposer(sessions *session.Registry, pipe *pipeline.Pipeline, log *slog.Logger) *Composer {
	return &Composer{sessions: sessions, pipe: pipe, log: log}
}

// ComposeBook runs every page through the segment pipeline at batch
// granularity and concatenates the results in reading order. It returns the
// path of the finished file.
func (c *Composer) ComposeBook(ctx context.Context, doc *session.Document, targetLang string, voice pipeline.VoiceConfig) (string, error) {
	if targetLang == "" {
		targetLang = doc.Language.Code
	}
	needs := language.NeedsTranslation(doc.Language.Code, targetLang)
	log := c.log.With("session_id", doc.ID, "target", targetLang)

	// Register on the session so an explicit stop or teardown cancels a
	// running compose through the same flag streams use.
	handle, err := c.sessions.OpenStream(doc.ID)
	if err != nil {
		return "", fmt.Errorf("open batch job: %w", err)
	}
	defer c.sessions.CloseStream(handle)

	var parts []string
	cleanup := func() {
		for _, p := range parts {
			os.Remove(p)
		}
	}

	total := 0
	for pageIdx, pageText := range doc.Pages {
		segs := segment.Split(pageText, 0, segment.Batch)
		for segIdx, seg := range segs {
			if ctx.Err() != nil || !handle.Active() {
				cleanup()
				return "", fmt.Errorf("audiobook generation canceled")
			}

			outPath := filepath.Join(doc.AudioDir,
				fmt.Sprintf("book_p%d_s%d_%s.mp3", pageIdx, segIdx, shortID(handle.ID)))
			res, err := c.pipe.Process(ctx, seg, pipeline.Options{
				Translate:      needs,
				SourceLanguage: doc.Language.Code,
				TargetLanguage: targetLang,
				Voice:          voice,
				OutPath:        outPath,
			})
			if err != nil {
				cleanup()
				return "", fmt.Errorf("page %d segment %d: %w", pageIdx, segIdx, err)
			}
			parts = append(parts, res.AudioPath)
			total++
		}
	}
	if total == 0 {
		return "", fmt.Errorf("document has no synthesizable text")
	}

	outPath := filepath.Join(doc.AudioDir,
		fmt.Sprintf("book_%s_%d.mp3", targetLang, time.Now().UnixMilli()))
	if err := concatAudio(outPath, parts); err != nil {
		cleanup()
		os.Remove(outPath)
		return "", err
	}
	cleanup()

	log.Info("audiobook composed", "segments", total, "file", filepath.Base(outPath))
	return outPath, nil
}

// concatAudio joins MP3 artifacts by straight binary concatenation. MP3
// frames are self-contained, so joined files play back to back; boundary
// artifacts are accepted in exchange for skipping re-encoding.
func concatAudio(dst string, parts []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	for _, p := range parts {
		in, err := os.Open(p)
		if err != nil {
			out.Close()
			return fmt.Errorf("open part %s: %w", filepath.Base(p), err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			return fmt.Errorf("append part %s: %w", filepath.Base(p), err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
