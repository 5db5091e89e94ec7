package stream

import (
	"github.com/jfowler/readaloud/internal/language"
	"github.com/jfowler/readaloud/internal/synth"
)

// Kind tags the closed set of event variants a stream can emit.
type Kind string

const (
	KindStreamStart Kind = "stream-start"
	KindChunkReady  Kind = "chunk-ready"
	KindChunkError  Kind = "chunk-error"
	KindStopped     Kind = "stopped"
	KindPageDone    Kind = "page-done"
	KindError       Kind = "error"
)

// Sink receives ordered events. The orchestrator depends only on this
// interface; the transport (SSE, a test recorder) lives behind it. A Send
// error means the client is gone and the stream should stop.
type Sink interface {
	Send(kind Kind, payload any) error
}

// StreamStart opens every stream.
type StreamStart struct {
	TotalSegments    int                `json:"totalSegments"`
	PageIndex        int                `json:"pageIndex"`
	DetectedLanguage language.Detection `json:"detectedLanguage"`
	NeedsTranslation bool               `json:"needsTranslation"`
}

// ChunkReady delivers one finished segment.
type ChunkReady struct {
	Index         int                `json:"index"`
	TotalSegments int                `json:"totalSegments"`
	AudioURL      string             `json:"audioUrl"`
	Timings       []synth.WordTiming `json:"wordTimings"`
	OriginalText  string             `json:"originalText"`
	SpokenText    string             `json:"spokenText"`
	CharStart     int                `json:"charStart"`
	CharEnd       int                `json:"charEnd"`
	Translated    bool               `json:"translated"`
}

// ChunkError reports a terminally failed segment; the stream continues.
type ChunkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Stopped acknowledges cancellation.
type Stopped struct{}

// PageDone closes a completed page stream.
type PageDone struct {
	PageIndex int `json:"pageIndex"`
}

// StreamError reports a failure outside the per-segment scope; the stream
// ends after it.
type StreamError struct {
	Message string `json:"message"`
}
