package synth

import "context"

// WordTiming marks when one word is audible within a synthesized segment.
type WordTiming struct {
	Word    string `json:"word"`
	StartMs int    `json:"startMs"`
	EndMs   int    `json:"endMs"`
}

// Request describes one synthesis call. The synthesizer writes the audio
// artifact to OutPath; no partial file is left behind on failure.
type Request struct {
	Text     string
	Language string
	Gender   string
	Speed    float64
	OutPath  string
}

// Result references the written artifact plus word timings aligned to the
// spoken text, monotonically non-decreasing in StartMs.
type Result struct {
	AudioPath string
	Timings   []WordTiming
}

// Synthesizer converts text to spoken audio with word-level timing data.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}
