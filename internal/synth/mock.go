package synth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockSynthesizer is a test double that writes a stub artifact file and
// fabricates evenly spaced word timings.
type MockSynthesizer struct {
	Err        error         // Returned on every call when set.
	FailOn     string        // Fail calls whose text contains this substring.
	Delay      time.Duration // Sleep before answering, for timeout tests.
	WordMs     int           // Duration per fabricated word; defaults to 300.
	AudioBytes []byte        // Artifact content; defaults to a stub marker.

	mu    sync.Mutex
	calls []Request
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return Result{}, m.Err
	}
	if m.FailOn != "" && strings.Contains(req.Text, m.FailOn) {
		return Result{}, &mockError{"synthesis refused: " + m.FailOn}
	}

	wordMs := m.WordMs
	if wordMs <= 0 {
		wordMs = 300
	}
	var timings []WordTiming
	at := 0
	for _, w := range strings.Fields(req.Text) {
		timings = append(timings, WordTiming{Word: w, StartMs: at, EndMs: at + wordMs})
		at += wordMs
	}

	audio := m.AudioBytes
	if len(audio) == 0 {
		audio = []byte("MP3STUB:" + req.Language + ":" + req.Text)
	}
	if err := writeArtifact(req.OutPath, audio); err != nil {
		return Result{}, err
	}
	return Result{AudioPath: req.OutPath, Timings: timings}, nil
}

// Calls returns a copy of every request seen so far.
func (m *MockSynthesizer) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and failure modes.
func (m *MockSynthesizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.Err = nil
	m.FailOn = ""
}

type mockError struct{ msg string }

func (e *mockError) Error() string { return e.msg }
