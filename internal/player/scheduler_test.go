package player

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jfowler/readaloud/internal/stream"
	"github.com/jfowler/readaloud/internal/synth"
)

type fakeSound struct {
	mu       sync.Mutex
	ref      string
	playing  bool
	paused   bool
	stopped  bool
	position time.Duration
	done     chan struct{}
}

func (f *fakeSound) Play()   { f.mu.Lock(); f.playing = true; f.mu.Unlock() }
func (f *fakeSound) Pause()  { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeSound) Resume() { f.mu.Lock(); f.paused = false; f.mu.Unlock() }
func (f *fakeSound) Stop()   { f.mu.Lock(); f.stopped = true; f.mu.Unlock() }

func (f *fakeSound) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeSound) SetPosition(d time.Duration) {
	f.mu.Lock()
	f.position = d
	f.mu.Unlock()
}

func (f *fakeSound) Done() <-chan struct{} { return f.done }

func (f *fakeSound) finish() { close(f.done) }

func (f *fakeSound) state() (playing, paused, stopped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing, f.paused, f.stopped
}

type fakeOutput struct {
	mu     sync.Mutex
	sounds []*fakeSound
}

func (f *fakeOutput) Open(ref string, speed float64) (Sound, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSound{ref: ref, done: make(chan struct{})}
	f.sounds = append(f.sounds, s)
	return s, nil
}

func (f *fakeOutput) opened() []*fakeSound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeSound, len(f.sounds))
	copy(out, f.sounds)
	return out
}

type fakeHighlighter struct {
	mu      sync.Mutex
	ranges  [][2]int
	cleared bool
}

func (f *fakeHighlighter) Highlight(start, end int) {
	f.mu.Lock()
	f.ranges = append(f.ranges, [2]int{start, end})
	f.mu.Unlock()
}

func (f *fakeHighlighter) Clear() {
	f.mu.Lock()
	f.cleared = true
	f.mu.Unlock()
}

func (f *fakeHighlighter) last() ([2]int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ranges) == 0 {
		return [2]int{}, false
	}
	return f.ranges[len(f.ranges)-1], true
}

type fakeCanceler struct {
	mu       sync.Mutex
	sessions []string
}

func (f *fakeCanceler) StopReading(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func chunk(index int, text string, charStart int) stream.ChunkReady {
	timings := make([]synth.WordTiming, 0)
	at := 0
	for _, w := range splitWords(text) {
		timings = append(timings, synth.WordTiming{Word: w, StartMs: at, EndMs: at + 300})
		at += 300
	}
	return stream.ChunkReady{
		Index:        index,
		AudioURL:     "/api/audio/s1/seg.mp3",
		Timings:      timings,
		OriginalText: text,
		SpokenText:   text,
		CharStart:    charStart,
		CharEnd:      charStart + len(text),
	}
}

func splitWords(text string) []string {
	var words []string
	cur := ""
	for _, r := range text {
		if r == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_GaplessChaining(t *testing.T) {
	out := &fakeOutput{}
	hl := &fakeHighlighter{}
	s := NewScheduler(out, hl, &fakeCanceler{}, "s1", 1.0, testLogger())
	defer s.Stop(context.Background())

	s.HandleEvent(stream.KindChunkReady, chunk(0, "one two three", 0))
	s.HandleEvent(stream.KindChunkReady, chunk(1, "four five six", 100))

	waitFor(t, func() bool { return len(out.opened()) == 1 }, "first segment never started")
	first := out.opened()[0]
	if playing, _, _ := first.state(); !playing {
		t.Fatal("expected first segment playing")
	}

	// Natural end of the first segment starts the second immediately.
	first.finish()
	waitFor(t, func() bool { return len(out.opened()) == 2 }, "second segment never started")
	second := out.opened()[1]
	waitFor(t, func() bool { playing, _, _ := second.state(); return playing }, "second segment not playing")

	// Queue drained and second finished: scheduler goes idle.
	second.finish()
	waitFor(t, func() bool { return s.Idle() }, "scheduler never went idle")
}

func TestScheduler_HighlightTracksPosition(t *testing.T) {
	out := &fakeOutput{}
	hl := &fakeHighlighter{}
	s := NewScheduler(out, hl, &fakeCanceler{}, "s1", 1.0, testLogger())
	defer s.Stop(context.Background())

	// "one two three" at charStart 50: word spans 50-53, 54-57, 58-63.
	s.HandleEvent(stream.KindChunkReady, chunk(0, "one two three", 50))
	waitFor(t, func() bool { return len(out.opened()) == 1 }, "segment never started")
	sound := out.opened()[0]

	sound.SetPosition(100 * time.Millisecond) // inside word 0
	waitFor(t, func() bool {
		r, ok := hl.last()
		return ok && r == [2]int{50, 53}
	}, "first word never highlighted")

	sound.SetPosition(700 * time.Millisecond) // inside word 2
	waitFor(t, func() bool {
		r, ok := hl.last()
		return ok && r == [2]int{58, 63}
	}, "third word never highlighted")
}

func TestScheduler_PauseResume(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out, &fakeHighlighter{}, &fakeCanceler{}, "s1", 1.0, testLogger())
	defer s.Stop(context.Background())

	s.HandleEvent(stream.KindChunkReady, chunk(0, "alpha beta", 0))
	waitFor(t, func() bool { return len(out.opened()) == 1 }, "segment never started")
	sound := out.opened()[0]

	s.Pause()
	if _, paused, _ := sound.state(); !paused {
		t.Fatal("expected sound paused")
	}

	// Results arriving while paused stay queued.
	s.HandleEvent(stream.KindChunkReady, chunk(1, "gamma delta", 20))
	if len(out.opened()) != 1 {
		t.Fatal("paused scheduler must not start new segments")
	}

	s.Resume()
	if _, paused, _ := sound.state(); paused {
		t.Fatal("expected sound resumed")
	}

	sound.finish()
	waitFor(t, func() bool { return len(out.opened()) == 2 }, "queued segment not played after resume")
}

func TestScheduler_StopDiscardsQueueAndCancelsStream(t *testing.T) {
	out := &fakeOutput{}
	hl := &fakeHighlighter{}
	cancel := &fakeCanceler{}
	s := NewScheduler(out, hl, cancel, "session-42", 1.0, testLogger())

	s.HandleEvent(stream.KindChunkReady, chunk(0, "alpha beta", 0))
	s.HandleEvent(stream.KindChunkReady, chunk(1, "gamma delta", 20))
	waitFor(t, func() bool { return len(out.opened()) == 1 }, "segment never started")
	sound := out.opened()[0]

	s.Stop(context.Background())

	if _, _, stopped := sound.state(); !stopped {
		t.Error("expected current sound stopped")
	}
	hl.mu.Lock()
	cleared := hl.cleared
	hl.mu.Unlock()
	if !cleared {
		t.Error("expected highlight cleared")
	}
	cancel.mu.Lock()
	sessions := append([]string(nil), cancel.sessions...)
	cancel.mu.Unlock()
	if len(sessions) != 1 || sessions[0] != "session-42" {
		t.Errorf("expected one stop request for session-42, got %v", sessions)
	}
	if len(out.opened()) != 1 {
		t.Error("expected queued segment discarded, not played")
	}
}

func TestScheduler_EmptyQueueWaitsForNextResult(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out, &fakeHighlighter{}, &fakeCanceler{}, "s1", 1.0, testLogger())
	defer s.Stop(context.Background())

	s.HandleEvent(stream.KindChunkReady, chunk(0, "only segment", 0))
	waitFor(t, func() bool { return len(out.opened()) == 1 }, "segment never started")
	out.opened()[0].finish()
	waitFor(t, func() bool { return s.Idle() }, "scheduler never went idle")

	// A late arrival starts playback again.
	s.HandleEvent(stream.KindChunkReady, chunk(1, "late arrival", 20))
	waitFor(t, func() bool { return len(out.opened()) == 2 }, "late segment never started")
}

func TestTimingIndex(t *testing.T) {
	timings := []synth.WordTiming{
		{Word: "one", StartMs: 0, EndMs: 300},
		{Word: "two", StartMs: 300, EndMs: 600},
		{Word: "three", StartMs: 900, EndMs: 1200}, // gap between 600 and 900
	}
	cases := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"inside first window", 100 * time.Millisecond, 0},
		{"inside second window", 450 * time.Millisecond, 1},
		{"in the gap falls back to last started", 700 * time.Millisecond, 1},
		{"inside third window", 1000 * time.Millisecond, 2},
		{"past the end", 5 * time.Second, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := timingIndex(timings, tc.elapsed); got != tc.want {
				t.Errorf("timingIndex(%v) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestWordSpans(t *testing.T) {
	spans := wordSpans("one two  three")
	want := []span{{0, 3}, {4, 7}, {9, 14}}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("span %d: expected %v, got %v", i, want[i], spans[i])
		}
	}
}
