package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jfowler/readaloud/internal/language"
)

// fakeClock is a settable clock for eviction tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRegistry(t *testing.T, clk Clock, ttl time.Duration) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir(), ttl, clk, testLogger())
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(t, nil, time.Hour)

	doc, err := r.Create("My Book", "hello world", []string{"hello world"}, language.Detection{Code: "en", Name: "English", Confidence: language.ConfidenceHigh})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	if fi, err := os.Stat(doc.AudioDir); err != nil || !fi.IsDir() {
		t.Fatalf("expected audio dir to exist: %v", err)
	}

	got, ok := r.Get(doc.ID)
	if !ok || got.ID != doc.ID {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := r.Get("no-such-session"); ok {
		t.Error("expected miss for unknown session")
	}
}

func TestRegistry_IdleEviction(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestRegistry(t, clk, 30*time.Minute)

	doc, err := r.Create("Doc", "text", []string{"text"}, language.Detection{Code: "en"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	audioFile := filepath.Join(doc.AudioDir, "seg.mp3")
	if err := os.WriteFile(audioFile, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	// Not yet idle.
	clk.Advance(10 * time.Minute)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no evictions, got %d", n)
	}

	// A read refreshes the idle timer.
	r.Get(doc.ID)
	clk.Advance(25 * time.Minute)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no evictions after touch, got %d", n)
	}

	clk.Advance(31 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := r.Get(doc.ID); ok {
		t.Error("expected session gone after eviction")
	}
	if _, err := os.Stat(audioFile); !os.IsNotExist(err) {
		t.Error("expected audio artifacts deleted on eviction")
	}
}

func TestRegistry_SweepSparesActiveStreams(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestRegistry(t, clk, 30*time.Minute)

	doc, err := r.Create("Doc", "text", []string{"text"}, language.Detection{Code: "en"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := r.OpenStream(doc.ID)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	// A long-running stream outlives the TTL without any Get in between;
	// the session it is reading must survive the sweep untouched.
	clk.Advance(31 * time.Minute)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no evictions while a stream is open, got %d", n)
	}
	if !h.Active() {
		t.Fatal("expected stream handle still active after sweep")
	}
	if _, ok := r.Get(doc.ID); !ok {
		t.Fatal("expected session to survive sweep while streamed")
	}

	// Closing the stream restarts the idle clock.
	r.CloseStream(h)
	clk.Advance(29 * time.Minute)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no evictions before TTL after close, got %d", n)
	}
	clk.Advance(2 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction once idle past TTL, got %d", n)
	}
}

func TestRegistry_StreamLifecycle(t *testing.T) {
	r := newTestRegistry(t, nil, time.Hour)
	doc, _ := r.Create("Doc", "text", []string{"text"}, language.Detection{Code: "en"})

	h1, err := r.OpenStream(doc.ID)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	h2, err := r.OpenStream(doc.ID)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if !h1.Active() || !h2.Active() {
		t.Fatal("expected new streams active")
	}
	if h1.ID == h2.ID {
		t.Fatal("expected distinct stream ids")
	}

	if n := r.StopStreams(doc.ID); n != 2 {
		t.Fatalf("expected 2 streams stopped, got %d", n)
	}
	if h1.Active() || h2.Active() {
		t.Error("expected both streams inactive after stop")
	}

	// Stopping again is a no-op.
	if n := r.StopStreams(doc.ID); n != 0 {
		t.Errorf("expected 0 on second stop, got %d", n)
	}

	r.CloseStream(h1)
	r.CloseStream(h2)
}

func TestRegistry_OpenStreamUnknownSession(t *testing.T) {
	r := newTestRegistry(t, nil, time.Hour)
	if _, err := r.OpenStream("missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestRegistry_RemoveStopsStreams(t *testing.T) {
	r := newTestRegistry(t, nil, time.Hour)
	doc, _ := r.Create("Doc", "text", []string{"text"}, language.Detection{Code: "en"})
	h, _ := r.OpenStream(doc.ID)

	if !r.Remove(doc.ID) {
		t.Fatal("expected Remove to report success")
	}
	if h.Active() {
		t.Error("expected stream stopped by Remove")
	}
	if r.Remove(doc.ID) {
		t.Error("expected second Remove to report miss")
	}
	if _, err := os.Stat(doc.AudioDir); !os.IsNotExist(err) {
		t.Error("expected audio dir deleted")
	}
}
