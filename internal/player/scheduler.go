// Package player is the client-side consumer of a read stream: it queues
// segment results as they arrive, plays them back to back with no gap, and
// drives word highlighting from the timing data.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jfowler/readaloud/internal/stream"
	"github.com/jfowler/readaloud/internal/synth"
)

// Output opens audio resources for playback.
type Output interface {
	Open(audioRef string, speed float64) (Sound, error)
}

// Sound is one playing audio resource.
type Sound interface {
	Play()
	Pause()
	Resume()
	Stop()
	// Position is the elapsed playback time.
	Position() time.Duration
	// Done is closed at natural end of playback.
	Done() <-chan struct{}
}

// Highlighter receives document character ranges to highlight as words are
// spoken. Offsets are absolute within the page text.
type Highlighter interface {
	Highlight(charStart, charEnd int)
	Clear()
}

// Canceler tells the server side to stop producing for a session.
type Canceler interface {
	StopReading(ctx context.Context, sessionID string) error
}

const highlightTick = 50 * time.Millisecond

// Scheduler consumes ordered stream events and produces continuous playback.
type Scheduler struct {
	out    Output
	hl     Highlighter
	cancel Canceler
	log    *slog.Logger

	sessionID string
	speed     float64

	// ops serializes all state changes onto one goroutine.
	ops      chan func()
	done     chan struct{}
	doneOnce sync.Once

	queue   []stream.ChunkReady
	current *playing
	paused  bool
	stopped bool
}

type playing struct {
	chunk stream.ChunkReady
	sound Sound
	spans []span
	halt  chan struct{}
}

// span is a word's byte range within the original segment text.
type span struct{ start, end int }

func NewScheduler(out Output, hl Highlighter, cancel Canceler, sessionID string, speed float64, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		out:       out,
		hl:        hl,
		cancel:    cancel,
		log:       log,
		sessionID: sessionID,
		speed:     speed,
		ops:       make(chan func()),
		done:      make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// do runs op on the scheduler goroutine and waits for it.
func (s *Scheduler) do(op func()) {
	doneCh := make(chan struct{})
	select {
	case s.ops <- func() { op(); close(doneCh) }:
		<-doneCh
	case <-s.done:
	}
}

// HandleEvent feeds one decoded stream event to the scheduler.
func (s *Scheduler) HandleEvent(kind stream.Kind, payload any) {
	switch kind {
	case stream.KindChunkReady:
		if chunk, ok := payload.(stream.ChunkReady); ok {
			s.do(func() { s.enqueue(chunk) })
		}
	case stream.KindChunkError:
		if ce, ok := payload.(stream.ChunkError); ok {
			s.log.Warn("segment unavailable, skipping", "index", ce.Index, "message", ce.Message)
		}
	case stream.KindStopped, stream.KindPageDone, stream.KindError:
		// Playback drains whatever is queued; nothing to do here.
	}
}

func (s *Scheduler) enqueue(chunk stream.ChunkReady) {
	if s.stopped {
		return
	}
	s.queue = append(s.queue, chunk)
	if s.current == nil && !s.paused {
		s.playNext()
	}
}

// playNext dequeues the head and starts it. Called with state owned by the
// scheduler goroutine.
func (s *Scheduler) playNext() {
	if len(s.queue) == 0 || s.stopped {
		return
	}
	chunk := s.queue[0]
	s.queue = s.queue[1:]

	sound, err := s.out.Open(chunk.AudioURL, s.speed)
	if err != nil {
		s.log.Error("open audio failed, skipping segment", "index", chunk.Index, "error", err)
		s.playNext()
		return
	}

	p := &playing{
		chunk: chunk,
		sound: sound,
		spans: wordSpans(chunk.OriginalText),
		halt:  make(chan struct{}),
	}
	s.current = p
	sound.Play()
	go s.track(p)
}

// track follows playback position, highlighting the spoken word, and chains
// to the next queued segment when this one ends.
func (s *Scheduler) track(p *playing) {
	ticker := time.NewTicker(highlightTick)
	defer ticker.Stop()
	for {
		select {
		case <-p.halt:
			return
		case <-p.sound.Done():
			s.do(func() {
				if s.current != p {
					return
				}
				s.current = nil
				if !s.paused {
					s.playNext()
				}
			})
			return
		case <-ticker.C:
			s.do(func() {
				if s.current == p && !s.paused {
					s.highlight(p)
				}
			})
		}
	}
}

// highlight maps the current playback position to a word timing entry, then
// to a character range in the original document text.
func (s *Scheduler) highlight(p *playing) {
	idx := timingIndex(p.chunk.Timings, p.sound.Position())
	if idx < 0 || len(p.spans) == 0 {
		return
	}
	// The timings align to the spoken (possibly translated) text; clamp the
	// word index onto the original text's words.
	if idx >= len(p.spans) {
		idx = len(p.spans) - 1
	}
	sp := p.spans[idx]
	s.hl.Highlight(p.chunk.CharStart+sp.start, p.chunk.CharStart+sp.end)
}

// timingIndex picks the entry whose window contains elapsed, falling back to
// the last entry already started. Gaps between words resolve to the word
// just spoken rather than nothing.
func timingIndex(timings []synth.WordTiming, elapsed time.Duration) int {
	ms := int(elapsed / time.Millisecond)
	lastStarted := -1
	for i, t := range timings {
		if t.StartMs <= ms && ms < t.EndMs {
			return i
		}
		if t.StartMs <= ms {
			lastStarted = i
		}
	}
	return lastStarted
}

// Pause stops highlight tracking and the audio without discarding the queue.
func (s *Scheduler) Pause() {
	s.do(func() {
		if s.stopped || s.paused {
			return
		}
		s.paused = true
		if s.current != nil {
			s.current.sound.Pause()
		}
	})
}

// Resume restarts playback from the current position. If nothing was
// playing but results are queued, the head starts.
func (s *Scheduler) Resume() {
	s.do(func() {
		if s.stopped || !s.paused {
			return
		}
		s.paused = false
		if s.current != nil {
			s.current.sound.Resume()
		} else {
			s.playNext()
		}
	})
}

// Stop discards the queue, releases the audio resource and asks the server
// to halt the stream.
func (s *Scheduler) Stop(ctx context.Context) {
	var notify bool
	s.do(func() {
		if s.stopped {
			return
		}
		s.stopped = true
		s.queue = nil
		if s.current != nil {
			close(s.current.halt)
			s.current.sound.Stop()
			s.current = nil
		}
		s.hl.Clear()
		notify = true
	})
	s.doneOnce.Do(func() { close(s.done) })
	if notify && s.cancel != nil {
		if err := s.cancel.StopReading(ctx, s.sessionID); err != nil {
			s.log.Warn("stop request failed", "session_id", s.sessionID, "error", err)
		}
	}
}

// Idle reports whether nothing is playing and nothing is queued.
func (s *Scheduler) Idle() bool {
	var idle bool
	s.do(func() { idle = s.current == nil && len(s.queue) == 0 })
	return idle
}

// wordSpans returns the byte range of every whitespace-delimited word.
func wordSpans(text string) []span {
	var spans []span
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				spans = append(spans, span{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}
