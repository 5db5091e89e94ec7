package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jfowler/readaloud/internal/language"
)

// Clock abstracts time so idle eviction is testable without real timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Document holds one processed document's text and detected language.
// FullText, Pages and Language are write-once at creation and read-only
// afterwards, so concurrent streams read them without locking.
type Document struct {
	ID       string
	Title    string
	FullText string
	Pages    []string
	Language language.Detection
	AudioDir string

	lastAccess atomic.Int64 // unix nanos, last-writer-wins
}

func (d *Document) touch(now time.Time) {
	d.lastAccess.Store(now.UnixNano())
}

// LastAccess reports when the document was last read or streamed.
func (d *Document) LastAccess() time.Time {
	return time.Unix(0, d.lastAccess.Load())
}

// Handle is one active stream tied to a document session. Clearing the
// active flag is the single cancellation primitive: explicit stop requests
// and transport disconnects both go through Stop.
type Handle struct {
	ID        string
	SessionID string
	active    atomic.Bool
}

// Active reports whether the stream may start more segment work.
func (h *Handle) Active() bool { return h.active.Load() }

// Stop clears the active flag. In-flight segment work is allowed to finish.
func (h *Handle) Stop() { h.active.Store(false) }

// Registry is the in-memory document session store with idle eviction.
type Registry struct {
	mu      sync.Mutex
	docs    map[string]*Document
	streams map[string]map[string]*Handle

	clock     Clock
	ttl       time.Duration
	audioRoot string
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(audioRoot string, ttl time.Duration, clock Clock, log *slog.Logger) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	return &Registry{
		docs:      make(map[string]*Document),
		streams:   make(map[string]map[string]*Handle),
		clock:     clock,
		ttl:       ttl,
		audioRoot: audioRoot,
		log:       log,
	}
}

// Create registers a new document session and its audio artifact directory.
func (r *Registry) Create(title, fullText string, pages []string, det language.Detection) (*Document, error) {
	id := newSessionID()
	dir := filepath.Join(r.audioRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	doc := &Document{
		ID:       id,
		Title:    title,
		FullText: fullText,
		Pages:    pages,
		Language: det,
		AudioDir: dir,
	}
	doc.touch(r.clock.Now())

	r.mu.Lock()
	r.docs[id] = doc
	r.mu.Unlock()
	return doc, nil
}

// Get returns a document and touches its last-access time.
func (r *Registry) Get(id string) (*Document, bool) {
	r.mu.Lock()
	doc, ok := r.docs[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	doc.touch(r.clock.Now())
	return doc, true
}

// Summary is a read-only listing entry.
type Summary struct {
	ID         string             `json:"sessionId"`
	Title      string             `json:"title"`
	PageCount  int                `json:"pageCount"`
	Language   language.Detection `json:"detectedLanguage"`
	LastAccess time.Time          `json:"lastAccess"`
}

// List returns summaries of all live sessions.
func (r *Registry) List() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Summary, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, Summary{
			ID:         d.ID,
			Title:      d.Title,
			PageCount:  len(d.Pages),
			Language:   d.Language,
			LastAccess: d.LastAccess(),
		})
	}
	return out
}

// OpenStream registers a new active stream on a session.
func (r *Registry) OpenStream(sessionID string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[sessionID]; !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}
	h := &Handle{ID: uuid.NewString(), SessionID: sessionID}
	h.active.Store(true)
	if r.streams[sessionID] == nil {
		r.streams[sessionID] = make(map[string]*Handle)
	}
	r.streams[sessionID][h.ID] = h
	return h, nil
}

// CloseStream removes a finished stream from the session's table and
// refreshes the session's idle clock.
func (r *Registry) CloseStream(h *Handle) {
	h.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[h.SessionID]; ok {
		doc.touch(r.clock.Now())
	}
	if m := r.streams[h.SessionID]; m != nil {
		delete(m, h.ID)
		if len(m) == 0 {
			delete(r.streams, h.SessionID)
		}
	}
}

// StopStreams clears the active flag on every stream of a session and
// returns how many were stopped.
func (r *Registry) StopStreams(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.streams[sessionID] {
		if h.Active() {
			h.Stop()
			n++
		}
	}
	return n
}

// Remove tears down a session: stops its streams, forgets the document and
// best-effort deletes its audio artifacts. Deletion may race an in-flight
// artifact write; failures are logged and ignored.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if ok {
		delete(r.docs, id)
	}
	for _, h := range r.streams[id] {
		h.Stop()
	}
	delete(r.streams, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := os.RemoveAll(doc.AudioDir); err != nil {
		r.log.Warn("audio cleanup failed", "session_id", id, "error", err)
	}
	return true
}

// Sweep evicts sessions idle past the TTL and returns how many were removed.
// A session with a live stream or compose job is in use regardless of its
// last-access time and is never evicted.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	var expired []string
	for id, doc := range r.docs {
		if len(r.streams[id]) > 0 {
			continue
		}
		if now.Sub(doc.LastAccess()) > r.ttl {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.log.Info("evicting idle session", "session_id", id)
		r.Remove(id)
	}
	return len(expired)
}

// Start launches the periodic eviction sweep.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Stop halts the eviction loop.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
