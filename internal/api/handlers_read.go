package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jfowler/readaloud/internal/pipeline"
	"github.com/jfowler/readaloud/internal/stream"
)

// handleReadStream runs a page read as a server-sent event stream. The
// request context doubles as the disconnect signal: when the client goes
// away, the stream stops at the next segment boundary.
func (s *Server) handleReadStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := stream.Request{
		SessionID:      q.Get("sessionId"),
		TargetLanguage: q.Get("targetLang"),
		PageIndex:      intParam(q.Get("page"), 0),
		StartOffset:    intParam(q.Get("offset"), 0),
		Speed:          q.Get("speed"),
		VoiceGender:    q.Get("gender"),
	}

	st, err := s.streams.NewStream(req)
	if err != nil {
		var inputErr *stream.InputError
		if errors.As(err, &inputErr) {
			jsonError(w, inputErr.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sink, ok := newSSESink(w)
	if !ok {
		st.Close()
		jsonError(w, "streaming unsupported by connection", http.StatusInternalServerError)
		return
	}

	if err := st.Run(r.Context(), sink); err != nil {
		// The transport is gone; there is nobody left to report to.
		s.log.Info("stream ended early", "session_id", req.SessionID, "error", err)
	}
}

// handleReadStop cancels all active streams on a session.
func (s *Server) handleReadStop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" {
		jsonError(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	stopped := s.sessions.StopStreams(body.SessionID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"stopped": stopped})
}

// handleAudiobook synthesizes the whole document into a single audio file.
// The request blocks until the file is ready or the generation fails.
func (s *Server) handleAudiobook(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	doc, ok := s.sessions.Get(sessionID)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	voice := pipeline.NewVoiceConfig(q.Get("speed"), q.Get("gender"))

	outPath, err := s.composer.ComposeBook(r.Context(), doc, q.Get("targetLang"), voice)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"audioUrl": stream.AudioURLPrefix + "/" + doc.ID + "/" + filepath.Base(outPath),
	})
}

// handleAudio serves one audio artifact from a session's cache directory.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	doc, ok := s.sessions.Get(sessionID)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	name := chi.URLParam(r, "name")
	// Artifact names are flat; anything path-like is a traversal attempt.
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		jsonError(w, "invalid artifact name", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, filepath.Join(doc.AudioDir, name))
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
