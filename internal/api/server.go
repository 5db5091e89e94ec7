package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jfowler/readaloud/internal/batch"
	"github.com/jfowler/readaloud/internal/config"
	"github.com/jfowler/readaloud/internal/language"
	"github.com/jfowler/readaloud/internal/session"
	"github.com/jfowler/readaloud/internal/stream"
)

// Server is the HTTP API server for readaloud.
type Server struct {
	router   chi.Router
	sessions *session.Registry
	streams  *stream.Orchestrator
	composer *batch.Composer
	resolver *language.Resolver
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *session.Registry, streams *stream.Orchestrator, composer *batch.Composer, resolver *language.Resolver, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		streams:  streams,
		composer: composer,
		resolver: resolver,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.ReadaloudAPIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{sessionID}", s.handleGetDocument)
		r.Delete("/api/documents/{sessionID}", s.handleDeleteDocument)

		r.Get("/api/read/stream", s.handleReadStream)
		r.Post("/api/read/stop", s.handleReadStop)

		r.Post("/api/audiobook/{sessionID}", s.handleAudiobook)
		r.Get("/api/audio/{sessionID}/{name}", s.handleAudio)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
