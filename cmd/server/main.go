package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfowler/readaloud/internal/api"
	"github.com/jfowler/readaloud/internal/batch"
	"github.com/jfowler/readaloud/internal/config"
	"github.com/jfowler/readaloud/internal/language"
	"github.com/jfowler/readaloud/internal/pipeline"
	"github.com/jfowler/readaloud/internal/session"
	"github.com/jfowler/readaloud/internal/stream"
	"github.com/jfowler/readaloud/internal/synth"
	"github.com/jfowler/readaloud/internal/translate"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		log.Error("create audio dir", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize collaborator clients.
	translator := translate.NewClient(cfg.TranslateURL, cfg.TranslateAPIKey)
	synthesizer := synth.NewClient(cfg.SynthURL, cfg.SynthAPIKey)
	resolver := language.NewResolver(cfg.DefaultLanguage)

	// Initialize the session registry and processing layers.
	sessions := session.NewRegistry(cfg.AudioDir, cfg.SessionTTL, nil, log)
	sessions.Start(ctx, cfg.SweepInterval)

	pipe := pipeline.New(translator, synthesizer, pipeline.Config{
		TranslateTimeout: cfg.TranslateTimeout,
		SynthTimeout:     cfg.SynthTimeout,
	}, log)
	streams := stream.NewOrchestrator(sessions, pipe, log)
	composer := batch.NewComposer(sessions, pipe, log)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, streams, composer, resolver, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE reads and audiobook composes are open-ended.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		cancel()
		sessions.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		translator.Close()
		synthesizer.Close()
	}()

	log.Info("starting readaloud", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
