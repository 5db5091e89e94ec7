package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	ReadaloudAPIKey string

	// Translation service
	TranslateURL     string
	TranslateAPIKey  string
	TranslateTimeout time.Duration

	// Speech synthesis service
	SynthURL     string
	SynthAPIKey  string
	SynthTimeout time.Duration

	// Session store
	AudioDir      string
	SessionTTL    time.Duration
	SweepInterval time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Pagination fallback
	PageChars int

	// Language
	DefaultLanguage string

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8080"),

		ReadaloudAPIKey: os.Getenv("READALOUD_API_KEY"),

		TranslateURL:     envOr("TRANSLATE_URL", "http://localhost:5000"),
		TranslateAPIKey:  os.Getenv("TRANSLATE_API_KEY"),
		TranslateTimeout: envDuration("TRANSLATE_TIMEOUT", 45*time.Second),

		SynthURL:     envOr("SYNTH_URL", "http://localhost:5002"),
		SynthAPIKey:  os.Getenv("SYNTH_API_KEY"),
		SynthTimeout: envDuration("SYNTH_TIMEOUT", 180*time.Second),

		AudioDir:      envOr("AUDIO_DIR", "./audio"),
		SessionTTL:    envDuration("SESSION_TTL", 30*time.Minute),
		SweepInterval: envDuration("SWEEP_INTERVAL", 5*time.Minute),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		PageChars: envInt("PAGE_CHARS", 3000),

		DefaultLanguage: envOr("DEFAULT_LANGUAGE", "en"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = 45 * time.Second
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = 180 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.PageChars <= 0 {
		cfg.PageChars = 3000
	}

	return cfg
}

func (c Config) Validate() error {
	if c.ReadaloudAPIKey == "" {
		return fmt.Errorf("READALOUD_API_KEY is required")
	}
	if c.TranslateURL == "" {
		return fmt.Errorf("TRANSLATE_URL is required")
	}
	if c.SynthURL == "" {
		return fmt.Errorf("SYNTH_URL is required")
	}
	if c.AudioDir == "" {
		return fmt.Errorf("AUDIO_DIR is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
