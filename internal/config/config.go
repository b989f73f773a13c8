// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Corpus settings.
	CorpusManifestPath string

	// Database settings. Empty disables persistence: collections then
	// live in memory only for the lifetime of the process.
	DatabaseURL string

	// Scoring settings.
	ScoreParallelism int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("VAMP_PORT", 8080),
		ReadTimeout:         envDuration("VAMP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("VAMP_WRITE_TIMEOUT", 30*time.Second),
		CorpusManifestPath:  envStr("VAMP_CORPUS_MANIFEST", "brain_data/manifest.json"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		ScoreParallelism:    envInt("VAMP_SCORE_PARALLELISM", 4),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "vamp"),
		LogLevel:            envStr("VAMP_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("VAMP_MAX_REQUEST_BODY_BYTES", 4*1024*1024)), // 4 MB: a batch of scraped items
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.CorpusManifestPath == "" {
		return fmt.Errorf("config: VAMP_CORPUS_MANIFEST is required")
	}
	if c.ScoreParallelism < 1 {
		return fmt.Errorf("config: VAMP_SCORE_PARALLELISM must be at least 1")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: VAMP_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
