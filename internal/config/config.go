// Package config holds runtime configuration for the gateway, resolved from
// environment variables with sensible defaults. Command-line flags in cmd/
// may override individual fields.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultModel is the model identifier reported in responses when the
	// upstream provides no model metadata of its own.
	DefaultModel = "gpt-3.5-turbo"

	defaultListenAddr      = ":9879"
	defaultUpstreamURL     = "https://api.openai.com/v1/chat/completions"
	defaultUpstreamTimeout = 60 * time.Second
)

// Config is the resolved gateway configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string
	// UpstreamURL is the fixed endpoint every chat request is relayed to.
	UpstreamURL string
	// DefaultModel is used when neither the upstream response headers nor
	// the streamed chunks name a model.
	DefaultModel string
	// UpstreamTimeout bounds the whole upstream call, stream included.
	// Expiry surfaces as a transport error, not a truncated success.
	UpstreamTimeout time.Duration
}

// Load resolves configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("BATCHGATE_LISTEN_ADDR", defaultListenAddr),
		UpstreamURL:     envOr("BATCHGATE_UPSTREAM_URL", defaultUpstreamURL),
		DefaultModel:    envOr("BATCHGATE_DEFAULT_MODEL", DefaultModel),
		UpstreamTimeout: defaultUpstreamTimeout,
	}

	// PORT wins over the full listen address when set, to keep parity with
	// common PaaS conventions.
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}

	if raw := os.Getenv("BATCHGATE_UPSTREAM_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid BATCHGATE_UPSTREAM_TIMEOUT_SECONDS %q", raw)
		}
		cfg.UpstreamTimeout = time.Duration(secs) * time.Second
	}

	if _, err := url.ParseRequestURI(cfg.UpstreamURL); err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.UpstreamURL, err)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
