package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9879" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.UpstreamURL != "https://api.openai.com/v1/chat/completions" {
		t.Fatalf("unexpected upstream URL %q", cfg.UpstreamURL)
	}
	if cfg.DefaultModel != DefaultModel {
		t.Fatalf("unexpected default model %q", cfg.DefaultModel)
	}
	if cfg.UpstreamTimeout != 60*time.Second {
		t.Fatalf("unexpected upstream timeout %v", cfg.UpstreamTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BATCHGATE_LISTEN_ADDR", "127.0.0.1:8000")
	t.Setenv("BATCHGATE_UPSTREAM_URL", "http://localhost:1234/v1/chat/completions")
	t.Setenv("BATCHGATE_DEFAULT_MODEL", "local-model")
	t.Setenv("BATCHGATE_UPSTREAM_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8000" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.UpstreamURL != "http://localhost:1234/v1/chat/completions" {
		t.Fatalf("unexpected upstream URL %q", cfg.UpstreamURL)
	}
	if cfg.DefaultModel != "local-model" {
		t.Fatalf("unexpected default model %q", cfg.DefaultModel)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Fatalf("unexpected upstream timeout %v", cfg.UpstreamTimeout)
	}
}

func TestLoadPortWinsOverListenAddr(t *testing.T) {
	t.Setenv("BATCHGATE_LISTEN_ADDR", "127.0.0.1:8000")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		t.Setenv("BATCHGATE_UPSTREAM_TIMEOUT_SECONDS", raw)
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for timeout %q", raw)
		}
	}
}

func TestLoadRejectsBadUpstreamURL(t *testing.T) {
	t.Setenv("BATCHGATE_UPSTREAM_URL", "://not-a-url")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid upstream URL")
	}
}
