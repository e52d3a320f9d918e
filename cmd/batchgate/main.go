package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/batchgate/batchgate/internal/app"
	"github.com/batchgate/batchgate/internal/config"
	"github.com/batchgate/batchgate/internal/logger"
)

func main() {
	listenAddr := flag.String("listen", "", "Listen address, e.g. :9879 (overrides BATCHGATE_LISTEN_ADDR)")
	upstreamURL := flag.String("upstream", "", "Upstream chat completions URL (overrides BATCHGATE_UPSTREAM_URL)")
	defaultModel := flag.String("default-model", "", "Model reported when upstream names none (overrides BATCHGATE_DEFAULT_MODEL)")
	upstreamTimeout := flag.Duration("upstream-timeout", 0, "Timeout for the whole upstream call including the stream")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *upstreamURL != "" {
		cfg.UpstreamURL = *upstreamURL
	}
	if *defaultModel != "" {
		cfg.DefaultModel = *defaultModel
	}
	if *upstreamTimeout > 0 {
		cfg.UpstreamTimeout = *upstreamTimeout
	}

	srv := app.NewServer(cfg, log)

	log.Info().
		Str("listen_addr", cfg.ListenAddr).
		Str("upstream_url", cfg.UpstreamURL).
		Str("default_model", cfg.DefaultModel).
		Dur("upstream_timeout", cfg.UpstreamTimeout).
		Msg("Starting server")

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Fatal().Err(httpServer.ListenAndServe()).Msg("Server failed to start")
}
