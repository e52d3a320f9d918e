//go:build js && wasm

package main

import (
	"github.com/syumai/workers"

	"github.com/batchgate/batchgate/internal/app"
	"github.com/batchgate/batchgate/internal/config"
	"github.com/batchgate/batchgate/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	srv := app.NewServer(cfg, log)

	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(srv)
}
