package app

import (
	"github.com/rs/zerolog"

	"github.com/batchgate/batchgate/internal/config"
	"github.com/batchgate/batchgate/internal/server"
)

// NewServer creates a new server instance with the given configuration
func NewServer(cfg *config.Config, logger zerolog.Logger) *server.Server {
	return server.New(logger, cfg)
}
