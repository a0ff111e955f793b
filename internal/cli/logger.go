package cli

import (
	"log/slog"
	"os"

	"github.com/aretw0/scenesync/internal/config"
	"github.com/aretw0/scenesync/internal/logging"
)

// NewLogger builds the process logger from the config.
func NewLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.LogFormat == "json" {
		return logging.NewJSON(os.Stderr, level), nil
	}
	return logging.New(level), nil
}
