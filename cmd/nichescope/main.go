// Nichescope - resilient market-signal gateway and niche scoring
package main

import (
	"context"
	"os"

	"github.com/nichescope/nichescope/internal/config"
	"github.com/nichescope/nichescope/internal/logging"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Create logger
	logger := logging.New("info", "text")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Recreate with the configured level and format
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("starting nichescope",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	if err := Execute(context.Background(), cfg, logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
