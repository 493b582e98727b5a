package main

import (
	"errors"
	"io/fs"
	stdlog "log"

	"github.com/joho/godotenv"

	"cardreader/cmd"
	"cardreader/internal/config"
	"cardreader/internal/logger"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		stdlog.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands report configuration errors themselves, so fall back to the
	// default logger here.
	logConfig := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		logConfig = cfg.GetLoggerConfig()
	}
	if err := logger.Setup(logConfig); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting cardreader")

	cmd.Execute()

	log.Debug().Msg("cardreader finished")
}
