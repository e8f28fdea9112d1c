// Command salesetl extracts a sales CSV, validates it and loads it into a
// database table only when every data-quality check passes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/salesetl/internal/cli"
	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/logging"
)

func main() {
	// Load .env file if it exists; variables already set in the environment win
	envLoaded := godotenv.Load() == nil

	// Load configuration; commands validate it after applying flags
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(cli.ExitError)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "env_file", envLoaded, "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = cli.Execute(ctx, cfg, os.Args[1:])
	stop()

	if err != nil {
		slog.Error("salesetl failed", "error", err, "code", cli.ExitCode(err))
		os.Exit(cli.ExitCode(err))
	}
}
