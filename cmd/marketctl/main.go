// Command marketctl is the admin tool for the trade market store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brainrotMarket/config"
	"brainrotMarket/internal/adapters/logger"
	"brainrotMarket/internal/adapters/storage"
)

var rootCmd = &cobra.Command{
	Use:           "marketctl",
	Short:         "Admin tooling for the brainrot trade market",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(seedCmd, exportCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

// env is the configuration, logger and open store shared by subcommands.
type env struct {
	cfg    *config.Config
	logger *logger.ZapLogger
	store  storage.Store
	close  storage.CloseFunc
}

func openEnv(ctx context.Context) (*env, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 3. Initialize Store
	store, closeStore, err := storage.Open(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize store")
		return nil, err
	}
	return &env{cfg: cfg, logger: appLogger, store: store, close: closeStore}, nil
}

func (e *env) Close(ctx context.Context) {
	if err := e.close(ctx); err != nil {
		e.logger.Error(ctx, err, "Error closing store")
	}
	_ = e.logger.Sync()
}
