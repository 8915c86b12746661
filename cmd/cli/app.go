package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sevigo/locomote-server/internal/app"
	"github.com/sevigo/locomote-server/internal/config"
	"github.com/sevigo/locomote-server/internal/logger"
)

// bootstrap loads config and builds an *app.App the same way cmd/server
// does, but leaves it unstarted: no HTTP listener, no hook listener, no
// cache-gc schedule — just the services a CLI command calls directly.
// The returned cleanup closes the search db and must be called before
// the process exits.
func bootstrap(cmd *cobra.Command) (*app.App, func(), error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(cfg.Logging, os.Stderr)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("build app: %w", err)
	}

	cleanup := func() {
		if err := application.Stop(); err != nil {
			log.Error("cleanup failed", "error", err)
		}
	}
	return application, cleanup, nil
}
