package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"omnishop/internal/config"
	"omnishop/internal/http/handlers"
	applog "omnishop/internal/log"
	"omnishop/internal/repos"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema and seed demo data, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()
		db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		applog.Info(nil, "db.migrated", map[string]any{"driver": cfg.DBDriver})
		return db.Close()
	},
}

func setup() (config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	closer, err := applog.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("log setup: %w", err)
	}
	return cfg, func() {
		applog.Sync()
		_ = closer.Close()
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	deps := handlers.NewDeps(db, cfg)
	app := handlers.NewApp(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		applog.Info(nil, "server.start", map[string]any{"port": cfg.Port})
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-ctx.Done():
	}

	applog.Info(nil, "server.stop", nil)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		applog.Error(nil, "server.shutdown", err, nil)
	}
	// pending cart syncs finish before the db closes
	deps.Close()
	return nil
}
