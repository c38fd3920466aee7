package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/config"
	"github.com/jonathan/npidb-scraper/internal/db"
	"github.com/jonathan/npidb-scraper/internal/fetch"
	"github.com/jonathan/npidb-scraper/internal/logging"
	"github.com/jonathan/npidb-scraper/internal/taxonomy"
)

// app bundles what every command needs once flags are parsed.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	fetcher *fetch.Client
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewClient(&fetch.Options{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
	})

	return &app{cfg: cfg, logger: logger, fetcher: fetcher}, nil
}

// taxonomySource returns the built-in table with --static, the scraped reference page otherwise.
func (a *app) taxonomySource() taxonomy.Source {
	if a.cfg.StaticTaxonomy {
		return taxonomy.Static{Index: taxonomy.StaticIndex()}
	}
	return taxonomy.NewResolver(a.fetcher, a.cfg.BaseURL, a.logger)
}

// openStore connects to the optional database sink. It returns nil when no URL is configured.
func (a *app) openStore(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, nil
	}
	store, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func requireFlag(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
	}
}
