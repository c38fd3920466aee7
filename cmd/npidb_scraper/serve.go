package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/config"
	"github.com/jonathan/npidb-scraper/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that lists specialties and states and runs collections, returning CSV downloads or a server-sent event progress stream.`,
	RunE:  runServe,
}

func init() {
	d := config.Defaults()
	flags := serveCmd.Flags()
	flags.Int("port", d.Port, "Port to listen on")
	flags.Int("cap", d.Cap, "Default and maximum record cap per collection")
	flags.String("mode", d.Mode, "Default collection mode: basic or enriched")
	flags.Duration("delay", d.Delay, "Pause between listing pages")
	flags.Duration("detail-delay", d.DetailDelay, "Pause before each detail page fetch (enriched mode)")
	flags.Int("workers", d.Workers, "Concurrent detail page fetches (enriched mode, 1-16)")
	flags.Bool("static", false, "Use the built-in specialty table instead of scraping the taxonomy page")
	flags.String("database-url", "", "Store every finished run in this PostgreSQL database")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd)
	defer stop()

	source := a.taxonomySource()
	// Warm the index with the process context so no single request decides it.
	if n := source.Resolve(ctx).Len(); n == 0 {
		a.logger.Warn("no specialties resolved at startup; collections need --static or a restart")
	} else {
		a.logger.Info("specialties resolved", zap.Int("count", n))
	}

	opts := server.Options{
		Config:   a.cfg,
		Taxonomy: source,
		Fetcher:  a.fetcher,
		Logger:   a.logger,
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts.Sink = store
		a.logger.Info("storing runs in database")
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Info("serving", zap.Int("port", a.cfg.Port), zap.String("base_url", a.cfg.BaseURL))
	return srv.Start(ctx)
}
