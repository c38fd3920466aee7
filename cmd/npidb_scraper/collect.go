package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/collector"
	"github.com/jonathan/npidb-scraper/internal/config"
	"github.com/jonathan/npidb-scraper/internal/export"
	"github.com/jonathan/npidb-scraper/internal/taxonomy"
	"github.com/jonathan/npidb-scraper/internal/types"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect providers for a specialty and state into CSV",
	Long: `Walks the paginated npidb.org listing for a specialty in a state and writes one CSV row per provider.

Basic mode reads NPI, name, address and phone from the listing pages. Enriched mode also
opens each provider's detail page for phone and fax. Collection stops at the record cap,
at the first empty or failing page, or on Ctrl-C; whatever was gathered is still written.`,
	Example: `  npidb_scraper collect --specialty "Pediatrics" --state CA
  npidb_scraper collect --specialty "Family Medicine" --state NY --mode enriched --workers 4 --out fm_ny.csv
  npidb_scraper collect --specialty dentist_122300000x --state TX --cap 100 --out -`,
	RunE: runCollect,
}

var (
	collectSpecialty string
	collectState     string
	collectOut       string
)

func init() {
	d := config.Defaults()
	flags := collectCmd.Flags()
	flags.StringVarP(&collectSpecialty, "specialty", "s", "", "Specialty label as listed by 'specialties', or a taxonomy slug (required)")
	flags.StringVar(&collectState, "state", "", "Two-letter state code (required)")
	flags.StringVarP(&collectOut, "out", "o", "", "Output CSV path; '-' writes to stdout (default: npidb_<specialty>_<state>.csv)")
	flags.String("mode", d.Mode, "Collection mode: basic or enriched")
	flags.Int("cap", d.Cap, "Maximum number of records to collect")
	flags.Duration("delay", d.Delay, "Pause between listing pages")
	flags.Duration("detail-delay", d.DetailDelay, "Pause before each detail page fetch (enriched mode)")
	flags.Int("workers", d.Workers, "Concurrent detail page fetches (enriched mode, 1-16)")
	flags.Bool("static", false, "Use the built-in specialty table instead of scraping the taxonomy page")
	flags.String("database-url", "", "Also store the run in this PostgreSQL database")

	requireFlag(collectCmd, "specialty")
	requireFlag(collectCmd, "state")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd)
	defer stop()

	slug, label, err := resolveSpecialty(a.taxonomySource().Resolve(ctx), collectSpecialty)
	if err != nil {
		return err
	}

	req, err := types.NewRunRequest(a.cfg.BaseURL, slug, label, collectState, a.cfg.Cap, a.cfg.RunMode())
	if err != nil {
		return err
	}

	log := a.logger.With(zap.String("run_id", req.ID.String()))
	log.Info("starting collection",
		zap.String("specialty", label),
		zap.String("state", req.StateCode),
		zap.String("mode", req.Mode.String()),
		zap.Int("cap", req.Cap),
		zap.String("listing_url", req.ListingURL()),
	)

	c := collector.New(a.fetcher, collector.Options{
		Delay:       a.cfg.Delay,
		DetailDelay: a.cfg.DetailDelay,
		Workers:     a.cfg.Workers,
		Observer:    &progressObserver{logger: log},
		Logger:      a.logger,
	})
	outcome := c.Collect(ctx, req)

	// The summary goes to stderr when the CSV itself is on stdout.
	summaryOut := cmd.OutOrStdout()
	if collectOut == "-" {
		summaryOut = cmd.ErrOrStderr()
	}
	export.NewPrinter(summaryOut).PrintSummary(req, outcome)

	if outcome.Empty() {
		// Empty runs are still stored; the run row records why.
		if err := storeRun(context.WithoutCancel(ctx), a, req, outcome); err != nil {
			log.Warn("failed to store run", zap.Error(err))
		}
		return fmt.Errorf("no data found for %s in %s", label, req.StateCode)
	}

	path, err := writeOutput(cmd.OutOrStdout(), collectOut, req, outcome.Records)
	if err != nil {
		return err
	}
	if path != "" {
		log.Info("wrote CSV", zap.String("path", path), zap.Int("records", len(outcome.Records)))
	}

	if err := storeRun(context.WithoutCancel(ctx), a, req, outcome); err != nil {
		log.Error("failed to store run", zap.Error(err))
		return fmt.Errorf("records were exported but not stored in the database: %w", err)
	}
	return nil
}

// resolveSpecialty looks the input up as a label first. Input that is not a known label
// but looks like a taxonomy slug is used as-is, so collection still works when the
// reference page is unavailable.
func resolveSpecialty(index *taxonomy.Index, input string) (slug, label string, err error) {
	input = strings.TrimSpace(input)
	if slug, ok := index.Lookup(input); ok {
		return slug, input, nil
	}
	if strings.Contains(input, "_") && !strings.ContainsAny(input, " /") {
		return strings.ToLower(input), input, nil
	}
	if index.Len() == 0 {
		return "", "", fmt.Errorf("could not load specialties; pass a taxonomy slug or use --static")
	}
	return "", "", fmt.Errorf("unknown specialty %q; run 'npidb_scraper specialties' to list them", input)
}

// writeOutput writes the CSV to stdout for "-" or to a file, and returns the file path.
func writeOutput(stdout io.Writer, out string, req types.RunRequest, records []types.ProviderRecord) (string, error) {
	if out == "-" {
		return "", export.WriteCSV(stdout, records, req.Mode)
	}
	if out == "" {
		out = export.FileName(req)
	}

	if dir := filepath.Dir(out); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create output file %s: %w", out, err)
	}
	if err := export.WriteCSV(f, records, req.Mode); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file %s: %w", out, err)
	}
	return out, nil
}

// storeTimeout bounds connecting to and writing the optional database.
const storeTimeout = 30 * time.Second

func storeRun(ctx context.Context, a *app, req types.RunRequest, outcome *collector.Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer store.Close()

	if err := store.ExportRun(ctx, req, outcome.Records, outcome.Stop.String()); err != nil {
		return err
	}
	a.logger.Info("stored run in database", zap.String("run_id", req.ID.String()))
	return nil
}

// progressObserver logs collection progress.
type progressObserver struct {
	logger *zap.Logger
}

func (p *progressObserver) PageFetched(page, rows int) {
	p.logger.Info("page fetched", zap.Int("page", page), zap.Int("rows", rows))
}

func (p *progressObserver) RecordAccepted(_ types.ProviderRecord, total int) {
	if total%100 == 0 {
		p.logger.Info("records collected", zap.Int("total", total))
	}
}

func (p *progressObserver) Stopped(out *collector.Outcome) {
	if out.Transient {
		p.logger.Warn(out.Notice)
	}
}
