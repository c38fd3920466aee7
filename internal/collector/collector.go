// Package collector walks paginated provider listings and turns their rows into records.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/npidb-scraper/internal/fetch"
	"github.com/jonathan/npidb-scraper/internal/logging"
	"github.com/jonathan/npidb-scraper/internal/types"
)

const (
	// DefaultDelay is the pause between successive listing page fetches.
	DefaultDelay = 1 * time.Second
	// MaxWorkers bounds concurrent detail page fetches.
	MaxWorkers = 16
)

// Options configures a Collector. The zero value fetches with no delay and one worker.
type Options struct {
	// Delay is waited between listing pages.
	Delay time.Duration
	// DetailDelay is waited before each detail page fetch, per worker.
	DetailDelay time.Duration
	// Workers bounds concurrent detail fetches in enriched mode.
	Workers  int
	Observer Observer
	Logger   *zap.Logger
}

// Collector runs the fetch/extract/enrich loop for one RunRequest at a time.
// It holds no per-run state and may be reused across runs.
type Collector struct {
	fetcher  fetch.Fetcher
	delay    time.Duration
	detail   time.Duration
	workers  int
	observer Observer
	logger   *zap.Logger
}

// New creates a collector.
func New(fetcher fetch.Fetcher, opts Options) *Collector {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Collector{
		fetcher:  fetcher,
		delay:    max(opts.Delay, 0),
		detail:   max(opts.DetailDelay, 0),
		workers:  workers,
		observer: observer,
		logger:   logging.OrNop(opts.Logger),
	}
}

// Collect fetches listing pages starting at page 1 until a page has no rows, a page
// fails to load, the record cap is reached, or ctx is done. It never fails: whatever
// was gathered is returned, possibly nothing.
func (c *Collector) Collect(ctx context.Context, req types.RunRequest) *Outcome {
	out := &Outcome{RunID: req.ID}
	log := c.logger.With(
		zap.String("run_id", req.ID.String()),
		zap.String("specialty", req.SpecialtySlug),
		zap.String("state", req.StateCode),
		zap.String("mode", req.Mode.String()),
	)
	extract := ExtractorFor(req.Mode)

	defer func() {
		log.Info("collection finished",
			zap.String("stop", out.Stop.String()),
			zap.Int("stop_page", out.StopPage),
			zap.Int("records", len(out.Records)),
			zap.Int("pages", out.Pages),
			zap.Int("skipped", out.Skipped),
			zap.Int("enrich_failures", out.EnrichFailures),
		)
		c.observer.Stopped(out)
	}()

	for page := 1; ; page++ {
		if page > 1 {
			if err := sleep(ctx, c.delay); err != nil {
				out.cancel(page)
				return out
			}
		}

		pageURL := req.PageURL(page)
		log.Debug("fetching listing page", zap.Int("page", page), zap.String("url", pageURL))

		result, err := c.fetcher.Get(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				out.cancel(page)
				return out
			}
			out.fetchFailed(page, err)
			log.Info(out.Notice, zap.Error(err))
			return out
		}

		doc, err := result.Document()
		if err != nil {
			out.Stop = StopFetchFailed
			out.StopPage = page
			out.Notice = fmt.Sprintf("page %d could not be parsed", page)
			log.Info(out.Notice, zap.Error(err))
			return out
		}

		listing := ParseListing(doc)
		if len(listing) == 0 {
			out.Stop = StopExhausted
			out.StopPage = page
			out.Notice = fmt.Sprintf("no more providers after page %d", page-1)
			return out
		}
		out.Pages++
		c.observer.PageFetched(page, len(listing))

		var accepted []Row
		capReached := false
		for _, lr := range listing {
			row, ok := extract(lr, req)
			if !ok {
				out.Skipped++
				continue
			}
			accepted = append(accepted, row)
			if len(out.Records)+len(accepted) >= req.Cap {
				capReached = true
				break
			}
		}

		if req.Mode == types.ModeEnriched && len(accepted) > 0 {
			out.EnrichFailures += c.enrich(ctx, log, accepted)
		}

		for _, row := range accepted {
			out.Records = append(out.Records, row.Record)
			c.observer.RecordAccepted(row.Record, len(out.Records))
		}

		if capReached {
			out.Stop = StopCap
			out.StopPage = page
			out.Notice = fmt.Sprintf("record cap of %d reached on page %d", req.Cap, page)
			return out
		}
		if ctx.Err() != nil {
			out.cancel(page)
			return out
		}
	}
}

// enrich fills phone and fax from each row's detail page using up to c.workers
// concurrent fetches. A failed detail fetch leaves that row's fields empty.
// Every worker writes only its own slot, so row order is preserved.
func (c *Collector) enrich(ctx context.Context, log *zap.Logger, rows []Row) int {
	var failures atomic.Int32
	var g errgroup.Group
	g.SetLimit(c.workers)

	for i := range rows {
		g.Go(func() error {
			if err := sleep(ctx, c.detail); err != nil {
				failures.Add(1)
				return nil
			}
			phone, fax, err := c.fetchDetail(ctx, rows[i].DetailURL)
			if err != nil {
				failures.Add(1)
				log.Debug("detail page skipped",
					zap.String("npi", rows[i].Record.NPI),
					zap.String("url", rows[i].DetailURL),
					zap.Error(err))
				return nil
			}
			rows[i].Record.Phone = phone
			rows[i].Record.Fax = fax
			return nil
		})
	}
	_ = g.Wait()

	return int(failures.Load())
}

func (c *Collector) fetchDetail(ctx context.Context, detailURL string) (phone, fax string, err error) {
	result, err := c.fetcher.Get(ctx, detailURL)
	if err != nil {
		return "", "", err
	}
	doc, err := result.Document()
	if err != nil {
		return "", "", err
	}
	phone, fax = ParseDetail(doc)
	return phone, fax, nil
}

func (o *Outcome) cancel(page int) {
	o.Stop = StopCanceled
	o.StopPage = page
	o.Notice = fmt.Sprintf("collection canceled at page %d", page)
}

func (o *Outcome) fetchFailed(page int, err error) {
	o.Stop = StopFetchFailed
	o.StopPage = page

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		o.Transient = fetchErr.Transient()
		if fetchErr.StatusCode != 0 {
			if o.Transient {
				o.Notice = fmt.Sprintf("page %d temporarily unavailable (HTTP %d); stopping early", page, fetchErr.StatusCode)
			} else {
				o.Notice = fmt.Sprintf("no more pages found or error on page %d (HTTP %d)", page, fetchErr.StatusCode)
			}
			return
		}
	}
	o.Notice = fmt.Sprintf("failed to load page %d", page)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
