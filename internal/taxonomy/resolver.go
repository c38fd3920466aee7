package taxonomy

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/fetch"
	"github.com/jonathan/npidb-scraper/internal/logging"
)

// ReferencePath is the site path of the taxonomy reference listing.
const ReferencePath = "/taxonomy/"

// Source yields the label -> slug index a run resolves its specialty against.
type Source interface {
	Resolve(ctx context.Context) *Index
}

// Static is a Source backed by a fixed Index.
type Static struct {
	Index *Index
}

// Resolve returns the fixed index.
func (s Static) Resolve(context.Context) *Index {
	if s.Index == nil {
		return StaticIndex()
	}
	return s.Index
}

// Resolver scrapes the taxonomy reference page the first time Resolve completes and
// returns the same Index afterwards. The memo lives on the Resolver; construct a new
// Resolver to refetch. A load cut short by the caller's context is not memoized.
type Resolver struct {
	fetcher fetch.Fetcher
	url     string
	logger  *zap.Logger

	mu    sync.Mutex
	index *Index
}

// NewResolver creates a resolver for the reference page under baseURL.
func NewResolver(fetcher fetch.Fetcher, baseURL string, logger *zap.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		url:     strings.TrimRight(baseURL, "/") + ReferencePath,
		logger:  logging.OrNop(logger),
	}
}

// Resolve returns the scraped index. It never fails: an unreachable or unparseable
// reference page yields an empty index and a warning in the log.
func (r *Resolver) Resolve(ctx context.Context) *Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		return r.index
	}

	index := r.load(ctx)
	if ctx.Err() != nil {
		r.logger.Debug("taxonomy load interrupted; not cached", zap.Error(ctx.Err()))
		return index
	}
	r.index = index
	return index
}

func (r *Resolver) load(ctx context.Context) *Index {
	empty := NewIndex(nil)

	result, err := r.fetcher.Get(ctx, r.url)
	if err != nil {
		r.logger.Warn("taxonomy reference page unavailable; no specialties resolved",
			zap.String("url", r.url), zap.Error(err))
		return empty
	}

	index, err := ParseIndex(result.HTML)
	if err != nil {
		r.logger.Warn("taxonomy reference page unparseable",
			zap.String("url", r.url), zap.Error(err))
		return index
	}

	r.logger.Debug("taxonomy resolved",
		zap.String("url", r.url), zap.Int("specialties", index.Len()))
	return index
}
