package ratelimit

import (
	"time"

	"github.com/jonathan/npidb-scraper/internal/config"
)

// DefaultIdleTTL is how long a client's bucket survives without requests.
const DefaultIdleTTL = 10 * time.Minute

// CollectPaths are the endpoints that start a scrape against the upstream site.
var CollectPaths = []string{"/collect", "/collect/stream"}

// Config controls the per-client limit on collection endpoints.
type Config struct {
	Enabled bool
	Limit   int           // collections allowed per Window
	Window  time.Duration // refill period for Limit tokens
	Burst   int           // bucket size; 1 when unset
	Paths   []string      // limited paths; every other path passes through
	IdleTTL time.Duration // idle buckets older than this are dropped
}

// FromSettings builds a limiter config from the application's rate limit settings.
// A zero limit or window disables limiting.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled || s.Limit <= 0 || s.Window <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled: true,
		Limit:   s.Limit,
		Window:  s.Window,
		Burst:   s.Burst,
		Paths:   CollectPaths,
		IdleTTL: DefaultIdleTTL,
	}
}
