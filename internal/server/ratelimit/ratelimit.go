// Package ratelimit throttles how often one client may start a collection.
package ratelimit

import (
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info describes a client's standing against the limit after a request.
// Limit is zero for paths that are not limited.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client and collection path.
type Limiter struct {
	cfg      Config
	interval time.Duration
	burst    int
	paths    map[string]struct{}

	mu      sync.Mutex
	clients map[string]*client

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter. A nil or disabled config lets every request through.
func NewLimiter(cfg *Config) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		paths:   make(map[string]struct{}),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg == nil || !cfg.Enabled || cfg.Limit <= 0 || cfg.Window <= 0 {
		return l
	}

	l.cfg = *cfg
	l.interval = cfg.Window / time.Duration(cfg.Limit)
	l.burst = cfg.Burst
	if l.burst <= 0 {
		l.burst = 1
	}
	for _, p := range cfg.Paths {
		l.paths[p] = struct{}{}
	}
	if l.cfg.IdleTTL <= 0 {
		l.cfg.IdleTTL = DefaultIdleTTL
	}

	go l.cleanupLoop()
	return l
}

// Allow spends one token for clientID on path and reports the outcome.
// Preflight requests and unlimited paths are never counted.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.cfg.Enabled || method == http.MethodOptions {
		return true, Info{Allowed: true}
	}
	if _, limited := l.paths[path]; !limited {
		return true, Info{Allowed: true}
	}

	now := l.now()
	lim := l.bucket(clientID+" "+path, now)
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     l.cfg.Limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetTime: now.Add(l.wait(float64(l.burst) - tokens)),
	}
	if !allowed {
		info.RetryAfter = l.wait(1 - tokens)
		if info.RetryAfter < time.Second {
			info.RetryAfter = time.Second
		}
	}
	return allowed, info
}

// wait is how long the bucket takes to gain n tokens.
func (l *Limiter) wait(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(n * float64(l.interval)))
}

func (l *Limiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(l.interval), l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets idle for longer than the TTL that have refilled.
// A drained bucket is kept so forgetting it cannot hand out a fresh burst.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) < l.cfg.IdleTTL {
			continue
		}
		if c.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
