package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// rateLimiter throttles requests per client IP with a fixed window that
// restarts on the first request after the previous one expires. The
// budget comes from RATE_LIMIT_PER_MINUTE via the server options.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	windows   map[string]*requestWindow
	quit      chan struct{}
	quitOnce  sync.Once
}

type requestWindow struct {
	start time.Time
	seen  int
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*requestWindow),
		quit:      make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// janitor periodically forgets idle clients so the map does not grow
// with every IP that ever hit the dashboard.
func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropIdleClients()
		case <-rl.quit:
			return
		}
	}
}

func (rl *rateLimiter) dropIdleClients() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, ip)
		}
	}
}

// stop ends the janitor goroutine. Safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.quitOnce.Do(func() {
		close(rl.quit)
	})
}

// allow reports whether a request from clientIP fits the per-minute
// budget. Rejections count toward the rate limit metric.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[clientIP]
	if !ok || now.Sub(w.start) > time.Minute {
		rl.windows[clientIP] = &requestWindow{start: now, seen: 1}
		return true
	}

	w.seen++
	if w.seen > rl.perMinute {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
