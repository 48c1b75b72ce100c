package web

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter is a fixed-window request limiter keyed by client IP.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowCount
}

// windowCount is one client's usage in its current window.
type windowCount struct {
	start time.Time
	used  int
}

// newRateLimiter allows limit requests per window per client and evicts
// idle clients until ctx ends.
func newRateLimiter(ctx context.Context, limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowCount),
	}
	go rl.sweep(ctx)
	return rl
}

func (rl *rateLimiter) sweep(ctx context.Context) {
	t := time.NewTicker(rl.window)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.evict()
		case <-ctx.Done():
			return
		}
	}
}

// evict forgets clients whose window ended more than a window ago.
func (rl *rateLimiter) evict() {
	cutoff := rl.now().Add(-2 * rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, wc := range rl.clients {
		if wc.start.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// allow counts one request from ip. When the window is used up it returns
// false and the time until the window resets.
func (rl *rateLimiter) allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	wc := rl.clients[ip]
	if wc == nil || now.Sub(wc.start) >= rl.window {
		wc = &windowCount{start: now}
		rl.clients[ip] = wc
	}
	if wc.used >= rl.limit {
		return false, wc.start.Add(rl.window).Sub(now)
	}
	wc.used++
	return true, 0
}

// middleware limits by r.RemoteAddr, which TrustedRealIP has already
// resolved to the client address.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := rl.allow(clientIP(r))
		if !ok {
			secs := int(math.Ceil(retry.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
