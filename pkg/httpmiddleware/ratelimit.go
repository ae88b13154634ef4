package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	// Max requests per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. ClientIP is used when nil.
	KeyFunc func(*http.Request) string
}

// window holds request counts of the current and the previous fixed window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// Limiter is a sliding-window-counter rate limiter: the previous window's
// count is weighted by how much of it still overlaps the sliding window.
type Limiter struct {
	max  int
	size time.Duration

	mu      sync.Mutex
	clients map[string]*window
}

// NewLimiter creates a Limiter allowing limit requests per size.
func NewLimiter(limit int, size time.Duration) *Limiter {
	return &Limiter{max: limit, size: size, clients: make(map[string]*window)}
}

// Allow records a request for key at now. It returns whether the request is
// allowed, how many requests remain and when the current window ends.
func (l *Limiter) Allow(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w, found := l.clients[key]
	switch {
	case !found:
		w = &window{start: start}
		l.clients[key] = w
	case !w.start.Equal(start):
		if start.Sub(w.start) == l.size {
			w.prev = w.curr
		} else {
			w.prev = 0
		}
		w.curr = 0
		w.start = start
	}

	reset = start.Add(l.size)
	weight := 1 - float64(now.Sub(start))/float64(l.size)
	used := w.prev*weight + w.curr
	if used >= float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(0, int(float64(l.max)-used-1)), reset
}

// Sweep forgets clients idle for two windows or more.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, k)
		}
	}
}

// Run sweeps periodically until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(2 * l.size)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}

// RateLimit limits requests per client and answers 429 with Retry-After
// when the limit is exhausted. Every response carries X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return RateLimitWith(NewLimiter(cfg.Max, cfg.Window), cfg.KeyFunc)
}

// RateLimitWithCleanup is RateLimit with a background sweeper bound to ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg.Max, cfg.Window)
	go l.Run(ctx)
	return RateLimitWith(l, cfg.KeyFunc)
}

// RateLimitWith uses an existing limiter.
func RateLimitWith(l *Limiter, keyFunc func(*http.Request) string) Middleware {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(l.max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			ok, remaining, reset := l.Allow(keyFunc(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := math.Ceil(max(0, reset.Sub(now).Seconds()))
				h.Set("Retry-After", strconv.Itoa(int(wait)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
