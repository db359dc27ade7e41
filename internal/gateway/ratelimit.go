package gateway

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	minSweepInterval = 10 * time.Second
	maxSweepInterval = 60 * time.Second
)

type rateEntry struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window request counter keyed by client IP.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries *cache.Cache
	now     func() time.Time
}

// NewLimiter allows max requests per window per key. Expired entries are
// swept every window, clamped to [10s, 60s].
func NewLimiter(max int, window time.Duration) *Limiter {
	sweep := window
	if sweep < minSweepInterval {
		sweep = minSweepInterval
	}
	if sweep > maxSweepInterval {
		sweep = maxSweepInterval
	}
	return &Limiter{
		max:     max,
		window:  window,
		entries: cache.New(cache.NoExpiration, sweep),
		now:     time.Now,
	}
}

// Allow counts one request for key
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := rateEntry{count: 1, resetAt: now.Add(l.window)}
	if v, ok := l.entries.Get(key); ok {
		if prev := v.(rateEntry); now.Before(prev.resetAt) {
			e = rateEntry{count: prev.count + 1, resetAt: prev.resetAt}
		}
	}
	l.entries.Set(key, e, e.resetAt.Sub(now))

	remaining := l.max - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   e.count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// Sweep drops entries whose window has passed
func (l *Limiter) Sweep() {
	l.entries.DeleteExpired()
}

// Len reports the number of tracked clients, expired or not
func (l *Limiter) Len() int {
	return l.entries.ItemCount()
}

// Middleware enforces the limit and sets X-RateLimit-* headers on every
// response it sees.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := l.Allow(clientIP(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt((d.ResetAt.UnixMilli()+999)/1000, 10))

		if !d.Allowed {
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
