// Package ratelimit caps how often a single client may open form sessions.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"regform/pkg/platform/httputil"
	"regform/pkg/requestcontext"
)

// Result reports the outcome of one Allow call.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

// Limiter is an in-process sliding window limiter keyed by client.
// It is not shared between replicas.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New returns a limiter admitting limit requests per window per key.
// A non-positive limit yields nil, which the middleware treats as disabled.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for key if the window has room.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := prune(l.windows[key], now.Add(-l.window))

	if len(stamps) >= l.limit {
		l.windows[key] = stamps
		resetAt := stamps[0].Add(l.window)
		retry := int(math.Ceil(resetAt.Sub(now).Seconds()))
		if retry < 1 {
			retry = 1
		}
		return Result{Limit: l.limit, ResetAt: resetAt, RetryAfter: retry}
	}

	stamps = append(stamps, now)
	l.windows[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// Sweep drops keys whose windows have fully expired.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, stamps := range l.windows {
		if stamps = prune(stamps, cutoff); len(stamps) == 0 {
			delete(l.windows, key)
			continue
		}
		l.windows[key] = stamps
	}
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware enforces l per client IP. A nil limiter passes through.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := requestcontext.ClientIP(r.Context())
			result := l.Allow(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"client_ip", ip,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many forms opened from this address. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
