package rewardd

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles callers by principal, falling back to the client
// address for anonymous requests.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*limiterEntry
	swept    time.Time
	now      func() time.Time
}

// NewRateLimiter converts the per-minute budget into a token bucket.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	perSecond := cfg.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Middleware rejects requests beyond the caller's budget with 429.
func (l *RateLimiter) Middleware(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			id := PrincipalFromContext(r.Context())
			if id == "" {
				id = "ip:" + clientAddress(r)
			}
			if !l.allow(id) {
				observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
				writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	entry, ok := l.visitors[id]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[id] = entry
	}
	entry.lastSeen = now
	l.evict(now)
	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evict(now time.Time) {
	if now.Sub(l.swept) < time.Minute {
		return
	}
	l.swept = now
	for id, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.visitors, id)
		}
	}
}

func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
