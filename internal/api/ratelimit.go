package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused tenant bucket is kept.
const idleLimiterTTL = 10 * time.Minute

// TenantRateLimiter holds one token bucket per tenant.
type TenantRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*tenantLimiter
	lastGC   time.Time
	now      func() time.Time
}

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantRateLimiter allows rps sustained requests per tenant with the
// given burst. A burst below 1 is raised to the ceiling of rps.
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	if burst < 1 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	return &TenantRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*tenantLimiter),
		now:      time.Now,
	}
}

// Reserve takes a token for tenantID. When none is available it returns
// false and how long the caller should wait before retrying.
func (l *TenantRateLimiter) Reserve(tenantID string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	tl, ok := l.limiters[tenantID]
	if !ok {
		tl = &tenantLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenantID] = tl
	}
	tl.lastSeen = now
	if now.Sub(l.lastGC) > idleLimiterTTL {
		l.gc(now)
	}
	l.mu.Unlock()

	r := tl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *TenantRateLimiter) gc(now time.Time) {
	for id, tl := range l.limiters {
		if now.Sub(tl.lastSeen) > idleLimiterTTL {
			delete(l.limiters, id)
		}
	}
	l.lastGC = now
}

// Middleware rejects requests over the tenant's budget with 429. It must run
// after TenantMiddleware.
func (l *TenantRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.Reserve(GetTenantID(r.Context()))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
