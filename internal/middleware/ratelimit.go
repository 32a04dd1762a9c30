package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a client's limiter is kept after its last request.
const idleLimiterTTL = 10 * time.Minute

// IPRateLimiter hands out one token bucket per client address. Buckets for
// idle clients expire so the set does not grow without bound.
type IPRateLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

// NewIPRateLimiter allows r requests per second per client with bursts of b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(idleLimiterTTL, idleLimiterTTL),
		r:        r,
		b:        b,
	}
}

// Limiter returns the bucket for ip, creating it on first use.
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(ip, lim)
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	// Add fails if another request created the bucket first; use that one.
	if err := l.limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// NewRateLimitHandler rejects requests over the client's rate with 429.
// Wire it after chimiddleware.RealIP so RemoteAddr is the client address.
func NewRateLimitHandler(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Limiter(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
