package httptransport

import (
	"net/http"
	"time"
)

// PoolStats is the connection pool configuration of a Transport.
type PoolStats struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// MaxConnsPerHost of zero means unlimited.
	MaxConnsPerHost int

	IdleConnTimeout   time.Duration
	DisableKeepAlives bool
}

// PoolStats returns the pool settings of the underlying *http.Transport,
// or zero stats when a custom RoundTripper replaced it.
func (t *Transport) PoolStats() PoolStats {
	base := findTransport[*http.Transport](t.client.Transport)
	if base == nil {
		return PoolStats{}
	}

	return PoolStats{
		MaxIdleConns:        base.MaxIdleConns,
		MaxIdleConnsPerHost: base.MaxIdleConnsPerHost,
		MaxConnsPerHost:     base.MaxConnsPerHost,
		IdleConnTimeout:     base.IdleConnTimeout,
		DisableKeepAlives:   base.DisableKeepAlives,
	}
}

// RateLimiterStats returns a snapshot of the rate limiter. ok is false when
// rate limiting is not enabled.
func (t *Transport) RateLimiterStats() (stats RateLimiterStats, ok bool) {
	rl := findTransport[*rateLimitTransport](t.client.Transport)
	if rl == nil {
		return RateLimiterStats{}, false
	}
	return rl.stats(), true
}

// RateLimitDelay reports how long n requests sent now would wait for the
// rate limiter, without consuming tokens. It returns -1 when n exceeds the
// burst, and 0 when rate limiting is not enabled.
func (t *Transport) RateLimitDelay(n int) time.Duration {
	rl := findTransport[*rateLimitTransport](t.client.Transport)
	if rl == nil {
		return 0
	}
	return rl.reserve(n)
}

// findTransport walks the wrapper chain down to the first T.
func findTransport[T http.RoundTripper](rt http.RoundTripper) T {
	var zero T
	for rt != nil {
		if found, ok := rt.(T); ok {
			return found
		}
		u, ok := rt.(interface{ Unwrap() http.RoundTripper })
		if !ok {
			return zero
		}
		rt = u.Unwrap()
	}
	return zero
}
