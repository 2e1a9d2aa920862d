package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the client-side limiter rejects a request.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures client-side rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the sustained rate.
	Burst int

	// WaitOnLimit makes requests wait for a token, bounded by the request
	// context. Otherwise they fail with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig allows 100 requests per second with a burst of 10
// and waits when the limit is hit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// RateLimiterStats is a snapshot of the limiter.
type RateLimiterStats struct {
	Limit           float64
	Burst           int
	TokensAvailable float64
}

type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
	metrics *metrics
	attrs   []attribute.KeyValue
}

func newRateLimitTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	rl := cfg.RateLimitConfig
	if rl == nil || rl.RequestsPerSecond <= 0 {
		return next
	}

	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst),
		wait:    rl.WaitOnLimit,
		metrics: cfg.Metrics,
		attrs:   cfg.baseAttributes(),
	}
}

// Unwrap returns the wrapped RoundTripper.
func (t *rateLimitTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			// Wait fails without blocking when the deadline is too close.
			t.metrics.recordRateLimited(ctx, t.attrs)
			return nil, ErrRateLimited
		}
	} else if !t.limiter.Allow() {
		t.metrics.recordRateLimited(ctx, t.attrs)
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}

func (t *rateLimitTransport) stats() RateLimiterStats {
	return RateLimiterStats{
		Limit:           float64(t.limiter.Limit()),
		Burst:           t.limiter.Burst(),
		TokensAvailable: t.limiter.Tokens(),
	}
}

// reserve reports how long n requests would wait, or -1 if they never fit.
func (t *rateLimitTransport) reserve(n int) time.Duration {
	r := t.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return -1
	}
	delay := r.Delay()
	r.Cancel()
	return delay
}
