package httptransport

import (
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// ErrChaosInjected is the cause of a simulated network failure.
var ErrChaosInjected = errors.New("chaos: simulated network error")

// ChaosConfig injects latency and failures to exercise the failure paths
// of a client: offline handling, the circuit breaker, timeouts.
//
//	t := httptransport.New(
//	    httptransport.WithChaos(httptransport.ChaosConfig{
//	        LatencyMs: 200,
//	        ErrorRate: 0.1,
//	    }),
//	)
type ChaosConfig struct {
	// LatencyMs delays every request.
	LatencyMs int

	// LatencyJitterMs adds a random 0..LatencyJitterMs on top of LatencyMs.
	LatencyJitterMs int

	// ErrorRate is the probability (0.0-1.0) of failing with a dial error
	// wrapping ErrChaosInjected.
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of hanging until the request
	// context is done.
	TimeoutRate float64
}

// Delay returns the latency to inject, jitter included.
func (c ChaosConfig) Delay() time.Duration {
	delay := time.Duration(c.LatencyMs) * time.Millisecond
	if c.LatencyJitterMs > 0 {
		delay += time.Duration(rand.IntN(c.LatencyJitterMs)) * time.Millisecond //nolint:gosec
	}
	return delay
}

// ShouldInjectError rolls against ErrorRate.
func (c ChaosConfig) ShouldInjectError() bool {
	return c.ErrorRate > 0 && rand.Float64() < c.ErrorRate //nolint:gosec
}

// ShouldInjectTimeout rolls against TimeoutRate.
func (c ChaosConfig) ShouldInjectTimeout() bool {
	return c.TimeoutRate > 0 && rand.Float64() < c.TimeoutRate //nolint:gosec
}

type chaosTransport struct {
	next   http.RoundTripper
	config ChaosConfig
}

func newChaosTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.ChaosConfig == nil {
		return next
	}
	return &chaosTransport{next: next, config: *cfg.ChaosConfig}
}

// Unwrap returns the wrapped RoundTripper.
func (t *chaosTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *chaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.config.ShouldInjectTimeout() {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if t.config.ShouldInjectError() {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrChaosInjected}
	}

	if delay := t.config.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return t.next.RoundTrip(req)
}
