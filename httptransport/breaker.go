package httptransport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore returns a gobreaker SharedDataStore on Redis, letting
// every instance of a service share one breaker per upstream API.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	cfg := httptransport.DistributedBreakerConfig(httptransport.NewRedisStore(rdb))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker matches the Execute method of the gobreaker breakers.
type CircuitBreaker interface {
	Execute(req func() (any, error)) (any, error)
}

// BreakerClassifier reports whether an exchange counts as a failure
// toward tripping the breaker.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig configures the circuit breaker.
//
// A closed breaker lets requests through. Once tripped it opens and
// rejects requests immediately; after Timeout it turns half-open and lets
// MaxRequests probes through to decide whether to close again.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	// Zero allows one.
	MaxRequests uint32

	// Interval is the closed-state period after which counts reset.
	// Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests in an interval
	// before the breaker may trip.
	FailureThreshold uint32

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after that many failures in a
	// row. Zero disables the rule.
	ConsecutiveFailures uint32

	// Store shares breaker state between processes. Nil keeps it local.
	Store gobreaker.SharedDataStore

	// Classifier defaults to DefaultBreakerClassifier.
	Classifier BreakerClassifier

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker that trips on 5 consecutive
// failures, or on a 50% failure ratio once 20 requests were seen.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig backed by store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DisabledBreakerConfig returns a breaker that never trips.
func DisabledBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: ^uint32(0),
		FailureRatio:     1.0,
		Classifier:       func(*http.Response, error) bool { return false },
	}
}

// DefaultBreakerClassifier counts network errors and 5xx responses as
// failures. 4xx responses are the caller's problem, not the upstream's.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// errBreakerFailure marks a response the classifier rejected so the
// breaker counts it. The response itself is still returned to the caller.
var errBreakerFailure = errors.New("breaker: classified failure")

// breakerTransport runs every exchange through a circuit breaker.
type breakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	metrics    *metrics
	name       string
}

// newBreakerTransport wraps next when a breaker is configured.
func newBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	bc := cfg.BreakerConfig
	if bc == nil {
		return next
	}

	classifier := bc.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	name := cfg.breakerName()
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: readyToTrip(*bc),
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
			cfg.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker = gobreaker.NewCircuitBreaker[any](st)
	if bc.Store != nil {
		// A store that cannot be reached at startup degrades to a local breaker.
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[any](bc.Store, st); err == nil {
			cb = dcb
		} else {
			cfg.Logger.Warn().Err(err).Str("breaker", name).Msg("distributed breaker unavailable, using local breaker")
		}
	}

	return &breakerTransport{
		breaker:    cb,
		next:       next,
		classifier: classifier,
		metrics:    cfg.Metrics,
		name:       name,
	}
}

func readyToTrip(bc BreakerConfig) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if bc.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
			return true
		}
		if bc.FailureThreshold > 0 && counts.Requests < bc.FailureThreshold {
			return false
		}
		if bc.FailureRatio > 0 && counts.Requests > 0 {
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		}
		return false
	}
}

// Unwrap returns the wrapped RoundTripper.
func (t *breakerTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose
		if t.classifier(resp, err) {
			if err != nil {
				return resp, err
			}
			return resp, errBreakerFailure
		}
		return resp, err
	})

	switch {
	case err == nil:
		t.metrics.recordBreakerRequest(ctx, t.name, "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.metrics.recordBreakerRequest(ctx, t.name, "rejected")
		return nil, err
	default:
		t.metrics.recordBreakerRequest(ctx, t.name, "failure")
		if !errors.Is(err, errBreakerFailure) {
			return nil, err
		}
	}

	resp, ok := res.(*http.Response)
	if !ok || resp == nil {
		return nil, errors.New("breaker: no response")
	}
	return resp, nil
}
