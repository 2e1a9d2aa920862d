package httptransport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-rest/restclient"
)

func TestBreakerConfigs(t *testing.T) {
	t.Run("given default config, then local breaker with thresholds", func(t *testing.T) {
		cfg := DefaultBreakerConfig()
		assert.Equal(t, uint32(1), cfg.MaxRequests)
		assert.Equal(t, 10*time.Second, cfg.Interval)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
		assert.Equal(t, uint32(20), cfg.FailureThreshold)
		assert.InEpsilon(t, 0.5, cfg.FailureRatio, 0.001)
		assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
		assert.NotNil(t, cfg.Classifier)
		assert.Nil(t, cfg.Store)
	})

	t.Run("given redis store, then distributed config", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

		cfg := DistributedBreakerConfig(store)
		assert.Equal(t, store, cfg.Store)
		assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	})

	t.Run("given disabled config, then nothing is a failure", func(t *testing.T) {
		cfg := DisabledBreakerConfig()
		assert.False(t, cfg.Classifier(&http.Response{StatusCode: 500}, nil))
		assert.InEpsilon(t, 1.0, cfg.FailureRatio, 0.001)
	})
}

func TestDefaultBreakerClassifier(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "given 200, then success", resp: &http.Response{StatusCode: 200}, want: false},
		{name: "given 404, then success", resp: &http.Response{StatusCode: 404}, want: false},
		{name: "given 429, then success", resp: &http.Response{StatusCode: 429}, want: false},
		{name: "given 503, then failure", resp: &http.Response{StatusCode: 503}, want: true},
		{name: "given dial error, then failure", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "given plain error, then success", err: errors.New("bad request body"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultBreakerClassifier(tt.resp, tt.err))
		})
	}
}

func TestReadyToTrip(t *testing.T) {
	bc := DefaultBreakerConfig()
	trip := readyToTrip(bc)

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{name: "given consecutive failures, then trips", counts: gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, want: true},
		{name: "given few requests, then stays closed", counts: gobreaker.Counts{Requests: 10, TotalFailures: 8, ConsecutiveFailures: 2}, want: false},
		{name: "given failure ratio reached, then trips", counts: gobreaker.Counts{Requests: 20, TotalFailures: 10, ConsecutiveFailures: 1}, want: true},
		{name: "given ratio below threshold, then stays closed", counts: gobreaker.Counts{Requests: 40, TotalFailures: 10, ConsecutiveFailures: 1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trip(tt.counts))
		})
	}
}

func TestBreakerTransport(t *testing.T) {
	t.Run("given repeated 5xx, then breaker opens and rejects", func(t *testing.T) {
		mock := NewMockRoundTripper().StubResponse(http.StatusServiceUnavailable, "down")

		var transitions []gobreaker.State
		bc := DefaultBreakerConfig()
		bc.Timeout = time.Minute
		bc.OnStateChange = func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		}

		tr := New(WithRoundTripper(mock), WithServiceName("pets"), WithBreaker(bc))
		req := newPetRequest("http://example.org/pets", restclient.MethodGet, nil)

		for range 5 {
			_, err := tr.Request(context.Background(), req)
			er, ok := restclient.AsErrorResponse(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusServiceUnavailable, er.Status)
			assert.Equal(t, "down", er.Err)
		}

		_, err := tr.Request(context.Background(), req)
		er, ok := restclient.AsErrorResponse(err)
		require.True(t, ok)
		assert.Equal(t, 0, er.Status)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.NotErrorIs(t, err, restclient.ErrOffline)

		assert.Equal(t, 5, mock.RequestCount())
		assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
	})

	t.Run("given 4xx, then breaker stays closed", func(t *testing.T) {
		mock := NewMockRoundTripper().StubResponse(http.StatusBadRequest, "bad")
		tr := New(WithRoundTripper(mock), WithBreaker(DefaultBreakerConfig()))

		for range 10 {
			_, err := tr.Request(context.Background(), newPetRequest("http://example.org", restclient.MethodGet, nil))
			er, ok := restclient.AsErrorResponse(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, er.Status)
		}
		assert.Equal(t, 10, mock.RequestCount())
	})

	t.Run("given no breaker config, then no breaker in chain", func(t *testing.T) {
		tr := New(WithRoundTripper(NewMockRoundTripper()))
		assert.Nil(t, findTransport[*breakerTransport](tr.client.Transport))
	})

	t.Run("given redis store, then distributed breaker serves requests", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		mock := NewMockRoundTripper().StubJSON(http.StatusOK, map[string]any{"id": 1})
		tr := New(
			WithRoundTripper(mock),
			WithServiceName("pets-distributed"),
			WithBreaker(DistributedBreakerConfig(NewRedisStore(rdb))),
		)

		bt := findTransport[*breakerTransport](tr.client.Transport)
		require.NotNil(t, bt)
		_, distributed := bt.breaker.(*gobreaker.DistributedCircuitBreaker[any])
		assert.True(t, distributed)

		got, err := tr.Request(context.Background(), newPetRequest("http://example.org/pets/1", restclient.MethodGet, nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": float64(1)}, got)
	})
}
