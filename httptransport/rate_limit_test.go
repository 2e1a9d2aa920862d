package httptransport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-rest/restclient"
)

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.InEpsilon(t, 100.0, cfg.RequestsPerSecond, 0.001)
	assert.Equal(t, 10, cfg.Burst)
	assert.True(t, cfg.WaitOnLimit)
}

func TestRateLimitTransport(t *testing.T) {
	tests := []struct {
		name      string
		cfg       RateLimitConfig
		requests  int
		timeout   time.Duration
		wantOK    int
		wantLimit bool
	}{
		{
			name:     "given burst available, then all pass",
			cfg:      RateLimitConfig{RequestsPerSecond: 1, Burst: 3},
			requests: 3,
			wantOK:   3,
		},
		{
			name:      "given fail fast and burst spent, then rejected",
			cfg:       RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2},
			requests:  3,
			wantOK:    2,
			wantLimit: true,
		},
		{
			name:      "given wait and deadline too close, then rejected",
			cfg:       RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1, WaitOnLimit: true},
			requests:  2,
			timeout:   50 * time.Millisecond,
			wantOK:    1,
			wantLimit: true,
		},
		{
			name:     "given zero rate, then unlimited",
			cfg:      RateLimitConfig{},
			requests: 20,
			wantOK:   20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockRoundTripper().StubResponse(http.StatusOK, "")
			tr := New(WithRoundTripper(mock), WithRateLimit(tt.cfg))

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			var ok, limited int
			for range tt.requests {
				_, err := tr.Request(ctx, newPetRequest("http://example.org", restclient.MethodGet, nil))
				switch {
				case err == nil:
					ok++
				case assert.ErrorIs(t, err, ErrRateLimited):
					limited++
				}
			}

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLimit, limited > 0)
			assert.Equal(t, tt.wantOK, mock.RequestCount())
		})
	}
}

func TestTransport_RateLimiterStats(t *testing.T) {
	t.Run("given rate limit, then stats reported", func(t *testing.T) {
		tr := New(WithRoundTripper(NewMockRoundTripper()), WithRateLimit(RateLimitConfig{RequestsPerSecond: 5, Burst: 4}))

		stats, ok := tr.RateLimiterStats()
		require.True(t, ok)
		assert.InEpsilon(t, 5.0, stats.Limit, 0.001)
		assert.Equal(t, 4, stats.Burst)
		assert.InDelta(t, 4.0, stats.TokensAvailable, 0.1)

		assert.Equal(t, time.Duration(0), tr.RateLimitDelay(1))
		assert.Equal(t, time.Duration(-1), tr.RateLimitDelay(10))
	})

	t.Run("given no rate limit, then not ok", func(t *testing.T) {
		tr := New(WithRoundTripper(NewMockRoundTripper()))

		_, ok := tr.RateLimiterStats()
		assert.False(t, ok)
		assert.Equal(t, time.Duration(0), tr.RateLimitDelay(1))
	})
}
