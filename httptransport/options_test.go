package httptransport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

func TestConfigPresets(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantTimeout time.Duration
		wantIdle    int
		wantHTTP2   bool
	}{
		{name: "given default, then balanced", cfg: DefaultConfig(), wantTimeout: 15 * time.Second, wantIdle: 100},
		{name: "given high throughput, then large pool", cfg: HighThroughputConfig(), wantTimeout: 30 * time.Second, wantIdle: 500},
		{name: "given low latency, then fast fail and http2", cfg: LowLatencyConfig(), wantTimeout: 5 * time.Second, wantIdle: 50, wantHTTP2: true},
		{name: "given conservative, then small pool", cfg: ConservativeConfig(), wantTimeout: 10 * time.Second, wantIdle: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTimeout, tt.cfg.Timeout)
			assert.Equal(t, tt.wantIdle, tt.cfg.MaxIdleConns)
			assert.Equal(t, tt.wantHTTP2, tt.cfg.ForceHTTP2)
			assert.True(t, tt.cfg.DisableCompression)
		})
	}
}

func TestNewConfig(t *testing.T) {
	t.Run("given no options, then defaults", func(t *testing.T) {
		cfg := newConfig()

		assert.Equal(t, DefaultConfig(), cfg.httpConfig)
		assert.True(t, cfg.EnableNetworkTrace)
		assert.True(t, cfg.ProxyFromEnvironment)
		assert.NotNil(t, cfg.Tracer)
		assert.NotNil(t, cfg.Metrics)
		assert.NotNil(t, cfg.Propagators)
		assert.Nil(t, cfg.BreakerConfig)
		assert.Nil(t, cfg.RateLimitConfig)
		assert.Nil(t, cfg.ChaosConfig)
		assert.False(t, cfg.Coalescing)
		assert.Equal(t, "default-rest-client", cfg.breakerName())
		assert.Empty(t, cfg.baseAttributes())
	})

	t.Run("given options, then applied", func(t *testing.T) {
		proxy, _ := url.Parse("http://proxy.local:3128")
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS13}
		prop := propagation.TraceContext{}

		cfg := newConfig(
			WithConfig(LowLatencyConfig()),
			WithServiceName("pets"),
			WithTLSConfig(tlsCfg),
			WithProxyURL(proxy),
			WithDisableNetworkTrace(),
			WithPropagators(prop),
			WithSpanOptions(),
			WithMetricAttributesFn(func(*http.Request) []attribute.KeyValue { return nil }),
			WithClientTrace(func(context.Context) *httptrace.ClientTrace { return &httptrace.ClientTrace{} }),
			WithChaos(ChaosConfig{LatencyMs: 1}),
			WithCoalescing(true),
			WithDebug(true),
			WithGenerateCurl(true),
			WithLogger(zerolog.Nop()),
		)

		assert.Equal(t, LowLatencyConfig(), cfg.httpConfig)
		assert.Equal(t, "pets", cfg.breakerName())
		assert.Equal(t, []attribute.KeyValue{attribute.String("http.client.name", "pets")}, cfg.baseAttributes())
		assert.Same(t, tlsCfg, cfg.TLSConfig)
		assert.Equal(t, proxy, cfg.ProxyURL)
		assert.False(t, cfg.ProxyFromEnvironment)
		assert.False(t, cfg.EnableNetworkTrace)
		assert.Equal(t, prop, cfg.Propagators)
		assert.NotNil(t, cfg.MetricAttributesFn)
		assert.NotNil(t, cfg.ClientTrace)
		require.NotNil(t, cfg.ChaosConfig)
		assert.Equal(t, 1, cfg.ChaosConfig.LatencyMs)
		assert.True(t, cfg.Coalescing)
		assert.True(t, cfg.Debug)
		assert.True(t, cfg.GenerateCurl)
	})
}

func TestBuildTransport(t *testing.T) {
	t.Run("given proxy url, then fixed proxy", func(t *testing.T) {
		proxy, _ := url.Parse("http://proxy.local:3128")
		tr := newConfig(WithProxyURL(proxy)).buildTransport()

		req, _ := http.NewRequest(http.MethodGet, "http://api.local", nil)
		got, err := tr.Proxy(req)
		require.NoError(t, err)
		assert.Equal(t, proxy, got)
	})

	t.Run("given proxy disabled, then no proxy", func(t *testing.T) {
		tr := newConfig(WithProxyFromEnvironment(false)).buildTransport()
		assert.Nil(t, tr.Proxy)
	})

	t.Run("given config, then pool settings applied", func(t *testing.T) {
		cfg := ConservativeConfig()
		tr := newConfig(WithConfig(cfg)).buildTransport()

		assert.Equal(t, cfg.MaxIdleConns, tr.MaxIdleConns)
		assert.Equal(t, cfg.MaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
		assert.Equal(t, cfg.IdleConnTimeout, tr.IdleConnTimeout)
		assert.Equal(t, cfg.WriteBufferSize, tr.WriteBufferSize)
	})
}
