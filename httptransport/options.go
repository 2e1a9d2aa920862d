package httptransport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sentinel-rest/httptransport"
)

// Config holds the pool and timeout settings of the *http.Transport behind
// a Transport. Start from a preset and adjust fields:
//
//	cfg := httptransport.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//	t := httptransport.New(httptransport.WithConfig(cfg))
type Config struct {
	// Timeout bounds one REST call including reading the body. Zero leaves
	// only the request context.
	Timeout time.Duration

	// Pooling. A client bound to one service mostly talks to one host, so
	// the per-host limits matter more than MaxIdleConns.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int // 0 = unlimited
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool

	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration // 0 = Timeout only

	// Dialer.
	DialTimeout   time.Duration
	KeepAlive     time.Duration
	FallbackDelay time.Duration

	WriteBufferSize        int
	ReadBufferSize         int
	MaxResponseHeaderBytes int64 // 0 = net/http default

	// DisableCompression keeps response bodies byte-exact for JSON parsing.
	DisableCompression bool
	ForceHTTP2         bool
}

// DefaultConfig returns the settings used when no Config is given.
func DefaultConfig() Config {
	return Config{
		Timeout:               15 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DialTimeout:           5 * time.Second,
		KeepAlive:             30 * time.Second,
		FallbackDelay:         300 * time.Millisecond,
		WriteBufferSize:       64 * 1024,
		ReadBufferSize:        64 * 1024,
		DisableCompression:    true,
	}
}

// HighThroughputConfig suits batch jobs fanning many calls out to one API.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Second
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 100
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.WriteBufferSize = 128 * 1024
	cfg.ReadBufferSize = 128 * 1024
	return cfg
}

// LowLatencyConfig fails fast, for calls on a user-facing request path.
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.MaxIdleConns = 50
	cfg.MaxIdleConnsPerHost = 25
	cfg.MaxConnsPerHost = 50
	cfg.IdleConnTimeout = 60 * time.Second
	cfg.TLSHandshakeTimeout = 5 * time.Second
	cfg.ExpectContinueTimeout = 500 * time.Millisecond
	cfg.ResponseHeaderTimeout = 3 * time.Second
	cfg.DialTimeout = 2 * time.Second
	cfg.KeepAlive = 15 * time.Second
	cfg.FallbackDelay = 150 * time.Millisecond
	cfg.WriteBufferSize = 32 * 1024
	cfg.ReadBufferSize = 32 * 1024
	cfg.ForceHTTP2 = true
	return cfg
}

// ConservativeConfig keeps the pool small, for processes holding many
// clients.
func ConservativeConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	cfg.MaxIdleConns = 20
	cfg.MaxIdleConnsPerHost = 5
	cfg.MaxConnsPerHost = 20
	cfg.IdleConnTimeout = 30 * time.Second
	cfg.WriteBufferSize = 4 * 1024
	cfg.ReadBufferSize = 4 * 1024
	return cfg
}

// internalConfig holds everything a Transport is built from.
type internalConfig struct {
	httpConfig Config

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// ServiceName is added as "http.client.name" to spans and metrics and
	// names the circuit breaker.
	ServiceName string

	// EnableNetworkTrace records DNS, connect, TLS and TTFB timings.
	// Default: true
	EnableNetworkTrace bool

	Filters            []Filter
	SpanNameFormatter  SpanNameFormatter
	SpanStartOptions   []trace.SpanStartOption
	MetricAttributesFn func(*http.Request) []attribute.KeyValue
	Propagators        propagation.TextMapPropagator
	ClientTrace        func(context.Context) *httptrace.ClientTrace

	TLSConfig            *tls.Config
	ProxyURL             *url.URL
	ProxyFromEnvironment bool

	// RoundTripper replaces the *http.Transport built from httpConfig.
	RoundTripper http.RoundTripper

	BreakerConfig   *BreakerConfig
	RateLimitConfig *RateLimitConfig
	ChaosConfig     *ChaosConfig
	Coalescing      bool

	Debug        bool
	GenerateCurl bool
	Logger       zerolog.Logger
}

// newConfig creates a config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),

		EnableNetworkTrace:   true,
		ProxyFromEnvironment: true,
		Logger:               debugLogger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Propagators == nil {
		cfg.Propagators = propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil on failure; every record method is nil-safe.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// buildTransport creates the base http.Transport from the configuration.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:       hc.DialTimeout,
		KeepAlive:     hc.KeepAlive,
		FallbackDelay: hc.FallbackDelay,
	}

	transport := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           hc.MaxIdleConns,
		MaxIdleConnsPerHost:    hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:        hc.MaxConnsPerHost,
		IdleConnTimeout:        hc.IdleConnTimeout,
		TLSHandshakeTimeout:    hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  hc.ResponseHeaderTimeout,
		ExpectContinueTimeout:  hc.ExpectContinueTimeout,
		DisableKeepAlives:      hc.DisableKeepAlives,
		DisableCompression:     hc.DisableCompression,
		WriteBufferSize:        hc.WriteBufferSize,
		ReadBufferSize:         hc.ReadBufferSize,
		MaxResponseHeaderBytes: hc.MaxResponseHeaderBytes,
		TLSClientConfig:        cfg.TLSConfig,
		ForceAttemptHTTP2:      hc.ForceHTTP2,
	}

	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else if cfg.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// baseAttributes returns attributes shared by all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// breakerName identifies the circuit breaker, locally and in a shared store.
func (cfg *internalConfig) breakerName() string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return "default-rest-client"
}

// Filter reports whether a request should be traced. All filters must
// return true for a span to be started.
type Filter func(r *http.Request) bool

// SpanNameFormatter names the client span of a request.
// Default: "HTTP {method}".
type SpanNameFormatter func(method string, r *http.Request) string

// Option configures a Transport.
type Option func(*internalConfig)

// WithConfig sets the connection settings. See DefaultConfig and the
// other presets.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithServiceName identifies this client in traces, metrics and the
// circuit breaker, e.g. "petstore-client".
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets the TracerProvider. Default: the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets the MeterProvider. Default: the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithTLSConfig sets the TLS client configuration, e.g. for mutual TLS.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithProxyURL routes every request through proxyURL, ignoring the
// environment.
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyURL = proxyURL
		cfg.ProxyFromEnvironment = false
	}
}

// WithProxyFromEnvironment toggles HTTP_PROXY/HTTPS_PROXY/NO_PROXY support.
// Default: true.
func WithProxyFromEnvironment(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyFromEnvironment = enabled
	}
}

// WithDisableNetworkTrace turns off DNS/connect/TLS timing events.
func WithDisableNetworkTrace() Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = false
	}
}

// WithFilter adds a tracing filter, e.g. to skip health checks:
//
//	httptransport.WithFilter(func(r *http.Request) bool {
//	    return !strings.HasPrefix(r.URL.Path, "/health")
//	})
func WithFilter(f Filter) Option {
	return func(cfg *internalConfig) {
		cfg.Filters = append(cfg.Filters, f)
	}
}

// WithSpanNameFormatter overrides span naming.
func WithSpanNameFormatter(f SpanNameFormatter) Option {
	return func(cfg *internalConfig) {
		cfg.SpanNameFormatter = f
	}
}

// WithSpanOptions adds options to every client span.
func WithSpanOptions(opts ...trace.SpanStartOption) Option {
	return func(cfg *internalConfig) {
		cfg.SpanStartOptions = append(cfg.SpanStartOptions, opts...)
	}
}

// WithMetricAttributesFn adds per-request attributes to the duration metric.
func WithMetricAttributesFn(f func(*http.Request) []attribute.KeyValue) Option {
	return func(cfg *internalConfig) {
		cfg.MetricAttributesFn = f
	}
}

// WithPropagators sets the propagators injecting trace context into
// request headers. Default: W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.Propagators = p
	}
}

// WithClientTrace replaces the built-in network tracing with a custom
// httptrace.ClientTrace factory.
func WithClientTrace(f func(context.Context) *httptrace.ClientTrace) Option {
	return func(cfg *internalConfig) {
		cfg.ClientTrace = f
	}
}

// WithRoundTripper sends requests through rt instead of a pooled
// *http.Transport built from Config. Instrumentation and resilience
// wrappers still apply. Useful with MockRoundTripper in tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.RoundTripper = rt
	}
}

// WithBreaker enables the circuit breaker.
//
//	httptransport.WithBreaker(httptransport.DefaultBreakerConfig())
func WithBreaker(c BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &c
	}
}

// WithRateLimit enables client-side rate limiting.
func WithRateLimit(c RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimitConfig = &c
	}
}

// WithChaos injects latency and failures. Meant for resilience testing,
// never for production traffic.
func WithChaos(c ChaosConfig) Option {
	return func(cfg *internalConfig) {
		cfg.ChaosConfig = &c
	}
}

// WithCoalescing shares one in-flight exchange between identical
// concurrent GET and HEAD requests. Requests match on method, escaped URL,
// headers and body. A caller whose context ends stops waiting without
// failing the others.
func WithCoalescing(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Coalescing = enabled
	}
}

// WithDebug logs every request and response at debug level.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithLogger sets the debug logger.
// Default: zerolog writing to stdout with timestamps.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithGenerateCurl adds an equivalent cURL command to request debug logs.
// Has no effect unless debug logging is enabled.
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.GenerateCurl = enabled
	}
}
