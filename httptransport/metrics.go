package httptransport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the instruments of a Transport. All record methods are
// safe on a nil receiver.
type metrics struct {
	// === Request Duration & Size ===

	// requestDuration measures the round trip in seconds, with
	// OTel semconv buckets.
	requestDuration metric.Float64Histogram

	requestBodySize  metric.Int64Histogram
	responseBodySize metric.Int64Histogram

	// contentTransferDuration measures reading the response body.
	contentTransferDuration metric.Float64Histogram

	// === Connections & Network Timing ===

	openedConnections  metric.Int64Counter
	connectionDuration metric.Float64Histogram
	dnsDuration        metric.Float64Histogram
	tlsDuration        metric.Float64Histogram
	ttfb               metric.Float64Histogram

	// === Requests ===

	activeRequests metric.Int64UpDownCounter
	requestErrors  metric.Int64Counter

	// === Resilience ===

	breakerRequests metric.Int64Counter
	breakerState    metric.Int64Gauge
	rateLimited     metric.Int64Counter
	coalesced       metric.Int64Counter
}

var (
	durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10}
	sizeBuckets     = []float64{0, 100, 1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024}
	networkBuckets  = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// newMetrics creates and registers the metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	if m.requestBodySize, err = meter.Int64Histogram(
		"http.client.request.body.size",
		metric.WithDescription("Size of HTTP client request bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}

	if m.responseBodySize, err = meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of HTTP client response bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}

	if m.contentTransferDuration, err = meter.Float64Histogram(
		"http.client.content_transfer.duration",
		metric.WithDescription("Response body download duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	if m.openedConnections, err = meter.Int64Counter(
		"http.client.connections.opened",
		metric.WithDescription("Number of new HTTP client connections"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	if m.connectionDuration, err = meter.Float64Histogram(
		"http.client.connection.duration",
		metric.WithDescription("Time to establish HTTP connection in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(networkBuckets...),
	); err != nil {
		return nil, err
	}

	if m.dnsDuration, err = meter.Float64Histogram(
		"http.client.dns.duration",
		metric.WithDescription("DNS lookup duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(networkBuckets...),
	); err != nil {
		return nil, err
	}

	if m.tlsDuration, err = meter.Float64Histogram(
		"http.client.tls.duration",
		metric.WithDescription("TLS handshake duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(networkBuckets...),
	); err != nil {
		return nil, err
	}

	if m.ttfb, err = meter.Float64Histogram(
		"http.client.ttfb",
		metric.WithDescription("Time to first response byte in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	if m.activeRequests, err = meter.Int64UpDownCounter(
		"http.client.active_requests",
		metric.WithDescription("Number of active HTTP client requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.requestErrors, err = meter.Int64Counter(
		"http.client.request.error",
		metric.WithDescription("Number of HTTP client request errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.breakerRequests, err = meter.Int64Counter(
		"http.client.breaker.requests",
		metric.WithDescription("Requests seen by the circuit breaker by result"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.breakerState, err = meter.Int64Gauge(
		"http.client.breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=half-open, 2=open)"),
	); err != nil {
		return nil, err
	}

	if m.rateLimited, err = meter.Int64Counter(
		"http.client.rate_limited",
		metric.WithDescription("Requests rejected by the client-side rate limiter"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.coalesced, err = meter.Int64Counter(
		"http.client.coalesced",
		metric.WithDescription("Requests served by an identical in-flight request"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metrics) recordRequestDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordRequestBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m == nil || m.requestBodySize == nil {
		return
	}
	m.requestBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

func (m *metrics) recordResponseBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m == nil || m.responseBodySize == nil {
		return
	}
	m.responseBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

func (m *metrics) recordContentTransferDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.contentTransferDuration == nil {
		return
	}
	m.contentTransferDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordConnectionOpened(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.openedConnections == nil {
		return
	}
	m.openedConnections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordConnectionDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.connectionDuration == nil {
		return
	}
	m.connectionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordDNSDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.dnsDuration == nil {
		return
	}
	m.dnsDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordTLSDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.tlsDuration == nil {
		return
	}
	m.tlsDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordTTFB(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.ttfb == nil {
		return
	}
	m.ttfb.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordActiveRequestStart(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordActiveRequestEnd(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))
}

// recordError counts a failed request under its error.type.
func (m *metrics) recordError(ctx context.Context, errorType string, attrs []attribute.KeyValue) {
	if m == nil || m.requestErrors == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("error.type", errorType))
	m.requestErrors.Add(ctx, 1, metric.WithAttributes(all...))
}

// recordBreakerRequest counts a breaker outcome: success, failure or rejected.
func (m *metrics) recordBreakerRequest(ctx context.Context, name, result string) {
	if m == nil || m.breakerRequests == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.result", result),
	))
}

func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(attribute.String("breaker.name", name)))
}

func (m *metrics) recordRateLimited(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordCoalesced(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.Add(ctx, 1, metric.WithAttributes(attrs...))
}
