package httptransport

import (
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ http.RoundTripper = (*otelTransport)(nil)

// otelTransport wraps a RoundTripper with client spans, metrics and
// trace context propagation.
type otelTransport struct {
	next http.RoundTripper
	cfg  *internalConfig
}

func newOtelTransport(next http.RoundTripper, cfg *internalConfig) *otelTransport {
	return &otelTransport{next: next, cfg: cfg}
}

// Unwrap returns the wrapped RoundTripper.
func (t *otelTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *otelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, f := range t.cfg.Filters {
		if !f(req) {
			return t.next.RoundTrip(req)
		}
	}

	start := time.Now()
	ctx := req.Context()

	spanName := "HTTP " + req.Method
	if t.cfg.SpanNameFormatter != nil {
		spanName = t.cfg.SpanNameFormatter(req.Method, req)
	}

	opts := make([]trace.SpanStartOption, 0, len(t.cfg.SpanStartOptions)+2)
	opts = append(opts,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(req)...),
	)
	opts = append(opts, t.cfg.SpanStartOptions...)

	ctx, span := t.cfg.Tracer.Start(ctx, spanName, opts...)
	defer span.End()

	// The request may be shared with coalesced callers; inject into a copy.
	req = req.Clone(ctx)
	t.cfg.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))

	baseAttrs := t.cfg.baseAttributes()
	t.cfg.Metrics.recordActiveRequestStart(ctx, baseAttrs)
	defer t.cfg.Metrics.recordActiveRequestEnd(ctx, baseAttrs)

	if req.ContentLength > 0 {
		t.cfg.Metrics.recordRequestBodySize(ctx, req.ContentLength, baseAttrs)
	}

	var nt *networkTrace
	switch {
	case t.cfg.ClientTrace != nil:
		ctx = httptrace.WithClientTrace(ctx, t.cfg.ClientTrace(ctx))
	case t.cfg.EnableNetworkTrace:
		nt = &networkTrace{}
		ctx = httptrace.WithClientTrace(ctx, nt.clientTrace())
	}
	req = req.WithContext(ctx)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if nt != nil {
		nt.addEvents(span)
		nt.recordMetrics(ctx, t.cfg.Metrics, baseAttrs)
	}

	if err != nil {
		errorType := classifyError(err)
		setSpanError(span, err, errorType)
		t.cfg.Metrics.recordError(ctx, errorType, baseAttrs)
		t.cfg.Metrics.recordRequestDuration(ctx, duration, t.metricAttributes(req, nil, errorType))
		return nil, err
	}

	span.SetAttributes(responseAttributes(resp)...)
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		span.SetAttributes(attribute.String("error.type", errorTypeFromStatusCode(resp.StatusCode)))
	}

	if resp.ContentLength > 0 {
		t.cfg.Metrics.recordResponseBodySize(ctx, resp.ContentLength, baseAttrs)
	}
	t.cfg.Metrics.recordRequestDuration(ctx, duration, t.metricAttributes(req, resp, ""))

	return resp, nil
}

// requestAttributes returns the semconv span attributes of req.
func (t *otelTransport) requestAttributes(req *http.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)
	attrs = append(attrs, t.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", req.Method))

	if req.URL != nil {
		attrs = append(attrs,
			attribute.String("url.full", req.URL.String()),
			attribute.String("url.scheme", req.URL.Scheme),
		)
		attrs = append(attrs, serverAttributes(req)...)
	}

	if req.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", req.ContentLength))
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}

	return attrs
}

// metricAttributes returns the attributes of the duration metric. Either
// resp or errorType is set.
func (t *otelTransport) metricAttributes(
	req *http.Request,
	resp *http.Response,
	errorType string,
) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs, t.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", req.Method))
	if req.URL != nil {
		attrs = append(attrs, serverAttributes(req)...)
	}

	if resp != nil {
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
		errorType = errorTypeFromStatusCode(resp.StatusCode)
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String("error.type", errorType))
	}

	if t.cfg.MetricAttributesFn != nil {
		attrs = append(attrs, t.cfg.MetricAttributesFn(req)...)
	}
	return attrs
}

// serverAttributes returns server.address and server.port, defaulting
// the port from the scheme.
func serverAttributes(req *http.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if host := req.URL.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}

	if port := req.URL.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int("server.port", p))
		}
		return attrs
	}

	switch req.URL.Scheme {
	case "http":
		attrs = append(attrs, attribute.Int("server.port", 80))
	case "https":
		attrs = append(attrs, attribute.Int("server.port", 443))
	}
	return attrs
}

// responseAttributes returns the semconv span attributes of resp.
func responseAttributes(resp *http.Response) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.response.body.size", resp.ContentLength))
	}

	if resp.ProtoMajor > 0 {
		version := strconv.Itoa(resp.ProtoMajor)
		if resp.ProtoMajor == 1 {
			version += "." + strconv.Itoa(resp.ProtoMinor)
		}
		attrs = append(attrs, attribute.String("network.protocol.version", version))
	}
	return attrs
}
