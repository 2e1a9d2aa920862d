package httptransport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http/httptrace"
	"strconv"
	"strings"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Values of the error.type attribute for failures without a status code.
const (
	ErrorTypeTimeout           = "timeout"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeEOF               = "eof"
	ErrorTypeBreakerOpen       = "breaker_open"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeUnknown           = "unknown"
)

// networkTrace collects httptrace timings for one exchange.
type networkTrace struct {
	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	gotConn                   time.Time
	wroteRequest              time.Time
	firstResponseByte         time.Time

	connReused  bool
	connIdle    bool
	connRemote  string
	tlsProtocol string
	dnsAddrs    []string
}

// clientTrace returns the hooks that fill nt.
func (nt *networkTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			nt.gotConn = time.Now()
			nt.connReused = info.Reused
			nt.connIdle = info.WasIdle
			if info.Conn != nil && info.Conn.RemoteAddr() != nil {
				nt.connRemote = info.Conn.RemoteAddr().String()
			}
		},
		DNSStart: func(httptrace.DNSStartInfo) { nt.dnsStart = time.Now() },
		DNSDone: func(info httptrace.DNSDoneInfo) {
			nt.dnsDone = time.Now()
			for _, addr := range info.Addrs {
				nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
			}
		},
		ConnectStart:      func(_, _ string) { nt.connectStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { nt.connectDone = time.Now() },
		TLSHandshakeStart: func() { nt.tlsStart = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.tlsDone = time.Now()
			nt.tlsProtocol = state.NegotiatedProtocol
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { nt.wroteRequest = time.Now() },
		GotFirstResponseByte: func() { nt.firstResponseByte = time.Now() },
	}
}

func bothSet(a, b time.Time) bool { return !a.IsZero() && !b.IsZero() }

func millis(from, to time.Time) float64 {
	return float64(to.Sub(from).Microseconds()) / 1000
}

// addEvents records the collected timings as span events.
func (nt *networkTrace) addEvents(span trace.Span) {
	if bothSet(nt.dnsStart, nt.dnsDone) {
		span.AddEvent("dns.done", trace.WithTimestamp(nt.dnsDone), trace.WithAttributes(
			attribute.Float64("dns.duration_ms", millis(nt.dnsStart, nt.dnsDone)),
			attribute.StringSlice("dns.addresses", nt.dnsAddrs),
		))
	}
	if bothSet(nt.connectStart, nt.connectDone) {
		span.AddEvent("connect.done", trace.WithTimestamp(nt.connectDone), trace.WithAttributes(
			attribute.Float64("connect.duration_ms", millis(nt.connectStart, nt.connectDone)),
		))
	}
	if bothSet(nt.tlsStart, nt.tlsDone) {
		span.AddEvent("tls.done", trace.WithTimestamp(nt.tlsDone), trace.WithAttributes(
			attribute.Float64("tls.duration_ms", millis(nt.tlsStart, nt.tlsDone)),
			attribute.String("tls.protocol", nt.tlsProtocol),
		))
	}
	if !nt.gotConn.IsZero() {
		span.AddEvent("got_conn", trace.WithTimestamp(nt.gotConn), trace.WithAttributes(
			attribute.Bool("connection.reused", nt.connReused),
			attribute.Bool("connection.was_idle", nt.connIdle),
			attribute.String("network.peer.address", nt.connRemote),
		))
	}
	if bothSet(nt.wroteRequest, nt.firstResponseByte) {
		span.AddEvent("got_first_response_byte", trace.WithTimestamp(nt.firstResponseByte), trace.WithAttributes(
			attribute.Float64("ttfb_ms", millis(nt.wroteRequest, nt.firstResponseByte)),
		))
	}
}

// recordMetrics records the collected timings as histograms.
func (nt *networkTrace) recordMetrics(ctx context.Context, m *metrics, attrs []attribute.KeyValue) {
	if m == nil {
		return
	}
	if !nt.connReused && !nt.connectStart.IsZero() {
		m.recordConnectionOpened(ctx, attrs)
	}
	if bothSet(nt.dnsStart, nt.dnsDone) {
		m.recordDNSDuration(ctx, nt.dnsDone.Sub(nt.dnsStart), attrs)
	}
	if bothSet(nt.connectStart, nt.connectDone) {
		m.recordConnectionDuration(ctx, nt.connectDone.Sub(nt.connectStart), attrs)
	}
	if bothSet(nt.tlsStart, nt.tlsDone) {
		m.recordTLSDuration(ctx, nt.tlsDone.Sub(nt.tlsStart), attrs)
	}
	if bothSet(nt.wroteRequest, nt.firstResponseByte) {
		m.recordTTFB(ctx, nt.firstResponseByte.Sub(nt.wroteRequest), attrs)
	}
}

// classifyError maps a transport error to an error.type value.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrorTypeBreakerOpen
	case errors.Is(err, ErrRateLimited):
		return ErrorTypeRateLimited
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeDNSError
	}

	var recordErr *tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) {
		return ErrorTypeTLSError
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorTypeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrorTypeConnectionReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrorTypeEOF
	}

	// Wrapped errors from some dialers only carry the message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "connection refused"):
		return ErrorTypeConnectionRefused
	case strings.Contains(msg, "connection reset"):
		return ErrorTypeConnectionReset
	case strings.Contains(msg, "no such host"):
		return ErrorTypeDNSError
	case strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return ErrorTypeTLSError
	}

	return ErrorTypeUnknown
}

// errorTypeFromStatusCode returns the status code as error.type for 4xx/5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode >= 400 {
		return strconv.Itoa(statusCode)
	}
	return ""
}

// setSpanError marks span as failed with err.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
