package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kroma-labs/sentinel-rest/restclient"
)

var _ restclient.Transport = (*Transport)(nil)

// Transport sends restclient requests over net/http.
//
// Requests pass through, outermost first: OpenTelemetry instrumentation,
// rate limiting, the circuit breaker and chaos injection, each only when
// configured. Identical concurrent GET and HEAD requests share one
// exchange when coalescing is enabled.
//
//	t := httptransport.New(
//	    httptransport.WithServiceName("petstore"),
//	    httptransport.WithBreaker(httptransport.DefaultBreakerConfig()),
//	)
//	client := restclient.NewClient(petstore, t)
//
// A Transport is safe for concurrent use.
type Transport struct {
	cfg    *internalConfig
	client *http.Client
	group  singleflight.Group
}

// exchange is the raw outcome of one round trip. It may be shared by
// coalesced callers and must not be modified.
type exchange struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
}

// New creates a Transport.
func New(opts ...Option) *Transport {
	cfg := newConfig(opts...)

	base := cfg.RoundTripper
	if base == nil {
		base = cfg.buildTransport()
	}

	rt := newChaosTransport(base, cfg)
	rt = newBreakerTransport(rt, cfg)
	rt = newRateLimitTransport(rt, cfg)
	rt = newOtelTransport(rt, cfg)

	return &Transport{
		cfg: cfg,
		client: &http.Client{
			Transport: rt,
			Timeout:   cfg.httpConfig.Timeout,
		},
	}
}

// HTTP returns the instrumented *http.Client, for calls that do not go
// through the binding engine.
func (t *Transport) HTTP() *http.Client {
	return t.client
}

// CloseIdleConnections closes pooled connections that are not in use.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// Request implements restclient.Transport.
//
// A 2xx response yields the parsed body: decoded JSON when the response is
// JSON, the body text otherwise, nil when empty or for HEAD. Any other
// outcome yields a *restclient.ErrorResponse:
//   - no response at all: status 0, "Unknown Error", with the cause as Err
//     (wrapping restclient.ErrOffline when no connection could be made)
//   - a non-2xx status: that status, the response headers and the parsed
//     error body as Err
//   - a 2xx status with an unparseable body: that status and no Err
func (t *Transport) Request(ctx context.Context, req *restclient.Request) (any, error) {
	if req == nil {
		return nil, restclient.ErrNilRequest
	}

	fullURL := req.FullURL()

	body, err := req.SerializedBody()
	if err != nil {
		return nil, networkFailure(fullURL, fmt.Errorf("httptransport: serialize body: %w", err))
	}

	httpReq, err := newHTTPRequest(ctx, req, fullURL, body)
	if err != nil {
		return nil, networkFailure(fullURL, err)
	}

	t.logRequest(httpReq, body)
	start := time.Now()

	ex, err := t.do(httpReq, body)
	t.logResponse(httpReq, ex, time.Since(start), err)
	if err != nil {
		return nil, networkFailure(fullURL, err)
	}

	return t.classify(req.Method, fullURL, ex)
}

// newHTTPRequest converts a descriptor to an *http.Request. Multi-valued
// headers are sent as repeated header lines.
func newHTTPRequest(
	ctx context.Context,
	req *restclient.Request,
	fullURL string,
	body []byte,
) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	method := string(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("httptransport: build request: %w", err)
	}

	for _, key := range req.Headers.Keys() {
		values, _ := req.Headers.GetList(key)
		httpReq.Header[http.CanonicalHeaderKey(key)] = values
	}

	return httpReq, nil
}

// do performs the exchange, sharing it with identical in-flight requests
// when coalescing applies. The shared exchange runs detached from the
// caller that started it, bounded by the client timeout; each caller
// stops waiting when its own context ends.
func (t *Transport) do(req *http.Request, body []byte) (*exchange, error) {
	if !t.cfg.Coalescing || !coalescable(req.Method) {
		return t.roundTrip(req)
	}

	ctx := req.Context()
	key := GenerateCoalesceKey(req.Method, req.URL.String(), req.Header, body)
	shared := req.WithContext(context.WithoutCancel(ctx))

	ch := t.group.DoChan(key, func() (any, error) {
		return t.roundTrip(shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			t.cfg.Metrics.recordCoalesced(ctx, t.cfg.baseAttributes())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*exchange), nil
	}
}

func (t *Transport) roundTrip(req *http.Request) (*exchange, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	start := time.Now()
	body, err := io.ReadAll(resp.Body)
	t.cfg.Metrics.recordContentTransferDuration(req.Context(), time.Since(start), t.cfg.baseAttributes())
	if err != nil {
		return nil, fmt.Errorf("httptransport: read response body: %w", err)
	}

	return &exchange{
		status:     resp.StatusCode,
		statusText: statusText(resp),
		header:     resp.Header,
		body:       body,
	}, nil
}

// statusText returns the reason phrase of resp, e.g. "Not Found".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
