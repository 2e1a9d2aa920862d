package restclient

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Client binds a Service to a Transport. It is the base every generated or
// hand-written REST client embeds; typed methods delegate to Invoke or Call.
//
//	type UserClient struct{ *restclient.Client }
//
//	func (c UserClient) GetUser(ctx context.Context, id int) (User, error) {
//	    return restclient.Call[User](ctx, c.Client, "GetUser", id)
//	}
//
// Client is safe for concurrent use. The interceptor slot holds a single
// interceptor; setting a new one replaces the previous one atomically.
type Client struct {
	service     *Service
	transport   Transport
	interceptor atomic.Pointer[RequestInterceptor]
	logger      zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for dispatch and failure events.
// Default: zerolog.Nop().
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestInterceptor installs the initial request interceptor.
func WithRequestInterceptor(interceptor RequestInterceptor) ClientOption {
	return func(c *Client) {
		c.SetRequestInterceptor(interceptor)
	}
}

// NewClient creates a client for service sending requests through transport.
func NewClient(service *Service, transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		service:   service,
		transport: transport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the bound service definition.
func (c *Client) Service() *Service { return c.service }

// Transport returns the bound transport.
func (c *Client) Transport() Transport { return c.transport }

// BaseURL returns the base URL of the bound service.
func (c *Client) BaseURL() string { return c.service.BaseURL() }

// DefaultHeaders returns a copy of the service default headers.
func (c *Client) DefaultHeaders() StringMap { return c.service.DefaultHeaders() }

// SetRequestInterceptor registers the interceptor applied to every request
// before dispatch, replacing any previous one. Passing nil clears it.
func (c *Client) SetRequestInterceptor(interceptor RequestInterceptor) {
	if interceptor == nil {
		c.interceptor.Store(nil)
		return
	}
	c.interceptor.Store(&interceptor)
}

// RequestInterceptor returns the registered interceptor, or nil.
func (c *Client) RequestInterceptor() RequestInterceptor {
	if p := c.interceptor.Load(); p != nil {
		return *p
	}
	return nil
}

// Resolve builds the descriptor endpoint would send for args, including
// the registered interceptor, without dispatching it.
func (c *Client) Resolve(endpoint string, args ...any) (*Request, error) {
	req, err := c.service.Resolve(endpoint, args...)
	if err != nil {
		return nil, err
	}

	if interceptor := c.RequestInterceptor(); interceptor != nil {
		req, err = interceptor(req)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Invoke resolves endpoint against args, passes the descriptor through the
// interceptor and dispatches it. The transport result is returned unchanged:
// the parsed body on success, an *ErrorResponse on transport failure.
// Interceptor errors are returned as-is and nothing is sent.
func (c *Client) Invoke(ctx context.Context, endpoint string, args ...any) (any, error) {
	if c.transport == nil {
		return nil, ErrNoTransport
	}

	req, err := c.Resolve(endpoint, args...)
	if err != nil {
		c.logger.Warn().
			Str("service", c.service.Name()).
			Str("endpoint", endpoint).
			Err(err).
			Msg("REST request not sent")
		return nil, err
	}

	if event := c.logger.Debug(); req != nil && event.Enabled() {
		event.
			Str("service", c.service.Name()).
			Str("endpoint", endpoint).
			Str("method", string(req.Method)).
			Str("url", req.FullURL()).
			Msg("REST request")
	}

	body, err := c.transport.Request(ctx, req)
	if err != nil {
		event := c.logger.Debug().
			Str("service", c.service.Name()).
			Str("endpoint", endpoint).
			Err(err)
		if er, ok := AsErrorResponse(err); ok {
			event = event.Int("status", er.Status)
		}
		event.Msg("REST request failed")
		return nil, err
	}

	return body, nil
}

// Go runs Invoke asynchronously and returns its single result as a Future.
func (c *Client) Go(ctx context.Context, endpoint string, args ...any) *Future[any] {
	return Async(ctx, func(ctx context.Context) (any, error) {
		return c.Invoke(ctx, endpoint, args...)
	})
}

// Call invokes endpoint and decodes the response body into T.
func Call[T any](ctx context.Context, c *Client, endpoint string, args ...any) (T, error) {
	body, err := c.Invoke(ctx, endpoint, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](body)
}
