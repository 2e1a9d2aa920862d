package restclient

import "context"

// Transport executes a resolved request.
//
// On success Request returns the parsed response body, never a wrapper.
// On failure it returns exactly one *ErrorResponse, after classifying the
// raw failure (network error, HTTP status error, unusable body). A nil
// request fails immediately with ErrNilRequest.
//
// Transports do not retry and apply no timeout of their own beyond what
// ctx carries.
type Transport interface {
	Request(ctx context.Context, req *Request) (any, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (any, error)

// Request implements Transport.
func (f TransportFunc) Request(ctx context.Context, req *Request) (any, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	return f(ctx, req)
}
