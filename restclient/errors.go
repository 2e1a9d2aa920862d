package restclient

import (
	"errors"
	"strconv"
)

var (
	// ErrConfiguration is wrapped by every definition-time binding error,
	// such as an endpoint declaring two bodies.
	ErrConfiguration = errors.New("restclient: invalid binding configuration")

	// ErrUnknownEndpoint is returned when invoking an endpoint the service
	// does not define.
	ErrUnknownEndpoint = errors.New("restclient: unknown endpoint")

	// ErrNilRequest is returned by transports called without a descriptor.
	ErrNilRequest = errors.New("restclient: invalid request data")

	// ErrNoTransport is returned when a client has no transport bound.
	ErrNoTransport = errors.New("restclient: no transport")

	// ErrOffline is the network failure reported when no connection could
	// be made at all.
	ErrOffline = errors.New("restclient: network offline")
)

const unknownURL = "(unknown url)"

// ErrorResponseInit carries the raw failure data a transport classified.
// Every field is optional.
type ErrorResponseInit struct {
	Err        any
	Headers    *NamedValues
	Status     int
	StatusText string
	URL        string
}

// ErrorResponse is the normalized failure of a request. It is built only
// at the transport boundary and is never retried or recovered internally.
//
// Status 0 means a client-side or network failure. A 2xx status means the
// server answered but the body could not be used; in that case Err is
// always nil.
type ErrorResponse struct {
	Status     int
	StatusText string
	URL        string
	Headers    *NamedValues
	Err        any
	Message    string
}

// NewErrorResponse builds an ErrorResponse and computes its message.
// A nil init yields status 0 with an unknown URL.
func NewErrorResponse(init *ErrorResponseInit) *ErrorResponse {
	if init == nil {
		init = &ErrorResponseInit{}
	}

	e := &ErrorResponse{
		Status:     init.Status,
		StatusText: init.StatusText,
		URL:        init.URL,
		Headers:    init.Headers.Clone(),
		Err:        init.Err,
	}

	url := e.URL
	if url == "" {
		url = unknownURL
	}

	if e.Status >= 200 && e.Status < 300 {
		e.Err = nil
		e.Message = "Http failure during parsing for " + url
	} else {
		e.Message = "Http failure response for " + url + ": " +
			strconv.Itoa(e.Status) + " " + e.StatusText
	}

	return e
}

// Error implements error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// Unwrap exposes Err when it is itself an error, so errors.Is and
// errors.As see through the response.
func (e *ErrorResponse) Unwrap() error {
	if err, ok := e.Err.(error); ok {
		return err
	}
	return nil
}

// IsParseFailure reports whether the server answered with a success status
// but the body could not be used.
func (e *ErrorResponse) IsParseFailure() bool {
	return e.Status >= 200 && e.Status < 300
}

// IsNetworkError reports whether the request failed before any HTTP status
// was received.
func (e *ErrorResponse) IsNetworkError() bool {
	return e.Status == 0
}

// AsErrorResponse extracts an *ErrorResponse from err's chain.
func AsErrorResponse(err error) (*ErrorResponse, bool) {
	var er *ErrorResponse
	if errors.As(err, &er) {
		return er, true
	}
	return nil, false
}
