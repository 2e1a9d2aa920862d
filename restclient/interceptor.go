package restclient

import "github.com/google/uuid"

// RequestInterceptor reads the prepared descriptor right before it is sent
// and returns the descriptor to send, which may be req itself after
// mutation or a new value. Returning an error aborts the call; the request
// is never dispatched.
//
// Interceptors run synchronously, exactly once per call. Common uses:
//   - Adding authentication headers (Bearer tokens, API keys)
//   - Injecting correlation IDs
//   - Request logging
type RequestInterceptor func(req *Request) (*Request, error)

// ChainInterceptors composes interceptors into one, run in order. A client
// holds a single interceptor; use this to install several at once.
func ChainInterceptors(interceptors ...RequestInterceptor) RequestInterceptor {
	return func(req *Request) (*Request, error) {
		var err error
		for _, interceptor := range interceptors {
			if interceptor == nil {
				continue
			}
			req, err = interceptor(req)
			if err != nil {
				return nil, err
			}
		}
		return req, nil
	}
}

// Common interceptor helpers

// AuthBearerInterceptor creates an interceptor that adds a Bearer token.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return func(req *Request) (*Request, error) {
		req.Headers.Set("Authorization", "Bearer "+token)
		return req, nil
	}
}

// AuthBearerFuncInterceptor creates an interceptor that adds a Bearer token
// from a function (useful for dynamic/refreshable tokens).
func AuthBearerFuncInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return func(req *Request) (*Request, error) {
		token, err := tokenFunc()
		if err != nil {
			return nil, err
		}
		req.Headers.Set("Authorization", "Bearer "+token)
		return req, nil
	}
}

// APIKeyInterceptor creates an interceptor that adds an API key header.
func APIKeyInterceptor(headerName, apiKey string) RequestInterceptor {
	return func(req *Request) (*Request, error) {
		req.Headers.Set(headerName, apiKey)
		return req, nil
	}
}

// CorrelationIDInterceptor creates an interceptor that adds a correlation ID.
// A nil idFunc generates random UUIDs. An existing header is kept.
func CorrelationIDInterceptor(headerName string, idFunc func() string) RequestInterceptor {
	if idFunc == nil {
		idFunc = uuid.NewString
	}
	return func(req *Request) (*Request, error) {
		if !req.Headers.Contains(headerName) {
			req.Headers.Set(headerName, idFunc())
		}
		return req, nil
	}
}

// UserAgentInterceptor creates an interceptor that sets the User-Agent header.
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return func(req *Request) (*Request, error) {
		req.Headers.Set("User-Agent", userAgent)
		return req, nil
	}
}
