package restclient

import (
	"context"
	"sync"
)

// MockTransport is a Transport for tests. It records every request and
// answers with the configured response, client error or callback.
//
// A new MockTransport answers 200 with an empty JSON object.
type MockTransport struct {
	mu       sync.RWMutex
	response mockResponse
	requests []*Request
}

type mockResponse struct {
	status     int
	statusText string
	body       any
	headers    StringMap
	err        any
	callback   func(ctx context.Context, req *Request) (any, error)
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a MockTransport with the default response.
func NewMockTransport() *MockTransport {
	return &MockTransport{response: defaultMockResponse()}
}

func defaultMockResponse() mockResponse {
	return mockResponse{status: 200, body: map[string]any{}}
}

// Response sets the response returned to subsequent requests. Statuses in
// [200, 400) succeed with body; any other status fails with an
// ErrorResponse carrying body as its error payload.
func (m *MockTransport) Response(body any, status int, statusText string, headers StringMap) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = mockResponse{
		status:     status,
		statusText: statusText,
		body:       body,
		headers:    headers,
	}
	return m
}

// ClientError makes subsequent requests fail with status 0 and err as the
// error payload.
func (m *MockTransport) ClientError(err any) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = mockResponse{err: err}
	return m
}

// Offline simulates a network that cannot be reached.
func (m *MockTransport) Offline() *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = mockResponse{
		statusText: "Unknown Error",
		err:        ErrOffline,
	}
	return m
}

// Callback hands every subsequent request to fn. Its value is the response
// body; its error is returned as-is, so fn should return an *ErrorResponse
// to simulate a transport failure.
func (m *MockTransport) Callback(fn func(ctx context.Context, req *Request) (any, error)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = mockResponse{callback: fn}
	return m
}

// Request implements Transport.
func (m *MockTransport) Request(ctx context.Context, req *Request) (any, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	resp := m.response
	m.mu.Unlock()

	if resp.callback != nil {
		return resp.callback(ctx, req)
	}

	if resp.status >= 200 && resp.status < 400 {
		return resp.body, nil
	}

	payload := resp.body
	if isFalsy(payload) {
		payload = resp.err
	}

	return nil, NewErrorResponse(&ErrorResponseInit{
		Err:        payload,
		Headers:    NewNamedValues(resp.headers),
		Status:     resp.status,
		StatusText: resp.statusText,
		URL:        req.URL,
	})
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Requests returns all requests received.
func (m *MockTransport) Requests() []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Request{}, m.requests...)
}

// RequestCount returns the number of requests received.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset clears recorded requests and restores the default response.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.response = defaultMockResponse()
}
