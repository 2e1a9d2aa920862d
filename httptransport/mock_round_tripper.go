package httptransport

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
)

// MockRoundTripper is a stubbable http.RoundTripper for tests. Plug it in
// with WithRoundTripper to exercise a Transport, including its
// instrumentation and resilience wrappers, without a network.
//
//	mock := httptransport.NewMockRoundTripper().
//	    StubPath("/pets/1", http.StatusOK, `{"id":1}`)
//	t := httptransport.New(httptransport.WithRoundTripper(mock))
type MockRoundTripper struct {
	mu          sync.RWMutex
	stubs       []stub
	fallback    *stub
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher func(*http.Request) bool
	status  int
	header  http.Header
	body    []byte
	err     error
}

func (s stub) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(s.status) + " " + http.StatusText(s.status),
		StatusCode:    s.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
		Request:       req,
	}
}

// NewMockRoundTripper creates a MockRoundTripper with no stubs. Unmatched
// requests fail.
func NewMockRoundTripper() *MockRoundTripper {
	return &MockRoundTripper{}
}

// StubResponse answers every unmatched request with status and body.
func (m *MockRoundTripper) StubResponse(status int, body string) *MockRoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{status: status, header: make(http.Header), body: []byte(body)}
	return m
}

// StubJSON answers every unmatched request with status and body encoded as
// JSON.
func (m *MockRoundTripper) StubJSON(status int, body any) *MockRoundTripper {
	data, err := json.Marshal(body)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.fallback = &stub{err: err}
		return m
	}
	m.fallback = &stub{
		status: status,
		header: http.Header{"Content-Type": {"application/json"}},
		body:   data,
	}
	return m
}

// StubError fails every unmatched request with err.
func (m *MockRoundTripper) StubError(err error) *MockRoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{err: err}
	return m
}

// StubPath answers requests for path.
func (m *MockRoundTripper) StubPath(path string, status int, body string) *MockRoundTripper {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, status, body)
}

// StubPathRegex answers requests whose path matches pattern.
func (m *MockRoundTripper) StubPathRegex(pattern string, status int, body string) *MockRoundTripper {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, status, body)
}

// StubMethod answers requests using method.
func (m *MockRoundTripper) StubMethod(method string, status int, body string) *MockRoundTripper {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, status, body)
}

// StubFunc answers requests matching the predicate. Stubs are tried in
// the order they were added.
func (m *MockRoundTripper) StubFunc(
	matcher func(*http.Request) bool,
	status int,
	body string,
) *MockRoundTripper {
	return m.addStub(stub{matcher: matcher, status: status, header: make(http.Header), body: []byte(body)})
}

// StubFuncHeader is StubFunc with response headers.
func (m *MockRoundTripper) StubFuncHeader(
	matcher func(*http.Request) bool,
	status int,
	header http.Header,
	body string,
) *MockRoundTripper {
	return m.addStub(stub{matcher: matcher, status: status, header: header.Clone(), body: []byte(body)})
}

// StubFuncError fails requests matching the predicate with err.
func (m *MockRoundTripper) StubFuncError(matcher func(*http.Request) bool, err error) *MockRoundTripper {
	return m.addStub(stub{matcher: matcher, err: err})
}

func (m *MockRoundTripper) addStub(s stub) *MockRoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, s)
	return m
}

// OnRequest sets a hook called with each request before it is answered.
func (m *MockRoundTripper) OnRequest(fn func(*http.Request)) *MockRoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stubs {
		if s.matcher(req) {
			return s.answer(req)
		}
	}
	if m.fallback != nil {
		return m.fallback.answer(req)
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
}

func (s stub) answer(req *http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.response(req), nil
}

// Requests returns the requests received so far.
func (m *MockRoundTripper) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests received.
func (m *MockRoundTripper) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockRoundTripper) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded requests, stubs and the hook.
func (m *MockRoundTripper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.fallback = nil
	m.requestHook = nil
}
