// Package resttest provides a fake REST API for end-to-end tests of
// clients: a chi router on an httptest server that records every request
// it receives.
//
//	srv := resttest.NewServer(t).
//	    JSON(http.MethodGet, "/pets/{id}", http.StatusOK, map[string]any{"id": 1}).
//	    Echo(http.MethodPost, "/echo")
//
//	client := restclient.NewClient(petstore.Extend("Pets").BaseURL(srv.URL()).MustBuild(), transport)
package resttest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is set on every response, echoing the request's own
// value when present.
const RequestIDHeader = "X-Request-ID"

// RecordedRequest is what the server saw of one request.
type RecordedRequest struct {
	Method string
	Path   string

	// Route is the matched chi pattern, e.g. "/pets/{id}". Empty when no
	// route matched.
	Route string

	// PathParams holds the values of the route placeholders.
	PathParams map[string]string

	RawQuery string
	Query    url.Values
	Header   http.Header
	Body     []byte

	Status    int
	RequestID string
}

// EchoResponse is the body written by Echo routes.
type EchoResponse struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	RawQuery   string              `json:"rawQuery"`
	Query      map[string][]string `json:"query"`
	Headers    map[string][]string `json:"headers"`
	PathParams map[string]string   `json:"pathParams"`
	Body       string              `json:"body"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is a fake REST API. Routes can be added at any time; requests are
// recorded whether a route matched or not.
type Server struct {
	server *httptest.Server
	router *chi.Mux
	logger zerolog.Logger

	mu       sync.RWMutex
	requests []RecordedRequest
}

// NewServer starts a server that is closed when the test finishes.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		router: chi.NewRouter(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(s.record)
	s.server = httptest.NewServer(s.router)
	t.Cleanup(s.server.Close)

	return s
}

// URL returns the base URL of the server, without a trailing slash.
func (s *Server) URL() string { return s.server.URL }

// Close shuts the server down. Further requests fail to connect.
func (s *Server) Close() { s.server.Close() }

// Handle routes method and pattern to h. Patterns use chi syntax.
func (s *Server) Handle(method, pattern string, h http.HandlerFunc) *Server {
	s.router.Method(method, pattern, h)
	return s
}

// JSON answers method and pattern with status and body encoded as JSON.
func (s *Server) JSON(method, pattern string, status int, body any) *Server {
	return s.Handle(method, pattern, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Text answers method and pattern with status and a text/plain body.
func (s *Server) Text(method, pattern string, status int, body string) *Server {
	return s.Handle(method, pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Echo answers method and pattern with an EchoResponse describing the
// request.
func (s *Server) Echo(method, pattern string) *Server {
	return s.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		WriteJSON(w, http.StatusOK, EchoResponse{
			Method:     r.Method,
			Path:       r.URL.Path,
			RawQuery:   r.URL.RawQuery,
			Query:      r.URL.Query(),
			Headers:    r.Header,
			PathParams: pathParams(chi.RouteContext(r.Context())),
			Body:       string(body),
		})
	})
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RecordedRequest{}, s.requests...)
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (RecordedRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.requests) == 0 {
		return RecordedRequest{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// RequestCount returns the number of recorded requests.
func (s *Server) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// Reset forgets the recorded requests. Routes are kept.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// WriteJSON writes body as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// record captures the request, lets the router serve it, then stores it
// along with the matched route and status.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		rctx := chi.RouteContext(r.Context())
		rec := RecordedRequest{
			Method:     r.Method,
			Path:       r.URL.Path,
			PathParams: pathParams(rctx),
			RawQuery:   r.URL.RawQuery,
			Query:      r.URL.Query(),
			Header:     r.Header.Clone(),
			Body:       body,
			Status:     rw.status,
			RequestID:  id,
		}
		if rctx != nil {
			rec.Route = rctx.RoutePattern()
		}

		s.logger.Debug().
			Str("method", rec.Method).
			Str("path", rec.Path).
			Str("route", rec.Route).
			Int("status", rec.Status).
			Str("request_id", id).
			Dur("duration", time.Since(start)).
			Msg("fake api request")

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()
	})
}

func pathParams(rctx *chi.Context) map[string]string {
	params := map[string]string{}
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
