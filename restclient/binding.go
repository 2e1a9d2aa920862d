package restclient

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Role is the binding classification of an endpoint argument.
type Role int

// Argument roles.
const (
	// RoleNone marks an argument that takes part in no binding.
	RoleNone Role = iota
	// RolePath substitutes every {key} placeholder of the URL template.
	RolePath
	// RoleQuery adds a query parameter when the argument is truthy.
	RoleQuery
	// RoleBody passes the argument through as the request body.
	RoleBody
	// RoleHeader sets a header, overriding default and static headers.
	RoleHeader
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePath:
		return "Path"
	case RoleQuery:
		return "Query"
	case RoleBody:
		return "Body"
	case RoleHeader:
		return "Header"
	default:
		return "None"
	}
}

// Param binds the argument at Position to a role under Key.
type Param struct {
	Role     Role
	Key      string
	Position int
}

// EndpointOption configures an endpoint at definition time: either an
// argument binding (Path, Query, Body, Header, Skip) or endpoint-wide
// static headers (Headers).
//
// Argument bindings take positions in the order they are given, so the
// n-th binding option describes the n-th argument of the call.
type EndpointOption interface {
	applyEndpoint(d *endpointDraft)
}

type paramOption struct {
	role Role
	key  string
}

func (p paramOption) applyEndpoint(d *endpointDraft) {
	pos := d.next
	d.next++

	if p.role == RoleNone {
		return
	}
	if p.role != RoleBody && p.key == "" {
		d.fail("argument %d: %s binding requires a key", pos, p.role)
		return
	}

	param := Param{Role: p.role, Key: p.key, Position: pos}
	switch p.role {
	case RolePath:
		d.ep.path = append(d.ep.path, param)
	case RoleQuery:
		d.ep.query = append(d.ep.query, param)
	case RoleHeader:
		d.ep.header = append(d.ep.header, param)
	case RoleBody:
		if d.ep.body != nil {
			d.fail("argument %d: only one Body binding is allowed (already bound at argument %d)",
				pos, d.ep.body.Position)
			return
		}
		d.ep.body = &param
	}
}

type headersOption StringMap

func (h headersOption) applyEndpoint(d *endpointDraft) {
	for k, v := range h {
		d.ep.headers[k] = v
	}
}

// Path binds the next argument to the {key} placeholders of the URL template.
func Path(key string) EndpointOption { return paramOption{role: RolePath, key: key} }

// Query binds the next argument to the query parameter key. Falsy
// arguments (nil, false, 0, "") are omitted; structured values are JSON
// encoded.
func Query(key string) EndpointOption { return paramOption{role: RoleQuery, key: key} }

// Body binds the next argument to the request body. At most one per endpoint.
func Body() EndpointOption { return paramOption{role: RoleBody, key: "Body"} }

// Header binds the next argument to the header key.
func Header(key string) EndpointOption { return paramOption{role: RoleHeader, key: key} }

// Skip leaves the next argument unbound.
func Skip() EndpointOption { return paramOption{role: RoleNone} }

// Headers sets static headers sent with every call of the endpoint.
// They override the service default headers.
func Headers(h StringMap) EndpointOption { return headersOption(h) }

// Endpoint is the immutable binding record of one REST method.
type Endpoint struct {
	name        string
	method      Method
	urlTemplate string
	headers     StringMap

	path   []Param
	query  []Param
	header []Param
	body   *Param
}

// Name returns the endpoint name used with Client.Invoke.
func (e *Endpoint) Name() string { return e.name }

// Method returns the HTTP verb.
func (e *Endpoint) Method() Method { return e.method }

// URLTemplate returns the relative URL template with {name} placeholders.
func (e *Endpoint) URLTemplate() string { return e.urlTemplate }

// Headers returns a copy of the static endpoint headers.
func (e *Endpoint) Headers() StringMap {
	out := make(StringMap, len(e.headers))
	for k, v := range e.headers {
		out[k] = v
	}
	return out
}

// Params returns every argument binding ordered by position.
func (e *Endpoint) Params() []Param {
	out := make([]Param, 0, len(e.path)+len(e.query)+len(e.header)+1)
	out = append(out, e.path...)
	out = append(out, e.query...)
	out = append(out, e.header...)
	if e.body != nil {
		out = append(out, *e.body)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type endpointDraft struct {
	ep   *Endpoint
	next int
	errs []error
}

func (d *endpointDraft) fail(format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf("%w: endpoint %q: %s",
		ErrConfiguration, d.ep.name, fmt.Sprintf(format, args...)))
}

func newEndpoint(name string, method Method, urlTemplate string, opts []EndpointOption) (*Endpoint, error) {
	d := &endpointDraft{ep: &Endpoint{
		name:        name,
		method:      method,
		urlTemplate: urlTemplate,
		headers:     make(StringMap),
	}}

	if name == "" {
		d.fail("endpoint name is required")
	}
	if !method.Valid() {
		d.fail("unsupported method %q", method)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyEndpoint(d)
	}

	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return d.ep, nil
}

// resolve assembles the descriptor for one call:
//  1. default headers, 2. static endpoint headers, 3. Header arguments
//  4. Path substitution, 5. truthy Query arguments, 6. Body argument
//  7. base URL + resolved template, 8. NewRequest defaults.
func (e *Endpoint) resolve(s *Service, args []any) *Request {
	headers := NewNamedValues(s.defaultHeaders)
	headers.merge(e.headers)
	for _, p := range e.header {
		v := argAt(args, p.Position)
		if isNil(v) {
			continue
		}
		if list, ok := v.([]string); ok {
			headers.SetList(p.Key, list)
			continue
		}
		headers.Set(p.Key, stringify(v))
	}

	url := e.urlTemplate
	for _, p := range e.path {
		url = strings.ReplaceAll(url, "{"+p.Key+"}", argumentString(argAt(args, p.Position)))
	}

	params := NewNamedValues(nil)
	for _, p := range e.query {
		v := argAt(args, p.Position)
		if isFalsy(v) {
			continue
		}
		params.Set(p.Key, argumentString(v))
	}

	var body any
	if e.body != nil {
		body = argAt(args, e.body.Position)
	}

	req := NewRequest(s.baseURL+url, e.method, body, headers, params)
	req.QueryEncoder = s.encoder
	return req
}

func argAt(args []any, pos int) any {
	if pos < 0 || pos >= len(args) {
		return nil
	}
	return args[pos]
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Service is the immutable binding table of a REST API: base URL, default
// headers and endpoints. It is built once with a ServiceBuilder and read
// concurrently by any number of clients.
type Service struct {
	name           string
	baseURL        string
	defaultHeaders StringMap
	encoder        QueryEncoder
	endpoints      map[string]*Endpoint
	order          []string
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// BaseURL returns the base URL prepended to every endpoint template.
func (s *Service) BaseURL() string { return s.baseURL }

// DefaultHeaders returns a copy of the headers attached to every request.
func (s *Service) DefaultHeaders() StringMap {
	out := make(StringMap, len(s.defaultHeaders))
	for k, v := range s.defaultHeaders {
		out[k] = v
	}
	return out
}

// Endpoint returns the endpoint registered under name.
func (s *Service) Endpoint(name string) (*Endpoint, bool) {
	ep, ok := s.endpoints[name]
	return ep, ok
}

// Endpoints returns the endpoints in definition order.
func (s *Service) Endpoints() []*Endpoint {
	out := make([]*Endpoint, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.endpoints[name])
	}
	return out
}

// Resolve builds the request descriptor of endpoint name for args.
// Arguments missing from args resolve as nil.
func (s *Service) Resolve(name string, args ...any) (*Request, error) {
	ep, ok := s.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in service %q", ErrUnknownEndpoint, name, s.name)
	}
	return ep.resolve(s, args), nil
}

// Extend starts a builder pre-populated with s's settings and endpoints.
// The new service may override the base URL, default headers and any
// inherited endpoint.
func (s *Service) Extend(name string) *ServiceBuilder {
	b := NewService(name).
		BaseURL(s.baseURL).
		DefaultHeaders(s.defaultHeaders).
		QueryEncoding(s.encoder)
	b.inherited = make(map[string]bool, len(s.order))
	for _, n := range s.order {
		b.endpoints = append(b.endpoints, s.endpoints[n])
		b.inherited[n] = true
	}
	return b
}

// ServiceBuilder declares a Service. Errors are collected and reported by
// Build, so a whole definition can be written as one chain.
//
//	var users = restclient.NewService("users").
//	    BaseURL("https://api.example.com").
//	    DefaultHeaders(restclient.StringMap{"Accepts": "application/json"}).
//	    GET("GetUser", "/users/{id}", restclient.Path("id")).
//	    POST("CreateUser", "/users", restclient.Body()).
//	    MustBuild()
type ServiceBuilder struct {
	name           string
	baseURL        string
	defaultHeaders StringMap
	encoder        QueryEncoder
	endpoints      []*Endpoint
	inherited      map[string]bool
	errs           []error
}

// NewService starts the definition of a service.
func NewService(name string) *ServiceBuilder {
	return &ServiceBuilder{name: name, defaultHeaders: make(StringMap)}
}

// BaseURL sets the base URL of the API.
func (b *ServiceBuilder) BaseURL(url string) *ServiceBuilder {
	b.baseURL = url
	return b
}

// DefaultHeaders sets the headers attached to each request. The map is copied.
func (b *ServiceBuilder) DefaultHeaders(h StringMap) *ServiceBuilder {
	b.defaultHeaders = make(StringMap, len(h))
	for k, v := range h {
		b.defaultHeaders[k] = v
	}
	return b
}

// QueryEncoding selects how query keys and values are escaped.
// The default is ComponentEncoding.
func (b *ServiceBuilder) QueryEncoding(enc QueryEncoder) *ServiceBuilder {
	b.encoder = enc
	return b
}

// Endpoint declares a REST method.
func (b *ServiceBuilder) Endpoint(
	name string,
	method Method,
	urlTemplate string,
	opts ...EndpointOption,
) *ServiceBuilder {
	ep, err := newEndpoint(name, method, urlTemplate, opts)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}

	for i, existing := range b.endpoints {
		if existing.name != name {
			continue
		}
		if b.inherited[name] {
			b.endpoints[i] = ep
			delete(b.inherited, name)
			return b
		}
		b.errs = append(b.errs, fmt.Errorf("%w: endpoint %q declared twice", ErrConfiguration, name))
		return b
	}

	b.endpoints = append(b.endpoints, ep)
	return b
}

// GET declares a GET endpoint.
func (b *ServiceBuilder) GET(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodGet, urlTemplate, opts...)
}

// POST declares a POST endpoint.
func (b *ServiceBuilder) POST(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodPost, urlTemplate, opts...)
}

// PUT declares a PUT endpoint.
func (b *ServiceBuilder) PUT(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodPut, urlTemplate, opts...)
}

// PATCH declares a PATCH endpoint.
func (b *ServiceBuilder) PATCH(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodPatch, urlTemplate, opts...)
}

// DELETE declares a DELETE endpoint.
func (b *ServiceBuilder) DELETE(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodDelete, urlTemplate, opts...)
}

// HEAD declares a HEAD endpoint.
func (b *ServiceBuilder) HEAD(name, urlTemplate string, opts ...EndpointOption) *ServiceBuilder {
	return b.Endpoint(name, MethodHead, urlTemplate, opts...)
}

// Build validates the definition and returns the immutable Service.
// All configuration errors are joined; each wraps ErrConfiguration.
func (b *ServiceBuilder) Build() (*Service, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	s := &Service{
		name:           b.name,
		baseURL:        b.baseURL,
		defaultHeaders: make(StringMap, len(b.defaultHeaders)),
		encoder:        b.encoder,
		endpoints:      make(map[string]*Endpoint, len(b.endpoints)),
		order:          make([]string, 0, len(b.endpoints)),
	}
	for k, v := range b.defaultHeaders {
		s.defaultHeaders[k] = v
	}
	for _, ep := range b.endpoints {
		s.endpoints[ep.name] = ep
		s.order = append(s.order, ep.name)
	}
	return s, nil
}

// MustBuild is like Build but panics on configuration errors. It is meant
// for package-level service definitions, where a bad binding is a
// programming error.
func (b *ServiceBuilder) MustBuild() *Service {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
