package restclient

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Method is the HTTP verb of a request.
type Method string

// Supported HTTP methods.
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
	MethodHead   Method = "HEAD"
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead:
		return true
	default:
		return false
	}
}

// Header names and values the descriptor fills in when the caller did not.
const (
	HeaderContentType = "Content-Type"
	HeaderAccepts     = "Accepts"

	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"

	DefaultAccepts = "application/json, text/plain, */*"
)

// Request is the fully resolved descriptor of an HTTP call: method, URL,
// raw body, headers and query parameters. It is what the binding engine
// produces and what a Transport consumes.
//
// Body is kept raw; it is serialized lazily by SerializedBody according
// to the resolved content type.
type Request struct {
	URL     string
	Method  Method
	Body    any
	Headers *NamedValues
	Params  *NamedValues

	// QueryEncoder escapes query keys and values in FullURL.
	// Nil means ComponentEncoding.
	QueryEncoder QueryEncoder
}

// NewRequest builds a descriptor. Headers and params are copied (nil means
// empty). Content-Type and Accepts headers are defaulted when missing:
//   - Content-Type: application/json when body is absent, zero or
//     structured (struct, map, slice, array), text/plain otherwise
//   - Accepts: application/json, text/plain, */*
func NewRequest(url string, method Method, body any, headers, params *NamedValues) *Request {
	r := &Request{
		URL:     url,
		Method:  method,
		Body:    body,
		Headers: headers.Clone(),
		Params:  params.Clone(),
	}

	if !r.Headers.Contains(HeaderContentType) {
		r.Headers.Set(HeaderContentType, r.ContentType())
	}
	if !r.Headers.Contains(HeaderAccepts) {
		r.Headers.Set(HeaderAccepts, DefaultAccepts)
	}

	return r
}

// ContentType returns the Content-Type header when set, otherwise the
// type detected from the body.
func (r *Request) ContentType() string {
	if ct, ok := r.Headers.Get(HeaderContentType); ok && ct != "" {
		return ct
	}
	if isFalsy(r.Body) || isStructured(r.Body) {
		return ContentTypeJSON
	}
	return ContentTypeText
}

// SerializedBody returns the body as sent on the wire, or nil when there is
// no body. JSON content is marshaled; anything else is sent in its plain
// string form.
func (r *Request) SerializedBody() ([]byte, error) {
	if isFalsy(r.Body) {
		return nil, nil
	}

	if r.ContentType() == ContentTypeJSON {
		return json.Marshal(r.Body)
	}

	return []byte(stringify(r.Body)), nil
}

// FullURL returns the URL with the query parameters appended. With no
// parameters the URL is returned unchanged. The separator depends on the
// URL: "?" when it has no query yet, nothing when it already ends with
// "?", "&" otherwise.
func (r *Request) FullURL() string {
	if r.Params.Len() == 0 {
		return r.URL
	}

	encode := r.QueryEncoder
	if encode == nil {
		encode = ComponentEncoding
	}

	pairs := make([]string, 0, r.Params.Len())
	for _, k := range r.Params.Keys() {
		v, _ := r.Params.Get(k)
		pairs = append(pairs, encode(k)+"="+encode(v))
	}
	query := strings.Join(pairs, "&")

	var sep string
	switch {
	case !strings.Contains(r.URL, "?"):
		sep = "?"
	case strings.HasSuffix(r.URL, "?"):
		sep = ""
	default:
		sep = "&"
	}

	return r.URL + sep + query
}

// Clone returns a copy of r with independent header and param collections.
// The body is shared.
func (r *Request) Clone() *Request {
	return &Request{
		URL:          r.URL,
		Method:       r.Method,
		Body:         r.Body,
		Headers:      r.Headers.Clone(),
		Params:       r.Params.Clone(),
		QueryEncoder: r.QueryEncoder,
	}
}

// String returns "METHOD url" with the query string included.
func (r *Request) String() string {
	return string(r.Method) + " " + r.FullURL()
}
