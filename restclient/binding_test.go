package restclient

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://example.org/api"

var (
	testDefaultHeaders = StringMap{"Accepts": "application/json"}

	testAdditionalHeaders = StringMap{
		"MethodHeader": "header 1",
		"ParamHeader":  "header 2",
	}
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := NewService("testing").
		BaseURL(testBaseURL).
		DefaultHeaders(testDefaultHeaders).
		GET("TestGet", "/test-get").
		POST("TestPost", "/test-post/{id}/endpoint", Body(), Path("id")).
		PUT("TestPut", "/test-put", Query("id"), Query("href")).
		DELETE("TestDelete", "/test-delete", Header("myHeader")).
		HEAD("TestHead", "/test-head", Headers(testAdditionalHeaders)).
		PATCH("TestPatch", "/test-patch").
		Build()
	require.NoError(t, err)
	return s
}

func TestService_Resolve(t *testing.T) {
	expectedHeaders := map[string][]string{
		"Accepts":      {"application/json"},
		"Content-Type": {"application/json"},
	}

	tests := []struct {
		name        string
		endpoint    string
		args        []any
		wantMethod  Method
		wantURL     string
		wantHeaders map[string][]string
		wantParams  map[string][]string
	}{
		{
			name:        "given GET endpoint, then GET to base url plus template",
			endpoint:    "TestGet",
			wantMethod:  MethodGet,
			wantURL:     testBaseURL + "/test-get",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:        "given PATCH endpoint, then PATCH",
			endpoint:    "TestPatch",
			wantMethod:  MethodPatch,
			wantURL:     testBaseURL + "/test-patch",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:        "given path argument, then placeholder substituted",
			endpoint:    "TestPost",
			args:        []any{map[string]any{"message": "yay"}, 5},
			wantMethod:  MethodPost,
			wantURL:     testBaseURL + "/test-post/5/endpoint",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:        "given query arguments, then structured value json encoded",
			endpoint:    "TestPut",
			args:        []any{"abraka", map[string]any{"url": "https://dabraka.com/"}},
			wantMethod:  MethodPut,
			wantURL:     testBaseURL + "/test-put",
			wantHeaders: expectedHeaders,
			wantParams: map[string][]string{
				"id":   {"abraka"},
				"href": {`{"url":"https://dabraka.com/"}`},
			},
		},
		{
			name:        "given falsy query arguments, then they are omitted",
			endpoint:    "TestPut",
			args:        []any{"", nil},
			wantMethod:  MethodPut,
			wantURL:     testBaseURL + "/test-put",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:        "given zero query argument, then omitted",
			endpoint:    "TestPut",
			args:        []any{0, false},
			wantMethod:  MethodPut,
			wantURL:     testBaseURL + "/test-put",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:       "given header argument, then header added",
			endpoint:   "TestDelete",
			args:       []any{"myValue"},
			wantMethod: MethodDelete,
			wantURL:    testBaseURL + "/test-delete",
			wantHeaders: map[string][]string{
				"Accepts":      {"application/json"},
				"Content-Type": {"application/json"},
				"myHeader":     {"myValue"},
			},
			wantParams: map[string][]string{},
		},
		{
			name:        "given nil header argument, then header skipped",
			endpoint:    "TestDelete",
			args:        []any{nil},
			wantMethod:  MethodDelete,
			wantURL:     testBaseURL + "/test-delete",
			wantHeaders: expectedHeaders,
			wantParams:  map[string][]string{},
		},
		{
			name:       "given static headers, then merged with defaults",
			endpoint:   "TestHead",
			wantMethod: MethodHead,
			wantURL:    testBaseURL + "/test-head",
			wantHeaders: map[string][]string{
				"Accepts":      {"application/json"},
				"Content-Type": {"application/json"},
				"MethodHeader": {"header 1"},
				"ParamHeader":  {"header 2"},
			},
			wantParams: map[string][]string{},
		},
	}

	s := newTestService(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := s.Resolve(tt.endpoint, tt.args...)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMethod, req.Method)
			assert.Equal(t, tt.wantURL, req.URL)
			assert.Equal(t, tt.wantHeaders, req.Headers.Values())
			assert.Equal(t, tt.wantParams, req.Params.Values())
		})
	}
}

func TestService_Resolve_Body(t *testing.T) {
	s := newTestService(t)

	req, err := s.Resolve("TestPost", map[string]any{"message": "yay"}, 5)
	require.NoError(t, err)

	data, err := req.SerializedBody()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"message": "yay"}, got)
}

func TestService_Resolve_HeaderPrecedence(t *testing.T) {
	s := NewService("precedence").
		DefaultHeaders(StringMap{"X-Level": "default", "X-Default": "d"}).
		GET("Get", "/x",
			Headers(StringMap{"X-Level": "static", "X-Static": "s"}),
			Header("X-Level"),
		).
		GET("GetStatic", "/x", Headers(StringMap{"X-Level": "static"})).
		MustBuild()

	tests := []struct {
		name     string
		endpoint string
		args     []any
		want     string
	}{
		{name: "given header argument, then it overrides static and default", endpoint: "Get", args: []any{"param"}, want: "param"},
		{name: "given no header argument, then static overrides default", endpoint: "Get", args: nil, want: "static"},
		{name: "given only static header, then static overrides default", endpoint: "GetStatic", want: "static"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := s.Resolve(tt.endpoint, tt.args...)
			require.NoError(t, err)

			got, ok := req.Headers.Get("X-Level")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, req.Headers.Contains("X-Default"))
		})
	}
}

func TestService_Resolve_PathSubstitution(t *testing.T) {
	s := NewService("paths").
		GET("Repeat", "/a/{id}/b/{id}", Path("id")).
		GET("Unmatched", "/a/{id}/{other}", Path("id")).
		GET("Two", "/orgs/{org}/repos/{repo}", Skip(), Path("org"), Path("repo")).
		MustBuild()

	tests := []struct {
		name     string
		endpoint string
		args     []any
		want     string
	}{
		{name: "given repeated placeholder, then every occurrence replaced", endpoint: "Repeat", args: []any{7}, want: "/a/7/b/7"},
		{name: "given unmatched placeholder, then left as is", endpoint: "Unmatched", args: []any{"x"}, want: "/a/x/{other}"},
		{name: "given skipped argument, then positions still line up", endpoint: "Two", args: []any{"ignored", "acme", "api"}, want: "/orgs/acme/repos/api"},
		{name: "given missing argument, then substituted as empty", endpoint: "Repeat", args: nil, want: "/a//b/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := s.Resolve(tt.endpoint, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.URL)
		})
	}
}

func TestService_Resolve_QueryURL(t *testing.T) {
	s := NewService("query").
		BaseURL("http://test.com").
		GET("Page", "/page", Query("MyValue"), Query("Names")).
		GET("Readable", "/page", Query("MyValue")).
		MustBuild()

	req, err := s.Resolve("Page", "1+5=6", "Jeremy Bishop & Jane Lawrence")
	require.NoError(t, err)
	assert.Equal(t,
		"http://test.com/page?MyValue=1%2B5%3D6&Names=Jeremy%20Bishop%20%26%20Jane%20Lawrence",
		req.FullURL())

	readable := s.Extend("readable").QueryEncoding(ReadableEncoding).MustBuild()
	req, err = readable.Resolve("Readable", "1+5=6")
	require.NoError(t, err)
	assert.Equal(t, "http://test.com/page?MyValue=1+5=6", req.FullURL())
}

func TestService_Resolve_UnknownEndpoint(t *testing.T) {
	s := newTestService(t)

	req, err := s.Resolve("Missing")
	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestService_Resolve_Independent(t *testing.T) {
	s := newTestService(t)

	first, err := s.Resolve("TestDelete", "one")
	require.NoError(t, err)
	first.Headers.Set("Accepts", "mutated")

	second, err := s.Resolve("TestDelete", "two")
	require.NoError(t, err)

	got, _ := second.Headers.Get("Accepts")
	assert.Equal(t, "application/json", got)
	assert.Equal(t, testDefaultHeaders, s.DefaultHeaders())
}

func TestServiceBuilder_Build_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *ServiceBuilder
	}{
		{
			name:    "given two bodies, then configuration error",
			builder: NewService("x").POST("Post", "/p", Body(), Body()),
		},
		{
			name:    "given empty endpoint name, then configuration error",
			builder: NewService("x").GET("", "/p"),
		},
		{
			name:    "given duplicate endpoint, then configuration error",
			builder: NewService("x").GET("Get", "/a").GET("Get", "/b"),
		},
		{
			name:    "given unsupported method, then configuration error",
			builder: NewService("x").Endpoint("Options", Method("OPTIONS"), "/p"),
		},
		{
			name:    "given empty path key, then configuration error",
			builder: NewService("x").GET("Get", "/p/{}", Path("")),
		},
		{
			name:    "given empty query key, then configuration error",
			builder: NewService("x").GET("Get", "/p", Query("")),
		},
		{
			name:    "given empty header key, then configuration error",
			builder: NewService("x").GET("Get", "/p", Header("")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.builder.Build()
			assert.Nil(t, s)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Panics(t, func() { tt.builder.MustBuild() })
		})
	}
}

func TestServiceBuilder_Build_JoinsErrors(t *testing.T) {
	_, err := NewService("x").
		POST("Post", "/p", Body(), Body()).
		GET("", "/q").
		Build()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "only one Body binding")
	assert.Contains(t, err.Error(), "endpoint name is required")
}

func TestService_Metadata(t *testing.T) {
	s := newTestService(t)

	assert.Equal(t, "testing", s.Name())
	assert.Equal(t, testBaseURL, s.BaseURL())
	assert.Equal(t, testDefaultHeaders, s.DefaultHeaders())

	names := make([]string, 0)
	for _, ep := range s.Endpoints() {
		names = append(names, ep.Name())
	}
	assert.Equal(t, []string{"TestGet", "TestPost", "TestPut", "TestDelete", "TestHead", "TestPatch"}, names)

	ep, ok := s.Endpoint("TestPost")
	require.True(t, ok)
	assert.Equal(t, MethodPost, ep.Method())
	assert.Equal(t, "/test-post/{id}/endpoint", ep.URLTemplate())
	assert.Equal(t, []Param{
		{Role: RoleBody, Key: "Body", Position: 0},
		{Role: RolePath, Key: "id", Position: 1},
	}, ep.Params())

	head, _ := s.Endpoint("TestHead")
	assert.Equal(t, testAdditionalHeaders, head.Headers())
}

func TestService_Extend(t *testing.T) {
	base := newTestService(t)

	child, err := base.Extend("child").
		BaseURL("http://other.org").
		GET("TestGet", "/overridden").
		GET("Extra", "/extra").
		Build()
	require.NoError(t, err)

	req, err := child.Resolve("TestGet")
	require.NoError(t, err)
	assert.Equal(t, "http://other.org/overridden", req.URL)

	req, err = child.Resolve("TestPatch")
	require.NoError(t, err)
	assert.Equal(t, "http://other.org/test-patch", req.URL)

	_, ok := child.Endpoint("Extra")
	assert.True(t, ok)
	_, ok = base.Endpoint("Extra")
	assert.False(t, ok)

	req, err = base.Resolve("TestGet")
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/test-get", req.URL)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "Path", RolePath.String())
	assert.Equal(t, "Query", RoleQuery.String())
	assert.Equal(t, "Body", RoleBody.String())
	assert.Equal(t, "Header", RoleHeader.String())
	assert.Equal(t, "None", RoleNone.String())
}
