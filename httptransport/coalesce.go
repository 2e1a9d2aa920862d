package httptransport

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// GenerateCoalesceKey returns the key under which identical in-flight
// requests share one exchange: a SHA256 over the method, the URL with
// sorted query parameters, the sorted headers and the body.
func GenerateCoalesceKey(method, rawURL string, header http.Header, body []byte) string {
	parts := []string{method, normalizeURL(rawURL)}

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+":"+strings.Join(header[k], ","))
	}

	if len(body) > 0 {
		sum := sha256.Sum256(body)
		parts = append(parts, hex.EncodeToString(sum[:]))
	}

	return hashString(strings.Join(parts, "|"))
}

// normalizeURL orders query parameters so that equivalent URLs match.
// Keys and values stay escaped: "a=1%26b%3D2" and "a=1&b=2" are
// different requests.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return rawURL
	}

	pairs := make([]string, 0, len(query))
	for k, values := range query {
		for _, v := range values {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	sort.Strings(pairs)

	return u.Scheme + "://" + u.Host + u.EscapedPath() + "?" + strings.Join(pairs, "&")
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// coalescable reports whether concurrent copies of a request may share
// one response.
func coalescable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
