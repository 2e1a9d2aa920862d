package httptransport

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kroma-labs/sentinel-rest/restclient"
)

// unknownStatusText is reported when no response was received.
const unknownStatusText = "Unknown Error"

// classify turns a completed exchange into the parsed body or an
// ErrorResponse.
func (t *Transport) classify(method restclient.Method, url string, ex *exchange) (any, error) {
	contentType := ex.header.Get("Content-Type")

	if ex.status < 200 || ex.status >= 300 {
		errBody, err := parseBody(contentType, ex.body)
		if err != nil {
			errBody = string(ex.body)
		}
		return nil, restclient.NewErrorResponse(&restclient.ErrorResponseInit{
			Err:        errBody,
			Headers:    toNamedValues(ex.header),
			Status:     ex.status,
			StatusText: ex.statusText,
			URL:        url,
		})
	}

	if method == restclient.MethodHead {
		return nil, nil
	}

	body, err := parseBody(contentType, ex.body)
	if err != nil {
		if t.cfg.Debug {
			t.cfg.Logger.Debug().Err(err).Str("url", url).Int("status", ex.status).Msg("HTTP response body unusable")
		}
		return nil, restclient.NewErrorResponse(&restclient.ErrorResponseInit{
			Headers:    toNamedValues(ex.header),
			Status:     ex.status,
			StatusText: ex.statusText,
			URL:        url,
		})
	}

	return body, nil
}

// parseBody decodes a response body. JSON content types must hold valid
// JSON. Without a content type JSON is tried first, falling back to text.
// Other content types yield the body text. An empty body yields nil.
func parseBody(contentType string, body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("httptransport: parse json body: %w", err)
		}
		return v, nil
	case mediaType == "":
		var v any
		if json.Unmarshal(body, &v) == nil {
			return v, nil
		}
		return string(body), nil
	default:
		return string(body), nil
	}
}

// toNamedValues copies response headers in sorted key order.
func toNamedValues(header http.Header) *restclient.NamedValues {
	nv := restclient.NewNamedValues(nil)

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		nv.SetList(k, header[k])
	}
	return nv
}

// networkFailure reports a request that got no HTTP response.
func networkFailure(url string, err error) *restclient.ErrorResponse {
	if isOffline(err) {
		err = fmt.Errorf("%w: %w", restclient.ErrOffline, err)
	}
	return restclient.NewErrorResponse(&restclient.ErrorResponseInit{
		Err:        err,
		StatusText: unknownStatusText,
		URL:        url,
	})
}

// isOffline reports whether err means no connection could be made.
func isOffline(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	switch classifyError(err) {
	case ErrorTypeConnectionRefused, ErrorTypeDNSError:
		return true
	default:
		return false
	}
}
