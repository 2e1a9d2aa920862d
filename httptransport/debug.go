package httptransport

import (
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is used when no logger is configured.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// generateCurlCommand renders req as an equivalent curl invocation.
//
//	curl -X POST 'https://api.example.com/pets' -H 'Content-Type: application/json' -d '{"name":"Rex"}'
func generateCurlCommand(req *http.Request, body []byte) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}
	parts = append(parts, shellQuote(req.URL.String()))

	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", shellQuote(k+": "+v))
		}
	}

	if len(body) > 0 {
		parts = append(parts, "-d", shellQuote(string(body)))
	}

	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (t *Transport) logRequest(req *http.Request, body []byte) {
	if !t.cfg.Debug {
		return
	}

	event := t.cfg.Logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("host", req.URL.Host).
		Int("body_bytes", len(body))
	if t.cfg.GenerateCurl {
		event = event.Str("curl", generateCurlCommand(req, body))
	}
	event.Msg("HTTP request")
}

func (t *Transport) logResponse(req *http.Request, ex *exchange, duration time.Duration, err error) {
	if !t.cfg.Debug {
		return
	}

	if err != nil {
		t.cfg.Logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("duration_ms", duration).
			Msg("HTTP request failed")
		return
	}

	t.cfg.Logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", ex.status).
		Str("status_text", ex.statusText).
		Dur("duration_ms", duration).
		Int("content_length", len(ex.body)).
		Msg("HTTP response")
}
