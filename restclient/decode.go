package restclient

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Decode converts a parsed response body into T.
//
// Bodies that already are a T are returned directly. Raw JSON ([]byte,
// json.RawMessage) is unmarshaled; anything else (maps and slices produced
// by a transport's JSON parsing) is round-tripped through JSON.
func Decode[T any](body any) (T, error) {
	var out T

	switch b := body.(type) {
	case T:
		return b, nil
	case nil:
		return out, nil
	case json.RawMessage:
		if err := json.Unmarshal(b, &out); err != nil {
			return out, fmt.Errorf("restclient: decode response: %w", err)
		}
		return out, nil
	case []byte:
		if err := json.Unmarshal(b, &out); err != nil {
			return out, fmt.Errorf("restclient: decode response: %w", err)
		}
		return out, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("restclient: decode response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("restclient: decode response: %w", err)
	}
	return out, nil
}
