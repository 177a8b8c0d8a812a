package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork wraps failures where no response was received.
	ErrNetwork = errors.New("network error")
	// ErrMalformed wraps a 2xx catalog response that could not be decoded.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response. Detail is the server's {"detail": ...}
// message, or empty when the body carried none.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server responded %d", e.Code)
	}
	return fmt.Sprintf("server responded %d: %s", e.Code, e.Detail)
}

// Detail extracts the server-provided detail from err, if any.
func Detail(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Detail
	}
	return ""
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// parseDetail reads {"detail": "..."} leniently. Anything else, including a
// FastAPI validation list, yields "".
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
