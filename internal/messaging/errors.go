package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned by New when credentials are missing.
var ErrNotConfigured = errors.New("whatsapp client not configured")

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendError is a non-2xx response from the Cloud API.
type SendError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *SendError) Error() string {
	if e == nil {
		return "whatsapp: <nil error>"
	}
	if e.Message != "" {
		if e.Code != 0 {
			return fmt.Sprintf("whatsapp http %d: %s (code=%d)", e.StatusCode, e.Message, e.Code)
		}
		return fmt.Sprintf("whatsapp http %d: %s", e.StatusCode, e.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return fmt.Sprintf("whatsapp http %d: %s", e.StatusCode, msg)
}

// Temporary reports whether retrying later could succeed.
func (e *SendError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// countsAsSuccess tells the circuit breaker which errors are the caller's
// fault rather than the API's. A rejected recipient must not open the circuit.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *SendError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
