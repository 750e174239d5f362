package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized matches any *AuthError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Call outcomes reported to an Observer.
const (
	OutcomeOK           = "ok"
	OutcomeConnection   = "connection_error"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRequest      = "request_error"
)

// ConnectionError means no usable response reached the client.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "connection error: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError is a 401 from the backend. The credential has already been
// discarded by the time a caller sees it.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string        { return "unauthorized: " + e.Message }
func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// RequestError is any other non-2xx answer.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// IsConnection reports whether err is a transport failure.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Message picks the text to show for a failed call: the backend's message for
// request and auth errors, fallback otherwise.
func Message(err error, fallback string) string {
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

// Outcome classifies err for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case IsConnection(err):
		return OutcomeConnection
	default:
		return OutcomeRequest
	}
}

// errorMessage extracts the "message" field of a JSON error body.
func errorMessage(body []byte, fallback string) string {
	var eb struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &eb); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(eb.Message); msg != "" {
		return msg
	}
	return fallback
}
