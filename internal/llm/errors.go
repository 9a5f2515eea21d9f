package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrOverloaded is returned when the completion service reports transient
	// capacity exhaustion and all retry attempts have been spent. Callers
	// should surface a "try again shortly" message.
	ErrOverloaded = errors.New("completion service is overloaded")

	// ErrAuth is returned when the service rejects the configured credentials.
	// It is fatal and never retried.
	ErrAuth = errors.New("completion service rejected credentials")
)

// APIError carries the upstream error detail for non-overload failures so the
// caller can distinguish a permanent upstream problem from network trouble.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error (status %d, type %q): %s", e.StatusCode, e.Type, e.Message)
}
