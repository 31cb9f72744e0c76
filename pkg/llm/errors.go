package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuth              = errors.New("llm authentication failed")
	ErrRateLimited       = errors.New("llm rate limited")
	ErrStreamInterrupted = errors.New("llm stream interrupted")
)

// APIError is a non-success HTTP response from the provider. It unwraps to
// ErrAuth or ErrRateLimited where the status says so.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
