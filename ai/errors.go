package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedEmbedding indicates the provider returned an empty, non-finite or mis-sized vector.
	ErrMalformedEmbedding = errors.New("malformed embedding")

	// ErrRateLimited indicates the provider rejected the call with HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen indicates the gateway is failing fast after repeated provider errors.
	ErrCircuitOpen = errors.New("embedding provider circuit open")

	// ErrTextTooLong indicates the input exceeds the provider limit.
	ErrTextTooLong = errors.New("text exceeds maximum length")

	// ErrEmptyText indicates there is nothing to embed.
	ErrEmptyText = errors.New("text cannot be empty")
)

// ProviderError reports a failed call to the embedding provider.
type ProviderError struct {
	Op         string
	StatusCode int  // HTTP status when known, 0 otherwise
	Transient  bool // safe to retry with backoff
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorFromStatus maps an HTTP status code to a ProviderError.
// 408, 429 and 5xx are transient; other 4xx are permanent.
func ErrorFromStatus(op string, status int, body string) *ProviderError {
	pe := &ProviderError{Op: op, StatusCode: status}
	switch {
	case status == http.StatusTooManyRequests:
		pe.Transient = true
		pe.Err = ErrRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		pe.Transient = true
		pe.Err = fmt.Errorf("%s", http.StatusText(status))
	default:
		pe.Err = fmt.Errorf("%s", http.StatusText(status))
	}
	if body != "" {
		pe.Err = fmt.Errorf("%w: %s", pe.Err, body)
	}
	return pe
}

// IsTransient reports whether err is worth retrying.
// Errors that are not a *ProviderError are treated as transport failures and are transient,
// except caller cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return true
}
