package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrMalformedJob    = errors.New("malformed job payload")
	ErrProviderFailure = errors.New("provider failure")
)

// ProviderError carries the retryability classification of an upstream
// provider failure. Throttling and overload class errors are transient and
// worth backing off on; everything else fails fast.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrProviderFailure }

// NewProviderError classifies an HTTP-style status into transient or
// permanent. 429 and the 5xx overload family retry; 4xx fail fast.
func NewProviderError(provider string, status int, message string) *ProviderError {
	transient := status == 429 || status == 500 || status == 502 || status == 503 || status == 504
	return &ProviderError{Provider: provider, Status: status, Message: message, Transient: transient}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
