package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewProviderErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{status: 400, transient: false},
		{status: 401, transient: false},
		{status: 403, transient: false},
		{status: 404, transient: false},
		{status: 429, transient: true},
		{status: 500, transient: true},
		{status: 502, transient: true},
		{status: 503, transient: true},
		{status: 504, transient: true},
		{status: 501, transient: false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			err := NewProviderError("gemini", tc.status, "boom")
			if err.Transient != tc.transient {
				t.Fatalf("Transient = %v, want %v", err.Transient, tc.transient)
			}
			if IsTransient(err) != tc.transient {
				t.Fatalf("IsTransient = %v, want %v", IsTransient(err), tc.transient)
			}
		})
	}
}

func TestProviderErrorUnwrapsToProviderFailure(t *testing.T) {
	err := fmt.Errorf("generate: %w", NewProviderError("gemini", 429, "rate limited"))
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatal("wrapped ProviderError does not match ErrProviderFailure")
	}
	if !IsTransient(err) {
		t.Fatal("wrapped transient error not detected")
	}
}

func TestIsTransientPlainError(t *testing.T) {
	if IsTransient(errors.New("boom")) {
		t.Fatal("plain error reported transient")
	}
}
