package llm

import (
	"context"
	"fmt"
)

// Provider generates completions.
type Provider interface {
	// Complete sends req and returns the model's answer. Errors include
	// transport failures, non-success responses and empty answers.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

// Complete calls f(ctx, req).
func (f ProviderFunc) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

// APIError is returned when the provider answers with a non-success status.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("llm API returned status %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

// Retryable reports whether the status suggests a later retry could succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
