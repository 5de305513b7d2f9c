package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCompletionFailed wraps every failure a backend reports. Callers only
	// distinguish success from failure.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrEmptyReply is returned when the service answers without any text.
	// The chat controller treats it like any other failure and shows the
	// error reply instead of revealing an empty message.
	ErrEmptyReply = errors.New("completion returned an empty reply")
)

// CompletionRequest is a single-turn request to the completion service
type CompletionRequest struct {
	Model             string   `json:"model,omitempty"`       // Model override; empty uses the backend's model
	SystemInstruction string   `json:"system_instruction"`    // Fixed instruction sent with every request
	Input             string   `json:"input"`                 // The user's text
	MaxTokens         *int     `json:"max_tokens,omitempty"`  // Maximum tokens in response
	Temperature       *float64 `json:"temperature,omitempty"` // Response randomness (0.0-2.0)
}

// Validate reports whether the request can be sent to a backend
func (r CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("input is required")
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be greater than 0")
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse carries the full reply text
type CompletionResponse struct {
	Text    string    `json:"text"`
	Model   string    `json:"model"`
	Created time.Time `json:"created"`
	Usage   Usage     `json:"usage"`
}

// Backend defines the interface that all completion backends must implement
type Backend interface {
	// Name returns the name/identifier of this backend
	Name() string

	// Complete sends the request and returns the full reply. Any failure is
	// wrapped with ErrCompletionFailed.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the backend is currently available
	IsAvailable(ctx context.Context) bool
}

// Failure wraps err with ErrCompletionFailed unless it already is one.
func Failure(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCompletionFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCompletionFailed, backend, err)
}
