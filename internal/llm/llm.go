// Package llm defines the provider-agnostic chat interface used by the
// analysis pipeline, together with the error taxonomy callers rely on to
// decide between aborting a run and recording a per-file issue.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to generate a chat completion
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// Client is the interface a chat provider must implement. Implementations
// perform exactly one attempt per call; retry policy belongs to the caller.
type Client interface {
	GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

var (
	// ErrAuthFailure indicates the provider rejected the credentials.
	// Retrying with the same key cannot succeed, so the whole run aborts.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrTransport indicates the request never produced a provider response
	// (connection refused, timeout, DNS failure)
	ErrTransport = errors.New("transport failure")

	// ErrEmptyResponse indicates the provider returned no choices
	ErrEmptyResponse = errors.New("empty response from provider")
)

// ProviderError represents a non-auth error response from the provider,
// such as a rate limit or a server-side failure.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// NewUserMessage creates a user-role message
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewSystemMessage creates a system-role message
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}
