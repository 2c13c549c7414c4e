package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	err := &ProviderError{StatusCode: 429, Message: "rate limit exceeded"}
	assert.Equal(t, "provider error (status 429): rate limit exceeded", err.Error())

	var pe *ProviderError
	wrapped := fmt.Errorf("calling judge: %w", err)
	assert.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, 429, pe.StatusCode)
}

func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("chat request: %w", ErrAuthFailure)
	assert.ErrorIs(t, wrapped, ErrAuthFailure)
	assert.NotErrorIs(t, wrapped, ErrTransport)
}

func TestMessageHelpers(t *testing.T) {
	m := NewUserMessage("hello")
	assert.Equal(t, "user", m.Role)
	assert.Equal(t, "hello", m.Content)

	s := NewSystemMessage("be terse")
	assert.Equal(t, "system", s.Role)
}
