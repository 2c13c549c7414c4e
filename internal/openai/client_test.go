package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffjury/diffjury/internal/config"
	"github.com/diffjury/diffjury/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClientWithKey(config.OpenAIConfig{
		BaseURL:     server.URL + "/v1",
		Model:       "gpt-3.5-turbo",
		MaxTokens:   1024,
		Temperature: 0.1,
		Timeout:     5 * time.Second,
	}, "test-key")
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestGenerateChat(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		var gotAuth string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-3.5-turbo", body["model"])

			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(completionResponse(`{"is_good": true, "issue": null}`)))
		})

		resp, err := client.GenerateChat(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("judge this diff")},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"is_good": true, "issue": null}`, resp.Content)
		assert.Equal(t, "Bearer test-key", gotAuth)
	})

	t.Run("unauthorized maps to auth failure", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
		})

		_, err := client.GenerateChat(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("judge this diff")},
		})
		assert.ErrorIs(t, err, llm.ErrAuthFailure)
	})

	t.Run("server error maps to provider error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "The server had an error", "type": "server_error"}}`))
		})

		_, err := client.GenerateChat(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("judge this diff")},
		})

		var pe *llm.ProviderError
		require.True(t, errors.As(err, &pe), "expected ProviderError, got %v", err)
		assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	})

	t.Run("unreachable server maps to transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close() // connection refused from here on

		client := NewClientWithKey(config.OpenAIConfig{
			BaseURL:   server.URL + "/v1",
			Model:     "gpt-3.5-turbo",
			MaxTokens: 1024,
			Timeout:   time.Second,
		}, "test-key")

		_, err := client.GenerateChat(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("judge this diff")},
		})
		assert.ErrorIs(t, err, llm.ErrTransport)
	})

	t.Run("empty choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"chatcmpl-test","object":"chat.completion","created":1700000000,"model":"gpt-3.5-turbo","choices":[]}`))
		})

		_, err := client.GenerateChat(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("judge this diff")},
		})
		assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	})
}
