// Package openai adapts the OpenAI chat completion API to the llm.Client
// interface. Each call is a single attempt; provider failures are mapped onto
// the llm error taxonomy so the analysis pipeline can decide whether to abort
// the run or record a per-file issue.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/diffjury/diffjury/internal/config"
	"github.com/diffjury/diffjury/internal/llm"
)

// Client wraps the OpenAI SDK client
type Client struct {
	api         *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewClient creates a client from the application configuration
func NewClient(cfg config.OpenAIConfig) *Client {
	return newClient(cfg, cfg.APIKey)
}

// NewClientWithKey creates a client using the given API key instead of the
// configured one. Callers across the C boundary pass the key per request;
// it is never stored in the global configuration or written to logs.
func NewClientWithKey(cfg config.OpenAIConfig, apiKey string) *Client {
	return newClient(cfg, apiKey)
}

func newClient(cfg config.OpenAIConfig, apiKey string) *Client {
	clientCfg := goopenai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         goopenai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

// GenerateChat implements llm.Client
func (c *Client) GenerateChat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

// mapError translates SDK errors into the llm error taxonomy
func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", llm.ErrAuthFailure, apiErr.Message)
		default:
			return &llm.ProviderError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", llm.ErrAuthFailure, reqErr.Err)
		default:
			return &llm.ProviderError{
				StatusCode: reqErr.HTTPStatusCode,
				Message:    fmt.Sprintf("%v", reqErr.Err),
			}
		}
	}

	// No HTTP response at all: connection refused, timeout, DNS failure
	return fmt.Errorf("%w: %v", llm.ErrTransport, err)
}
