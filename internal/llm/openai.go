// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/coursegen/pkg/types"
)

// OpenAIClient implements Client on the openai-go chat completions API.
// The base URL is configurable so self-hosted OpenAI-compatible gateways
// and test servers can stand in for the real provider.
type OpenAIClient struct {
	opts []option.RequestOption
}

// NewOpenAIClient validates config and builds a client. A missing API key
// is a fatal configuration error: the pipeline refuses to start without it.
func NewOpenAIClient(cfg types.AIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("model provider api key missing; provide ai.api_key or .secrets/openai-api-key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0), // retry policy lives in Retrier
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{opts: opts}, nil
}

// Complete issues a single chat completion and returns the first choice.
// Provider 429 and 402 responses are wrapped in ErrRateLimited and
// ErrQuotaExhausted respectively.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
	})
	if err != nil {
		return "", classifyProviderError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyProviderError maps provider HTTP statuses onto the error kinds
// the retry policy distinguishes.
func classifyProviderError(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return err
	}
	switch apierr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	default:
		return err
	}
}
