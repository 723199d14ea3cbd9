package agent

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Completer via the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat  ChatClient
	model string
}

// NewOpenAIClient wraps an existing chat client (useful for testing).
func NewOpenAIClient(chat ChatClient, model string) (*OpenAIClient, error) {
	if chat == nil {
		return nil, errors.New("chat client is required")
	}
	if model == "" {
		return nil, errors.New("model is required")
	}
	return &OpenAIClient{chat: chat, model: model}, nil
}

// NewOpenAIClientFromAPIKey constructs a client using the default go-openai
// HTTP client.
func NewOpenAIClientFromAPIKey(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	return NewOpenAIClient(openai.NewClient(apiKey), model)
}

// Complete renders one chat completion. Transport and provider failures are
// mapped onto the agent error taxonomy.
func (c *OpenAIClient) Complete(ctx context.Context, _ Persona, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages are required")
	}
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: converted,
	})
	if err != nil {
		return "", mapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

func mapProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
