// Package llm generates chat completions for answer synthesis.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"coursenav/internal/domain"
)

// DefaultChatModel is used when no answer model is configured.
const DefaultChatModel = "gpt-4o-mini"

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces an assistant reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// OpenAIChat calls the OpenAI chat completions API.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// ChatConfig configures the chat backend.
type ChatConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL overrides the API endpoint, for compatible providers.
	BaseURL string
	// Model defaults to DefaultChatModel.
	Model string
}

// NewOpenAIChat validates the configuration and returns a chat client.
func NewOpenAIChat(cfg ChatConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required for answer generation", domain.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(cc), model: cfg.Model}, nil
}

// Generate sends the conversation and returns the assistant's reply.
func (c *OpenAIChat) Generate(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
