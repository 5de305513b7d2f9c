package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/jeanhaley32/go-openai-client"
	"go.uber.org/zap"

	"github.com/jeanhaley/personal-chat-bot/ai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4"

// Config is an alias for the library's Config to maintain API compatibility
type Config = openai.Config

// OpenAIBackend adapts the OpenAI chat completions client to ai.Backend.
type OpenAIBackend struct {
	client openai.Backend
	model  string
	logger *zap.Logger
}

// NewOpenAIBackend creates a new OpenAI backend instance using the library
func NewOpenAIBackend(config Config, logger *zap.Logger) *OpenAIBackend {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return newBackend(openai.NewClient(config), config.Model, logger)
}

// NewMockBackend wraps the library's offline mock client. Useful for trying
// the OpenAI code path without API costs.
func NewMockBackend(logger *zap.Logger) *OpenAIBackend {
	return newBackend(openai.NewMockBackend(), "mock-model-v1", logger)
}

func newBackend(client openai.Backend, model string, logger *zap.Logger) *OpenAIBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIBackend{
		client: client,
		model:  model,
		logger: logger.Named("openai"),
	}
}

// Name returns the name of the underlying client
func (b *OpenAIBackend) Name() string {
	return fmt.Sprintf("openai:%s", b.client.Name())
}

// IsAvailable checks if the backend is currently available
func (b *OpenAIBackend) IsAvailable(ctx context.Context) bool {
	return b.client.IsAvailable(ctx)
}

// Complete sends the system instruction and input as a two-message chat
func (b *OpenAIBackend) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	messages := make([]openai.Message, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.Message{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, openai.Message{Role: "user", Content: req.Input})

	response, err := b.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		b.logger.Warn("chat completion failed", zap.String("model", model), zap.Error(err))
		return nil, ai.Failure(b.Name(), err)
	}

	if len(response.Choices) == 0 {
		return nil, ai.Failure(b.Name(), fmt.Errorf("no response choices returned"))
	}

	text := response.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, ai.Failure(b.Name(), ai.ErrEmptyReply)
	}

	created := time.Now()
	if response.Created > 0 {
		created = time.Unix(response.Created, 0)
	}

	return &ai.CompletionResponse{
		Text:    text,
		Model:   response.Model,
		Created: created,
		Usage: ai.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}, nil
}
