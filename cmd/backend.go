package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeanhaley/personal-chat-bot/ai"
	"github.com/jeanhaley/personal-chat-bot/backends/gemini"
	"github.com/jeanhaley/personal-chat-bot/backends/mock"
	"github.com/jeanhaley/personal-chat-bot/backends/openai"
	"github.com/jeanhaley/personal-chat-bot/config"
)

// newBackend initializes the named backend from the configuration
func newBackend(ctx context.Context, cfg *config.Config, name string, logger *zap.Logger) (ai.Backend, error) {
	switch name {
	case config.BackendGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured - set GEMINI_API_KEY")
		}
		backend, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Gemini.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case config.BackendOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured - set OPENAI_API_KEY")
		}
		return openai.NewOpenAIBackend(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, logger), nil

	case config.BackendOpenAIMock:
		return openai.NewMockBackend(logger), nil

	case config.BackendMock:
		return mock.NewMockBackend(), nil
	}

	return nil, fmt.Errorf("unknown backend: %s", name)
}
