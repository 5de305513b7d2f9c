// Package gemini implements the completion backend on top of Google's
// Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jeanhaley/personal-chat-bot/ai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds Gemini-specific settings
type Config struct {
	APIKey     string
	BaseURL    string // optional endpoint override
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Backend sends single-turn generateContent requests.
type Backend struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Gemini backend. The client is built once and reused.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Backend{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("gemini"),
	}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return fmt.Sprintf("gemini:%s", b.model)
}

// IsAvailable reports whether the client was configured. It does not call
// the API.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	return b.client != nil && ctx.Err() == nil
}

// Complete generates a full reply for req.Input.
func (b *Backend) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}

	start := time.Now()
	result, err := b.client.Models.GenerateContent(ctx, model, genai.Text(req.Input), config)
	if err != nil {
		b.logger.Warn("generateContent failed", zap.String("model", model), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, ai.Failure(b.Name(), err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ai.Failure(b.Name(), ai.ErrEmptyReply)
	}

	resp := &ai.CompletionResponse{
		Text:    text,
		Model:   model,
		Created: time.Now(),
	}
	if result.ModelVersion != "" {
		resp.Model = result.ModelVersion
	}
	if !result.CreateTime.IsZero() {
		resp.Created = result.CreateTime
	}
	if usage := result.UsageMetadata; usage != nil {
		resp.Usage = ai.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}

	b.logger.Debug("generateContent finished",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp, nil
}
