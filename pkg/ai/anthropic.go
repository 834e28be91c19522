package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// AnthropicConfig configures the Anthropic messages backend.
type AnthropicConfig struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// AnthropicGenerator implements Generator using the Anthropic SDK.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
	logger zerolog.Logger
}

// NewAnthropicGenerator constructs a generator backed by the messages API.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	return &AnthropicGenerator{
		client: &client,
		model:  cfg.Model,
		logger: cfg.Logger.With().Str("component", "ai_anthropic").Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (g *AnthropicGenerator) Model() string {
	return g.model
}

// Generate sends one messages request and returns the first text block.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages:  anthropicMessages(opts.History, prompt),
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			g.logger.Warn().Int("status", apiErr.StatusCode).Msg("anthropic request rejected")
		}
		return "", unavailable("anthropic", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", unavailable("anthropic", fmt.Errorf("no text content in response"))
}

func anthropicMessages(history []Message, prompt string) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}
	return append(out, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)},
	})
}
