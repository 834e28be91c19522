package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// placeholderKey is sent to local inference servers that ignore authentication.
const placeholderKey = "sk-no-key-required"

// OpenAIConfig defines configuration options for OpenAI compatible backends.
// BaseURL points the client at a local llama-server or Ollama instance.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  zerolog.Logger
}

// OpenAIGenerator implements Generator against the chat completion API.
type OpenAIGenerator struct {
	client   *openai.Client
	model    string
	provider string
	logger   zerolog.Logger
}

// NewOpenAIGenerator builds a generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai api key or base url is required")
	}

	provider := "openai"
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = placeholderKey
		provider = "local"
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(config),
		model:    cfg.Model,
		provider: provider,
		logger:   cfg.Logger.With().Str("component", "ai_"+provider).Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate sends a single chat completion request.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, opts))
	if err != nil {
		return "", unavailable(g.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", unavailable(g.provider, fmt.Errorf("no choices returned"))
	}

	g.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion finished")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateStream emits content deltas as they arrive.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, prompt string, opts Options, onChunk func(string) error) (string, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt, opts))
	if err != nil {
		return "", unavailable(g.provider, err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return builder.String(), unavailable(g.provider, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if onChunk != nil {
			if err := onChunk(delta); err != nil {
				return builder.String(), err
			}
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// Ping lists models to confirm the backend answers.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return unavailable(g.provider, err)
	}
	return nil
}

func (g *OpenAIGenerator) request(prompt string, opts Options) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(opts.History)+2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	for _, msg := range opts.History {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.Stop,
		Messages:    messages,
	}
}
