package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Provider names accepted by New.
const (
	ProviderLocal     = "local"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDisabled  = "disabled"
)

// Config selects and configures a backend.
type Config struct {
	Provider        string
	BaseURL         string
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Timeout         time.Duration
	Logger          zerolog.Logger
}

// New returns the configured backend wrapped in the single-slot guard.
// A disabled provider yields a nil generator and no error.
func New(cfg Config) (*Serialized, error) {
	var (
		backend Generator
		err     error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderLocal, "":
		backend, err = NewOpenAIGenerator(OpenAIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: cfg.Logger})
	case ProviderOpenAI:
		backend, err = NewOpenAIGenerator(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: cfg.Logger})
	case ProviderAnthropic:
		backend, err = NewAnthropicGenerator(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.Model, Logger: cfg.Logger})
	case ProviderDisabled:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewSerialized(backend, cfg.Timeout, cfg.Logger), nil
}
