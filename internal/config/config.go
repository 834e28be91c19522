package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Model timeout bounds accepted from the environment.
const (
	minModelTimeout = 60 * time.Second
	maxModelTimeout = 120 * time.Second
)

// Config holds runtime configuration values for the tutoring service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	LogLevel        string
	AllowedOrigins  string
	JWTSecret       string
	LessonsDir      string
	DatabaseDriver  string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	CacheTTL        time.Duration
	RateLimitMax    int
	AIProvider      string
	ModelBaseURL    string
	ModelName       string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	ModelTimeout    time.Duration
	ModelTemp       float64
	ModelMaxTokens  int
	MaxAttempts     int
	SpellingCutoff  float64
	AttemptTTL      time.Duration
	ChatHistorySize int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AuthEnabled reports whether progress routes require a bearer token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("XILO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Xilo Tutor API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("allowed.origins", "*")
	v.SetDefault("lessons.dir", "data/lessons")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:xilo.db?cache=shared")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("rate_limit.max", 120)
	v.SetDefault("ai.provider", "local")
	v.SetDefault("model.base_url", "http://127.0.0.1:8080/v1")
	v.SetDefault("model.timeout", "120s")
	v.SetDefault("model.temperature", 0.3)
	v.SetDefault("model.max_tokens", 100)
	v.SetDefault("eval.max_attempts", 3)
	v.SetDefault("eval.spelling_threshold", 0.80)
	v.SetDefault("attempt.ttl", "24h")
	v.SetDefault("chat.history_size", 3)

	cacheTTL, err := parseDuration(v, "cache.ttl")
	if err != nil {
		return Config{}, err
	}
	attemptTTL, err := parseDuration(v, "attempt.ttl")
	if err != nil {
		return Config{}, err
	}
	modelTimeout, err := parseDuration(v, "model.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		AllowedOrigins:  v.GetString("allowed.origins"),
		JWTSecret:       v.GetString("jwt.secret"),
		LessonsDir:      v.GetString("lessons.dir"),
		DatabaseDriver:  strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		CacheTTL:        cacheTTL,
		RateLimitMax:    v.GetInt("rate_limit.max"),
		AIProvider:      strings.ToLower(v.GetString("ai.provider")),
		ModelBaseURL:    v.GetString("model.base_url"),
		ModelName:       v.GetString("model.name"),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		ModelTimeout:    clampDuration(modelTimeout, minModelTimeout, maxModelTimeout),
		ModelTemp:       v.GetFloat64("model.temperature"),
		ModelMaxTokens:  v.GetInt("model.max_tokens"),
		MaxAttempts:     v.GetInt("eval.max_attempts"),
		SpellingCutoff:  v.GetFloat64("eval.spelling_threshold"),
		AttemptTTL:      attemptTTL,
		ChatHistorySize: v.GetInt("chat.history_size"),
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.LessonsDir == "" {
		return Config{}, fmt.Errorf("lessons directory must be provided")
	}

	if cfg.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("eval max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	if cfg.SpellingCutoff <= 0 || cfg.SpellingCutoff > 1 {
		return Config{}, fmt.Errorf("spelling threshold must be in (0,1], got %v", cfg.SpellingCutoff)
	}

	if cfg.ChatHistorySize <= 0 {
		cfg.ChatHistorySize = 3
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 120
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
