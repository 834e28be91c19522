package ai

import (
	"context"
	"errors"
	"fmt"
)

// Roles used in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable is matched by every failure of the model backend: timeouts,
// refused connections, crashed processes and malformed replies.
var ErrUnavailable = errors.New("language model unavailable")

// Message is one prior turn passed to the model as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single generation request.
type Options struct {
	System      string
	History     []Message
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Generator is the language-model capability: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Model() string
}

// StreamGenerator is implemented by backends that can emit partial output.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, prompt string, opts Options, onChunk func(string) error) (string, error)
}

// Pinger is implemented by backends that expose a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UnavailableError carries the provider specific cause of a failed call.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, ErrUnavailable.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, ErrUnavailable.Error(), e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports every UnavailableError as ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Stream generates through onChunk when the backend supports it and falls back
// to a single chunk holding the full reply otherwise.
func Stream(ctx context.Context, g Generator, prompt string, opts Options, onChunk func(string) error) (string, error) {
	if sg, ok := g.(StreamGenerator); ok {
		return sg.GenerateStream(ctx, prompt, opts, onChunk)
	}

	text, err := g.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		if err := onChunk(text); err != nil {
			return text, err
		}
	}
	return text, nil
}

func unavailable(provider string, err error) error {
	if err == nil {
		return &UnavailableError{Provider: provider}
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Provider: provider, Err: err}
}
