// Package llm provides text generation against hosted language models.
//
// The rest of lexisafe only needs one capability from a model: turn a prompt
// into text. Generator is that capability; Gemini and OpenAI-compatible
// endpoints implement it, and RateLimited wraps either to stay inside a quota.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotConfigured indicates the provider is missing required settings.
	ErrNotConfigured = errors.New("llm not configured")

	// ErrTransport wraps any failure talking to the provider: network, auth,
	// quota, or an unusable response.
	ErrTransport = errors.New("llm request failed")
)

// Options configures a single generation.
type Options struct {
	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// MaxTokens caps the response length. Zero leaves the provider default.
	MaxTokens int
}

// Generator produces text from a prompt. Each call issues exactly one request.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// ModelName returns the model used for generation.
	ModelName() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// ModelName implements Generator.
func (f GeneratorFunc) ModelName() string {
	return "func"
}

// Provider names a supported model host.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider          Provider
	Model             string
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// New builds the configured Generator, rate limited when RequestsPerMinute is set.
func New(ctx context.Context, cfg Config) (Generator, error) {
	var (
		gen Generator
		err error
	)

	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case "", ProviderGemini:
		gen, err = NewGemini(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case ProviderOpenAI:
		gen, err = NewOpenAI(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		gen = NewRateLimited(gen, cfg.RequestsPerMinute)
	}
	return gen, nil
}
