package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/snaptosheet/invoice-extract-service/internal/models"
)

// ErrUnsupportedProvider is returned for unknown provider names
var ErrUnsupportedProvider = errors.New("unsupported AI provider")

// Provider sends one chat completion to a remote model and returns the text
// of the first choice.
type Provider interface {
	Name() string
	DefaultModel() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single system + user exchange. ImageURL, when set,
// is a data URL attached to the user message.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	ImageURL    string
	MaxTokens   int
	Temperature *float32
}

// NewProvider creates the provider called name, falling back to the
// configured default. apiKey overrides the configured credential.
func NewProvider(cfg models.AIConfig, name, apiKey string) (Provider, error) {
	if name == "" {
		name = cfg.DefaultProvider
	}

	switch name {
	case "openrouter", "":
		c := cfg.OpenRouter
		c.APIKey = firstNonEmpty(apiKey, c.APIKey)
		if c.APIKey == "" {
			return nil, ErrMissingCredential
		}
		if c.BaseURL == "" {
			c.BaseURL = OpenRouterBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultModel
		}
		return NewOpenAIProvider("openrouter", c, cfg.Timeout), nil

	case "openai":
		c := cfg.OpenAI
		c.APIKey = firstNonEmpty(apiKey, c.APIKey)
		if c.APIKey == "" {
			return nil, ErrMissingCredential
		}
		return NewOpenAIProvider("openai", c, cfg.Timeout), nil

	case "ollama":
		// Ollama ignores the key but the client requires one
		return NewOpenAIProvider("ollama", models.OpenAIConfig{
			APIKey:  firstNonEmpty(apiKey, "ollama"),
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
		}, cfg.Timeout), nil

	case "gemini":
		key := firstNonEmpty(apiKey, cfg.Gemini.APIKey)
		if key == "" {
			return nil, ErrMissingCredential
		}
		return NewGeminiProvider(key, cfg.Gemini.Model, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
