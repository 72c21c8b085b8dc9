// Package config loads the service configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snaptosheet/invoice-extract-service/internal/models"
)

const (
	DefaultPort          = 8080
	DefaultHost          = "0.0.0.0"
	DefaultLogLevel      = "info"
	DefaultProvider      = "openrouter"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	DefaultModel         = "amazon/nova-2-lite-v1:free"
	DefaultTitle         = "SnapToSheet"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultOllamaURL     = "http://localhost:11434/v1"
	DefaultTimeout       = 120 * time.Second
	DefaultMaxDimension  = 2000
)

// Default returns the configuration used when no file is present
func Default() *models.Config {
	return &models.Config{
		Port: DefaultPort,
		Host: DefaultHost,
		Log:  models.LogConfig{Level: DefaultLogLevel, Style: "json"},
		AI: models.AIConfig{
			DefaultProvider: DefaultProvider,
			OpenRouter: models.OpenAIConfig{
				BaseURL: DefaultOpenRouterURL,
				Model:   DefaultModel,
				Title:   DefaultTitle,
			},
			Gemini:  models.GeminiConfig{Model: DefaultGeminiModel},
			Ollama:  models.OllamaConfig{BaseURL: DefaultOllamaURL},
			Timeout: DefaultTimeout,
		},
		Image: models.ImageConfig{MaxDimension: DefaultMaxDimension},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*models.Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with environment variables
func applyEnv(cfg *models.Config, getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = p
	}
	if host := getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if env := firstEnv(getenv, "APP_ENV", "NODE_ENV"); env != "" {
		cfg.Environment = env
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if provider := getenv("AI_PROVIDER"); provider != "" {
		cfg.AI.DefaultProvider = provider
	}
	if apiKey := firstEnv(getenv, "OPENROUTER_API_KEY", "OPENROUTER_KEY"); apiKey != "" {
		cfg.AI.OpenRouter.APIKey = apiKey
	}
	if baseURL := getenv("OPENROUTER_BASE_URL"); baseURL != "" {
		cfg.AI.OpenRouter.BaseURL = baseURL
	}
	if model := getenv("DEFAULT_MODEL"); model != "" {
		cfg.AI.OpenRouter.Model = model
	}
	if apiKey := getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.AI.OpenAI.BaseURL = baseURL
	}
	if model := getenv("OPENAI_MODEL"); model != "" {
		cfg.AI.OpenAI.Model = model
	}
	if apiKey := getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.AI.Gemini.APIKey = apiKey
	}
	if model := getenv("GEMINI_MODEL"); model != "" {
		cfg.AI.Gemini.Model = model
	}
	if baseURL := getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.AI.Ollama.BaseURL = baseURL
	}
	if model := getenv("OLLAMA_MODEL"); model != "" {
		cfg.AI.Ollama.Model = model
	}
	if secret := getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if debug := getenv("ENABLE_DEBUG"); debug != "" {
		cfg.Debug = strings.EqualFold(debug, "true")
	}
	return nil
}

func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := getenv(k); v != "" {
			return v
		}
	}
	return ""
}
