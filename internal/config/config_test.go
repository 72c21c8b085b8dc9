package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the variables Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "HOST", "APP_ENV", "NODE_ENV", "LOG_LEVEL", "AI_PROVIDER", "DEFAULT_MODEL", "GEMINI_MODEL", "OPENROUTER_BASE_URL"} {
		t.Setenv(k, "")
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultProvider, cfg.AI.DefaultProvider)
	assert.Equal(t, DefaultModel, cfg.AI.OpenRouter.Model)
	assert.Equal(t, DefaultTimeout, cfg.AI.Timeout)
	assert.Equal(t, DefaultMaxDimension, cfg.Image.MaxDimension)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
environment: production
log:
  level: debug
  style: console
ai:
  default_provider: gemini
  gemini:
    model: gemini-1.5-pro
  timeout: 30s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Style)
	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, DefaultOpenRouterURL, cfg.AI.OpenRouter.BaseURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envMap(map[string]string{
		"PORT":           "3000",
		"NODE_ENV":       "production",
		"OPENROUTER_KEY": "sk-or-legacy",
		"DEFAULT_MODEL":  "google/gemini-flash",
		"OPENAI_API_KEY": "sk-openai",
		"GEMINI_API_KEY": "gm-key",
		"OLLAMA_MODEL":   "llava",
		"JWT_SECRET":     "s3cret",
		"ENABLE_DEBUG":   "TRUE",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "sk-or-legacy", cfg.AI.OpenRouter.APIKey)
	assert.Equal(t, "google/gemini-flash", cfg.AI.OpenRouter.Model)
	assert.Equal(t, "sk-openai", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, "gm-key", cfg.AI.Gemini.APIKey)
	assert.Equal(t, "llava", cfg.AI.Ollama.Model)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Debug)
}

func TestApplyEnv_PrimaryKeyWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, envMap(map[string]string{
		"OPENROUTER_API_KEY": "primary",
		"OPENROUTER_KEY":     "legacy",
		"APP_ENV":            "staging",
		"NODE_ENV":           "production",
	})))
	assert.Equal(t, "primary", cfg.AI.OpenRouter.APIKey)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	err := applyEnv(Default(), envMap(map[string]string{"PORT": "eighty"}))
	assert.ErrorContains(t, err, "invalid PORT")
}
