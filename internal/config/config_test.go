// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ProviderOllama, cfg.Model.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Model.Host)
	assert.Equal(t, "qwen2.5-vl:3b", cfg.Model.VisionModel)
	assert.Equal(t, 4096, cfg.Model.NumCtx)
	assert.Equal(t, 0.1, cfg.Model.Temperature)
	assert.Equal(t, "https://www.google.com", cfg.Agent.StartURL)
	assert.Equal(t, time.Second, cfg.Agent.SettleTime)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 70, cfg.Browser.ScreenshotQuality)
	assert.Equal(t, 20, cfg.Assistant.MaxHistory)
	assert.Equal(t, 15*time.Minute, cfg.Briefing.CacheTTL)
	assert.Equal(t, 5, cfg.Search.Workers)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Database.Path = "/tmp/history.db"
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Provider = "openai"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model.provider must be ollama or gemini")
	})

	t.Run("gemini without api key", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Provider = ProviderGemini
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POCKETD_GEMINI_API_KEY")
	})

	t.Run("gemini with api key", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Provider = ProviderGemini
		cfg.Model.APIKey = "test-key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Host = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model.host is required")
	})

	t.Run("history window too small", func(t *testing.T) {
		cfg := valid()
		cfg.Assistant.MaxHistory = 1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "assistant.max_history must be at least 2")
	})

	t.Run("screenshot quality bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Browser.ScreenshotQuality = 0
		assert.Error(t, cfg.Validate())

		cfg.Browser.ScreenshotQuality = 101
		assert.Error(t, cfg.Validate())

		cfg.Browser.ScreenshotQuality = 100
		assert.NoError(t, cfg.Validate())
	})

	t.Run("auth requires secret", func(t *testing.T) {
		cfg := valid()
		cfg.Server.AuthEnabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POCKETD_JWT_SECRET")

		cfg.Server.JWTSecret = "s3cret"
		assert.NoError(t, cfg.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("successful load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
model:
  chat_model: "llama3.2:3b"
  temperature: 0.2
agent:
  start_url: "https://duckduckgo.com"
database:
  path: "/tmp/pocketd-test.db"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "llama3.2:3b", cfg.Model.ChatModel)
		assert.Equal(t, 0.2, cfg.Model.Temperature)
		assert.Equal(t, "https://duckduckgo.com", cfg.Agent.StartURL)
		// Check a default value was also loaded.
		assert.Equal(t, "info", cfg.Logger.Level)
		// The explicit database path survives resolution.
		assert.Equal(t, "/tmp/pocketd-test.db", cfg.Database.Path)
	})

	t.Run("validation failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("search.workers", 0) // Intentionally invalid
		v.Set("database.path", "/tmp/pocketd-test.db")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "search.workers must be a positive integer")
	})

	t.Run("environment variable binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("database.path", "/tmp/pocketd-test.db")
		v.Set("model.provider", "gemini")

		testKey := "AIza-env-var-key-456"
		t.Setenv("POCKETD_GEMINI_API_KEY", testKey)
		testSecret := "env-jwt-secret"
		t.Setenv("POCKETD_JWT_SECRET", testSecret)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, testKey, cfg.Model.APIKey)
		assert.Equal(t, testSecret, cfg.Server.JWTSecret)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/pocketd.log
search:
  timeout: 5s
speech:
  enabled: true
  voice_model: en_GB-alba-medium.onnx
server:
  allow_origins: ["http://localhost:5173"]
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/pocketd.log", cfg.Logger.LogFile)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, "en_GB-alba-medium.onnx", cfg.Speech.VoiceModel)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowOrigins)
}
