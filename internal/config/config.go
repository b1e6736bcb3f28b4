// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	Speech    SpeechConfig    `mapstructure:"speech" yaml:"speech"`
	Home      HomeConfig      `mapstructure:"home" yaml:"home"`
	Briefing  BriefingConfig  `mapstructure:"briefing" yaml:"briefing"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig locates the conversation history database.
type DatabaseConfig struct {
	// Path is the SQLite file location. Empty means <data dir>/history.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// ModelProvider identifies a model backend.
type ModelProvider string

const (
	ProviderOllama ModelProvider = "ollama"
	ProviderGemini ModelProvider = "gemini"
)

// ModelConfig describes the local and remote model backends.
type ModelConfig struct {
	// Provider selects the backend for both chat and the vision agent.
	Provider ModelProvider `mapstructure:"provider" yaml:"provider"`
	// Host is the Ollama server base URL.
	Host string `mapstructure:"host" yaml:"host"`
	// ChatModel answers conversational requests.
	ChatModel string `mapstructure:"chat_model" yaml:"chat_model"`
	// VisionModel drives the browser agent. Must accept images.
	VisionModel string `mapstructure:"vision_model" yaml:"vision_model"`
	// APIKey authenticates against remote providers. Loaded from the
	// environment, never from the config file.
	APIKey string `mapstructure:"api_key" yaml:"-"`
	// Endpoint overrides the Gemini API base URL, for gateways and tests.
	// Empty uses the hosted endpoint.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APITimeout bounds a single non-streaming request.
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// KeepAlive asks the server to keep the model resident after warmup.
	KeepAlive string `mapstructure:"keep_alive" yaml:"keep_alive"`
	// NumCtx is the agent's context window, in tokens.
	NumCtx int `mapstructure:"num_ctx" yaml:"num_ctx"`
	// Temperature for agent turns. Low values keep tool calls stable.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// AgentConfig tunes the perception-action loop.
type AgentConfig struct {
	// StartURL is the page the browser opens before the first observation.
	StartURL string `mapstructure:"start_url" yaml:"start_url"`
	// SettleTime is the pause after each action before the next screenshot.
	SettleTime time.Duration `mapstructure:"settle_time" yaml:"settle_time"`
	// ScreenshotRetryWait is the pause before retrying an empty capture.
	ScreenshotRetryWait time.Duration `mapstructure:"screenshot_retry_wait" yaml:"screenshot_retry_wait"`
	// MaxSteps bounds the loop. Zero means run until terminate or stop.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
}

// BrowserConfig holds settings for the agent's browser session.
type BrowserConfig struct {
	// Headless hides the browser window. The agent normally runs visible so
	// the user can watch it work.
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Debug    bool     `mapstructure:"debug" yaml:"debug"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// ScreenshotQuality is the JPEG quality for captures, 1-100.
	ScreenshotQuality int `mapstructure:"screenshot_quality" yaml:"screenshot_quality"`
}

// AssistantConfig tunes the conversational pipeline.
type AssistantConfig struct {
	// MaxHistory caps the messages sent per request. When exceeded, the
	// system prompt is kept and older turns are dropped.
	MaxHistory int `mapstructure:"max_history" yaml:"max_history"`
	// Think enables the model's reasoning phase for chat requests.
	Think bool `mapstructure:"think" yaml:"think"`
}

// SpeechConfig configures text to speech output.
type SpeechConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// PiperPath is the piper executable. Resolved via PATH when bare.
	PiperPath string `mapstructure:"piper_path" yaml:"piper_path"`
	// VoiceModel is the .onnx voice file passed to piper.
	VoiceModel string `mapstructure:"voice_model" yaml:"voice_model"`
	// SampleRate of the raw PCM piper emits.
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// HomeConfig configures smart home discovery and control.
type HomeConfig struct {
	// BroadcastAddr is the UDP discovery target.
	BroadcastAddr string `mapstructure:"broadcast_addr" yaml:"broadcast_addr"`
	// DiscoveryTimeout bounds a discovery sweep.
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout" yaml:"discovery_timeout"`
}

// BriefingConfig tunes the news briefing.
type BriefingConfig struct {
	// CacheTTL is how long a fetched briefing stays fresh.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// CurateTemperature is the sampling temperature for story curation.
	CurateTemperature float64 `mapstructure:"curate_temperature" yaml:"curate_temperature"`
}

// SearchConfig tunes web search and scraping.
type SearchConfig struct {
	// MaxResults caps results per query.
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
	// Region is the DuckDuckGo region code. "wt-wt" means worldwide.
	Region string `mapstructure:"region" yaml:"region"`
	// Workers caps concurrent page scrapes.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// TruncateAt trims scraped page text to this many characters.
	TruncateAt int `mapstructure:"truncate_at" yaml:"truncate_at"`
	// Timeout bounds one page fetch.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig configures the local API server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// AuthEnabled requires a bearer token on API requests.
	AuthEnabled bool `mapstructure:"auth_enabled" yaml:"auth_enabled"`
	// JWTSecret signs and verifies tokens. Loaded from the environment.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"-"`
	// AllowOrigins lists CORS origins for browser-based clients.
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataDir returns the directory for application state, creating it if needed.
func DataDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".pocketd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pocketd")
	v.SetDefault("logger.log_file", "pocketd.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "red")
	v.SetDefault("logger.colors.panic", "red")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Model --
	v.SetDefault("model.provider", "ollama")
	v.SetDefault("model.host", "http://localhost:11434")
	v.SetDefault("model.chat_model", "qwen3:4b")
	v.SetDefault("model.vision_model", "qwen2.5-vl:3b")
	v.SetDefault("model.api_timeout", "120s")
	v.SetDefault("model.keep_alive", "30m")
	v.SetDefault("model.num_ctx", 4096)
	v.SetDefault("model.temperature", 0.1)

	// -- Agent --
	v.SetDefault("agent.start_url", "https://www.google.com")
	v.SetDefault("agent.settle_time", "1s")
	v.SetDefault("agent.screenshot_retry_wait", "1s")
	v.SetDefault("agent.max_steps", 0)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.screenshot_quality", 70)

	// -- Assistant --
	v.SetDefault("assistant.max_history", 20)
	v.SetDefault("assistant.think", true)

	// -- Speech --
	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.piper_path", "piper")
	v.SetDefault("speech.voice_model", "en_US-lessac-medium.onnx")
	v.SetDefault("speech.sample_rate", 22050)

	// -- Home --
	v.SetDefault("home.broadcast_addr", "255.255.255.255:9999")
	v.SetDefault("home.discovery_timeout", "5s")

	// -- Briefing --
	v.SetDefault("briefing.cache_ttl", "15m")
	v.SetDefault("briefing.curate_temperature", 0.3)

	// -- Search --
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.region", "wt-wt")
	v.SetDefault("search.workers", 5)
	v.SetDefault("search.truncate_at", 4000)
	v.SetDefault("search.timeout", "15s")

	// -- Server --
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.auth_enabled", false)
	v.SetDefault("server.allow_origins", []string{"*"})
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("model.api_key", "POCKETD_GEMINI_API_KEY")
	v.BindEnv("server.jwt_secret", "POCKETD_JWT_SECRET")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Database.Path == "" {
		dir, err := DataDir()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = filepath.Join(dir, "history.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("model.provider must be ollama or gemini, got %q", c.Model.Provider)
	}
	if c.Model.Provider == ProviderGemini && c.Model.APIKey == "" {
		return fmt.Errorf("model provider gemini requires POCKETD_GEMINI_API_KEY")
	}
	if c.Model.Host == "" {
		return fmt.Errorf("model.host is required")
	}
	if c.Assistant.MaxHistory < 2 {
		return fmt.Errorf("assistant.max_history must be at least 2")
	}
	if c.Browser.ScreenshotQuality < 1 || c.Browser.ScreenshotQuality > 100 {
		return fmt.Errorf("browser.screenshot_quality must be between 1 and 100")
	}
	if c.Search.Workers <= 0 {
		return fmt.Errorf("search.workers must be a positive integer")
	}
	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("server auth requires POCKETD_JWT_SECRET")
	}
	return nil
}
