package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderXAI       = "xai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	XAI           XAIConfig           `yaml:"xai"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Weather       WeatherConfig       `yaml:"weather"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Server        ServerConfig        `yaml:"server"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Journal       JournalConfig       `yaml:"journal"`
	Log           LogConfig           `yaml:"log"`
}

type LLMConfig struct {
	Provider   string        `yaml:"provider"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

type XAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// OpenAIConfig configures Whisper transcription. An empty key disables audio.
type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

type WeatherConfig struct {
	APIKey   string        `yaml:"api_key"`
	City     string        `yaml:"city"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Enabled reports whether actions go to a real Home Assistant instance.
func (c HomeAssistantConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

type SchedulerConfig struct {
	Workers    int `yaml:"workers"`
	MaxPending int `yaml:"max_pending"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	RateLimit  int           `yaml:"rate_limit"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	// TrustedProxies lists the reverse proxies whose X-Forwarded-For and
	// X-Real-IP headers are believed. Without any, the peer address is used.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// JournalConfig points at the SQLite audit log. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, applies environment overrides and defaults, and
// validates the result. A missing file yields a configuration built from the
// environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.XAI.APIKey, "GROK_API_KEY")
	override(&c.Weather.APIKey, "OPENWEATHER_API_KEY")
	override(&c.HomeAssistant.URL, "HA_URL")
	override(&c.HomeAssistant.Token, "HA_TOKEN")
}

func (c *Config) setDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderXAI
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.XAI.BaseURL == "" {
		c.XAI.BaseURL = "https://api.x.ai/v1"
	}
	if c.XAI.Model == "" {
		c.XAI.Model = "grok-4-1-fast-reasoning"
	}
	if c.XAI.Temperature == 0 {
		c.XAI.Temperature = 0.3
	}
	if c.XAI.MaxTokens == 0 {
		c.XAI.MaxTokens = 1000
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "tr"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	if c.Weather.City == "" {
		c.Weather.City = "Ankara"
	}
	if c.Weather.CacheTTL == 0 {
		c.Weather.CacheTTL = 10 * time.Minute
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 4
	}
	if c.Scheduler.MaxPending == 0 {
		c.Scheduler.MaxPending = 256
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 12 * time.Hour
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "homechat"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "homechat"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// CompletionKey returns the API key of the configured provider.
func (c *Config) CompletionKey() string {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	case ProviderGemini:
		return c.Gemini.APIKey
	default:
		return c.XAI.APIKey
	}
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderXAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.CompletionKey() == "" {
		if c.LLM.Provider == ProviderXAI {
			return errors.New("xai.api_key is required (or set GROK_API_KEY)")
		}
		return fmt.Errorf("%s.api_key is required", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative, got %s", c.LLM.Timeout)
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.MaxPending < 1 {
		return fmt.Errorf("scheduler.max_pending must be at least 1, got %d", c.Scheduler.MaxPending)
	}
	if c.Pushover.Enabled && (c.Pushover.Token == "" || c.Pushover.UserKey == "") {
		return errors.New("pushover.token and pushover.user_key are required when pushover is enabled")
	}
	if _, err := c.Server.Proxies(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
