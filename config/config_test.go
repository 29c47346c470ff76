package config_test

import (
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"homechat/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GROK_API_KEY", "OPENWEATHER_API_KEY", "HA_URL", "HA_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "xai:\n  api_key: xai-test\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderXAI {
		t.Errorf("provider: got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("llm timeout: got %s", cfg.LLM.Timeout)
	}
	if cfg.XAI.Model != "grok-4-1-fast-reasoning" || cfg.XAI.Temperature != 0.3 || cfg.XAI.MaxTokens != 1000 {
		t.Errorf("xai: got %+v", cfg.XAI)
	}
	if cfg.Weather.City != "Ankara" || cfg.Weather.CacheTTL != 10*time.Minute {
		t.Errorf("weather: got %+v", cfg.Weather)
	}
	if cfg.Scheduler.Workers != 4 || cfg.Scheduler.MaxPending != 256 {
		t.Errorf("scheduler: got %+v", cfg.Scheduler)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.RateLimit != 30 || cfg.Server.SessionTTL != 12*time.Hour {
		t.Errorf("server: got %+v", cfg.Server)
	}
	if cfg.OpenAI.Language != "tr" {
		t.Errorf("language: got %q", cfg.OpenAI.Language)
	}
	if cfg.HomeAssistant.Enabled() {
		t.Error("home assistant should be disabled without url and token")
	}
	if cfg.Journal.Path != "" {
		t.Error("journal should be disabled by default")
	}
}

func TestLoad_ExpandsAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_WEATHER_CITY", "İzmir")
	t.Setenv("GROK_API_KEY", "from-env")
	t.Setenv("HA_URL", "http://ha.local:8123")
	t.Setenv("HA_TOKEN", "secret")

	path := writeConfig(t, `
xai:
  api_key: from-file
weather:
  city: ${TEST_WEATHER_CITY}
  cache_ttl: 5m
scheduler:
  workers: 2
server:
  session_ttl: 1h
log:
  level: debug
  format: json
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.XAI.APIKey != "from-env" {
		t.Errorf("api key: got %q, want environment value", cfg.XAI.APIKey)
	}
	if cfg.Weather.City != "İzmir" || cfg.Weather.CacheTTL != 5*time.Minute {
		t.Errorf("weather: got %+v", cfg.Weather)
	}
	if cfg.Scheduler.Workers != 2 {
		t.Errorf("workers: got %d", cfg.Scheduler.Workers)
	}
	if cfg.Server.SessionTTL != time.Hour {
		t.Errorf("session ttl: got %s", cfg.Server.SessionTTL)
	}
	if !cfg.HomeAssistant.Enabled() || cfg.HomeAssistant.URL != "http://ha.local:8123" {
		t.Errorf("home assistant: got %+v", cfg.HomeAssistant)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROK_API_KEY", "from-env")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CompletionKey() != "from-env" {
		t.Errorf("key: got %q", cfg.CompletionKey())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "xai: [unclosed\n")

	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing key", "llm:\n  provider: xai\n", "xai.api_key is required"},
		{"unknown provider", "llm:\n  provider: llama\n", "unknown provider"},
		{"anthropic key", "llm:\n  provider: anthropic\nxai:\n  api_key: x\n", "anthropic.api_key is required"},
		{"negative retries", "xai:\n  api_key: x\nllm:\n  max_retries: -1\n", "max_retries"},
		{"pushover incomplete", "xai:\n  api_key: x\npushover:\n  enabled: true\n", "pushover.token"},
		{"log format", "xai:\n  api_key: x\nlog:\n  format: xml\n", "log.format"},
		{"log level", "xai:\n  api_key: x\nlog:\n  level: verbose\n", "log.level"},
		{"log level warning", "xai:\n  api_key: x\nlog:\n  level: WARNING\n", ""},
		{"bad proxy", "xai:\n  api_key: x\nserver:\n  trusted_proxies: [\"10.0.0.0/33\"]\n", "server.trusted_proxies"},
		{"proxies ok", "xai:\n  api_key: x\nserver:\n  trusted_proxies: [\"10.0.0.0/8\", \"::1\"]\n", ""},
		{"gemini ok", "llm:\n  provider: gemini\ngemini:\n  api_key: g\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.Load(writeConfig(t, tt.yaml))

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error: got %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{" DEBUG ", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := config.ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error: got %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestServerConfig_Proxies(t *testing.T) {
	s := config.ServerConfig{TrustedProxies: []string{"10.1.2.3/8", "192.168.1.10", "::ffff:172.16.0.1", "fd00::/8"}}

	got, err := s.Proxies()
	if err != nil {
		t.Fatalf("Proxies: %v", err)
	}
	want := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.10/32"),
		netip.MustParsePrefix("172.16.0.1/32"),
		netip.MustParsePrefix("fd00::/8"),
	}
	if len(got) != len(want) {
		t.Fatalf("prefixes: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prefix %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := (config.ServerConfig{TrustedProxies: []string{"proxy.local"}}).Proxies(); err == nil {
		t.Error("hostname should be rejected")
	}
}
