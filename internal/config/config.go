// Package config handles loading and validating Zunguka configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// keyListDelimiter separates entries in *_API_KEYS environment values.
const keyListDelimiter = ","

// Config is the root configuration for Zunguka.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.zunguka. Override: ZUNGUKA_DATA_DIR env var.
	Providers     ProvidersConfig      `json:"providers" yaml:"providers"`
	Retry         RetryConfig          `json:"retry" yaml:"retry"`
	Throttle      ThrottleConfig       `json:"throttle" yaml:"throttle"`
	History       *HistoryConfig       `json:"history,omitempty" yaml:"history,omitempty"`             // nil = conversations are ephemeral
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ProvidersConfig selects and configures the LLM backends.
type ProvidersConfig struct {
	Default   string          `json:"default" yaml:"default"` // "gemini", "openai", "anthropic", "ollama". Empty = "gemini".
	Gemini    GeminiConfig    `json:"gemini" yaml:"gemini"`
	OpenAI    OpenAIConfig    `json:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `json:"anthropic" yaml:"anthropic"`
	Ollama    OllamaConfig    `json:"ollama" yaml:"ollama"`
}

// GeminiConfig configures the Gemini backend. APIKeys takes precedence over
// the legacy single APIKey; both can be overridden by GEMINI_API_KEYS
// (comma-delimited) or GEMINI_API_KEY.
type GeminiConfig struct {
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	APIKey  string   `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Legacy single-key form.
	Model   string   `json:"model" yaml:"model"`
	BaseURL string   `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Optional. Defaults to https://generativelanguage.googleapis.com.
}

// Keys returns the effective ordered key list.
func (g *GeminiConfig) Keys() []string { return effectiveKeys(g.APIKeys, g.APIKey) }

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	APIKey  string   `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Legacy single-key form.
	Model   string   `json:"model" yaml:"model"`
	BaseURL string   `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Optional. Defaults to https://api.openai.com.
}

// Keys returns the effective ordered key list.
func (o *OpenAIConfig) Keys() []string { return effectiveKeys(o.APIKeys, o.APIKey) }

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	APIKey  string   `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Legacy single-key form.
	Model   string   `json:"model" yaml:"model"`
	BaseURL string   `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Optional. Defaults to https://api.anthropic.com.
}

// Keys returns the effective ordered key list.
func (a *AnthropicConfig) Keys() []string { return effectiveKeys(a.APIKeys, a.APIKey) }

// OllamaConfig configures a local Ollama backend. No API keys.
type OllamaConfig struct {
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Optional. Defaults to http://localhost:11434.
}

// RetryConfig controls caller-side retries on rate-limited responses.
// Both the bound and the detection condition are explicit configuration.
type RetryConfig struct {
	Enabled     bool  `json:"enabled" yaml:"enabled"`
	MaxAttempts int   `json:"max_attempts" yaml:"max_attempts"` // Total attempts. 0 = one attempt per pool entry.
	StatusCodes []int `json:"status_codes" yaml:"status_codes"` // HTTP statuses that trigger rotation. Default: [429].
}

// ThrottleConfig caps the local request rate before requests reach the
// network, keeping total usage under the combined per-key quota.
type ThrottleConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`   // 0 = unlimited
	BurstSize         int `json:"burst_size,omitempty" yaml:"burst_size,omitempty"` // 0 = RequestsPerMinute
}

// HistoryConfig configures persistent conversation history.
type HistoryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`       // SQLite file path. Default: derived from data dir.
	MaxMessages int    `json:"max_messages" yaml:"max_messages"`           // Default: 100.
	JournalMode string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"` // "wal" (default), "delete", "truncate", etc.
}

// MaxHistory returns the max history messages with a default of 100.
func (h *HistoryConfig) MaxHistory() int {
	if h != nil && h.MaxMessages > 0 {
		return h.MaxMessages
	}
	return 100
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` // Default: ":9090".
	Path       string `json:"path" yaml:"path"`               // Default: "/metrics".
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "zunguka"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.zunguka/config.json).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/zunguka.json" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".zunguka", "config.json")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. A missing file is not an error — env-only setups are common
// for a CLI — so defaults plus environment overrides are returned instead.
// Environment variables take precedence over config file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	var cfg Config
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	case os.IsNotExist(err):
		// Defaults + env overrides only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	applyEnvOverrides(&cfg)

	// Resolve DataDir default.
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, ".zunguka")
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies key-list and data-dir overrides from the
// environment. For each provider, the delimited *_API_KEYS variable wins;
// the legacy single-key *_API_KEY variable is used as a one-element list
// when the delimited form is absent.
func applyEnvOverrides(cfg *Config) {
	if keys, ok := keysFromEnv("GEMINI_API_KEYS", "GEMINI_API_KEY"); ok {
		cfg.Providers.Gemini.APIKeys = keys
		cfg.Providers.Gemini.APIKey = ""
	}
	if keys, ok := keysFromEnv("OPENAI_API_KEYS", "OPENAI_API_KEY"); ok {
		cfg.Providers.OpenAI.APIKeys = keys
		cfg.Providers.OpenAI.APIKey = ""
	}
	if keys, ok := keysFromEnv("ANTHROPIC_API_KEYS", "ANTHROPIC_API_KEY"); ok {
		cfg.Providers.Anthropic.APIKeys = keys
		cfg.Providers.Anthropic.APIKey = ""
	}

	if envDD := os.Getenv("ZUNGUKA_DATA_DIR"); envDD != "" {
		cfg.DataDir = envDD
	}
}

// keysFromEnv reads the delimited variable, falling back to the legacy
// single-key variable. The second return value reports whether either
// variable was set.
func keysFromEnv(listVar, legacyVar string) ([]string, bool) {
	if raw := os.Getenv(listVar); raw != "" {
		return SplitKeys(raw), true
	}
	if raw := os.Getenv(legacyVar); raw != "" {
		return []string{raw}, true
	}
	return nil, false
}

// SplitKeys splits a delimited key list and trims each entry. Blank entries
// are kept — the key pool drops them and logs the resulting size, so the
// pool sees the same sequence regardless of configuration source.
func SplitKeys(raw string) []string {
	parts := strings.Split(raw, keyListDelimiter)
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = strings.TrimSpace(p)
	}
	return keys
}

// effectiveKeys prefers the list form over the legacy single key.
func effectiveKeys(list []string, legacy string) []string {
	if len(list) > 0 {
		return list
	}
	if legacy != "" {
		return []string{legacy}
	}
	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".zunguka")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// HistoryPath returns the SQLite history path, deriving it from the data
// directory when not set explicitly.
func (c *Config) HistoryPath() string {
	if c.History != nil && c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "history.db")
}

// Default models per provider, used when neither the config file nor a
// flag names one. Env-only setups carry keys but rarely a model.
const (
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultOpenAIModel    = "gpt-4o"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOllamaModel    = "llama3.2"
)

func (c *Config) validate() error {
	// Default provider to gemini.
	if c.Providers.Default == "" {
		c.Providers.Default = "gemini"
	}
	c.applyModelDefaults()
	if err := c.validateProvider(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative")
	}
	for _, code := range c.Retry.StatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry.status_codes entry %d is not a valid HTTP status", code)
		}
	}
	if c.Throttle.RequestsPerMinute < 0 {
		return fmt.Errorf("throttle.requests_per_minute must not be negative")
	}
	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		if c.Observability.Tracing.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
	}
	return nil
}

// applyModelDefaults fills in a default model for each provider that has
// none configured, so env-only setups (keys in the environment, no config
// file) work out of the box.
func (c *Config) applyModelDefaults() {
	if c.Providers.Gemini.Model == "" {
		c.Providers.Gemini.Model = defaultGeminiModel
	}
	if c.Providers.OpenAI.Model == "" {
		c.Providers.OpenAI.Model = defaultOpenAIModel
	}
	if c.Providers.Anthropic.Model == "" {
		c.Providers.Anthropic.Model = defaultAnthropicModel
	}
	if c.Providers.Ollama.Model == "" {
		c.Providers.Ollama.Model = defaultOllamaModel
	}
}

// validateProvider checks that the selected LLM provider is a known one.
// Key presence is deliberately NOT validated here: an empty key list is a
// runtime condition the pool reports, not a configuration error.
func (c *Config) validateProvider() error {
	switch c.Providers.Default {
	case "gemini", "openai", "anthropic", "ollama":
		return nil
	default:
		return fmt.Errorf("providers.default %q is not supported (use gemini, openai, anthropic, or ollama)", c.Providers.Default)
	}
}
