package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "streamchat"

// DefaultSystemPrompt is the fixed instruction prepended to every relayed conversation.
const DefaultSystemPrompt = "You are a helpful, concise assistant. Format answers in Markdown. " +
	"When asked for UI code, answer with a single React component in a ```jsx code block."

type ProviderType string

const (
	ProviderTypeGroq         ProviderType = "groq"
	ProviderTypeOpenAI       ProviderType = "openai"
	ProviderTypeAnthropic    ProviderType = "anthropic"
	ProviderTypeGemini       ProviderType = "gemini"
	ProviderTypeOpenRouter   ProviderType = "openrouter"
	ProviderTypeZen          ProviderType = "zen"
	ProviderTypeOpenAICompat ProviderType = "openai_compat"
)

type Config struct {
	Provider  string                    `mapstructure:"provider" yaml:"provider"`
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Relay     RelayConfig               `mapstructure:"relay" yaml:"relay"`
	Client    ClientConfig              `mapstructure:"client" yaml:"client"`
	History   HistoryConfig             `mapstructure:"history" yaml:"history"`
	Log       LogConfig                 `mapstructure:"log" yaml:"log"`
}

// ProviderConfig configures one upstream provider. Type is inferred from the
// provider name when left empty.
type ProviderConfig struct {
	Type     ProviderType `mapstructure:"type" yaml:"type,omitempty"`
	APIKey   string       `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model    string       `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL  string       `mapstructure:"base_url" yaml:"base_url,omitempty"`
	AppURL   string       `mapstructure:"app_url" yaml:"app_url,omitempty"`
	AppTitle string       `mapstructure:"app_title" yaml:"app_title,omitempty"`
}

type RelayConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	SystemPrompt   string   `mapstructure:"system_prompt" yaml:"system_prompt"`
	Temperature    float32  `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	PprofPort      int      `mapstructure:"pprof_port" yaml:"pprof_port,omitempty"`
}

type ClientConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	Transport string `mapstructure:"transport" yaml:"transport"` // http or ws
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // sqlite, file, memory, none
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
	Key     string `mapstructure:"key" yaml:"key"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // text or json
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "groq")
	v.SetDefault("providers.groq.model", "llama-3.1-8b-instant")
	v.SetDefault("providers.openai.model", "gpt-5.2")
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("providers.gemini.model", "gemini-3-flash-preview")

	v.SetDefault("relay.addr", "127.0.0.1:8080")
	v.SetDefault("relay.system_prompt", DefaultSystemPrompt)
	v.SetDefault("relay.temperature", 0.5)
	v.SetDefault("relay.max_tokens", 1024)
	v.SetDefault("relay.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetDefault("client.url", "http://127.0.0.1:8080")
	v.SetDefault("client.transport", "http")

	v.SetDefault("history.backend", "sqlite")
	v.SetDefault("history.key", "chat-history")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the config file from the default location.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the config file at path, or searches the default locations
// when path is empty. A missing config file is not an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STREAMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	for name, pc := range cfg.Providers {
		pc.Type = InferProviderType(name, pc.Type)
		key, err := ResolveValue(pc.APIKey)
		if err != nil {
			return nil, fmt.Errorf("resolve %s api_key: %w", name, err)
		}
		if key == "" {
			key = os.Getenv(apiKeyEnv(pc.Type))
		}
		pc.APIKey = key
		baseURL, err := ResolveValue(pc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("resolve %s base_url: %w", name, err)
		}
		pc.BaseURL = baseURL
		cfg.Providers[name] = pc
	}

	return &cfg, nil
}

// InferProviderType returns the explicit type if set, otherwise derives it
// from the provider name. Unknown names are treated as OpenAI-compatible.
func InferProviderType(name string, explicit ProviderType) ProviderType {
	if explicit != "" {
		return explicit
	}
	switch ProviderType(name) {
	case ProviderTypeGroq, ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeGemini,
		ProviderTypeOpenRouter, ProviderTypeZen:
		return ProviderType(name)
	}
	return ProviderTypeOpenAICompat
}

func apiKeyEnv(t ProviderType) string {
	switch t {
	case ProviderTypeGroq:
		return "GROQ_API_KEY"
	case ProviderTypeOpenAI:
		return "OPENAI_API_KEY"
	case ProviderTypeAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderTypeGemini:
		return "GEMINI_API_KEY"
	case ProviderTypeOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderTypeZen:
		return "ZEN_API_KEY"
	}
	return ""
}

// ActiveProvider returns the name and settings of the selected provider.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	pc := c.Providers[c.Provider]
	pc.Type = InferProviderType(c.Provider, pc.Type)
	if pc.APIKey == "" {
		pc.APIKey = os.Getenv(apiKeyEnv(pc.Type))
	}
	return c.Provider, pc
}

// ApplyOverrides switches the active provider and/or its model. Empty values
// leave the current setting untouched.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model == "" {
		return
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	pc := c.Providers[c.Provider]
	pc.Model = model
	c.Providers[c.Provider] = pc
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns $XDG_CONFIG_HOME/streamchat (or the platform equivalent).
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetDataDir returns $XDG_DATA_HOME/streamchat, falling back to ~/.local/share.
func GetDataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, appName), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes cfg to path, or to the default config path when path is empty.
// API keys are never written; use api_key references or env vars instead.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	out.Providers = make(map[string]ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		pc.APIKey = ""
		out.Providers[name] = pc
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
