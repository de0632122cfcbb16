package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samsaffron/streamchat/internal/config"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	name, pc := cfg.ActiveProvider()
	if name == "" {
		return nil, fmt.Errorf("no provider configured")
	}
	if strings.TrimSpace(pc.Model) == "" {
		return nil, fmt.Errorf("provider %s: model is required", name)
	}

	switch pc.Type {
	case config.ProviderTypeGroq:
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: GROQ_API_KEY not set", name)
		}
		return NewGroqProvider(pc.APIKey, pc.Model), nil
	case config.ProviderTypeOpenAI:
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: OPENAI_API_KEY not set", name)
		}
		return NewOpenAIProvider(pc.APIKey, pc.Model), nil
	case config.ProviderTypeAnthropic:
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: ANTHROPIC_API_KEY not set", name)
		}
		return NewAnthropicProvider(pc.APIKey, pc.Model), nil
	case config.ProviderTypeGemini:
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: GEMINI_API_KEY not set", name)
		}
		return NewGeminiProvider(pc.APIKey, pc.Model), nil
	case config.ProviderTypeOpenRouter:
		if pc.APIKey == "" {
			return nil, fmt.Errorf("provider %s: OPENROUTER_API_KEY not set", name)
		}
		return NewOpenRouterProvider(pc.APIKey, pc.Model, pc.AppURL, pc.AppTitle), nil
	case config.ProviderTypeZen:
		return NewZenProvider(pc.APIKey, pc.Model), nil
	case config.ProviderTypeOpenAICompat:
		if pc.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base_url is required for openai_compat providers", name)
		}
		return NewOpenAICompatProvider(pc.BaseURL, pc.APIKey, pc.Model, name), nil
	}
	return nil, fmt.Errorf("provider %s: unsupported type %q", name, pc.Type)
}

// ParseProviderModel splits "provider:model" as accepted by --provider.
// The provider must be built in or present in cfg.Providers.
func ParseProviderModel(value string, cfg *config.Config) (string, string, error) {
	provider, model, _ := strings.Cut(strings.TrimSpace(value), ":")
	if provider == "" {
		return "", "", fmt.Errorf("empty provider")
	}
	if !knownProvider(provider, cfg) {
		return "", "", fmt.Errorf("unknown provider %q (known: %s)", provider, strings.Join(ProviderNames(cfg), ", "))
	}
	return provider, model, nil
}

// ProviderNames lists built-in and configured provider names, sorted.
func ProviderNames(cfg *config.Config) []string {
	seen := map[string]bool{}
	for _, t := range builtinProviders {
		seen[string(t)] = true
	}
	if cfg != nil {
		for name := range cfg.Providers {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtinProviders = []config.ProviderType{
	config.ProviderTypeGroq,
	config.ProviderTypeOpenAI,
	config.ProviderTypeAnthropic,
	config.ProviderTypeGemini,
	config.ProviderTypeOpenRouter,
	config.ProviderTypeZen,
}

func knownProvider(name string, cfg *config.Config) bool {
	for _, t := range builtinProviders {
		if string(t) == name {
			return true
		}
	}
	if cfg == nil {
		return false
	}
	_, ok := cfg.Providers[name]
	return ok
}
