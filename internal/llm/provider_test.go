package llm

import (
	"strings"
	"testing"

	"github.com/samsaffron/streamchat/internal/config"
)

func TestParseProviderModel(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"groq":   {Model: "llama-3.1-8b-instant"},
			"openai": {Model: "gpt-5.2"},
			"cerebras": {
				Type:    config.ProviderTypeOpenAICompat,
				BaseURL: "https://api.cerebras.ai/v1",
				Model:   "llama-4-scout-17b",
			},
		},
	}

	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{name: "provider only", input: "gemini", wantProvider: "gemini"},
		{name: "provider with model", input: "openai:gpt-4o", wantProvider: "openai", wantModel: "gpt-4o"},
		{name: "openrouter with model", input: "openrouter:x-ai/grok-code-fast-1", wantProvider: "openrouter", wantModel: "x-ai/grok-code-fast-1"},
		{name: "custom provider", input: "cerebras:llama-4-scout-17b", wantProvider: "cerebras", wantModel: "llama-4-scout-17b"},
		{name: "invalid provider", input: "unknown:model", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider, model, err := ParseProviderModel(tc.input, cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider != tc.wantProvider {
				t.Fatalf("provider=%q, want %q", provider, tc.wantProvider)
			}
			if model != tc.wantModel {
				t.Fatalf("model=%q, want %q", model, tc.wantModel)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantErr  string
	}{
		{
			name: "groq",
			cfg: config.Config{Provider: "groq", Providers: map[string]config.ProviderConfig{
				"groq": {APIKey: "k", Model: "llama-3.1-8b-instant"},
			}},
			wantName: "Groq (llama-3.1-8b-instant)",
		},
		{
			name: "anthropic",
			cfg: config.Config{Provider: "anthropic", Providers: map[string]config.ProviderConfig{
				"anthropic": {APIKey: "k", Model: "claude-sonnet-4-5"},
			}},
			wantName: "Anthropic (claude-sonnet-4-5)",
		},
		{
			name: "gemini",
			cfg: config.Config{Provider: "gemini", Providers: map[string]config.ProviderConfig{
				"gemini": {APIKey: "k", Model: "gemini-3-flash-preview"},
			}},
			wantName: "Gemini (gemini-3-flash-preview)",
		},
		{
			name: "compat",
			cfg: config.Config{Provider: "local", Providers: map[string]config.ProviderConfig{
				"local": {BaseURL: "http://localhost:11434/v1", Model: "qwen3"},
			}},
			wantName: "local (qwen3)",
		},
		{
			name: "compat without base url",
			cfg: config.Config{Provider: "local", Providers: map[string]config.ProviderConfig{
				"local": {Model: "qwen3"},
			}},
			wantErr: "base_url",
		},
		{
			name: "missing model",
			cfg: config.Config{Provider: "zen", Providers: map[string]config.ProviderConfig{
				"zen": {},
			}},
			wantErr: "model is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GROQ_API_KEY", "")
			p, err := NewProvider(&tc.cfg)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err=%v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tc.wantName {
				t.Fatalf("name=%q, want %q", p.Name(), tc.wantName)
			}
		})
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := &config.Config{Provider: "groq", Providers: map[string]config.ProviderConfig{
		"groq": {Model: "llama-3.1-8b-instant"},
	}}
	if _, err := NewProvider(cfg); err == nil || !strings.Contains(err.Error(), "GROQ_API_KEY") {
		t.Fatalf("err=%v, want missing key error", err)
	}
}
