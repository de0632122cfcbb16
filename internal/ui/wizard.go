package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/samsaffron/streamchat/internal/config"
)

// providerOption represents a provider choice in the setup wizard
type providerOption struct {
	name      string
	value     string
	available bool
	hint      string // shows how to enable it when unavailable
}

// detectAvailableProviders checks which providers have credentials configured
func detectAvailableProviders() []providerOption {
	return []providerOption{
		{
			name:      "Groq - GROQ_API_KEY",
			value:     string(config.ProviderTypeGroq),
			available: os.Getenv("GROQ_API_KEY") != "",
			hint:      "set GROQ_API_KEY",
		},
		{
			name:      "Anthropic - ANTHROPIC_API_KEY",
			value:     string(config.ProviderTypeAnthropic),
			available: os.Getenv("ANTHROPIC_API_KEY") != "",
			hint:      "set ANTHROPIC_API_KEY",
		},
		{
			name:      "OpenAI - OPENAI_API_KEY",
			value:     string(config.ProviderTypeOpenAI),
			available: os.Getenv("OPENAI_API_KEY") != "",
			hint:      "set OPENAI_API_KEY",
		},
		{
			name:      "Gemini - GEMINI_API_KEY",
			value:     string(config.ProviderTypeGemini),
			available: os.Getenv("GEMINI_API_KEY") != "",
			hint:      "set GEMINI_API_KEY",
		},
		{
			name:      "OpenRouter - OPENROUTER_API_KEY",
			value:     string(config.ProviderTypeOpenRouter),
			available: os.Getenv("OPENROUTER_API_KEY") != "",
			hint:      "set OPENROUTER_API_KEY",
		},
		{
			name:      "Zen - free, no key required",
			value:     string(config.ProviderTypeZen),
			available: true,
		},
	}
}

// providerOptions lists available providers first, then the rest with a
// hint on how to enable them.
func providerOptions() []huh.Option[string] {
	var available, unavailable []huh.Option[string]
	for _, p := range detectAvailableProviders() {
		if p.available {
			available = append(available, huh.NewOption(p.name, p.value))
			continue
		}
		label := fmt.Sprintf("%s (%s)", p.name, p.hint)
		unavailable = append(unavailable, huh.NewOption(label, p.value))
	}
	return append(available, unavailable...)
}

// RunSetupWizard asks for the provider, model and relay address, starting
// from cfg, and returns the updated config. cfg is not modified.
func RunSetupWizard(cfg *config.Config) (*config.Config, error) {
	fmt.Fprint(os.Stderr, "Welcome to streamchat! Let's get you set up.\n\n")

	out := *cfg
	out.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		out.Providers[name] = pc
	}

	provider := out.Provider
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which LLM provider should the relay use?").
				Options(providerOptions()...).
				Value(&provider),
		),
	).Run(); err != nil {
		return nil, err
	}

	model := out.Providers[provider].Model
	addr := out.Relay.Addr
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Placeholder("provider default").
				Value(&model),
			huh.NewInput().
				Title("Relay listen address").
				Value(&addr).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}),
		),
	).Run(); err != nil {
		return nil, err
	}

	out.Relay.Addr = addr
	out.ApplyOverrides(provider, model)
	return &out, nil
}

// Confirm asks a yes/no question and reports the answer.
func Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithShowHelp(false).Run()
	return ok, err
}
