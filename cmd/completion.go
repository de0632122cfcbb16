package cmd

import (
	"strings"

	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/llm"
	"github.com/spf13/cobra"
)

// ProviderFlagCompletion handles --provider flag completion
func ProviderFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		cfg = nil
	}

	var completions []string
	for _, name := range llm.ProviderNames(cfg) {
		if strings.HasPrefix(name, toComplete) {
			completions = append(completions, name)
		}
	}

	// If completing provider name (no colon), don't add space so user can type ":"
	if !strings.Contains(toComplete, ":") {
		return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func registerProviderCompletion(cmd *cobra.Command) {
	if err := cmd.RegisterFlagCompletionFunc("provider", ProviderFlagCompletion); err != nil {
		panic("failed to register provider completion: " + err.Error())
	}
}
