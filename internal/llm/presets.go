package llm

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	zenBaseURL        = "https://opencode.ai/zen/v1"
)

// NewOpenRouterProvider creates an OpenRouter provider using OpenAI-compatible APIs.
func NewOpenRouterProvider(apiKey, model, appURL, appTitle string) *OpenAICompatProvider {
	headers := map[string]string{}
	if appURL != "" {
		headers["HTTP-Referer"] = appURL
	}
	if appTitle != "" {
		headers["X-Title"] = appTitle
	}
	if len(headers) == 0 {
		headers = nil
	}
	return NewOpenAICompatProviderWithHeaders(openRouterBaseURL, apiKey, model, "OpenRouter", headers)
}

// NewGroqProvider creates an OpenAICompatProvider preconfigured for Groq.
func NewGroqProvider(apiKey, model string) *OpenAICompatProvider {
	return NewOpenAICompatProvider(groqBaseURL, apiKey, model, "Groq")
}

// NewZenProvider creates an OpenAICompatProvider preconfigured for OpenCode Zen.
// API key is optional: empty for free tier.
func NewZenProvider(apiKey, model string) *OpenAICompatProvider {
	return NewOpenAICompatProvider(zenBaseURL, apiKey, model, "OpenCode Zen")
}
