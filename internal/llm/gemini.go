package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider streams completions from the Gemini API.
type GeminiProvider struct {
	apiKey string
	model  string
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, model: model}
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		system, turns := splitSystem(req.Messages)
		contents := buildGeminiContents(turns)
		if len(contents) == 0 {
			return fmt.Errorf("no user content provided")
		}

		config := &genai.GenerateContentConfig{}
		if system != "" {
			config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
		if req.Temperature > 0 {
			config.Temperature = genai.Ptr(req.Temperature)
		}
		if req.MaxOutputTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxOutputTokens)
		}

		var use Usage
		for resp, err := range client.Models.GenerateContentStream(ctx, chooseModel(req.Model, p.model), contents, config) {
			if err != nil {
				return fmt.Errorf("gemini streaming error: %w", err)
			}
			if text := resp.Text(); text != "" {
				if err := send(ctx, events, Event{Type: EventTextDelta, Text: text}); err != nil {
					return err
				}
			}
			if resp.UsageMetadata != nil {
				use.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				use.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
		}
		if err := send(ctx, events, Event{Type: EventUsage, Use: &use}); err != nil {
			return err
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

func buildGeminiContents(turns []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return contents
}
