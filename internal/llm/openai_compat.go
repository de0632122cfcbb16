package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatProvider streams chat completions from any endpoint that speaks
// the OpenAI chat completions protocol (Groq, OpenRouter, Zen, local servers).
type OpenAICompatProvider struct {
	client      *openai.Client
	model       string
	displayName string
}

// NewOpenAICompatProvider creates a provider for baseURL.
func NewOpenAICompatProvider(baseURL, apiKey, model, displayName string) *OpenAICompatProvider {
	return NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, displayName, nil)
}

// NewOpenAICompatProviderWithHeaders creates a provider that sends extra
// headers with every request.
func NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, displayName string, headers map[string]string) *OpenAICompatProvider {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/") + "/"),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	for k, v := range headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	client := openai.NewClient(opts...)
	if displayName == "" {
		displayName = "OpenAI-compatible"
	}
	return &OpenAICompatProvider{
		client:      &client,
		model:       model,
		displayName: displayName,
	}
}

func (p *OpenAICompatProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.displayName, p.model)
}

func (p *OpenAICompatProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		params := openai.ChatCompletionNewParams{
			Model:    chooseModel(req.Model, p.model),
			Messages: buildChatMessages(req.Messages),
		}
		if len(params.Messages) == 0 {
			return fmt.Errorf("no messages provided")
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(float64(req.Temperature))
		}
		if req.MaxOutputTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
		}
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}

		slog.Debug("opening upstream stream",
			"provider", p.Name(),
			"messages", len(params.Messages),
			"last_user", truncate(lastUserText(req.Messages), 80))

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				if text := chunk.Choices[0].Delta.Content; text != "" {
					if err := send(ctx, events, Event{Type: EventTextDelta, Text: text}); err != nil {
						return err
					}
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				use := &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
				if err := send(ctx, events, Event{Type: EventUsage, Use: use}); err != nil {
					return err
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("%s streaming error: %w", p.displayName, err)
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

func buildChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		}
	}
	return out
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
