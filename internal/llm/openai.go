package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider implements Provider using the OpenAI Responses API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	effort string // reasoning effort: "low", "medium", "high", "xhigh", or ""
}

// parseModelEffort extracts effort suffix from model name.
// "gpt-5.2-high" -> ("gpt-5.2", "high")
// "gpt-5.2" -> ("gpt-5.2", "")
func parseModelEffort(model string) (string, string) {
	// Longest first so "-high" does not match "-xhigh".
	suffixes := []string{"xhigh", "medium", "high", "low"}
	for _, effort := range suffixes {
		suffix := "-" + effort
		if strings.HasSuffix(model, suffix) {
			return strings.TrimSuffix(model, suffix), effort
		}
	}
	return model, ""
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	actualModel, effort := parseModelEffort(model)
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: &client,
		model:  actualModel,
		effort: effort,
	}
}

func (p *OpenAIProvider) Name() string {
	if p.effort != "" {
		return fmt.Sprintf("OpenAI (%s, effort=%s)", p.model, p.effort)
	}
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		system, inputItems := buildOpenAIInput(req.Messages)
		if len(inputItems) == 0 {
			return fmt.Errorf("no user content provided")
		}

		params := responses.ResponseNewParams{
			Model: shared.ResponsesModel(chooseModel(req.Model, p.model)),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: inputItems,
			},
		}
		if system != "" {
			params.Instructions = openai.String(system)
		}
		if req.MaxOutputTokens > 0 {
			params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
		}
		if req.Temperature > 0 && p.effort == "" {
			params.Temperature = openai.Float(float64(req.Temperature))
		}
		if p.effort != "" {
			params.Reasoning = shared.ReasoningParam{
				Effort: shared.ReasoningEffort(p.effort),
			}
		}

		stream := p.client.Responses.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "response.output_text.delta":
				if delta := event.AsResponseOutputTextDelta().Delta; delta != "" {
					if err := send(ctx, events, Event{Type: EventTextDelta, Text: delta}); err != nil {
						return err
					}
				}
			case "response.completed":
				usage := event.AsResponseCompleted().Response.Usage
				use := &Usage{
					InputTokens:  int(usage.InputTokens),
					OutputTokens: int(usage.OutputTokens),
				}
				if err := send(ctx, events, Event{Type: EventUsage, Use: use}); err != nil {
					return err
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai streaming error: %w", err)
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

func buildOpenAIInput(messages []Message) (string, responses.ResponseInputParam) {
	system, turns := splitSystem(messages)
	inputItems := make(responses.ResponseInputParam, 0, len(turns))
	for _, msg := range turns {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleUser:
			inputItems = append(inputItems, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			inputItems = append(inputItems, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
		}
	}
	return system, inputItems
}
