package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 2000

type anthropicProvider struct {
	client      *anthropic.Client
	model       string
	costService CostService
}

func NewAnthropicProvider(cfg *config.Config, model string, costService CostService) ModelService {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AnthropicAPIKey),
	)

	return &anthropicProvider{
		client:      &client,
		model:       model,
		costService: costService,
	}
}

func (p *anthropicProvider) GetProviderName() string {
	return "anthropic"
}

func (p *anthropicProvider) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if req.Schema != nil {
		instruction, err := schemaInstruction(req.Schema)
		if err != nil {
			return nil, err
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(instruction)))
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	response, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	})
	telemetry.RecordModelCall(ctx, p.GetProviderName(), err)
	if err != nil {
		return nil, fmt.Errorf("message request failed: %w", err)
	}

	inputTokens := int(response.Usage.InputTokens)
	outputTokens := int(response.Usage.OutputTokens)
	return &ChatResponse{
		Content:      p.extractResponseText(*response),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         p.costService.CalculateCost(p.GetProviderName(), model, inputTokens, outputTokens),
		Model:        model,
	}, nil
}

func (p *anthropicProvider) extractResponseText(response anthropic.Message) string {
	var textParts []string

	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
		}
	}

	return strings.Join(textParts, "")
}

// schemaInstruction renders a structured-output request as plain prompt text.
func schemaInstruction(schema *JSONSchema) (string, error) {
	raw, err := json.Marshal(schema.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response schema: %w", err)
	}
	return fmt.Sprintf("Return ONLY a valid JSON object matching this schema, no other text:\n%s", raw), nil
}
