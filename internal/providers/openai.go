package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

type openAIProvider struct {
	client      *openai.Client
	model       string
	deployment  string
	costService CostService
}

// NewOpenAIProvider talks to Azure OpenAI when an endpoint, key and
// deployment are configured, and to api.openai.com otherwise.
func NewOpenAIProvider(cfg *config.Config, model string, costService CostService) ModelService {
	var client openai.Client
	var deployment string

	az := cfg.AzureOpenAI
	if az.Endpoint != "" && az.APIKey != "" && az.DeploymentName != "" {
		client = openai.NewClient(
			azure.WithEndpoint(az.Endpoint, "2024-12-01-preview"),
			azure.WithAPIKey(az.APIKey),
		)
		deployment = az.DeploymentName
		log.Info().
			Str("endpoint", az.Endpoint).
			Str("deployment", deployment).
			Str("model", model).
			Msg("[NewOpenAIProvider] Using Azure OpenAI")
	} else {
		client = openai.NewClient(
			option.WithAPIKey(cfg.OpenAIAPIKey),
		)
		log.Info().Str("model", model).Msg("[NewOpenAIProvider] Using standard OpenAI")
	}

	return &openAIProvider{
		client:      &client,
		model:       model,
		deployment:  deployment,
		costService: costService,
	}
}

func (p *openAIProvider) GetProviderName() string {
	return "openai"
}

func (p *openAIProvider) chatModel(requested string) openai.ChatModel {
	if p.deployment != "" {
		return openai.ChatModel(p.deployment)
	}
	if requested != "" {
		return openai.ChatModel(requested)
	}
	return openai.ChatModel(p.model)
}

func (p *openAIProvider) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := p.chatModel(req.Model)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	if !strings.HasPrefix(string(model), "gpt-5") {
		params.Temperature = openai.Float(req.Temperature)
	} else {
		params.ReasoningEffort = "low"
		log.Debug().Str("model", string(model)).Msg("[Complete] Skipping temperature setting for gpt-5")
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	telemetry.RecordModelCall(ctx, p.GetProviderName(), err)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	inputTokens := int(response.Usage.PromptTokens)
	outputTokens := int(response.Usage.CompletionTokens)
	return &ChatResponse{
		Content:      response.Choices[0].Message.Content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         p.costService.CalculateCost(p.GetProviderName(), string(model), inputTokens, outputTokens),
		Model:        string(model),
	}, nil
}

// openAIEmbedder serves the vector index.
type openAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(cfg *config.Config) Embedder {
	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
	return &openAIEmbedder{client: &client, model: cfg.Models.Embedding}
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	telemetry.RecordModelCall(ctx, "openai-embeddings", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
