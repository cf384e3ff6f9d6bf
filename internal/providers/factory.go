package providers

import (
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/rs/zerolog/log"
)

// NewProvider creates the model service for a model name. Known vendors
// without credentials get an unavailable provider instead of an error so
// every stage can take its fallback path.
func NewProvider(modelName string, cfg *config.Config, costService CostService) (ModelService, error) {
	modelLower := strings.ToLower(modelName)

	if isAnthropicModel(modelLower) {
		if cfg.AnthropicAPIKey == "" {
			log.Warn().Str("model", modelName).Msg("[ProviderFactory] Anthropic API key is empty, model calls will fall back")
			return NewUnavailableProvider("anthropic", ErrMissingCredentials), nil
		}
		log.Info().Str("model", modelName).Msg("[ProviderFactory] Selected Anthropic provider")
		return NewAnthropicProvider(cfg, modelName, costService), nil
	}

	if isOpenAIModel(modelLower) {
		if cfg.OpenAIAPIKey == "" && !hasAzure(cfg) {
			log.Warn().Str("model", modelName).Msg("[ProviderFactory] OpenAI API key is empty, model calls will fall back")
			return NewUnavailableProvider("openai", ErrMissingCredentials), nil
		}
		log.Info().Str("model", modelName).Msg("[ProviderFactory] Selected OpenAI provider")
		return NewOpenAIProvider(cfg, modelName, costService), nil
	}

	return nil, fmt.Errorf("unsupported model: %s", modelName)
}

// NewEmbedder returns the OpenAI embedder, or one that always fails when no
// key is configured.
func NewEmbedder(cfg *config.Config) Embedder {
	if cfg.OpenAIAPIKey == "" {
		return unavailableEmbedder{}
	}
	return NewOpenAIEmbedder(cfg)
}

func isAnthropicModel(m string) bool {
	return strings.Contains(m, "claude") || strings.Contains(m, "sonnet") ||
		strings.Contains(m, "opus") || strings.Contains(m, "haiku")
}

func isOpenAIModel(m string) bool {
	return strings.Contains(m, "gpt") || strings.Contains(m, "4.1") ||
		strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

func hasAzure(cfg *config.Config) bool {
	az := cfg.AzureOpenAI
	return az.Endpoint != "" && az.APIKey != "" && az.DeploymentName != ""
}
