package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
)

func TestFactoryCreatesCorrectProvider(t *testing.T) {
	tests := []struct {
		modelName        string
		expectedProvider string
		shouldError      bool
	}{
		{"gpt-4.1", "openai", false},
		{"gpt-4.1-mini", "openai", false},
		{"GPT-5", "openai", false},
		{"o3-mini", "openai", false},
		{"claude-sonnet-4-20250514", "anthropic", false},
		{"claude-3-5-haiku-latest", "anthropic", false},
		{"unsupported-model", "", true},
		{"", "", true},
	}

	cfg := testutil.SampleConfig()
	costService := testutil.NewMockCostService()

	for _, tt := range tests {
		t.Run(tt.modelName, func(t *testing.T) {
			provider, err := providers.NewProvider(tt.modelName, cfg, costService)

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error for model %s, but got none", tt.modelName)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error for model %s: %v", tt.modelName, err)
				return
			}

			if provider == nil {
				t.Errorf("Provider is nil for model %s", tt.modelName)
				return
			}

			if provider.GetProviderName() != tt.expectedProvider {
				t.Errorf("Expected provider %s, got %s", tt.expectedProvider, provider.GetProviderName())
			}
		})
	}
}

func TestFactoryWithoutCredentialsFallsBack(t *testing.T) {
	cfg := testutil.SampleConfig()
	cfg.OpenAIAPIKey = ""
	cfg.AnthropicAPIKey = ""

	for _, model := range []string{"gpt-4.1", "claude-sonnet-4-20250514"} {
		t.Run(model, func(t *testing.T) {
			provider, err := providers.NewProvider(model, cfg, testutil.NewMockCostService())
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			_, err = provider.Complete(context.Background(), &providers.ChatRequest{Model: model})
			if !errors.Is(err, providers.ErrMissingCredentials) {
				t.Errorf("Expected ErrMissingCredentials, got %v", err)
			}
		})
	}
}

func TestFactoryAzureWithoutOpenAIKey(t *testing.T) {
	cfg := testutil.SampleConfig()
	cfg.OpenAIAPIKey = ""
	cfg.AzureOpenAI.Endpoint = "https://example.openai.azure.com"
	cfg.AzureOpenAI.APIKey = "azure-key"
	cfg.AzureOpenAI.DeploymentName = "gpt-41"

	provider, err := providers.NewProvider("gpt-4.1", cfg, testutil.NewMockCostService())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if provider.GetProviderName() != "openai" {
		t.Errorf("Expected openai provider, got %s", provider.GetProviderName())
	}
}

func TestUnavailableProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := providers.NewUnavailableProvider("openai", nil).Complete(ctx, &providers.ChatRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestEmbedderWithoutKey(t *testing.T) {
	cfg := testutil.SampleConfig()
	cfg.OpenAIAPIKey = ""

	_, err := providers.NewEmbedder(cfg).Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, providers.ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}
