package testutil

import (
	"github.com/AI-Template-SDK/senso-sov/internal/config"
)

// SampleConfig returns a test configuration
func SampleConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey:    "test-openai-key",
		AnthropicAPIKey: "test-anthropic-key",
		Models: config.ModelsConfig{
			Profile:    "gpt-4.1-mini",
			Extraction: "gpt-4.1-mini",
			Generation: "gpt-4.1",
			Response:   "gpt-4.1",
			Embedding:  "text-embedding-3-small",
		},
		Pipeline: config.PipelineConfig{
			MaxConcurrency:    4,
			MaxProfileTokens:  1500,
			MaxIndexTokens:    8000,
			StructuredOutputs: true,
			StoreBackend:      "memory",
		},
	}
}

// Canned model replies in the shapes seen from real providers.
const (
	ProfileReply = `OVERVIEW: Acme Widgets manufactures industrial widgets and sells them online to small factories.
DESCRIPTION: Industrial widget maker serving small manufacturers.`

	CategoriesReply = `["Industrial Widgets", "Factory Supplies", "Widget Repair", "Custom Fabrication"]`

	CompetitorsFlatReply = `["Acme Rival", "Widget World", "Gizmo Co", "Sprocket Supply", "Bolt Brothers"]`

	CompetitorsObjectReply = `{"competitors": ["Acme Rival", "Widget World", "Gizmo Co"]}`

	CompetitorsObjectArrayReply = `[{"competitors": ["Acme Rival", "Widget World"]}, {"competitors": ["Gizmo Co"]}]`

	KeywordsReply = `["best industrial widgets", "widget suppliers for small factories", "durable widgets", "widget pricing comparison", "bulk widget orders"]`

	QuestionsReply = `["What are the best industrial widget suppliers?", "Where can small factories buy durable widgets?", "Which widget brands last longest?", "How do widget prices compare between suppliers?", "Who offers bulk discounts on widgets?"]`

	GarbageReply = `I'm sorry, I can't help with that.`
)
