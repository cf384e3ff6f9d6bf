// main.go
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/inngest/inngestgo"
	"github.com/rs/zerolog/log"

	"github.com/AI-Template-SDK/senso-sov/internal/app"
	"github.com/AI-Template-SDK/senso-sov/internal/httpserver"
	"github.com/AI-Template-SDK/senso-sov/workflows"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogging(cfg, os.Stdout)

	log.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Str("store", cfg.Pipeline.StoreBackend).
		Bool("index_responses", cfg.Pipeline.IndexResponses).
		Msg("Starting Senso SOV service")

	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OpenAI API key not loaded")
	} else {
		log.Info().Int("length", len(cfg.OpenAIAPIKey)).Msg("OpenAI API key loaded")
	}
	if cfg.AnthropicAPIKey == "" {
		log.Warn().Msg("Anthropic API key not loaded")
	} else {
		log.Info().Int("length", len(cfg.AnthropicAPIKey)).Msg("Anthropic API key loaded")
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()
	log.Info().Str("backend", a.Repos.Backend()).Msg("Repository manager initialized")

	if cfg.IsDevelopment() {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		cfg.InngestSigningKey = ""
		log.Info().Msg("Running in development mode - signing key verification disabled")
	}

	client, err := inngestgo.NewClient(
		inngestgo.ClientOpts{
			AppID:    "senso-sov",
			EventKey: inngestgo.StrPtr(cfg.InngestEventKey),
			Env:      inngestgo.StrPtr(cfg.Environment),
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Inngest client")
	}

	slack := workflows.NewSlackReporter(cfg.SlackWebhookURL)
	if !slack.Enabled() {
		log.Warn().Msg("SLACK_WEBHOOK_URL not set - pipeline failure alerts disabled")
	}

	analysisProcessor := workflows.NewAnalysisProcessor(a.Analysis, slack, cfg)
	analysisProcessor.SetClient(client)
	analysisProcessor.ProcessAnalysis()

	syncProcessor := workflows.NewCompetitorSyncProcessor(a.Pipeline.Brands, a.Pipeline.Sync, slack)
	syncProcessor.SetClient(client)
	syncProcessor.SyncCompetitors()

	scheduledProcessor := workflows.NewScheduledProcessor(a.Repos)
	scheduledProcessor.SetClient(client)
	scheduledProcessor.WeeklyBrandRefresh()
	scheduledProcessor.SnapshotConsistencyAudit()

	log.Info().Msg("All processors initialized and functions registered")

	handler := httpserver.NewRouter(a.Repos, a.Pipeline.Brands, client, client.Serve())

	log.Info().Str("port", cfg.Port).Msg("Starting Senso SOV service")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
