// Package app wires the store, model providers, indexers and pipeline
// services from configuration. The HTTP service and the CLI share it.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/services"
)

type App struct {
	Config   *config.Config
	Repos    *store.RepositoryManager
	Models   services.ModelSet
	Pipeline services.Pipeline
	Analysis services.AnalysisService
}

// LoadConfig reads .env files when present, then the environment.
func LoadConfig() (*config.Config, error) {
	for _, f := range []string{".env", "dev.env"} {
		if err := godotenv.Load(f); err == nil {
			log.Debug().Str("file", f).Msg("Loaded env file")
		}
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SetupLogging points the global zerolog logger at w, using the console
// writer in development.
func SetupLogging(cfg *config.Config, w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Build opens the store and wires every pipeline stage. The model set is
// taken from models when non-nil, otherwise built from configuration.
func Build(ctx context.Context, cfg *config.Config, models *services.ModelSet) (*App, error) {
	repos, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var set services.ModelSet
	if models != nil {
		set = *models
	} else {
		set, err = services.NewModelSet(cfg, providers.NewCostService())
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	budget, err := services.NewTextBudget()
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	var indexer services.ResponseIndexer
	if cfg.Pipeline.IndexResponses {
		indexer, err = buildIndexer(ctx, cfg, budget)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	pipeline := services.NewPipeline(cfg, repos, set, budget, indexer)
	return &App{
		Config:   cfg,
		Repos:    repos,
		Models:   set,
		Pipeline: pipeline,
		Analysis: services.NewAnalysisService(cfg, repos, pipeline),
	}, nil
}

func buildIndexer(ctx context.Context, cfg *config.Config, budget services.TextBudget) (services.ResponseIndexer, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	if err := services.EnsureQdrantCollection(ctx, qdrantClient, cfg.Qdrant.Collection); err != nil {
		return nil, err
	}

	typesenseClient := typesense.NewClient(
		typesense.WithServer(fmt.Sprintf("http://%s:%d", cfg.Typesense.Host, cfg.Typesense.Port)),
		typesense.WithAPIKey(cfg.Typesense.APIKey),
	)
	if err := services.EnsureTypesenseCollection(ctx, typesenseClient, cfg.Typesense.Collection); err != nil {
		return nil, err
	}

	log.Info().
		Str("qdrant", fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)).
		Str("typesense", fmt.Sprintf("%s:%d", cfg.Typesense.Host, cfg.Typesense.Port)).
		Msg("Response indexing enabled")

	return services.NewMultiIndexer(
		services.NewTypesenseResponseIndexer(typesenseClient, cfg.Typesense.Collection, budget, cfg.Pipeline.MaxIndexTokens),
		services.NewQdrantResponseIndexer(qdrantClient, cfg.Qdrant.Collection, providers.NewEmbedder(cfg), budget, cfg.Pipeline.MaxIndexTokens),
	), nil
}

func (a *App) Close() error {
	return a.Repos.Close()
}
