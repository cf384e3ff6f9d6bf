package services

import (
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/rs/zerolog/log"
)

// ModelSet holds one model service per pipeline role.
type ModelSet struct {
	Profile    providers.ModelService
	Extraction providers.ModelService
	Generation providers.ModelService
	Response   providers.ModelService
}

// SingleModel serves every role with the same model service.
func SingleModel(m providers.ModelService) ModelSet {
	return ModelSet{Profile: m, Extraction: m, Generation: m, Response: m}
}

// NewModelSet builds the configured provider for every role.
func NewModelSet(cfg *config.Config, cost providers.CostService) (ModelSet, error) {
	build := func(role, model string) (providers.ModelService, error) {
		svc, err := providers.NewProvider(model, cfg, cost)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s model: %w", role, err)
		}
		svc = providers.WithResilience(svc, providers.ResilienceOptions{
			MaxRetries:        cfg.Pipeline.ModelRetries,
			InitialBackoff:    500 * time.Millisecond,
			RequestsPerSecond: cfg.Pipeline.ModelRPS,
			BreakerFailures:   cfg.Pipeline.BreakerFailures,
			BreakerCooldown:   30 * time.Second,
		})
		log.Info().Str("role", role).Str("model", model).Str("provider", svc.GetProviderName()).Msg("[NewModelSet] Model ready")
		return svc, nil
	}
	var set ModelSet
	var err error
	if set.Profile, err = build("profile", cfg.Models.Profile); err != nil {
		return ModelSet{}, err
	}
	if set.Extraction, err = build("extraction", cfg.Models.Extraction); err != nil {
		return ModelSet{}, err
	}
	if set.Generation, err = build("generation", cfg.Models.Generation); err != nil {
		return ModelSet{}, err
	}
	if set.Response, err = build("response", cfg.Models.Response); err != nil {
		return ModelSet{}, err
	}
	return set, nil
}

// Pipeline bundles the stage services an AnalysisService drives.
type Pipeline struct {
	Profiler    DomainProfiler
	Categories  CategoryExtractor
	Competitors CompetitorExtractor
	Prompts     PromptGenerator
	Responses   ResponseGenerator
	Mentions    MentionExtractor
	Citations   CitationExtractor
	SOV         ShareOfVoiceCalculator
	Sync        SyncManager
	Brands      BrandService
	// Indexer is optional.
	Indexer ResponseIndexer
}

// NewPipeline wires every stage against one store and model set.
func NewPipeline(cfg *config.Config, repos *store.RepositoryManager, set ModelSet, budget TextBudget, indexer ResponseIndexer) Pipeline {
	budget = budgetOrDefault(budget)
	mentions := NewMentionExtractor(repos)
	sync := NewSyncManager(repos, mentions)
	return Pipeline{
		Profiler:    NewDomainProfiler(cfg, set.Profile),
		Categories:  NewCategoryExtractor(cfg, set.Extraction, budget),
		Competitors: NewCompetitorExtractor(cfg, set.Extraction, repos, budget),
		Prompts:     NewPromptGenerator(cfg, set.Generation, repos),
		Responses:   NewResponseGenerator(cfg, set.Response, repos),
		Mentions:    mentions,
		Citations:   NewCitationExtractor(repos),
		SOV:         NewShareOfVoiceCalculator(repos),
		Sync:        sync,
		Brands:      NewBrandService(repos, sync),
		Indexer:     indexer,
	}
}
