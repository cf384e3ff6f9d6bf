package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/replyparse"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/rs/zerolog/log"
)

// MaxCompetitors caps CompetitorExtractor output.
const MaxCompetitors = 5

// PlaceholderCompetitors keeps downstream stages supplied when extraction
// yields nothing.
var PlaceholderCompetitors = []string{"Competitor A", "Competitor B", "Competitor C", "Competitor D", "Competitor E"}

// CompetitorList is the structured reply requested from the model.
type CompetitorList struct {
	Competitors []string `json:"competitors" jsonschema:"description=Names of direct competitors of the business"`
}

type competitorExtractor struct {
	cfg      *config.Config
	model    providers.ModelService
	repos    *store.RepositoryManager
	budget   TextBudget
	matchers []replyparse.Matcher
}

func NewCompetitorExtractor(cfg *config.Config, model providers.ModelService, repos *store.RepositoryManager, budget TextBudget) CompetitorExtractor {
	return &competitorExtractor{
		cfg:      cfg,
		model:    model,
		repos:    repos,
		budget:   budgetOrDefault(budget),
		matchers: replyparse.ListMatchers("competitors"),
	}
}

func (s *competitorExtractor) ExtractCompetitors(ctx context.Context, in CompetitorInput) (*CompetitorResult, error) {
	logger := log.With().Str("domain", in.Domain).Str("session_id", in.SessionID).Logger()
	logger.Info().Str("brand", in.BrandName).Msg("[ExtractCompetitors] Extracting competitors")

	result := &CompetitorResult{}

	description := strings.TrimSpace(in.Profile)
	if description == "" {
		description = s.describe(ctx, in, result)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	result.BrandDescription = description

	req := &providers.ChatRequest{
		Model: s.cfg.Models.Extraction,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "You are a competitive intelligence analyst. You only name real companies."},
			{Role: providers.RoleUser, Content: buildCompetitorPrompt(in, s.budget.Truncate(description, s.cfg.Pipeline.MaxProfileTokens), s.cfg.Pipeline.StructuredOutputs)},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	}
	if s.cfg.Pipeline.StructuredOutputs {
		req.Schema = &providers.JSONSchema{
			Name:        "competitor_list",
			Description: "Direct competitors of a business",
			Schema:      GenerateSchema[CompetitorList](),
		}
	}

	reply, err := complete(ctx, s.model, req, &result.Usage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn().Err(err).Msg("[ExtractCompetitors] Model call failed, using placeholder competitors")
		result.fail(ctx, stageCompetitors, models.FailureUpstreamUnavailable, in.Domain, err.Error())
		return s.placeholders(ctx, in, result), nil
	}

	decoded := replyparse.Decode(reply, s.matchers...)
	names := replyparse.Clean(excludeBrand(decoded.Items, in.BrandName), MaxCompetitors)
	if len(names) == 0 {
		logger.Warn().Msg("[ExtractCompetitors] No competitors in reply, using placeholders")
		result.fail(ctx, stageCompetitors, models.FailureMalformedReply, in.Domain, "no competitors in reply")
		return s.placeholders(ctx, in, result), nil
	}

	result.Competitors = names
	result.Shape = decoded.Shape
	s.persistSeeds(ctx, in, names, "model", result)
	logger.Info().Str("shape", decoded.Shape).Strs("competitors", names).Msg("[ExtractCompetitors] Competitors extracted")
	return result, nil
}

// describe asks for a one-line business description. Failure degrades to a
// templated line.
func (s *competitorExtractor) describe(ctx context.Context, in CompetitorInput, result *CompetitorResult) string {
	reply, err := complete(ctx, s.model, &providers.ChatRequest{
		Model: s.cfg.Models.Profile,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: fmt.Sprintf("Describe the business %s (%s) in one sentence: what it sells and to whom.", in.BrandName, in.Domain)},
		},
		Temperature: 0.3,
		MaxTokens:   120,
	}, &result.Usage)
	if err == nil && strings.TrimSpace(reply) != "" {
		return strings.TrimSpace(reply)
	}
	if err != nil && ctx.Err() == nil {
		result.fail(ctx, stageCompetitors, models.FailureUpstreamUnavailable, in.Domain, "describe: "+err.Error())
	}
	return fmt.Sprintf("%s is the business operating %s.", in.BrandName, in.Domain)
}

func (s *competitorExtractor) placeholders(ctx context.Context, in CompetitorInput, result *CompetitorResult) *CompetitorResult {
	result.Competitors = append([]string(nil), PlaceholderCompetitors...)
	result.Shape = replyparse.ShapeNone
	result.Fallback = true
	s.persistSeeds(ctx, in, result.Competitors, "placeholder", result)
	return result
}

// persistSeeds stores accepted names for later cross-referencing. A store
// error is recorded but does not change the extraction result.
func (s *competitorExtractor) persistSeeds(ctx context.Context, in CompetitorInput, names []string, source string, result *CompetitorResult) {
	if s.repos == nil {
		return
	}
	seeds := make([]*models.CompetitorSeed, 0, len(names))
	for _, name := range names {
		seeds = append(seeds, &models.CompetitorSeed{
			BrandID:   in.BrandID,
			Name:      name,
			Source:    source,
			SessionID: in.SessionID,
		})
	}
	if err := s.repos.SeedRepo.CreateMany(ctx, seeds); err != nil {
		log.Warn().Err(err).Str("brand_id", in.BrandID.String()).Msg("[ExtractCompetitors] Failed to persist competitor seeds")
		result.fail(ctx, stageCompetitors, models.FailurePartialStage, "seeds", err.Error())
	}
}

// buildCompetitorPrompt asks for the object shape of CompetitorList when a
// schema is attached and for a bare array otherwise.
func buildCompetitorPrompt(in CompetitorInput, description string, structured bool) string {
	format := fmt.Sprintf("Return strictly a JSON array of %d company names and nothing else.", MaxCompetitors)
	if structured {
		format = fmt.Sprintf(`Return a JSON object of the form {"competitors": ["Name", ...]} holding %d company names and nothing else.`, MaxCompetitors)
	}
	return fmt.Sprintf(`Business: %s
Website: %s
About the business: %s

Name exactly %d direct competitors of this business: companies a customer would consider instead of it.
Do not include %s itself.
%s`,
		in.BrandName, in.Domain, description, MaxCompetitors, in.BrandName, format)
}

func excludeBrand(names []string, brand string) []string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" {
		return names
	}
	out := names[:0:0]
	for _, n := range names {
		if strings.ToLower(strings.TrimSpace(n)) != brand {
			out = append(out, n)
		}
	}
	return out
}
