package services

import (
	"context"
	"fmt"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/replyparse"
	"github.com/rs/zerolog/log"
)

// MaxCategories caps CategoryExtractor output.
const MaxCategories = 4

// FallbackCategories is returned when no category could be decoded.
var FallbackCategories = []string{"Products", "Services", "Pricing", "Customer Support"}

type categoryExtractor struct {
	cfg    *config.Config
	model  providers.ModelService
	budget TextBudget
}

func NewCategoryExtractor(cfg *config.Config, model providers.ModelService, budget TextBudget) CategoryExtractor {
	return &categoryExtractor{cfg: cfg, model: model, budget: budgetOrDefault(budget)}
}

// ExtractCategories never fails on model trouble. The only error it returns
// is a cancelled context.
func (s *categoryExtractor) ExtractCategories(ctx context.Context, domain, profile string) (*CategoryResult, error) {
	log.Info().Str("domain", domain).Msg("[ExtractCategories] Extracting business categories")

	result := &CategoryResult{}
	profile = s.budget.Truncate(profile, s.cfg.Pipeline.MaxProfileTokens)
	reply, err := complete(ctx, s.model, &providers.ChatRequest{
		Model: s.cfg.Models.Extraction,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: buildCategoryPrompt(domain, profile)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	}, &result.Usage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).Str("domain", domain).Msg("[ExtractCategories] Model call failed, using fallback categories")
		result.fail(ctx, stageCategories, models.FailureUpstreamUnavailable, domain, err.Error())
		return s.fallback(result), nil
	}

	decoded := replyparse.Decode(reply, replyparse.ListMatchers("categories")...)
	items := replyparse.Clean(decoded.Items, MaxCategories)
	if decoded.Empty {
		log.Info().Str("domain", domain).Str("shape", decoded.Shape).Msg("[ExtractCategories] Model returned no categories")
		result.Categories = []string{}
		result.Shape = decoded.Shape
		return result, nil
	}
	if len(items) == 0 {
		log.Warn().Str("domain", domain).Msg("[ExtractCategories] Unparseable reply, using fallback categories")
		result.fail(ctx, stageCategories, models.FailureMalformedReply, domain, "no categories in reply")
		return s.fallback(result), nil
	}

	result.Categories = items
	result.Shape = decoded.Shape
	log.Info().
		Str("domain", domain).
		Str("shape", decoded.Shape).
		Strs("categories", items).
		Msg("[ExtractCategories] Categories extracted")
	return result, nil
}

func (s *categoryExtractor) fallback(result *CategoryResult) *CategoryResult {
	result.Categories = append([]string(nil), FallbackCategories...)
	result.Shape = replyparse.ShapeNone
	result.Fallback = true
	return result
}

func buildCategoryPrompt(domain, profile string) string {
	return fmt.Sprintf(`Business website: %s

Business profile:
%s

List the %d product or service categories this business competes in, as a customer would search for them.
Return a JSON array of %d category names, no explanation.`, domain, profile, MaxCategories, MaxCategories)
}
