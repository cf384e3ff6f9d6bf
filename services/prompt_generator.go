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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxKeywords caps the keyword call.
	MaxKeywords = 10
	// PromptsPerCategory caps the question call.
	PromptsPerCategory = 5
)

type promptGenerator struct {
	cfg   *config.Config
	model providers.ModelService
	repos *store.RepositoryManager
}

func NewPromptGenerator(cfg *config.Config, model providers.ModelService, repos *store.RepositoryManager) PromptGenerator {
	return &promptGenerator{cfg: cfg, model: model, repos: repos}
}

type categoryPrompts struct {
	report   StageReport
	prompts  []*models.PromptWithCategory
	fallback bool
}

// GeneratePrompts fans categories out over a bounded worker pool. A failing
// category never cancels its siblings; results keep category order.
func (s *promptGenerator) GeneratePrompts(ctx context.Context, in PromptInput) (*PromptResult, error) {
	if in.Brand == nil {
		return nil, ErrBrandNotFound
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = in.Brand.Location
	}
	local := in.Brand.IsLocalBrand && location != ""

	log.Info().
		Str("session_id", in.SessionID).
		Str("brand_id", in.Brand.ID.String()).
		Int("categories", len(in.Categories)).
		Bool("local", local).
		Msg("[GeneratePrompts] Generating prompts")

	perCategory := make([]categoryPrompts, len(in.Categories))
	var g errgroup.Group
	g.SetLimit(maxConcurrency(s.cfg))
	for i, cat := range in.Categories {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			perCategory[i] = s.forCategory(ctx, in, cat, location, local)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &PromptResult{}
	for _, cp := range perCategory {
		result.merge(cp.report)
		result.Prompts = append(result.Prompts, cp.prompts...)
		if cp.fallback {
			result.FallbackCategories++
		}
	}
	log.Info().
		Str("session_id", in.SessionID).
		Int("prompts", len(result.Prompts)).
		Int("fallback_categories", result.FallbackCategories).
		Msg("[GeneratePrompts] Prompts generated")
	return result, nil
}

func (s *promptGenerator) forCategory(ctx context.Context, in PromptInput, cat *models.Category, location string, local bool) (out categoryPrompts) {
	logger := log.With().Str("session_id", in.SessionID).Str("category", cat.Name).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("[GeneratePrompts] Category worker panicked")
			out.report.fail(ctx, stagePrompts, models.FailurePartialStage, cat.Name, fmt.Sprint(r))
			out.prompts = nil
		}
	}()

	keywords := s.keywords(ctx, cat, location, local, &out.report, logger)
	questions := s.questions(ctx, in, cat, keywords, location, local, &out.report, logger)
	if len(questions) == 0 {
		if ctx.Err() != nil {
			return out
		}
		questions = FallbackQuestions(cat.Name, location, local)
		out.fallback = true
	}

	for _, text := range questions {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		prompt := &models.Prompt{
			BrandID:    in.Brand.ID,
			CategoryID: cat.ID,
			Text:       text,
			SessionID:  in.SessionID,
		}
		if err := s.repos.PromptRepo.Create(ctx, prompt); err != nil {
			logger.Warn().Err(err).Msg("[GeneratePrompts] Failed to store prompt")
			out.report.fail(ctx, stagePrompts, models.FailurePartialStage, cat.Name, err.Error())
			continue
		}
		out.prompts = append(out.prompts, &models.PromptWithCategory{Prompt: prompt, Category: cat})
	}
	return out
}

func (s *promptGenerator) keywords(ctx context.Context, cat *models.Category, location string, local bool, report *StageReport, logger zerolog.Logger) []string {
	reply, err := complete(ctx, s.model, &providers.ChatRequest{
		Model:       s.cfg.Models.Generation,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: buildKeywordPrompt(cat.Name, location, local)}},
		Temperature: 0.7,
		MaxTokens:   400,
	}, &report.Usage)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("[GeneratePrompts] Keyword call failed, using templated keywords")
			report.fail(ctx, stagePrompts, models.FailureUpstreamUnavailable, cat.Name, "keywords: "+err.Error())
		}
		return FallbackKeywords(cat.Name, location, local)
	}
	items := replyparse.Clean(replyparse.Decode(reply, replyparse.ListMatchers("keywords")...).Items, MaxKeywords)
	if len(items) == 0 {
		report.fail(ctx, stagePrompts, models.FailureMalformedReply, cat.Name, "no keywords in reply")
		return FallbackKeywords(cat.Name, location, local)
	}
	return items
}

// questions returns the accepted model questions, or nil when the caller
// should fall back to templates.
func (s *promptGenerator) questions(ctx context.Context, in PromptInput, cat *models.Category, keywords []string, location string, local bool, report *StageReport, logger zerolog.Logger) []string {
	reply, err := complete(ctx, s.model, &providers.ChatRequest{
		Model: s.cfg.Models.Generation,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "You write the questions real people type into AI assistants when researching a purchase."},
			{Role: providers.RoleUser, Content: BuildQuestionPrompt(in.Brand.Name, cat.Name, keywords, in.Competitors, location, local)},
		},
		Temperature: 0.7,
		MaxTokens:   600,
	}, &report.Usage)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("[GeneratePrompts] Question call failed, using templated questions")
			report.fail(ctx, stagePrompts, models.FailureUpstreamUnavailable, cat.Name, "questions: "+err.Error())
		}
		return nil
	}

	items := replyparse.Clean(replyparse.Decode(reply, replyparse.ListMatchers("questions")...).Items, 0)
	accepted := make([]string, 0, PromptsPerCategory)
	for _, q := range items {
		if containsFold(q, in.Brand.Name) {
			report.fail(ctx, stagePrompts, models.FailureValidation, cat.Name, "question names the brand: "+q)
			continue
		}
		accepted = append(accepted, q)
		if len(accepted) == PromptsPerCategory {
			break
		}
	}
	if len(accepted) == 0 {
		report.fail(ctx, stagePrompts, models.FailureMalformedReply, cat.Name, "no usable questions in reply")
		return nil
	}
	return accepted
}

func buildKeywordPrompt(category, location string, local bool) string {
	scope := ""
	if local {
		scope = fmt.Sprintf(" for customers in %s (include phrasing such as \"near me\" and \"in %s\")", location, location)
	}
	return fmt.Sprintf(`Category: %s

List %d long-tail search phrases people use when looking for %s%s.
Return a JSON array of strings, no explanation.`, category, MaxKeywords, strings.ToLower(category), scope)
}

// BuildQuestionPrompt always carries the instruction not to name the brand.
func BuildQuestionPrompt(brand, category string, keywords, competitors []string, location string, local bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", category)
	fmt.Fprintf(&b, "Search phrases: %s\n", strings.Join(keywords, "; "))
	if len(competitors) > 0 {
		fmt.Fprintf(&b, "Companies active in this market: %s\n", strings.Join(competitors, ", "))
	}
	if local {
		fmt.Fprintf(&b, "Location: %s. Phrase questions the way a local customer would, such as \"near me\" or \"in %s\".\n", location, location)
	}
	fmt.Fprintf(&b, "\nWrite %d natural questions a customer would ask an AI assistant about this category.\n", PromptsPerCategory)
	fmt.Fprintf(&b, "Do not mention %s by name in any question.\n", brand)
	b.WriteString("Phrase them so that a good answer would naturally recommend specific companies.\n")
	b.WriteString("Return a JSON array of strings, no explanation.")
	return b.String()
}

// FallbackKeywords synthesizes five search phrases from a category name.
func FallbackKeywords(category, location string, local bool) []string {
	c := strings.ToLower(category)
	if local {
		return []string{
			fmt.Sprintf("best %s near me", c),
			fmt.Sprintf("%s in %s", c, location),
			fmt.Sprintf("top %s providers in %s", c, location),
			fmt.Sprintf("affordable %s near me", c),
			fmt.Sprintf("%s reviews %s", c, location),
		}
	}
	return []string{
		"best " + c,
		c + " reviews",
		"top " + c + " providers",
		"affordable " + c,
		c + " comparison",
	}
}

// FallbackQuestions returns the templated questions used when a category's
// model calls produced nothing usable.
func FallbackQuestions(category, location string, local bool) []string {
	c := strings.ToLower(category)
	if local {
		return []string{
			fmt.Sprintf("What are the best %s options near me in %s?", c, location),
			fmt.Sprintf("Which companies offer %s in %s?", c, location),
			fmt.Sprintf("Who has the best reviews for %s in %s?", c, location),
			fmt.Sprintf("How do %s providers in %s compare on price?", c, location),
			fmt.Sprintf("Where can I find reliable %s near %s?", c, location),
		}
	}
	return []string{
		fmt.Sprintf("What are the best %s options available today?", c),
		fmt.Sprintf("Which companies are leading in %s?", c),
		fmt.Sprintf("What should I look for when choosing a %s provider?", c),
		fmt.Sprintf("How do the top %s providers compare on price and quality?", c),
		fmt.Sprintf("Who offers the most reliable %s?", c),
	}
}

func containsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func maxConcurrency(cfg *config.Config) int {
	if cfg == nil || cfg.Pipeline.MaxConcurrency < 1 {
		return 1
	}
	return cfg.Pipeline.MaxConcurrency
}
