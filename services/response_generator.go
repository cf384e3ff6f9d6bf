package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// responseInstruction is appended to every prompt so answers name brands.
const responseInstruction = "\n\nWhen you recommend or reference any brand, company, or provider, name it explicitly."

type responseGenerator struct {
	cfg   *config.Config
	model providers.ModelService
	repos *store.RepositoryManager
}

func NewResponseGenerator(cfg *config.Config, model providers.ModelService, repos *store.RepositoryManager) ResponseGenerator {
	return &responseGenerator{cfg: cfg, model: model, repos: repos}
}

// RunResponses answers every prompt and stores each completion tagged with
// the session. A failed prompt is reported on its own outcome and does not
// stop the others. A cancelled context stops workers between prompts; the
// outcomes gathered so far are returned together with the context error.
func (s *responseGenerator) RunResponses(ctx context.Context, in ResponseInput) (*ResponseResult, error) {
	log.Info().
		Str("session_id", in.SessionID).
		Int("prompts", len(in.Prompts)).
		Msg("[RunResponses] Generating responses")

	outcomes := make([]*ResponseOutcome, len(in.Prompts))
	reports := make([]StageReport, len(in.Prompts))

	var g errgroup.Group
	g.SetLimit(maxConcurrency(s.cfg))
	for i, pwc := range in.Prompts {
		g.Go(func() error {
			outcomes[i] = s.runOne(ctx, in, pwc, &reports[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &ResponseResult{Outcomes: outcomes}
	failed := 0
	for i, o := range outcomes {
		result.merge(reports[i])
		if o.Err != nil {
			failed++
		}
	}
	log.Info().
		Str("session_id", in.SessionID).
		Int("stored", len(outcomes)-failed).
		Int("failed", failed).
		Msg("[RunResponses] Responses generated")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *responseGenerator) runOne(ctx context.Context, in ResponseInput, pwc *models.PromptWithCategory, report *StageReport) *ResponseOutcome {
	outcome := &ResponseOutcome{Prompt: pwc}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}
	if pwc == nil || pwc.Prompt == nil || pwc.Category == nil || strings.TrimSpace(pwc.Prompt.Text) == "" {
		item := ""
		if pwc != nil && pwc.Prompt != nil {
			item = pwc.Prompt.ID.String()
		}
		log.Warn().Str("session_id", in.SessionID).Str("prompt_id", item).Msg("[RunResponses] Skipping invalid prompt")
		report.fail(ctx, stageResponses, models.FailureValidation, item, ErrInvalidPrompt.Error())
		outcome.Err = ErrInvalidPrompt
		return outcome
	}

	promptID := pwc.Prompt.ID.String()
	resp, err := completeResponse(ctx, s.model, &providers.ChatRequest{
		Model:       s.cfg.Models.Response,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: pwc.Prompt.Text + responseInstruction}},
		Temperature: 0.7,
		MaxTokens:   1500,
	}, &report.Usage)
	if err != nil {
		outcome.Err = err
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("session_id", in.SessionID).Str("prompt_id", promptID).Msg("[RunResponses] Model call failed")
			report.fail(ctx, stageResponses, models.FailureUpstreamUnavailable, promptID, err.Error())
		}
		return outcome
	}

	doc := &models.AIResponse{
		PromptID:     pwc.Prompt.ID,
		CategoryID:   pwc.Category.ID,
		BrandID:      in.BrandID,
		UserID:       in.UserID,
		Text:         resp.Content,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         resp.Cost,
		SessionID:    in.SessionID,
	}
	if err := s.repos.ResponseRepo.Create(ctx, doc); err != nil {
		outcome.Err = fmt.Errorf("failed to store response for prompt %s: %w", promptID, err)
		report.fail(ctx, stageResponses, models.FailurePartialStage, promptID, err.Error())
		return outcome
	}
	outcome.Result = &models.ResponseWithCategory{Response: doc, Category: pwc.Category}
	return outcome
}
