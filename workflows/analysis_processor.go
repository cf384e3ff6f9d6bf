package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/rs/zerolog/log"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/services"
)

type AnalysisProcessor struct {
	analysis services.AnalysisService
	slack    *SlackReporter
	cfg      *config.Config
	client   inngestgo.Client
	durable  bool
}

func NewAnalysisProcessor(analysis services.AnalysisService, slack *SlackReporter, cfg *config.Config) *AnalysisProcessor {
	return &AnalysisProcessor{
		analysis: analysis,
		slack:    slack,
		cfg:      cfg,
		durable:  true,
	}
}

func (p *AnalysisProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// ProcessAnalysis runs the whole pipeline for one requested analysis. Each
// stage is its own step, so a retry resumes after the last completed stage
// with the checkpointed AnalysisRun.
func (p *AnalysisProcessor) ProcessAnalysis() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "process-brand-analysis",
			Name:    "Process Brand Analysis - Share of Voice Pipeline",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger(EventAnalysisRequested, nil),
		func(ctx context.Context, input inngestgo.Input[AnalysisRequestedEvent]) (any, error) {
			return p.process(ctx, input.Event.Data)
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ProcessAnalysis function: %w", err))
	}
	return fn
}

type analysisStage struct {
	id  string
	run func(ctx context.Context, run *services.AnalysisRun) error
}

func (p *AnalysisProcessor) stages() []analysisStage {
	stages := []analysisStage{
		{"profile-domain", p.analysis.Profile},
		{"extract-categories", p.analysis.ExtractCategories},
		{"extract-competitors", p.analysis.ExtractCompetitors},
		{"generate-prompts", p.analysis.GeneratePrompts},
		{"generate-responses", p.analysis.GenerateResponses},
		{"extract-mentions", p.analysis.ExtractMentions},
		{"calculate-sov", func(ctx context.Context, run *services.AnalysisRun) error {
			_, err := p.analysis.CalculateSOV(ctx, run)
			return err
		}},
	}
	if p.cfg != nil && p.cfg.Pipeline.IndexResponses {
		stages = append(stages, analysisStage{"index-responses", p.analysis.IndexResponses})
	}
	return stages
}

func (p *AnalysisProcessor) process(ctx context.Context, evt AnalysisRequestedEvent) (map[string]interface{}, error) {
	req := evt.Request()
	log.Info().
		Str("domain", req.Domain).
		Str("owner_id", req.OwnerID).
		Str("triggered_by", evt.TriggeredBy).
		Msg("[ProcessAnalysis] Starting share of voice pipeline")

	run, err := runStep(ctx, p.durable, "start-run", func(ctx context.Context) (*services.AnalysisRun, error) {
		return p.analysis.StartRun(ctx, req)
	})
	if err != nil {
		p.reportFailure(ctx, "start-run", req, nil, err)
		return nil, fmt.Errorf("step start-run failed: %w", err)
	}

	for _, stage := range p.stages() {
		current := run
		next, err := runStep(ctx, p.durable, stage.id, func(ctx context.Context) (*services.AnalysisRun, error) {
			if err := stage.run(ctx, current); err != nil {
				return nil, err
			}
			return current, nil
		})
		if err != nil {
			p.reportFailure(ctx, stage.id, req, current, err)
			return nil, fmt.Errorf("step %s failed: %w", stage.id, err)
		}
		run = next
	}

	log.Info().
		Str("session_id", run.SessionID).
		Str("brand_id", run.BrandID.String()).
		Int("failures", len(run.Failures)).
		Msg("[ProcessAnalysis] Share of voice pipeline complete")

	return map[string]interface{}{
		"analysis_session_id": run.SessionID,
		"brand_id":            run.BrandID.String(),
		"brand_name":          run.BrandName,
		"status":              "completed",
		"stage":               run.Stage.String(),
		"categories":          run.Categories,
		"competitors":         run.Competitors,
		"prompts":             len(run.PromptIDs),
		"responses":           len(run.ResponseIDs),
		"failed_responses":    run.FailedResponses,
		"mentions":            run.MentionCount,
		"sov_record_id":       run.SOVRecordID.String(),
		"failures":            len(run.Failures),
		"usage":               run.Usage,
		"completed_at":        time.Now().UTC(),
	}, nil
}

// isFatal reports errors no retry can fix.
func isFatal(err error) bool {
	return errors.Is(err, services.ErrBrandNotFound) ||
		errors.Is(err, services.ErrNoCategories) ||
		errors.Is(err, services.ErrInvalidRequest)
}

func (p *AnalysisProcessor) reportFailure(ctx context.Context, stage string, req services.AnalysisRequest, run *services.AnalysisRun, err error) {
	if ctx.Err() != nil {
		return
	}
	brandID, brandName, sessionID := "", req.BrandName, req.SessionID
	if run != nil {
		brandID, brandName, sessionID = run.BrandID.String(), run.BrandName, run.SessionID
	}
	log.Error().
		Err(err).
		Str("stage", stage).
		Str("session_id", sessionID).
		Str("brand_id", brandID).
		Bool("fatal", isFatal(err)).
		Msg("[ProcessAnalysis] Pipeline step failed")

	if !isFatal(err) || !p.slack.Enabled() {
		return
	}
	reason := fmt.Sprintf("stage %s failed for %s", stage, req.Domain)
	if slackErr := p.slack.ReportPipelineFailure(ctx, "brand-analysis", brandID, brandName, sessionID, reason, err); slackErr != nil {
		log.Warn().Err(slackErr).Msg("[ProcessAnalysis] Failed to report to Slack")
	}
}
