package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"
	"github.com/rs/zerolog/log"

	"github.com/AI-Template-SDK/senso-sov/services"
)

type CompetitorSyncProcessor struct {
	brands  services.BrandService
	sync    services.SyncManager
	slack   *SlackReporter
	client  inngestgo.Client
	durable bool
}

func NewCompetitorSyncProcessor(brands services.BrandService, sync services.SyncManager, slack *SlackReporter) *CompetitorSyncProcessor {
	return &CompetitorSyncProcessor{brands: brands, sync: sync, slack: slack, durable: true}
}

func (p *CompetitorSyncProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// SyncCompetitors propagates a brand's competitor list into every stored
// share of voice record.
func (p *CompetitorSyncProcessor) SyncCompetitors() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "sync-brand-competitors",
			Name:    "Sync Brand Competitors Into Share of Voice Snapshots",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger(EventCompetitorsUpdated, nil),
		func(ctx context.Context, input inngestgo.Input[CompetitorsUpdatedEvent]) (any, error) {
			return p.process(ctx, input.Event.Data)
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create SyncCompetitors function: %w", err))
	}
	return fn
}

func (p *CompetitorSyncProcessor) process(ctx context.Context, evt CompetitorsUpdatedEvent) (map[string]interface{}, error) {
	brandID, err := uuid.Parse(evt.BrandID)
	if err != nil {
		return nil, fmt.Errorf("invalid brand ID: %w", err)
	}
	log.Info().
		Str("brand_id", evt.BrandID).
		Str("triggered_by", evt.TriggeredBy).
		Msg("[SyncCompetitors] Starting competitor sync")

	outcomes, err := runStep(ctx, p.durable, "sync-competitors", func(ctx context.Context) ([]services.SyncOutcome, error) {
		if evt.Competitors != nil {
			return p.brands.UpdateCompetitors(ctx, brandID, evt.Competitors)
		}
		brand, err := p.brands.GetBrand(ctx, brandID)
		if err != nil {
			return nil, err
		}
		return p.sync.SyncCompetitors(ctx, brand)
	})
	if err != nil {
		if isFatal(err) && p.slack.Enabled() {
			if slackErr := p.slack.ReportPipelineFailure(ctx, "competitor-sync", evt.BrandID, "", "", "brand lookup failed", err); slackErr != nil {
				log.Warn().Err(slackErr).Msg("[SyncCompetitors] Failed to report to Slack")
			}
		}
		return nil, fmt.Errorf("step sync-competitors failed: %w", err)
	}

	synced, failed := 0, 0
	for _, o := range outcomes {
		if o.OK {
			synced++
		} else {
			failed++
		}
	}
	if failed > 0 {
		log.Warn().Str("brand_id", evt.BrandID).Int("failed", failed).Msg("[SyncCompetitors] Some snapshots were not updated")
		if p.slack.Enabled() {
			err := fmt.Errorf("%d of %d snapshots failed to sync for brand %s", failed, len(outcomes), evt.BrandID)
			if slackErr := p.slack.ReportError(ctx, err); slackErr != nil {
				log.Warn().Err(slackErr).Msg("[SyncCompetitors] Failed to report to Slack")
			}
		}
	}

	return map[string]interface{}{
		"brand_id": evt.BrandID,
		"records":  len(outcomes),
		"synced":   synced,
		"failed":   failed,
		"outcomes": outcomes,
	}, nil
}
