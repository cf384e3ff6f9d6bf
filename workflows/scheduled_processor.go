package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/rs/zerolog/log"

	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/services"
)

type ScheduledProcessor struct {
	repos   *store.RepositoryManager
	client  inngestgo.Client
	sender  EventSender
	durable bool
}

func NewScheduledProcessor(repos *store.RepositoryManager) *ScheduledProcessor {
	return &ScheduledProcessor{repos: repos, durable: true}
}

func (p *ScheduledProcessor) SetClient(client inngestgo.Client) {
	p.client = client
	p.sender = client
}

// brandRef is the checkpointed view of a brand the crons fan out over.
type brandRef struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	Domain       string `json:"domain"`
	Name         string `json:"name"`
	IsLocalBrand bool   `json:"is_local_brand"`
	Location     string `json:"location,omitempty"`
}

// WeeklyBrandRefresh re-analyses every normal brand once a week.
func (p *ScheduledProcessor) WeeklyBrandRefresh() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "weekly-brand-refresh",
			Name: "Weekly Brand Refresh - Re-run Share of Voice",
		},
		inngestgo.CronTrigger("0 3 * * 1"), // Mondays at 3 AM UTC
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			return p.refresh(ctx, time.Now())
		},
	)
	if err != nil {
		fmt.Printf("Failed to create weekly brand refresh function: %v\n", err)
	}
	return fn
}

// SnapshotConsistencyAudit finds brands with snapshots whose competitor
// keys drifted from the brand and asks the sync workflow to repair them.
func (p *ScheduledProcessor) SnapshotConsistencyAudit() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "snapshot-consistency-audit",
			Name: "Snapshot Consistency Audit - Competitor Drift",
		},
		inngestgo.CronTrigger("0 4 * * *"), // Every day at 4 AM UTC
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			return p.audit(ctx, time.Now())
		},
	)
	if err != nil {
		fmt.Printf("Failed to create snapshot consistency audit function: %v\n", err)
	}
	return fn
}

func (p *ScheduledProcessor) refresh(ctx context.Context, now time.Time) (map[string]interface{}, error) {
	brands, err := runStep(ctx, p.durable, "list-brands", func(ctx context.Context) ([]brandRef, error) {
		list, err := p.repos.BrandRepo.List(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("failed to list brands: %w", err)
		}
		out := make([]brandRef, 0, len(list))
		for _, b := range list {
			out = append(out, brandRef{
				ID:           b.ID.String(),
				OwnerID:      b.OwnerID,
				Domain:       b.Domain,
				Name:         b.Name,
				IsLocalBrand: b.IsLocalBrand,
				Location:     b.Location,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	triggered := 0
	for _, b := range brands {
		// One step per brand so a retried run only resends what did not go out.
		_, err := runStep(ctx, p.durable, "trigger-analysis-"+b.ID, func(ctx context.Context) (string, error) {
			return p.sender.Send(ctx, NewAnalysisEvent(services.AnalysisRequest{
				OwnerID:      b.OwnerID,
				Domain:       b.Domain,
				BrandName:    b.Name,
				IsLocalBrand: b.IsLocalBrand,
				Location:     b.Location,
				Purpose:      "refresh",
			}, "weekly_refresh"))
		})
		if err != nil {
			log.Warn().Err(err).Str("brand_id", b.ID).Msg("[WeeklyBrandRefresh] Failed to send analysis event, continuing")
			continue
		}
		triggered++
	}

	return map[string]interface{}{
		"execution_date":     now.Format("2006-01-02"),
		"total_brands_found": len(brands),
		"triggered":          triggered,
		"message":            fmt.Sprintf("Triggered %d of %d brand analyses", triggered, len(brands)),
	}, nil
}

func (p *ScheduledProcessor) audit(ctx context.Context, now time.Time) (map[string]interface{}, error) {
	drifted, err := runStep(ctx, p.durable, "find-drifted-brands", func(ctx context.Context) ([]string, error) {
		return p.driftedBrands(ctx)
	})
	if err != nil {
		return nil, err
	}

	triggered := 0
	for _, id := range drifted {
		_, err := runStep(ctx, p.durable, "trigger-sync-"+id, func(ctx context.Context) (string, error) {
			return p.sender.Send(ctx, NewCompetitorsUpdatedEvent(id, nil, "consistency_audit"))
		})
		if err != nil {
			log.Warn().Err(err).Str("brand_id", id).Msg("[SnapshotConsistencyAudit] Failed to send sync event, continuing")
			continue
		}
		triggered++
	}

	return map[string]interface{}{
		"execution_date": now.Format("2006-01-02"),
		"drifted_brands": drifted,
		"triggered":      triggered,
	}, nil
}

// driftedBrands lists every brand, normal or isolated, that has at least
// one snapshot out of line with its competitor list.
func (p *ScheduledProcessor) driftedBrands(ctx context.Context) ([]string, error) {
	var out []string
	for _, isolated := range []bool{false, true} {
		brands, err := p.repos.BrandRepo.List(ctx, isolated)
		if err != nil {
			return nil, fmt.Errorf("failed to list brands: %w", err)
		}
		for _, b := range brands {
			records, err := p.repos.SOVRepo.ListByBrand(ctx, b.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list records for brand %s: %w", b.ID, err)
			}
			for _, r := range records {
				if services.NeedsSync(b, r) {
					out = append(out, b.ID.String())
					break
				}
			}
		}
	}
	log.Info().Int("drifted", len(out)).Msg("[SnapshotConsistencyAudit] Drift scan complete")
	return out, nil
}
