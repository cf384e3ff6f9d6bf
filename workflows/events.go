package workflows

import (
	"context"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/AI-Template-SDK/senso-sov/services"
)

const (
	EventAnalysisRequested  = "brand.analysis.requested"
	EventCompetitorsUpdated = "brand.competitors.updated"
)

// EventSender is the part of inngestgo.Client the processors and the HTTP
// API use to emit events.
type EventSender interface {
	Send(ctx context.Context, evt any) (string, error)
}

// Event types
type AnalysisRequestedEvent struct {
	OwnerID      string `json:"owner_id"`
	Domain       string `json:"domain"`
	BrandName    string `json:"brand_name,omitempty"`
	Isolated     bool   `json:"isolated,omitempty"`
	IsLocalBrand bool   `json:"is_local_brand,omitempty"`
	Location     string `json:"location,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	SessionID    string `json:"analysis_session_id,omitempty"`
	TriggeredBy  string `json:"triggered_by"`
}

func (e AnalysisRequestedEvent) Request() services.AnalysisRequest {
	return services.AnalysisRequest{
		OwnerID:      e.OwnerID,
		Domain:       e.Domain,
		BrandName:    e.BrandName,
		Isolated:     e.Isolated,
		IsLocalBrand: e.IsLocalBrand,
		Location:     e.Location,
		Purpose:      e.Purpose,
		SessionID:    e.SessionID,
	}
}

type CompetitorsUpdatedEvent struct {
	BrandID string `json:"brand_id"`
	// Competitors replaces the stored list when set; otherwise the stored
	// list is re-synced as is.
	Competitors []string `json:"competitors,omitempty"`
	TriggeredBy string   `json:"triggered_by"`
}

// NewAnalysisEvent wraps a request for the analysis workflow.
func NewAnalysisEvent(req services.AnalysisRequest, triggeredBy string) inngestgo.Event {
	return inngestgo.Event{
		Name: EventAnalysisRequested,
		Data: map[string]interface{}{
			"owner_id":            req.OwnerID,
			"domain":              req.Domain,
			"brand_name":          req.BrandName,
			"isolated":            req.Isolated,
			"is_local_brand":      req.IsLocalBrand,
			"location":            req.Location,
			"purpose":             req.Purpose,
			"analysis_session_id": req.SessionID,
			"triggered_by":        triggeredBy,
		},
	}
}

func NewCompetitorsUpdatedEvent(brandID string, competitors []string, triggeredBy string) inngestgo.Event {
	data := map[string]interface{}{
		"brand_id":     brandID,
		"triggered_by": triggeredBy,
	}
	if competitors != nil {
		data["competitors"] = competitors
	}
	return inngestgo.Event{Name: EventCompetitorsUpdated, Data: data}
}

// runStep checkpoints fn as an inngest step when durable is set and calls it
// directly otherwise.
func runStep[T any](ctx context.Context, durable bool, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	if durable {
		return step.Run(ctx, id, fn)
	}
	return fn(ctx)
}
