package workflows

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-sov/services"
)

func TestProcessAnalysisRunsEveryStage(t *testing.T) {
	analysis, _, repos := newTestPipeline(t)
	p := NewAnalysisProcessor(analysis, NewSlackReporter(""), testutil.SampleConfig())
	p.durable = false

	out, err := p.process(context.Background(), AnalysisRequestedEvent{
		OwnerID:     "owner-1",
		Domain:      "acme-widgets.com",
		TriggeredBy: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, models.StageSOVCalculated.String(), out["stage"])
	assert.Equal(t, 20, out["prompts"])
	assert.Equal(t, 20, out["responses"])

	sessionID, _ := out["analysis_session_id"].(string)
	record, err := repos.SOVRepo.LatestBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, out["sov_record_id"], record.ID.String())
}

func TestProcessAnalysisReportsFatalFailures(t *testing.T) {
	sink, srv := newSlackSink(t)
	analysis, _, _ := newTestPipeline(t)
	p := NewAnalysisProcessor(analysis, NewSlackReporter(srv.URL), testutil.SampleConfig())
	p.durable = false

	_, err := p.process(context.Background(), AnalysisRequestedEvent{OwnerID: "owner-1"})
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	got := sink.received()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "brand-analysis")
	assert.Contains(t, got[0].Text, "start-run")
}

func TestProcessAnalysisStagesIncludeIndexingWhenEnabled(t *testing.T) {
	analysis, _, _ := newTestPipeline(t)
	cfg := testutil.SampleConfig()
	p := NewAnalysisProcessor(analysis, nil, cfg)
	assert.Len(t, p.stages(), 7)

	cfg.Pipeline.IndexResponses = true
	ids := []string{}
	for _, s := range p.stages() {
		ids = append(ids, s.id)
	}
	assert.Equal(t, "index-responses", ids[len(ids)-1])
}

func TestSyncCompetitorsProcessor(t *testing.T) {
	ctx := context.Background()
	_, pipeline, repos := newTestPipeline(t)
	brand := &models.Brand{OwnerID: "owner-1", Domain: "acme-widgets.com", Name: "Acme Widgets", Competitors: []string{"Alpha", "Beta"}}
	require.NoError(t, repos.BrandRepo.Create(ctx, brand))
	record := &models.ShareOfVoiceRecord{
		BrandID:       brand.ID,
		BrandName:     brand.Name,
		Competitors:   []string{"Alpha", "Beta"},
		MentionCounts: map[string]int{"Acme Widgets": 2, "Alpha": 1, "Beta": 1},
	}
	require.NoError(t, repos.SOVRepo.Create(ctx, record))

	p := NewCompetitorSyncProcessor(pipeline.Brands, pipeline.Sync, nil)
	p.durable = false

	out, err := p.process(ctx, CompetitorsUpdatedEvent{BrandID: brand.ID.String(), Competitors: []string{"Alpha", "Gamma"}, TriggeredBy: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, out["synced"])
	assert.Equal(t, 0, out["failed"])

	got, err := repos.SOVRepo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Acme Widgets": 2, "Alpha": 1, "Gamma": 0}, got.MentionCounts)

	// Without a list the stored one is re-synced.
	out, err = p.process(ctx, CompetitorsUpdatedEvent{BrandID: brand.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, out["synced"])
}

func TestSyncCompetitorsProcessorErrors(t *testing.T) {
	sink, srv := newSlackSink(t)
	_, pipeline, _ := newTestPipeline(t)
	p := NewCompetitorSyncProcessor(pipeline.Brands, pipeline.Sync, NewSlackReporter(srv.URL))
	p.durable = false

	_, err := p.process(context.Background(), CompetitorsUpdatedEvent{BrandID: "not-a-uuid"})
	assert.Error(t, err)

	_, err = p.process(context.Background(), CompetitorsUpdatedEvent{BrandID: uuid.NewString()})
	assert.ErrorIs(t, err, services.ErrBrandNotFound)
	require.Len(t, sink.received(), 1)
	assert.Contains(t, sink.received()[0].Text, "competitor-sync")
}

func TestWeeklyBrandRefresh(t *testing.T) {
	ctx := context.Background()
	_, _, repos := newTestPipeline(t)
	normal := []*models.Brand{
		{OwnerID: "owner-1", Domain: "acme-widgets.com", Name: "Acme Widgets"},
		{OwnerID: "owner-2", Domain: "gizmo.co", Name: "Gizmo Co", IsLocalBrand: true, Location: "Austin"},
		{OwnerID: "owner-3", Domain: "bolt.io", Name: "Bolt"},
	}
	for _, b := range normal {
		require.NoError(t, repos.BrandRepo.Create(ctx, b))
	}
	isolated := &models.Brand{OwnerID: "owner-1", Domain: "acme-widgets.com", Name: "Acme Widgets", Isolated: true, SessionID: "admin_1_abcdef12"}
	require.NoError(t, repos.BrandRepo.Create(ctx, isolated))

	sender := &fakeSender{failOn: "bolt.io"}
	p := NewScheduledProcessor(repos)
	p.durable = false
	p.sender = sender

	out, err := p.refresh(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, out["total_brands_found"])
	assert.Equal(t, 2, out["triggered"], "a failed send does not stop the others")

	events := sender.sent()
	require.Len(t, events, 2)
	domains := map[string]bool{}
	for _, e := range events {
		assert.Equal(t, EventAnalysisRequested, e.Name)
		assert.Equal(t, "weekly_refresh", e.Data["triggered_by"])
		assert.Equal(t, false, e.Data["isolated"])
		domains[e.Data["domain"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"acme-widgets.com": true, "gizmo.co": true}, domains)
}

func TestSnapshotConsistencyAudit(t *testing.T) {
	ctx := context.Background()
	_, _, repos := newTestPipeline(t)

	clean := &models.Brand{OwnerID: "owner-1", Domain: "acme-widgets.com", Name: "Acme Widgets", Competitors: []string{"Alpha"}}
	drifted := &models.Brand{OwnerID: "owner-2", Domain: "gizmo.co", Name: "Gizmo Co", Competitors: []string{"Alpha", "Gamma"}}
	for _, b := range []*models.Brand{clean, drifted} {
		require.NoError(t, repos.BrandRepo.Create(ctx, b))
	}
	require.NoError(t, repos.SOVRepo.Create(ctx, &models.ShareOfVoiceRecord{
		BrandID: clean.ID, BrandName: clean.Name, Competitors: []string{"Alpha"},
		MentionCounts: map[string]int{"Acme Widgets": 1, "Alpha": 1},
	}))
	require.NoError(t, repos.SOVRepo.Create(ctx, &models.ShareOfVoiceRecord{
		BrandID: drifted.ID, BrandName: drifted.Name, Competitors: []string{"Alpha", "Beta"},
		MentionCounts: map[string]int{"Gizmo Co": 1, "Alpha": 1, "Beta": 0},
	}))

	sender := &fakeSender{}
	p := NewScheduledProcessor(repos)
	p.durable = false
	p.sender = sender

	out, err := p.audit(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{drifted.ID.String()}, out["drifted_brands"])
	assert.Equal(t, 1, out["triggered"])

	events := sender.sent()
	require.Len(t, events, 1)
	assert.Equal(t, EventCompetitorsUpdated, events[0].Name)
	assert.Equal(t, drifted.ID.String(), events[0].Data["brand_id"])
	assert.NotContains(t, events[0].Data, "competitors")
}
