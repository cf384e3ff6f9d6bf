package services

import (
	"context"
	"testing"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func competitorInput(profile string) CompetitorInput {
	return CompetitorInput{
		BrandID:   uuid.New(),
		BrandName: acmeBrandName,
		Domain:    acmeDomain,
		Profile:   profile,
		SessionID: testSessionID,
	}
}

func TestExtractCompetitorsShapes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
		shape string
	}{
		{
			name:  "flat array",
			reply: testutil.CompetitorsFlatReply,
			want:  []string{"Acme Rival", "Widget World", "Gizmo Co", "Sprocket Supply", "Bolt Brothers"},
			shape: "string_array",
		},
		{
			name:  "array of objects",
			reply: testutil.CompetitorsObjectArrayReply,
			want:  []string{"Acme Rival", "Widget World", "Gizmo Co"},
			shape: "object_array_field",
		},
		{
			name:  "object with competitors",
			reply: testutil.CompetitorsObjectReply,
			want:  []string{"Acme Rival", "Widget World", "Gizmo Co"},
			shape: "object_field",
		},
		{
			name:  "salvage",
			reply: `competitors: "Acme Rival", "Gizmo Co"`,
			want:  []string{"Acme Rival", "Gizmo Co"},
			shape: "quoted_salvage",
		},
		{
			name:  "cap, trim and drop the brand",
			reply: `[" Acme Widgets ", "", 7, "A", "B", "C", "D", "E", "F"]`,
			want:  []string{"A", "B", "C", "D", "E"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testutil.NewMockModelService().On(competitorCall, tt.reply)
			res, err := NewCompetitorExtractor(testConfig(), model, store.NewMemoryRepositoryManager(), runeBudget{}).
				ExtractCompetitors(context.Background(), competitorInput("Acme makes widgets."))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Competitors)
			assert.False(t, res.Fallback)
			if tt.shape != "" {
				assert.Equal(t, tt.shape, res.Shape)
			}
			assert.LessOrEqual(t, len(res.Competitors), MaxCompetitors)
		})
	}
}

func TestExtractCompetitorsPlaceholders(t *testing.T) {
	for name, model := range map[string]*testutil.MockModelService{
		"garbage":     testutil.NewMockModelService().On(competitorCall, testutil.GarbageReply),
		"unreachable": testutil.NewUnreachableModelService(),
	} {
		t.Run(name, func(t *testing.T) {
			repos := store.NewMemoryRepositoryManager()
			in := competitorInput("")
			res, err := NewCompetitorExtractor(testConfig(), model, repos, runeBudget{}).ExtractCompetitors(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, []string{"Competitor A", "Competitor B", "Competitor C", "Competitor D", "Competitor E"}, res.Competitors)
			assert.True(t, res.Fallback)
			assert.NotEmpty(t, res.BrandDescription)

			seeds, err := repos.SeedRepo.ListByBrand(context.Background(), in.BrandID)
			require.NoError(t, err)
			require.Len(t, seeds, 5)
			assert.Equal(t, "placeholder", seeds[0].Source)
		})
	}
}

func TestExtractCompetitorsPersistsSeeds(t *testing.T) {
	repos := store.NewMemoryRepositoryManager()
	model := testutil.NewMockModelService().On(competitorCall, testutil.CompetitorsObjectReply)
	in := competitorInput("Acme makes widgets.")

	_, err := NewCompetitorExtractor(testConfig(), model, repos, runeBudget{}).ExtractCompetitors(context.Background(), in)
	require.NoError(t, err)

	seeds, err := repos.SeedRepo.ListByBrand(context.Background(), in.BrandID)
	require.NoError(t, err)
	require.Len(t, seeds, 3)
	for _, s := range seeds {
		assert.Equal(t, "model", s.Source)
		assert.Equal(t, testSessionID, s.SessionID)
	}
}

func TestExtractCompetitorsDescribeCall(t *testing.T) {
	t.Run("skipped when a profile is available", func(t *testing.T) {
		model := testutil.NewMockModelService().On(competitorCall, testutil.CompetitorsFlatReply)
		res, err := NewCompetitorExtractor(testConfig(), model, nil, runeBudget{}).
			ExtractCompetitors(context.Background(), competitorInput("Acme makes widgets."))
		require.NoError(t, err)
		assert.Equal(t, 1, model.CallCount())
		assert.Equal(t, "Acme makes widgets.", res.BrandDescription)
	})

	t.Run("used without a profile", func(t *testing.T) {
		model := testutil.NewMockModelService().
			On(describeCall, "Acme sells widgets to factories.").
			On(competitorCall, testutil.CompetitorsFlatReply)
		res, err := NewCompetitorExtractor(testConfig(), model, nil, runeBudget{}).
			ExtractCompetitors(context.Background(), competitorInput(""))
		require.NoError(t, err)
		assert.Equal(t, 2, model.CallCount())
		assert.Equal(t, "Acme sells widgets to factories.", res.BrandDescription)
		assert.Contains(t, testutil.RequestText(model.Requests()[1]), "Acme sells widgets to factories.")
	})

	t.Run("describe failure degrades to a templated line", func(t *testing.T) {
		model := testutil.NewMockModelService().
			OnError(describeCall, testutil.ErrUpstreamDown).
			On(competitorCall, testutil.CompetitorsFlatReply)
		res, err := NewCompetitorExtractor(testConfig(), model, nil, runeBudget{}).
			ExtractCompetitors(context.Background(), competitorInput(""))
		require.NoError(t, err)
		assert.False(t, res.Fallback)
		assert.Contains(t, res.BrandDescription, acmeDomain)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, models.FailureUpstreamUnavailable, res.Failures[0].Kind)
	})
}

func TestExtractCompetitorsStructuredOutput(t *testing.T) {
	model := testutil.NewMockModelService().On(competitorCall, structuredReply)
	res, err := NewCompetitorExtractor(testConfig(), model, nil, runeBudget{}).
		ExtractCompetitors(context.Background(), competitorInput("Acme makes widgets."))
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Rival", "Widget World"}, res.Competitors)

	req := model.Requests()[0]
	require.NotNil(t, req.Schema)
	schema, ok := req.Schema.Schema.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"competitors"}, schema["required"])
	assert.Contains(t, testutil.RequestText(req), `{"competitors": [`)
	assert.NotContains(t, testutil.RequestText(req), "JSON array")

	cfg := testConfig()
	cfg.Pipeline.StructuredOutputs = false
	plain := testutil.NewMockModelService().On(competitorCall, testutil.CompetitorsFlatReply)
	_, err = NewCompetitorExtractor(cfg, plain, nil, runeBudget{}).
		ExtractCompetitors(context.Background(), competitorInput("Acme makes widgets."))
	require.NoError(t, err)
	assert.Nil(t, plain.Requests()[0].Schema)
	assert.Contains(t, testutil.RequestText(plain.Requests()[0]), "Return strictly a JSON array of 5 company names")
	assert.NotContains(t, testutil.RequestText(plain.Requests()[0]), `{"competitors"`)
}
