package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
)

func TestFindCitations(t *testing.T) {
	s := NewCitationExtractor(store.NewMemoryRepositoryManager())
	tests := []struct {
		name string
		text string
		want []CitationMatch
	}{
		{
			name: "no urls",
			text: "Acme Widgets is a solid choice.",
		},
		{
			name: "cleans www utm and trailing slash",
			text: "See https://www.Acme-Widgets.com/pricing/?utm_source=chatgpt&plan=pro for plans.",
			want: []CitationMatch{{URL: "https://acme-widgets.com/pricing?plan=pro", Domain: "acme-widgets.com", Primary: true}},
		},
		{
			name: "subdomains of the brand are primary",
			text: "Docs live at https://docs.acme-widgets.com/start and reviews at https://reviews.example.org/acme",
			want: []CitationMatch{
				{URL: "https://docs.acme-widgets.com/start", Domain: "docs.acme-widgets.com", Primary: true},
				{URL: "https://reviews.example.org/acme", Domain: "reviews.example.org"},
			},
		},
		{
			name: "lookalike domain is not primary",
			text: "Try https://notacme-widgets.com today.",
			want: []CitationMatch{{URL: "https://notacme-widgets.com", Domain: "notacme-widgets.com"}},
		},
		{
			name: "duplicates after cleaning collapse",
			text: "https://example.org/a/ and https://www.example.org/a?utm_medium=x",
			want: []CitationMatch{{URL: "https://example.org/a", Domain: "example.org"}},
		},
		{
			name: "images and bare hosts are skipped",
			text: "logo https://example.org/logo.PNG or acme-widgets.com or ftp://files.example.org/x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.FindCitations(tt.text, "https://www.acme-widgets.com"))
		})
	}
}

func TestExtractCitationsReplacesStored(t *testing.T) {
	ctx := context.Background()
	repos := store.NewMemoryRepositoryManager()
	s := NewCitationExtractor(repos)
	resp := &models.AIResponse{
		ID:        uuid.New(),
		PromptID:  uuid.New(),
		BrandID:   uuid.New(),
		SessionID: testSessionID,
		Text:      "Compare https://acme-widgets.com/widgets with https://widgetworld.com/shop.",
	}

	got, err := s.ExtractCitations(ctx, resp, acmeDomain)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Primary)
	assert.False(t, got[1].Primary)
	assert.Equal(t, resp.BrandID, got[1].BrandID)

	resp.Text = "Only https://widgetworld.com/shop now."
	got, err = s.ExtractCitations(ctx, resp, acmeDomain)
	require.NoError(t, err)
	require.Len(t, got, 1)

	stored, err := repos.CitationRepo.ListBySession(ctx, testSessionID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "https://widgetworld.com/shop", stored[0].URL)

	_, err = s.ExtractCitations(ctx, nil, acmeDomain)
	assert.Error(t, err)
}

func TestRunAnalysisStoresCitations(t *testing.T) {
	ctx := context.Background()
	model := testutil.NewMockModelService()
	model.On(profileCall, testutil.ProfileReply)
	model.On(categoryCall, testutil.CategoriesReply)
	model.On(competitorCall, testutil.CompetitorsFlatReply)
	model.On(keywordCall, testutil.KeywordsReply)
	model.On(questionCall, testutil.QuestionsReply)
	model.On(responseCall, "Acme Widgets (https://www.acme-widgets.com/?utm_source=ai) and Acme Rival (https://acmerival.com) lead.")
	svc, _, repos := newTestAnalysis(t, model)

	run, _, err := svc.RunAnalysis(ctx, AnalysisRequest{OwnerID: testOwner, Domain: acmeDomain})
	require.NoError(t, err)
	assert.Equal(t, 40, run.CitationCount)

	citations, err := repos.CitationRepo.ListBySession(ctx, run.SessionID)
	require.NoError(t, err)
	require.Len(t, citations, 40)
	primary := 0
	for _, c := range citations {
		if c.Primary {
			primary++
			assert.Equal(t, "https://acme-widgets.com", c.URL)
		}
	}
	assert.Equal(t, 20, primary)
}
