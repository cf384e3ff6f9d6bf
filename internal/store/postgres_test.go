package store

import (
	"context"
	"os"
	"testing"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a disposable database: TEST_DATABASE_URL=postgres://...
func openTestDB(t *testing.T) *RepositoryManager {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(context.Background(), db))
	rm := NewPostgresRepositoryManager(db)
	t.Cleanup(func() { rm.Close() })
	return rm
}

func TestPostgresRoundTrip(t *testing.T) {
	rm := openTestDB(t)
	ctx := context.Background()
	session := "test_" + uuid.NewString()

	brand := &models.Brand{
		OwnerID:     "owner-" + uuid.NewString(),
		Domain:      "acme.com",
		Name:        "Acme",
		Competitors: []string{"Acme Rival"},
		Isolated:    true,
		SessionID:   session,
	}
	require.NoError(t, rm.BrandRepo.Create(ctx, brand))

	cat, err := rm.CategoryRepo.FindOrCreate(ctx, brand.ID, "Widgets", session)
	require.NoError(t, err)
	dup, err := rm.CategoryRepo.FindOrCreate(ctx, brand.ID, "WIDGETS", session)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, dup.ID)

	prompt := &models.Prompt{BrandID: brand.ID, CategoryID: cat.ID, Text: "Best widgets?", SessionID: session}
	require.NoError(t, rm.PromptRepo.Create(ctx, prompt))
	resp := &models.AIResponse{PromptID: prompt.ID, CategoryID: cat.ID, BrandID: brand.ID, Text: "Acme", SessionID: session}
	require.NoError(t, rm.ResponseRepo.Create(ctx, resp))

	mention := func() *models.Mention {
		return &models.Mention{PromptID: prompt.ID, ResponseID: resp.ID, CategoryID: cat.ID, BrandID: brand.ID,
			CompanyName: "Acme", Confidence: 1, SessionID: session}
	}
	require.NoError(t, rm.MentionRepo.CreateMany(ctx, []*models.Mention{mention(), mention()}))
	mentions, err := rm.MentionRepo.ListByResponse(ctx, resp.ID)
	require.NoError(t, err)
	assert.Len(t, mentions, 1, "unique index keeps one mention per company per response")

	citation := func() *models.Citation {
		return &models.Citation{PromptID: prompt.ID, ResponseID: resp.ID, BrandID: brand.ID,
			URL: "https://acme.com/pricing", Domain: "acme.com", Primary: true, SessionID: session}
	}
	require.NoError(t, rm.CitationRepo.CreateMany(ctx, []*models.Citation{citation(), citation()}))
	citations, err := rm.CitationRepo.ListBySession(ctx, session)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.True(t, citations[0].Primary)

	rec := &models.ShareOfVoiceRecord{
		BrandID:       brand.ID,
		BrandName:     "Acme",
		SessionID:     session,
		Competitors:   []string{"Acme Rival"},
		TotalMentions: 1,
		MentionCounts: map[string]int{"Acme": 1, "Acme Rival": 0},
		ShareOfVoice:  map[string]float64{"Acme": 100, "Acme Rival": 0},
		BrandShare:    100,
	}
	require.NoError(t, rm.SOVRepo.Create(ctx, rec))

	got, err := rm.SOVRepo.LatestBySession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, rec.MentionCounts, got.MentionCounts)
	assert.Equal(t, []string{"Acme Rival"}, got.Competitors)

	got.Competitors = []string{"Gizmo Co"}
	delete(got.MentionCounts, "Acme Rival")
	require.NoError(t, rm.SOVRepo.Update(ctx, got))
	reread, err := rm.SOVRepo.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gizmo Co"}, reread.Competitors)
	assert.NotContains(t, reread.MentionCounts, "Acme Rival")
}
