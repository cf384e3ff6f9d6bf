package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrandLifecycle(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()

	normal := &models.Brand{OwnerID: "user-1", Domain: "acme.com", Name: "Acme", Competitors: []string{"A"}}
	require.NoError(t, rm.BrandRepo.Create(ctx, normal))
	require.NotEqual(t, uuid.Nil, normal.ID)

	isolated := &models.Brand{OwnerID: "user-1", Domain: "acme.com", Name: "Acme", Isolated: true, SessionID: "s1"}
	require.NoError(t, rm.BrandRepo.Create(ctx, isolated))

	got, err := rm.BrandRepo.GetByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, normal.ID, got.ID, "owner lookup ignores isolated brands")

	got.Competitors[0] = "mutated"
	again, err := rm.BrandRepo.GetByID(ctx, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, again.Competitors, "returned rows must not alias the store")

	again.Competitors = []string{"A", "C"}
	require.NoError(t, rm.BrandRepo.Update(ctx, again))
	updated, err := rm.BrandRepo.GetByID(ctx, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, updated.Competitors)

	normals, err := rm.BrandRepo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, normals, 1)
	isolatedList, err := rm.BrandRepo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, isolatedList, 1)

	_, err = rm.BrandRepo.GetByOwner(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, rm.BrandRepo.Update(ctx, &models.Brand{ID: uuid.New()}), ErrNotFound)
}

func TestMemoryCategoryFindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	brandID := uuid.New()

	first, err := rm.CategoryRepo.FindOrCreate(ctx, brandID, "Industrial Widgets", "s1")
	require.NoError(t, err)
	second, err := rm.CategoryRepo.FindOrCreate(ctx, brandID, "  industrial widgets ", "s2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "s1", second.SessionID, "existing category keeps its creating session")

	other, err := rm.CategoryRepo.FindOrCreate(ctx, uuid.New(), "Industrial Widgets", "s1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "uniqueness is per brand")

	cats, err := rm.CategoryRepo.ListByBrand(ctx, brandID)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestMemoryCategoryConcurrentFindOrCreate(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	brandID := uuid.New()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := rm.CategoryRepo.FindOrCreate(ctx, brandID, "Pricing", "s1")
			if err == nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestMemorySessionScopedQueries(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	brandID := uuid.New()

	for _, session := range []string{"a", "b"} {
		resp := &models.AIResponse{BrandID: brandID, Text: "hello " + session, SessionID: session}
		require.NoError(t, rm.ResponseRepo.Create(ctx, resp))
		require.NoError(t, rm.MentionRepo.CreateMany(ctx, []*models.Mention{
			{ResponseID: resp.ID, BrandID: brandID, CompanyName: "Acme", SessionID: session},
		}))
		require.NoError(t, rm.PromptRepo.Create(ctx, &models.Prompt{BrandID: brandID, Text: "q", SessionID: session}))
	}

	respA, err := rm.ResponseRepo.ListBySession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, respA, 1)
	assert.Equal(t, "hello a", respA[0].Text)

	mentionsA, err := rm.MentionRepo.ListBySession(ctx, "a")
	require.NoError(t, err)
	for _, m := range mentionsA {
		assert.Equal(t, "a", m.SessionID)
	}

	all, err := rm.ResponseRepo.ListByBrand(ctx, brandID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := rm.MentionRepo.DeleteBySession(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	mentionsB, err := rm.MentionRepo.ListBySession(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, mentionsB, 1)

	n, err = rm.ResponseRepo.DeleteBySession(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryPromptUpdateOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()

	p := &models.Prompt{Text: "old", SessionID: "s"}
	require.NoError(t, rm.PromptRepo.Create(ctx, p))
	p.Text = "new"
	require.NoError(t, rm.PromptRepo.Update(ctx, p))

	got, err := rm.PromptRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)

	list, err := rm.PromptRepo.ListBySession(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemorySOVOrdering(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	brandID := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, session := range []string{"s1", "s2", "s3"} {
		require.NoError(t, rm.SOVRepo.Create(ctx, &models.ShareOfVoiceRecord{
			BrandID:       brandID,
			SessionID:     session,
			TotalMentions: i,
			MentionCounts: map[string]int{"Acme": i},
			ShareOfVoice:  map[string]float64{"Acme": 100},
			CalculatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := rm.SOVRepo.ListByBrand(ctx, brandID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "s3", list[0].SessionID)
	assert.Equal(t, "s1", list[2].SessionID)

	latest, err := rm.SOVRepo.LatestByBrand(ctx, brandID)
	require.NoError(t, err)
	assert.Equal(t, "s3", latest.SessionID)

	bySession, err := rm.SOVRepo.LatestBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, bySession.TotalMentions)

	bySession.MentionCounts["Acme"] = 99
	fresh, err := rm.SOVRepo.GetByID(ctx, bySession.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.MentionCounts["Acme"], "records are cloned on read")

	n, err := rm.SOVRepo.DeleteByBrandSession(ctx, brandID, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = rm.SOVRepo.LatestBySession(ctx, "s2")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, rm.SOVRepo.Update(ctx, &models.ShareOfVoiceRecord{ID: uuid.New()}), ErrNotFound)
}

func TestMemoryCompetitorSeeds(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	brandID := uuid.New()

	require.NoError(t, rm.SeedRepo.CreateMany(ctx, []*models.CompetitorSeed{
		{BrandID: brandID, Name: "Acme Rival", Source: "model"},
		{BrandID: brandID, Name: "Gizmo Co", Source: "model"},
		{BrandID: uuid.New(), Name: "Other", Source: "model"},
	}))

	seeds, err := rm.SeedRepo.ListByBrand(ctx, brandID)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Acme Rival", seeds[0].Name)
}

func TestManagerBackend(t *testing.T) {
	rm := NewMemoryRepositoryManager()
	assert.Equal(t, "memory", rm.Backend())
	assert.NoError(t, rm.Ping(context.Background()))
	assert.NoError(t, rm.Close())
}

func TestMemoryMentionUniquePerResponseCompany(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	responseID := uuid.New()

	m := func() *models.Mention {
		return &models.Mention{ResponseID: responseID, CompanyName: "Acme", SessionID: "s"}
	}
	require.NoError(t, rm.MentionRepo.CreateMany(ctx, []*models.Mention{m(), m()}))
	require.NoError(t, rm.MentionRepo.CreateMany(ctx, []*models.Mention{m()}))

	got, err := rm.MentionRepo.ListByResponse(ctx, responseID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := rm.MentionRepo.DeleteByResponse(ctx, responseID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryCitations(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryRepositoryManager()
	first, second := uuid.New(), uuid.New()

	c := func(resp uuid.UUID, url, session string) *models.Citation {
		return &models.Citation{ResponseID: resp, URL: url, SessionID: session}
	}
	require.NoError(t, rm.CitationRepo.CreateMany(ctx, []*models.Citation{
		c(first, "https://acme.com/pricing", "s1"),
		c(first, "https://acme.com/pricing", "s1"),
		c(second, "https://rival.io", "s1"),
		c(uuid.New(), "https://acme.com", "s2"),
	}))

	got, err := rm.CitationRepo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://acme.com/pricing", got[0].URL)

	n, err := rm.CitationRepo.DeleteByResponse(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rm.CitationRepo.DeleteBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
