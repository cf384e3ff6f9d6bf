package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseFixture(t *testing.T, texts ...string) (*store.RepositoryManager, *models.Brand, []*models.PromptWithCategory) {
	t.Helper()
	ctx := context.Background()
	repos := store.NewMemoryRepositoryManager()
	brand := createBrand(t, repos, acmeRival)
	cat, err := repos.CategoryRepo.FindOrCreate(ctx, brand.ID, "Industrial Widgets", testSessionID)
	require.NoError(t, err)

	out := make([]*models.PromptWithCategory, 0, len(texts))
	for _, text := range texts {
		p := &models.Prompt{BrandID: brand.ID, CategoryID: cat.ID, Text: text, SessionID: testSessionID}
		require.NoError(t, repos.PromptRepo.Create(ctx, p))
		out = append(out, &models.PromptWithCategory{Prompt: p, Category: cat})
	}
	return repos, brand, out
}

func TestRunResponsesStoresSessionTaggedResponses(t *testing.T) {
	repos, brand, prompts := responseFixture(t, "Who makes durable widgets?", "Best widget supplier?")
	model := happyModel()

	res, err := NewResponseGenerator(testConfig(), model, repos).RunResponses(context.Background(), ResponseInput{
		Prompts: prompts, BrandID: brand.ID, UserID: testOwner, SessionID: testSessionID,
	})
	require.NoError(t, err)
	require.Len(t, res.Responses(), 2)
	assert.Empty(t, res.Failures)

	stored, err := repos.ResponseRepo.ListBySession(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, r := range stored {
		assert.Equal(t, testSessionID, r.SessionID)
		assert.Equal(t, brand.ID, r.BrandID)
		assert.Equal(t, testOwner, r.UserID)
		assert.Contains(t, r.Text, "Acme Rival")
	}
	for _, req := range model.Requests() {
		assert.True(t, strings.HasSuffix(testutil.RequestText(req), responseInstruction))
	}
	assert.Equal(t, 2, res.Usage.Calls)
}

func TestRunResponsesIsolatesFailedPrompts(t *testing.T) {
	repos, brand, prompts := responseFixture(t, "Who makes durable widgets?", "Which widget vendor is cheapest?", "Best widget supplier?")
	model := testutil.NewMockModelService()
	model.CompleteFunc = func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
		if strings.Contains(testutil.RequestText(req), "cheapest") {
			return nil, errors.New("rate limited")
		}
		return &providers.ChatResponse{Content: "Acme Widgets is a safe pick."}, nil
	}

	res, err := NewResponseGenerator(testConfig(), model, repos).RunResponses(context.Background(), ResponseInput{
		Prompts: prompts, BrandID: brand.ID, UserID: testOwner, SessionID: testSessionID,
	})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.NoError(t, res.Outcomes[0].Err)
	assert.Error(t, res.Outcomes[1].Err)
	assert.NoError(t, res.Outcomes[2].Err)
	assert.Len(t, res.Responses(), 2)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureUpstreamUnavailable, res.Failures[0].Kind)
	assert.Equal(t, prompts[1].Prompt.ID.String(), res.Failures[0].Item)

	stored, err := repos.ResponseRepo.ListBySession(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunResponsesRejectsInvalidPrompts(t *testing.T) {
	repos, brand, prompts := responseFixture(t, "Who makes durable widgets?", "   ")
	prompts = append(prompts, &models.PromptWithCategory{Prompt: prompts[0].Prompt}, nil)
	model := happyModel()

	res, err := NewResponseGenerator(testConfig(), model, repos).RunResponses(context.Background(), ResponseInput{
		Prompts: prompts, BrandID: brand.ID, UserID: testOwner, SessionID: testSessionID,
	})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 4)
	assert.NoError(t, res.Outcomes[0].Err)
	for _, o := range res.Outcomes[1:] {
		assert.ErrorIs(t, o.Err, ErrInvalidPrompt)
	}
	assert.Equal(t, 1, model.CallCount())
	assert.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.Equal(t, models.FailureValidation, f.Kind)
	}
}

func TestRunResponsesUnreachableModel(t *testing.T) {
	repos, brand, prompts := responseFixture(t, "a?", "b?", "c?", "d?")

	res, err := NewResponseGenerator(testConfig(), testutil.NewUnreachableModelService(), repos).RunResponses(context.Background(), ResponseInput{
		Prompts: prompts, BrandID: brand.ID, UserID: testOwner, SessionID: testSessionID,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Responses())
	assert.Len(t, res.Failures, 4)
}

func TestRunResponsesCancelled(t *testing.T) {
	repos, brand, prompts := responseFixture(t, "a?", "b?")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := happyModel()

	res, err := NewResponseGenerator(testConfig(), model, repos).RunResponses(ctx, ResponseInput{
		Prompts: prompts, BrandID: brand.ID, UserID: testOwner, SessionID: testSessionID,
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Responses())
	assert.Zero(t, model.CallCount())
}
