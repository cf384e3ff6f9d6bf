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

func promptFixture(t *testing.T, names ...string) (*store.RepositoryManager, *models.Brand, []*models.Category) {
	t.Helper()
	repos := store.NewMemoryRepositoryManager()
	brand := createBrand(t, repos)
	cats := make([]*models.Category, 0, len(names))
	for _, n := range names {
		c, err := repos.CategoryRepo.FindOrCreate(context.Background(), brand.ID, n, testSessionID)
		require.NoError(t, err)
		cats = append(cats, c)
	}
	return repos, brand, cats
}

func TestGeneratePromptsHappyPath(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Industrial Widgets", "Widget Repair")
	model := happyModel()

	res, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Categories:  cats,
		Brand:       brand,
		Competitors: []string{acmeRival},
		SessionID:   testSessionID,
	})
	require.NoError(t, err)
	require.Len(t, res.Prompts, 10)
	assert.Zero(t, res.FallbackCategories)

	assert.Equal(t, cats[0].ID, res.Prompts[0].Category.ID, "results keep category order")
	assert.Equal(t, cats[1].ID, res.Prompts[9].Category.ID)

	stored, err := repos.PromptRepo.ListBySession(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 10)
	for _, p := range stored {
		assert.Equal(t, brand.ID, p.BrandID)
	}
	assert.Equal(t, 4, res.Usage.Calls)
}

func TestGeneratePromptsRequestCarriesBrandOmission(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Industrial Widgets", "Factory Supplies", "Widget Repair")
	model := happyModel()

	_, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Categories:  cats,
		Brand:       brand,
		Competitors: []string{acmeRival, "Gizmo Co"},
		SessionID:   testSessionID,
	})
	require.NoError(t, err)

	questionRequests := 0
	for _, req := range model.Requests() {
		text := testutil.RequestText(req)
		if !strings.Contains(text, questionCall) {
			continue
		}
		questionRequests++
		assert.Contains(t, text, "Do not mention Acme Widgets by name")
		assert.Contains(t, text, "Gizmo Co")
	}
	assert.Equal(t, 3, questionRequests)
}

func TestBuildQuestionPromptAlwaysOmitsBrand(t *testing.T) {
	brands := []string{"Acme", "Zeta & Sons", "Ünïcode Café", "a.b.c", ""}
	for _, b := range brands {
		for _, local := range []bool{false, true} {
			p := BuildQuestionPrompt(b, "Plumbing", []string{"leaky pipe fix"}, nil, "Austin", local)
			assert.Contains(t, p, "Do not mention "+b+" by name")
		}
	}
}

func TestGeneratePromptsFiltersBrandNamedQuestions(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Industrial Widgets")
	model := testutil.NewMockModelService().
		On(keywordCall, testutil.KeywordsReply).
		On(questionCall, `["Is acme widgets any good?", "Who sells the best widgets?", "Where to buy widgets online?"]`)

	res, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Categories: cats, Brand: brand, SessionID: testSessionID,
	})
	require.NoError(t, err)
	require.Len(t, res.Prompts, 2)
	for _, p := range res.Prompts {
		assert.NotContains(t, strings.ToLower(p.Prompt.Text), "acme widgets")
	}
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
}

func TestGeneratePromptsUnreachableUsesTemplates(t *testing.T) {
	repos, brand, cats := promptFixture(t, FallbackCategories...)

	res, err := NewPromptGenerator(testConfig(), testutil.NewUnreachableModelService(), repos).GeneratePrompts(context.Background(), PromptInput{
		Categories: cats, Brand: brand, SessionID: testSessionID,
	})
	require.NoError(t, err)
	assert.Len(t, res.Prompts, 20)
	assert.Equal(t, 4, res.FallbackCategories)

	byCategory := map[string]int{}
	for _, p := range res.Prompts {
		byCategory[p.Category.Name]++
		assert.NotContains(t, p.Prompt.Text, acmeBrandName)
	}
	for _, name := range FallbackCategories {
		assert.Equal(t, PromptsPerCategory, byCategory[name])
	}
	assert.Equal(t, FallbackQuestions("Products", "", false)[0], res.Prompts[0].Prompt.Text)
}

func TestGeneratePromptsOneCategoryFailingDoesNotStopOthers(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Industrial Widgets", "Widget Repair", "Custom Fabrication")
	model := testutil.NewMockModelService()
	model.CompleteFunc = func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
		text := testutil.RequestText(req)
		if strings.Contains(text, "Widget Repair") {
			return nil, errors.New("quota exceeded")
		}
		reply := testutil.KeywordsReply
		if strings.Contains(text, questionCall) {
			reply = testutil.QuestionsReply
		}
		return &providers.ChatResponse{Content: reply}, nil
	}

	res, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Categories: cats, Brand: brand, SessionID: testSessionID,
	})
	require.NoError(t, err)
	assert.Len(t, res.Prompts, 15)
	assert.Equal(t, 1, res.FallbackCategories)

	repair := 0
	for _, p := range res.Prompts {
		if p.Category.Name == "Widget Repair" {
			repair++
			assert.Contains(t, FallbackQuestions("Widget Repair", "", false), p.Prompt.Text)
		}
	}
	assert.Equal(t, 5, repair)
	for _, f := range res.Failures {
		assert.Equal(t, "Widget Repair", f.Item)
	}
}

func TestGeneratePromptsLocalVariant(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Plumbing")
	brand.IsLocalBrand = true
	brand.Location = "Austin, TX"
	model := testutil.NewMockModelService()

	res, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Categories: cats, Brand: brand, SessionID: testSessionID,
	})
	require.NoError(t, err)

	reqs := model.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, testutil.RequestText(reqs[0]), "near me")
	assert.Contains(t, testutil.RequestText(reqs[0]), "in Austin, TX")
	assert.Contains(t, testutil.RequestText(reqs[1]), "Location: Austin, TX")

	require.Len(t, res.Prompts, 5)
	assert.Contains(t, res.Prompts[0].Prompt.Text, "near me in Austin, TX")
}

func TestGeneratePromptsEmptyCategories(t *testing.T) {
	repos, brand, _ := promptFixture(t)
	model := happyModel()
	res, err := NewPromptGenerator(testConfig(), model, repos).GeneratePrompts(context.Background(), PromptInput{
		Brand: brand, SessionID: testSessionID,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Prompts)
	assert.Zero(t, model.CallCount())
}

func TestGeneratePromptsCancelled(t *testing.T) {
	repos, brand, cats := promptFixture(t, "Industrial Widgets")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPromptGenerator(testConfig(), happyModel(), repos).GeneratePrompts(ctx, PromptInput{
		Categories: cats, Brand: brand, SessionID: testSessionID,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackKeywords(t *testing.T) {
	assert.Equal(t, []string{"best widgets", "widgets reviews", "top widgets providers", "affordable widgets", "widgets comparison"},
		FallbackKeywords("Widgets", "", false))
	for _, k := range FallbackKeywords("Widgets", "Austin", true) {
		assert.True(t, strings.Contains(k, "near me") || strings.Contains(k, "Austin"), k)
	}
}
