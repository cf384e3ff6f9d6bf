package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
)

// EmbeddingDimensions matches text-embedding-3-small and ada-002.
const EmbeddingDimensions = 1536

// EnsureQdrantCollection creates the response vector collection if missing.
func EnsureQdrantCollection(ctx context.Context, client *qdrant.Client, name string) error {
	err := client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     EmbeddingDimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create qdrant collection %s: %w", name, err)
	}
	return nil
}

// EnsureTypesenseCollection creates the response search collection if
// missing.
func EnsureTypesenseCollection(ctx context.Context, client *typesense.Client, name string) error {
	facet := true
	sort := true
	defaultSortField := "created_at"
	schema := &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "text", Type: "string"},
			{Name: "analysis_session_id", Type: "string", Facet: &facet},
			{Name: "brand_id", Type: "string", Facet: &facet},
			{Name: "category_id", Type: "string", Facet: &facet},
			{Name: "prompt_id", Type: "string"},
			{Name: "model", Type: "string", Facet: &facet},
			{Name: "created_at", Type: "int64", Sort: &sort},
		},
		DefaultSortingField: &defaultSortField,
	}
	_, err := client.Collections().Create(ctx, schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create typesense collection %s: %w", name, err)
	}
	return nil
}

type typesenseResponseIndexer struct {
	client     *typesense.Client
	collection string
	budget     TextBudget
	maxTokens  int
}

// NewTypesenseResponseIndexer indexes response text for keyword search.
func NewTypesenseResponseIndexer(client *typesense.Client, collection string, budget TextBudget, maxTokens int) ResponseIndexer {
	return &typesenseResponseIndexer{client: client, collection: collection, budget: budgetOrDefault(budget), maxTokens: maxTokens}
}

func (x *typesenseResponseIndexer) Name() string { return "typesense" }

func (x *typesenseResponseIndexer) IndexResponses(ctx context.Context, responses []*models.AIResponse) error {
	if len(responses) == 0 {
		return nil
	}
	docs := make([]interface{}, len(responses))
	for i, r := range responses {
		docs[i] = responseDocument(r, x.budget.Truncate(r.Text, x.maxTokens))
	}
	action := "upsert"
	results, err := x.client.Collection(x.collection).Documents().Import(ctx, docs, &api.ImportDocumentsParams{Action: &action})
	if err != nil {
		return fmt.Errorf("failed to import responses into typesense: %w", err)
	}
	failed := 0
	for _, res := range results {
		if res != nil && !res.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("typesense rejected %d of %d responses", failed, len(docs))
	}
	log.Info().Int("responses", len(docs)).Str("collection", x.collection).Msg("[IndexResponses] Indexed in typesense")
	return nil
}

type qdrantResponseIndexer struct {
	client     *qdrant.Client
	collection string
	embedder   providers.Embedder
	budget     TextBudget
	maxTokens  int
}

// NewQdrantResponseIndexer embeds responses and stores them as points keyed
// by response id, so re-indexing a session overwrites instead of growing.
func NewQdrantResponseIndexer(client *qdrant.Client, collection string, embedder providers.Embedder, budget TextBudget, maxTokens int) ResponseIndexer {
	return &qdrantResponseIndexer{client: client, collection: collection, embedder: embedder, budget: budgetOrDefault(budget), maxTokens: maxTokens}
}

func (x *qdrantResponseIndexer) Name() string { return "qdrant" }

func (x *qdrantResponseIndexer) IndexResponses(ctx context.Context, responses []*models.AIResponse) error {
	if len(responses) == 0 {
		return nil
	}
	texts := make([]string, len(responses))
	for i, r := range responses {
		texts[i] = x.budget.Truncate(r.Text, x.maxTokens)
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed responses: %w", err)
	}
	if len(vectors) != len(responses) {
		return fmt.Errorf("embedder returned %d vectors for %d responses", len(vectors), len(responses))
	}

	points := make([]*qdrant.PointStruct, len(responses))
	for i, r := range responses {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ID.String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"analysis_session_id": r.SessionID,
				"brand_id":            r.BrandID.String(),
				"category_id":         r.CategoryID.String(),
				"prompt_id":           r.PromptID.String(),
				"text":                texts[i],
			}),
		}
	}
	wait := true
	if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("failed to upsert responses into qdrant: %w", err)
	}
	log.Info().Int("responses", len(points)).Str("collection", x.collection).Msg("[IndexResponses] Indexed in qdrant")
	return nil
}

type multiIndexer struct {
	indexers []ResponseIndexer
}

// NewMultiIndexer runs every indexer and joins their errors. Nil entries
// are skipped; with nothing left it returns nil.
func NewMultiIndexer(indexers ...ResponseIndexer) ResponseIndexer {
	var live []ResponseIndexer
	for _, ix := range indexers {
		if ix != nil {
			live = append(live, ix)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return &multiIndexer{indexers: live}
}

func (m *multiIndexer) Name() string {
	names := make([]string, len(m.indexers))
	for i, ix := range m.indexers {
		names[i] = ix.Name()
	}
	return strings.Join(names, "+")
}

func (m *multiIndexer) IndexResponses(ctx context.Context, responses []*models.AIResponse) error {
	var errs []error
	for _, ix := range m.indexers {
		if err := ix.IndexResponses(ctx, responses); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ix.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func responseDocument(r *models.AIResponse, text string) map[string]interface{} {
	return map[string]interface{}{
		"id":                  r.ID.String(),
		"text":                text,
		"analysis_session_id": r.SessionID,
		"brand_id":            r.BrandID.String(),
		"category_id":         r.CategoryID.String(),
		"prompt_id":           r.PromptID.String(),
		"model":               r.Model,
		"created_at":          r.CreatedAt.Unix(),
	}
}
