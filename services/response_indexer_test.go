package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"
)

type recordingIndexer struct {
	name string
	err  error
	got  int
}

func (r *recordingIndexer) Name() string { return r.name }

func (r *recordingIndexer) IndexResponses(ctx context.Context, responses []*models.AIResponse) error {
	r.got += len(responses)
	return r.err
}

func TestMultiIndexer(t *testing.T) {
	assert.Nil(t, NewMultiIndexer())
	assert.Nil(t, NewMultiIndexer(nil, nil))

	ok := &recordingIndexer{name: "ok"}
	bad := &recordingIndexer{name: "bad", err: errors.New("down")}
	ix := NewMultiIndexer(ok, nil, bad)
	assert.Equal(t, "ok+bad", ix.Name())

	responses := []*models.AIResponse{{ID: uuid.New()}, {ID: uuid.New()}}
	err := ix.IndexResponses(context.Background(), responses)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Equal(t, 2, ok.got, "a failing indexer does not stop the others")
	assert.Equal(t, 2, bad.got)
}

func TestTypesenseResponseIndexer(t *testing.T) {
	var (
		mu   sync.Mutex
		docs []map[string]interface{}
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		scanner := bufio.NewScanner(r.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		var lines []string
		for scanner.Scan() {
			var doc map[string]interface{}
			if err := json.Unmarshal(scanner.Bytes(), &doc); err == nil {
				docs = append(docs, doc)
			}
			lines = append(lines, `{"success":true}`)
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	defer srv.Close()

	client := typesense.NewClient(typesense.WithServer(srv.URL), typesense.WithAPIKey("test"))
	ix := NewTypesenseResponseIndexer(client, "sov_responses", runeBudget{}, 2)

	resp := &models.AIResponse{ID: uuid.New(), BrandID: uuid.New(), SessionID: testSessionID, Text: "Acme Widgets is the best supplier"}
	require.NoError(t, ix.IndexResponses(context.Background(), []*models.AIResponse{resp}))
	require.NoError(t, ix.IndexResponses(context.Background(), nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/collections/sov_responses/documents/import", path)
	require.Len(t, docs, 1)
	assert.Equal(t, resp.ID.String(), docs[0]["id"])
	assert.Equal(t, testSessionID, docs[0]["analysis_session_id"])
	assert.Equal(t, "Acme Wi", docs[0]["text"])
}

func TestQdrantIndexerEmbedFailure(t *testing.T) {
	embedder := &testutil.MockEmbedder{EmbedErr: testutil.ErrUpstreamDown}
	ix := NewQdrantResponseIndexer(nil, "sov_responses", embedder, runeBudget{}, 100)

	err := ix.IndexResponses(context.Background(), []*models.AIResponse{{ID: uuid.New()}, {ID: uuid.New()}})
	assert.ErrorIs(t, err, testutil.ErrUpstreamDown)
	assert.NoError(t, ix.IndexResponses(context.Background(), nil))
}

func TestResponseDocument(t *testing.T) {
	r := &models.AIResponse{ID: uuid.New(), Model: "gpt-4.1"}
	doc := responseDocument(r, "trimmed")
	assert.Equal(t, "trimmed", doc["text"])
	assert.Equal(t, "gpt-4.1", doc["model"])
	assert.Equal(t, r.ID.String(), doc["id"])
}
