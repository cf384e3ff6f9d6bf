package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/inngest/inngestgo"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-sov/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/services"
)

// fakeSender records sent events and fails for events whose data matches failOn.
type fakeSender struct {
	mu     sync.Mutex
	events []inngestgo.Event
	failOn string
}

func (f *fakeSender) Send(ctx context.Context, evt any) (string, error) {
	e, ok := evt.(inngestgo.Event)
	if !ok {
		return "", errors.New("unexpected event type")
	}
	if f.failOn != "" {
		for _, v := range e.Data {
			if s, ok := v.(string); ok && s == f.failOn {
				return "", errors.New("event api unavailable")
			}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return "evt-" + e.Name, nil
}

func (f *fakeSender) sent() []inngestgo.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inngestgo.Event(nil), f.events...)
}

// slackSink is a webhook endpoint that keeps every posted payload.
type slackSink struct {
	mu       sync.Mutex
	payloads []SlackPayload
	status   int
}

func newSlackSink(t *testing.T) (*slackSink, *httptest.Server) {
	t.Helper()
	sink := &slackSink{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p SlackPayload
		_ = json.Unmarshal(body, &p)
		sink.mu.Lock()
		sink.payloads = append(sink.payloads, p)
		status := sink.status
		sink.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return sink, srv
}

func (s *slackSink) received() []SlackPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SlackPayload(nil), s.payloads...)
}

// newTestPipeline wires the services over the memory store with a model that
// has no scripted replies, so every stage takes its templated path.
func newTestPipeline(t *testing.T) (services.AnalysisService, services.Pipeline, *store.RepositoryManager) {
	t.Helper()
	cfg := testutil.SampleConfig()
	cfg.Pipeline.MaxConcurrency = 2
	repos := store.NewMemoryRepositoryManager()
	budget, err := services.NewTextBudget()
	require.NoError(t, err)
	p := services.NewPipeline(cfg, repos, services.SingleModel(testutil.NewMockModelService()), budget, nil)
	return services.NewAnalysisService(cfg, repos, p), p, repos
}
