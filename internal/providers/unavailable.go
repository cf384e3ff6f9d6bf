package providers

import (
	"context"
	"fmt"

	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
)

// unavailableProvider stands in when credentials are missing so the
// pipeline still runs end to end on its fallback values.
type unavailableProvider struct {
	name   string
	reason error
}

func NewUnavailableProvider(name string, reason error) ModelService {
	if reason == nil {
		reason = ErrMissingCredentials
	}
	return &unavailableProvider{name: name, reason: reason}
}

func (p *unavailableProvider) GetProviderName() string {
	return p.name
}

func (p *unavailableProvider) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	telemetry.RecordModelCall(ctx, p.name, p.reason)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s provider unavailable: %w", p.name, p.reason)
}

type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embeddings unavailable: %w", ErrMissingCredentials)
}
