package providers

import (
	"context"
	"errors"
)

// ErrMissingCredentials is returned by every call on a provider built
// without an API key. Pipeline stages treat it as an unavailable upstream.
var ErrMissingCredentials = errors.New("model credentials not configured")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema asks the provider for a structured reply. Providers without
// native support fold the schema into the prompt.
type JSONSchema struct {
	Name        string
	Description string
	Schema      any
}

// ChatRequest is the vendor-neutral completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Schema      *JSONSchema
}

// ChatResponse carries the free text of the first choice plus usage.
type ChatResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Model        string
}

// ModelService is the opaque text-completion capability every pipeline
// stage depends on.
type ModelService interface {
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	GetProviderName() string
}

// Embedder turns texts into vectors for the response index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
