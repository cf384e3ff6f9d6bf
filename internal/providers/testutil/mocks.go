package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/AI-Template-SDK/senso-sov/internal/providers"
)

// ErrUpstreamDown is the default failure of an unreachable mock model.
var ErrUpstreamDown = errors.New("mock upstream unreachable")

// MockCostService is a mock implementation of CostService for testing
type MockCostService struct {
	CalculateCostFunc func(provider, model string, inputTokens, outputTokens int) float64
}

func (m *MockCostService) CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	if m.CalculateCostFunc != nil {
		return m.CalculateCostFunc(provider, model, inputTokens, outputTokens)
	}
	return 0.0015 // Default mock cost
}

// NewMockCostService creates a new mock cost service
func NewMockCostService() *MockCostService {
	return &MockCostService{}
}

type replyRule struct {
	contains string
	reply    string
	err      error
}

// MockModelService records every request and answers from, in order: the
// first matching rule, CompleteFunc, then DefaultReply. It is safe for use
// from concurrent workers.
type MockModelService struct {
	CompleteFunc func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error)
	DefaultReply string
	Name         string

	mu       sync.Mutex
	rules    []replyRule
	requests []*providers.ChatRequest
}

func NewMockModelService() *MockModelService {
	return &MockModelService{Name: "mock"}
}

// NewUnreachableModelService fails every call.
func NewUnreachableModelService() *MockModelService {
	m := NewMockModelService()
	m.CompleteFunc = func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
		return nil, ErrUpstreamDown
	}
	return m
}

// On answers reply to any request whose messages contain substr.
func (m *MockModelService) On(substr, reply string) *MockModelService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, replyRule{contains: substr, reply: reply})
	return m
}

// OnError fails any request whose messages contain substr.
func (m *MockModelService) OnError(substr string, err error) *MockModelService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, replyRule{contains: substr, err: err})
	return m
}

func (m *MockModelService) GetProviderName() string {
	if m.Name == "" {
		return "mock"
	}
	return m.Name
}

func (m *MockModelService) Complete(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	rules := append([]replyRule(nil), m.rules...)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := RequestText(req)
	for _, r := range rules {
		if strings.Contains(text, r.contains) {
			if r.err != nil {
				return nil, r.err
			}
			return reply(req, r.reply), nil
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return reply(req, m.DefaultReply), nil
}

// Requests returns a copy of every request seen so far.
func (m *MockModelService) Requests() []*providers.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*providers.ChatRequest(nil), m.requests...)
}

func (m *MockModelService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// RequestText joins all message contents of a request.
func RequestText(req *providers.ChatRequest) string {
	parts := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}

func reply(req *providers.ChatRequest, content string) *providers.ChatResponse {
	return &providers.ChatResponse{
		Content:      content,
		InputTokens:  len(RequestText(req)) / 4,
		OutputTokens: len(content) / 4,
		Model:        req.Model,
	}
}

// MockEmbedder returns fixed-size vectors, or EmbedErr when set.
type MockEmbedder struct {
	Dimensions int
	EmbedErr   error
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	dims := m.Dimensions
	if dims == 0 {
		dims = 8
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}
