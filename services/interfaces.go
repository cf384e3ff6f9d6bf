// services/interfaces.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

var (
	// ErrBrandNotFound aborts a run whose brand no longer exists.
	ErrBrandNotFound = errors.New("brand not found")
	// ErrNoCategories aborts prompt regeneration for a brand without categories.
	ErrNoCategories = errors.New("no categories found for brand")
	// ErrInvalidPrompt marks a prompt that lost its category reference.
	ErrInvalidPrompt = errors.New("prompt is missing its category reference")
	// ErrInvalidRequest rejects an analysis request before any work starts.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// Usage accumulates token and cost totals across model calls.
type Usage struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

func (u *Usage) add(resp *providers.ChatResponse) {
	u.Calls++
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
	u.Cost += resp.Cost
}

// Merge folds other into u.
func (u *Usage) Merge(other Usage) {
	u.Calls += other.Calls
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Cost += other.Cost
}

// StageReport carries the recovered failures and usage of one stage call.
type StageReport struct {
	Failures []models.StageFailure `json:"failures,omitempty"`
	Usage    Usage                 `json:"usage"`
}

func (r *StageReport) fail(ctx context.Context, stage string, kind models.FailureKind, item, msg string) {
	r.Failures = append(r.Failures, models.StageFailure{
		Stage:   stage,
		Kind:    kind,
		Item:    item,
		Message: msg,
		At:      time.Now().UTC(),
	})
	telemetry.RecordFallback(ctx, stage, string(kind))
}

func (r *StageReport) merge(other StageReport) {
	r.Failures = append(r.Failures, other.Failures...)
	r.Usage.Merge(other.Usage)
}

// complete runs one model call and records it on usage.
func complete(ctx context.Context, model providers.ModelService, req *providers.ChatRequest, usage *Usage) (string, error) {
	resp, err := completeResponse(ctx, model, req, usage)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func completeResponse(ctx context.Context, model providers.ModelService, req *providers.ChatRequest, usage *Usage) (*providers.ChatResponse, error) {
	resp, err := model.Complete(ctx, req)
	telemetry.RecordModelCall(ctx, model.GetProviderName(), err)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", model.GetProviderName(), err)
	}
	usage.add(resp)
	return resp, nil
}

// ProfileResult is the DomainProfiler output.
type ProfileResult struct {
	StageReport
	ProfileText string `json:"profile_text"`
	Description string `json:"description"`
	Fallback    bool   `json:"fallback"`
}

type DomainProfiler interface {
	ProfileDomain(ctx context.Context, domain string) (*ProfileResult, error)
}

type CategoryResult struct {
	StageReport
	Categories []string `json:"categories"`
	Shape      string   `json:"shape"`
	Fallback   bool     `json:"fallback"`
}

type CategoryExtractor interface {
	ExtractCategories(ctx context.Context, domain, profile string) (*CategoryResult, error)
}

// CompetitorInput describes the brand whose competitors are wanted.
// Profile is optional context from an earlier profiling stage.
type CompetitorInput struct {
	BrandID   uuid.UUID
	BrandName string
	Domain    string
	Profile   string
	SessionID string
}

type CompetitorResult struct {
	StageReport
	Competitors      []string `json:"competitors"`
	BrandDescription string   `json:"brand_description"`
	Shape            string   `json:"shape"`
	Fallback         bool     `json:"fallback"`
}

type CompetitorExtractor interface {
	ExtractCompetitors(ctx context.Context, in CompetitorInput) (*CompetitorResult, error)
}

type PromptInput struct {
	Categories  []*models.Category
	Brand       *models.Brand
	Competitors []string
	// Location overrides Brand.Location for local prompt phrasing.
	Location  string
	SessionID string
}

type PromptResult struct {
	StageReport
	Prompts []*models.PromptWithCategory `json:"prompts"`
	// FallbackCategories counts categories served by templated questions.
	FallbackCategories int `json:"fallback_categories"`
}

type PromptGenerator interface {
	GeneratePrompts(ctx context.Context, in PromptInput) (*PromptResult, error)
}

type ResponseInput struct {
	Prompts   []*models.PromptWithCategory
	BrandID   uuid.UUID
	UserID    string
	SessionID string
}

// ResponseOutcome is the per-prompt result. Exactly one of Result and Err
// is set.
type ResponseOutcome struct {
	Prompt *models.PromptWithCategory
	Result *models.ResponseWithCategory
	Err    error
}

type ResponseResult struct {
	StageReport
	Outcomes []*ResponseOutcome
}

// Responses returns the successfully stored responses in prompt order.
func (r *ResponseResult) Responses() []*models.ResponseWithCategory {
	var out []*models.ResponseWithCategory
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

type ResponseGenerator interface {
	RunResponses(ctx context.Context, in ResponseInput) (*ResponseResult, error)
}

// Alias is one spelling a company may appear under in a response.
type Alias struct {
	Text       string
	Confidence float64
}

// Candidate is a company that mention extraction searches for.
type Candidate struct {
	Company string
	Aliases []Alias
}

// Match is one company found in a text.
type Match struct {
	Company     string
	MatchedText string
	Confidence  float64
	Offset      int
}

type MentionExtractor interface {
	// FindMentions returns at most one match per candidate company.
	FindMentions(text string, candidates []Candidate) []Match
	// ExtractMentions replaces the stored mentions of response.
	ExtractMentions(ctx context.Context, response *models.AIResponse, candidates []Candidate) ([]*models.Mention, error)
}

// CitationMatch is one cleaned URL found in a text.
type CitationMatch struct {
	URL     string
	Domain  string
	Primary bool
}

type CitationExtractor interface {
	FindCitations(text, brandDomain string) []CitationMatch
	// ExtractCitations replaces the stored citations of response.
	ExtractCitations(ctx context.Context, response *models.AIResponse, brandDomain string) ([]*models.Citation, error)
}

// SOVInput selects the responses a share of voice record is computed over.
// A nil CategoryID means aggregate mode.
type SOVInput struct {
	Brand              *models.Brand
	Competitors        []string
	Responses          []*models.AIResponse
	CategoryID         *uuid.UUID
	SessionID          string
	PreserveOldRecords bool
}

type ShareOfVoiceCalculator interface {
	CalculateSOV(ctx context.Context, in SOVInput) (*models.ShareOfVoiceRecord, error)
}

// SyncOutcome reports what happened to one historical record.
type SyncOutcome struct {
	RecordID   uuid.UUID `json:"record_id"`
	SessionID  string    `json:"analysis_session_id,omitempty"`
	OK         bool      `json:"ok"`
	Recomputed bool      `json:"recomputed"`
	Removed    []string  `json:"removed,omitempty"`
	Added      []string  `json:"added,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type SyncManager interface {
	SyncCompetitors(ctx context.Context, brand *models.Brand) ([]SyncOutcome, error)
}

// BrandRequest identifies the brand an analysis runs against.
type BrandRequest struct {
	OwnerID      string
	Domain       string
	Name         string
	Isolated     bool
	IsLocalBrand bool
	Location     string
	SessionID    string
}

type BrandService interface {
	EnsureBrand(ctx context.Context, req BrandRequest) (*models.Brand, error)
	GetBrand(ctx context.Context, brandID uuid.UUID) (*models.Brand, error)
	UpdateCompetitors(ctx context.Context, brandID uuid.UUID, competitors []string) ([]SyncOutcome, error)
	Candidates(brand *models.Brand, competitors []string) []Candidate
}

// AnalysisRequest starts a pipeline run.
type AnalysisRequest struct {
	OwnerID      string `json:"owner_id"`
	Domain       string `json:"domain"`
	BrandName    string `json:"brand_name,omitempty"`
	Isolated     bool   `json:"isolated,omitempty"`
	IsLocalBrand bool   `json:"is_local_brand,omitempty"`
	Location     string `json:"location,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	// SessionID reuses a session minted by the caller.
	SessionID string `json:"analysis_session_id,omitempty"`
}

type AnalysisService interface {
	StartRun(ctx context.Context, req AnalysisRequest) (*AnalysisRun, error)
	Profile(ctx context.Context, run *AnalysisRun) error
	ExtractCategories(ctx context.Context, run *AnalysisRun) error
	ExtractCompetitors(ctx context.Context, run *AnalysisRun) error
	GeneratePrompts(ctx context.Context, run *AnalysisRun) error
	GenerateResponses(ctx context.Context, run *AnalysisRun) error
	ExtractMentions(ctx context.Context, run *AnalysisRun) error
	CalculateSOV(ctx context.Context, run *AnalysisRun) (*models.ShareOfVoiceRecord, error)
	IndexResponses(ctx context.Context, run *AnalysisRun) error
	RunAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisRun, *models.ShareOfVoiceRecord, error)
	RegeneratePrompts(ctx context.Context, brandID uuid.UUID, sessionID string) (*AnalysisRun, error)
}

// ResponseIndexer pushes stored responses into a search index.
type ResponseIndexer interface {
	Name() string
	IndexResponses(ctx context.Context, responses []*models.AIResponse) error
}

// TextBudget measures and truncates text in model tokens.
type TextBudget interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	return map[string]interface{}{
		"type":                 "object",
		"properties":           schema.Properties,
		"required":             schema.Required,
		"additionalProperties": false,
	}
}
