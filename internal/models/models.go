// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand is the business whose visibility is measured. Normal brands are
// upserted per owner; isolated brands are created once per analysis session.
type Brand struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	Domain       string    `json:"domain" db:"domain"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Competitors  []string  `json:"competitors" db:"-"`
	Isolated     bool      `json:"isolated" db:"isolated"`
	IsLocalBrand bool      `json:"is_local_brand" db:"is_local_brand"`
	Location     string    `json:"location,omitempty" db:"location"`
	SessionID    string    `json:"analysis_session_id,omitempty" db:"analysis_session_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UsesLocalPrompts reports whether prompt generation should inject geography.
func (b *Brand) UsesLocalPrompts() bool {
	return b.IsLocalBrand && b.Location != ""
}

type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BrandID   uuid.UUID `json:"brand_id" db:"brand_id"`
	Name      string    `json:"name" db:"name"`
	SessionID string    `json:"analysis_session_id,omitempty" db:"analysis_session_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Prompt struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BrandID    uuid.UUID `json:"brand_id" db:"brand_id"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
	Text       string    `json:"text" db:"text"`
	SessionID  string    `json:"analysis_session_id,omitempty" db:"analysis_session_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// AIResponse is the raw completion for one prompt. It is never edited.
type AIResponse struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PromptID     uuid.UUID `json:"prompt_id" db:"prompt_id"`
	CategoryID   uuid.UUID `json:"category_id" db:"category_id"`
	BrandID      uuid.UUID `json:"brand_id" db:"brand_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Text         string    `json:"text" db:"text"`
	Model        string    `json:"model" db:"model"`
	InputTokens  int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens int       `json:"output_tokens" db:"output_tokens"`
	Cost         float64   `json:"cost" db:"cost"`
	SessionID    string    `json:"analysis_session_id" db:"analysis_session_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Mention records that a company name was present in a response. There is at
// most one Mention per (response, company).
type Mention struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PromptID    uuid.UUID `json:"prompt_id" db:"prompt_id"`
	ResponseID  uuid.UUID `json:"response_id" db:"response_id"`
	CategoryID  uuid.UUID `json:"category_id" db:"category_id"`
	BrandID     uuid.UUID `json:"brand_id" db:"brand_id"`
	CompanyName string    `json:"company_name" db:"company_name"`
	MatchedText string    `json:"matched_text" db:"matched_text"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	SessionID   string    `json:"analysis_session_id" db:"analysis_session_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Citation is a URL a response cites. Primary citations point at the
// brand's own domain.
type Citation struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PromptID   uuid.UUID `json:"prompt_id" db:"prompt_id"`
	ResponseID uuid.UUID `json:"response_id" db:"response_id"`
	BrandID    uuid.UUID `json:"brand_id" db:"brand_id"`
	URL        string    `json:"url" db:"url"`
	Domain     string    `json:"domain" db:"domain"`
	Primary    bool      `json:"primary" db:"is_primary"`
	SessionID  string    `json:"analysis_session_id" db:"analysis_session_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CompetitorSeed keeps every competitor name accepted by competitor
// extraction so later runs can cross-reference where a name came from.
type CompetitorSeed struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BrandID   uuid.UUID `json:"brand_id" db:"brand_id"`
	Name      string    `json:"name" db:"name"`
	Source    string    `json:"source" db:"source"`
	SessionID string    `json:"analysis_session_id,omitempty" db:"analysis_session_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ShareOfVoiceRecord is derived from the Mention set of one session, or of a
// brand for legacy records without a session.
type ShareOfVoiceRecord struct {
	ID                uuid.UUID          `json:"id"`
	BrandID           uuid.UUID          `json:"brand_id"`
	BrandName         string             `json:"brand_name"`
	CategoryID        *uuid.UUID         `json:"category_id,omitempty"`
	SessionID         string             `json:"analysis_session_id,omitempty"`
	Competitors       []string           `json:"competitors"`
	TotalMentions     int                `json:"total_mentions"`
	TotalResponses    int                `json:"total_responses"`
	MentionCounts     map[string]int     `json:"mention_counts"`
	ShareOfVoice      map[string]float64 `json:"share_of_voice"`
	BrandShare        float64            `json:"brand_share"`
	Coverage          float64            `json:"coverage"`
	AIVisibilityScore float64            `json:"ai_visibility_score"`
	CalculatedAt      time.Time          `json:"calculated_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Clone returns a deep copy so stores never share maps with callers.
func (r *ShareOfVoiceRecord) Clone() *ShareOfVoiceRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Competitors = append([]string(nil), r.Competitors...)
	out.MentionCounts = make(map[string]int, len(r.MentionCounts))
	for k, v := range r.MentionCounts {
		out.MentionCounts[k] = v
	}
	out.ShareOfVoice = make(map[string]float64, len(r.ShareOfVoice))
	for k, v := range r.ShareOfVoice {
		out.ShareOfVoice[k] = v
	}
	if r.CategoryID != nil {
		id := *r.CategoryID
		out.CategoryID = &id
	}
	return &out
}

// PromptWithCategory pairs a stored prompt with the category it belongs to.
type PromptWithCategory struct {
	Prompt   *Prompt   `json:"prompt"`
	Category *Category `json:"category"`
}

// ResponseWithCategory is the response generator's per-prompt output.
type ResponseWithCategory struct {
	Response *AIResponse `json:"response"`
	Category *Category   `json:"category"`
}
