package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// NewPostgresRepositoryManager wires every repository to one sqlx handle.
func NewPostgresRepositoryManager(db *sqlx.DB) *RepositoryManager {
	return &RepositoryManager{
		db:           db,
		BrandRepo:    &pgBrandRepo{db},
		CategoryRepo: &pgCategoryRepo{db},
		PromptRepo:   &pgPromptRepo{db},
		ResponseRepo: &pgResponseRepo{db},
		MentionRepo:  &pgMentionRepo{db},
		CitationRepo: &pgCitationRepo{db},
		SeedRepo:     &pgSeedRepo{db},
		SOVRepo:      &pgSOVRepo{db},
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	return int(n), err
}

// ---- brands ----

type pgBrandRepo struct{ db *sqlx.DB }

type brandRow struct {
	ID           uuid.UUID      `db:"id"`
	OwnerID      string         `db:"owner_id"`
	Domain       string         `db:"domain"`
	Name         string         `db:"name"`
	Description  string         `db:"description"`
	Competitors  pq.StringArray `db:"competitors"`
	Isolated     bool           `db:"isolated"`
	IsLocalBrand bool           `db:"is_local_brand"`
	Location     string         `db:"location"`
	SessionID    string         `db:"analysis_session_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r brandRow) toModel() *models.Brand {
	return &models.Brand{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Domain:       r.Domain,
		Name:         r.Name,
		Description:  r.Description,
		Competitors:  []string(r.Competitors),
		Isolated:     r.Isolated,
		IsLocalBrand: r.IsLocalBrand,
		Location:     r.Location,
		SessionID:    r.SessionID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const brandColumns = `id, owner_id, domain, name, description, competitors, isolated,
	is_local_brand, location, analysis_session_id, created_at, updated_at`

func (r *pgBrandRepo) Create(ctx context.Context, b *models.Brand) error {
	ensureID(&b.ID)
	now := time.Now().UTC()
	stamp(&b.CreatedAt, now)
	stamp(&b.UpdatedAt, now)

	_, err := r.db.ExecContext(ctx, `INSERT INTO brands (`+brandColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.OwnerID, b.Domain, b.Name, b.Description, pq.Array(nonNil(b.Competitors)),
		b.Isolated, b.IsLocalBrand, b.Location, b.SessionID, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert brand: %w", err)
	}
	return nil
}

func (r *pgBrandRepo) Update(ctx context.Context, b *models.Brand) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE brands SET domain = $2, name = $3, description = $4,
		competitors = $5, is_local_brand = $6, location = $7, updated_at = $8 WHERE id = $1`,
		b.ID, b.Domain, b.Name, b.Description, pq.Array(nonNil(b.Competitors)),
		b.IsLocalBrand, b.Location, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update brand: %w", err)
	}
	if n, _ := affected(res); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgBrandRepo) get(ctx context.Context, where string, arg any) (*models.Brand, error) {
	var row brandRow
	err := r.db.GetContext(ctx, &row, `SELECT `+brandColumns+` FROM brands WHERE `+where+` LIMIT 1`, arg)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (r *pgBrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *pgBrandRepo) GetByOwner(ctx context.Context, ownerID string) (*models.Brand, error) {
	return r.get(ctx, "owner_id = $1 AND NOT isolated", ownerID)
}

func (r *pgBrandRepo) List(ctx context.Context, isolated bool) ([]*models.Brand, error) {
	var rows []brandRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+brandColumns+` FROM brands WHERE isolated = $1 ORDER BY created_at`, isolated); err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	out := make([]*models.Brand, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

// ---- categories ----

type pgCategoryRepo struct{ db *sqlx.DB }

func (r *pgCategoryRepo) FindOrCreate(ctx context.Context, brandID uuid.UUID, name, sessionID string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, brand_id, name, analysis_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (brand_id, (lower(name))) DO NOTHING`,
		uuid.New(), brandID, name, sessionID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	var c models.Category
	if err := r.db.GetContext(ctx, &c, `SELECT id, brand_id, name, analysis_session_id, created_at
		FROM categories WHERE brand_id = $1 AND lower(name) = lower($2)`, brandID, name); err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return &c, nil
}

func (r *pgCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	if err := r.db.GetContext(ctx, &c, `SELECT id, brand_id, name, analysis_session_id, created_at
		FROM categories WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *pgCategoryRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.Category, error) {
	var out []*models.Category
	if err := r.db.SelectContext(ctx, &out, `SELECT id, brand_id, name, analysis_session_id, created_at
		FROM categories WHERE brand_id = $1 ORDER BY created_at`, brandID); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return out, nil
}

// ---- prompts ----

type pgPromptRepo struct{ db *sqlx.DB }

const promptColumns = `id, brand_id, category_id, text, analysis_session_id, created_at, updated_at`

func (r *pgPromptRepo) Create(ctx context.Context, p *models.Prompt) error {
	ensureID(&p.ID)
	now := time.Now().UTC()
	stamp(&p.CreatedAt, now)
	stamp(&p.UpdatedAt, now)
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO prompts (`+promptColumns+`)
		VALUES (:id, :brand_id, :category_id, :text, :analysis_session_id, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	return nil
}

func (r *pgPromptRepo) Update(ctx context.Context, p *models.Prompt) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE prompts SET text = :text, category_id = :category_id,
		updated_at = :updated_at WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	if n, _ := affected(res); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgPromptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	if err := r.db.GetContext(ctx, &p, `SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *pgPromptRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Prompt, error) {
	var out []*models.Prompt
	if err := r.db.SelectContext(ctx, &out, `SELECT `+promptColumns+` FROM prompts
		WHERE analysis_session_id = $1 ORDER BY created_at`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return out, nil
}

// ---- responses ----

type pgResponseRepo struct{ db *sqlx.DB }

const responseColumns = `id, prompt_id, category_id, brand_id, user_id, text, model,
	input_tokens, output_tokens, cost, analysis_session_id, created_at`

func (r *pgResponseRepo) Create(ctx context.Context, resp *models.AIResponse) error {
	ensureID(&resp.ID)
	stamp(&resp.CreatedAt, time.Now().UTC())
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO ai_responses (`+responseColumns+`)
		VALUES (:id, :prompt_id, :category_id, :brand_id, :user_id, :text, :model,
			:input_tokens, :output_tokens, :cost, :analysis_session_id, :created_at)`, resp)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

func (r *pgResponseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AIResponse, error) {
	var resp models.AIResponse
	if err := r.db.GetContext(ctx, &resp, `SELECT `+responseColumns+` FROM ai_responses WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &resp, nil
}

func (r *pgResponseRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.AIResponse, error) {
	var out []*models.AIResponse
	if err := r.db.SelectContext(ctx, &out, `SELECT `+responseColumns+` FROM ai_responses
		WHERE analysis_session_id = $1 ORDER BY created_at`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return out, nil
}

func (r *pgResponseRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.AIResponse, error) {
	var out []*models.AIResponse
	if err := r.db.SelectContext(ctx, &out, `SELECT `+responseColumns+` FROM ai_responses
		WHERE brand_id = $1 ORDER BY created_at`, brandID); err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return out, nil
}

func (r *pgResponseRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_responses WHERE analysis_session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete responses: %w", err)
	}
	return affected(res)
}

// ---- citations ----

type pgCitationRepo struct{ db *sqlx.DB }

const citationColumns = `id, prompt_id, response_id, brand_id, url, domain, is_primary,
	analysis_session_id, created_at`

func (r *pgCitationRepo) CreateMany(ctx context.Context, citations []*models.Citation) error {
	if len(citations) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin citation transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range citations {
		ensureID(&c.ID)
		stamp(&c.CreatedAt, now)
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO citations (`+citationColumns+`)
			VALUES (:id, :prompt_id, :response_id, :brand_id, :url, :domain, :is_primary,
				:analysis_session_id, :created_at)
			ON CONFLICT (response_id, url) DO NOTHING`, c); err != nil {
			return fmt.Errorf("failed to insert citation: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgCitationRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Citation, error) {
	var out []*models.Citation
	if err := r.db.SelectContext(ctx, &out, `SELECT `+citationColumns+` FROM citations
		WHERE analysis_session_id = $1 ORDER BY created_at`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list citations: %w", err)
	}
	return out, nil
}

func (r *pgCitationRepo) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM citations WHERE response_id = $1`, responseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete citations: %w", err)
	}
	return affected(res)
}

func (r *pgCitationRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM citations WHERE analysis_session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete citations: %w", err)
	}
	return affected(res)
}

// ---- mentions ----

type pgMentionRepo struct{ db *sqlx.DB }

const mentionColumns = `id, prompt_id, response_id, category_id, brand_id, company_name,
	matched_text, confidence, analysis_session_id, created_at`

// CreateMany inserts in one transaction. A second mention of the same
// company in the same response is ignored by the unique index.
func (r *pgMentionRepo) CreateMany(ctx context.Context, mentions []*models.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mention transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, m := range mentions {
		ensureID(&m.ID)
		stamp(&m.CreatedAt, now)
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO mentions (`+mentionColumns+`)
			VALUES (:id, :prompt_id, :response_id, :category_id, :brand_id, :company_name,
				:matched_text, :confidence, :analysis_session_id, :created_at)
			ON CONFLICT (response_id, company_name) DO NOTHING`, m); err != nil {
			return fmt.Errorf("failed to insert mention: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgMentionRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Mention, error) {
	var out []*models.Mention
	if err := r.db.SelectContext(ctx, &out, `SELECT `+mentionColumns+` FROM mentions
		WHERE analysis_session_id = $1 ORDER BY created_at`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}
	return out, nil
}

func (r *pgMentionRepo) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*models.Mention, error) {
	var out []*models.Mention
	if err := r.db.SelectContext(ctx, &out, `SELECT `+mentionColumns+` FROM mentions
		WHERE response_id = $1 ORDER BY created_at`, responseID); err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}
	return out, nil
}

func (r *pgMentionRepo) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mentions WHERE response_id = $1`, responseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mentions: %w", err)
	}
	return affected(res)
}

func (r *pgMentionRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mentions WHERE analysis_session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mentions: %w", err)
	}
	return affected(res)
}

// ---- competitor seeds ----

type pgSeedRepo struct{ db *sqlx.DB }

func (r *pgSeedRepo) CreateMany(ctx context.Context, seeds []*models.CompetitorSeed) error {
	now := time.Now().UTC()
	for _, s := range seeds {
		ensureID(&s.ID)
		stamp(&s.CreatedAt, now)
		if _, err := r.db.NamedExecContext(ctx, `INSERT INTO competitor_seeds
			(id, brand_id, name, source, analysis_session_id, created_at)
			VALUES (:id, :brand_id, :name, :source, :analysis_session_id, :created_at)`, s); err != nil {
			return fmt.Errorf("failed to insert competitor seed: %w", err)
		}
	}
	return nil
}

func (r *pgSeedRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.CompetitorSeed, error) {
	var out []*models.CompetitorSeed
	if err := r.db.SelectContext(ctx, &out, `SELECT id, brand_id, name, source, analysis_session_id, created_at
		FROM competitor_seeds WHERE brand_id = $1 ORDER BY created_at`, brandID); err != nil {
		return nil, fmt.Errorf("failed to list competitor seeds: %w", err)
	}
	return out, nil
}

// ---- share of voice ----

type pgSOVRepo struct{ db *sqlx.DB }

// jsonMap stores a map column as JSONB.
type jsonMap[V int | float64] map[string]V

func (m jsonMap[V]) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]V(m))
}

func (m *jsonMap[V]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = jsonMap[V]{}
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	out := map[string]V{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

type sovRow struct {
	ID                uuid.UUID        `db:"id"`
	BrandID           uuid.UUID        `db:"brand_id"`
	BrandName         string           `db:"brand_name"`
	CategoryID        *uuid.UUID       `db:"category_id"`
	SessionID         string           `db:"analysis_session_id"`
	Competitors       pq.StringArray   `db:"competitors"`
	TotalMentions     int              `db:"total_mentions"`
	TotalResponses    int              `db:"total_responses"`
	MentionCounts     jsonMap[int]     `db:"mention_counts"`
	ShareOfVoice      jsonMap[float64] `db:"share_of_voice"`
	BrandShare        float64          `db:"brand_share"`
	Coverage          float64          `db:"coverage"`
	AIVisibilityScore float64          `db:"ai_visibility_score"`
	CalculatedAt      time.Time        `db:"calculated_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

func sovRowFrom(rec *models.ShareOfVoiceRecord) sovRow {
	return sovRow{
		ID:                rec.ID,
		BrandID:           rec.BrandID,
		BrandName:         rec.BrandName,
		CategoryID:        rec.CategoryID,
		SessionID:         rec.SessionID,
		Competitors:       pq.StringArray(nonNil(rec.Competitors)),
		TotalMentions:     rec.TotalMentions,
		TotalResponses:    rec.TotalResponses,
		MentionCounts:     jsonMap[int](rec.MentionCounts),
		ShareOfVoice:      jsonMap[float64](rec.ShareOfVoice),
		BrandShare:        rec.BrandShare,
		Coverage:          rec.Coverage,
		AIVisibilityScore: rec.AIVisibilityScore,
		CalculatedAt:      rec.CalculatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func (r sovRow) toModel() *models.ShareOfVoiceRecord {
	return &models.ShareOfVoiceRecord{
		ID:                r.ID,
		BrandID:           r.BrandID,
		BrandName:         r.BrandName,
		CategoryID:        r.CategoryID,
		SessionID:         r.SessionID,
		Competitors:       []string(r.Competitors),
		TotalMentions:     r.TotalMentions,
		TotalResponses:    r.TotalResponses,
		MentionCounts:     map[string]int(r.MentionCounts),
		ShareOfVoice:      map[string]float64(r.ShareOfVoice),
		BrandShare:        r.BrandShare,
		Coverage:          r.Coverage,
		AIVisibilityScore: r.AIVisibilityScore,
		CalculatedAt:      r.CalculatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

const sovColumns = `id, brand_id, brand_name, category_id, analysis_session_id, competitors,
	total_mentions, total_responses, mention_counts, share_of_voice, brand_share, coverage,
	ai_visibility_score, calculated_at, updated_at`

func (r *pgSOVRepo) Create(ctx context.Context, rec *models.ShareOfVoiceRecord) error {
	ensureID(&rec.ID)
	now := time.Now().UTC()
	stamp(&rec.CalculatedAt, now)
	stamp(&rec.UpdatedAt, now)
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO share_of_voice (`+sovColumns+`)
		VALUES (:id, :brand_id, :brand_name, :category_id, :analysis_session_id, :competitors,
			:total_mentions, :total_responses, :mention_counts, :share_of_voice, :brand_share,
			:coverage, :ai_visibility_score, :calculated_at, :updated_at)`, sovRowFrom(rec))
	if err != nil {
		return fmt.Errorf("failed to insert share of voice record: %w", err)
	}
	return nil
}

func (r *pgSOVRepo) Update(ctx context.Context, rec *models.ShareOfVoiceRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE share_of_voice SET competitors = :competitors,
		total_mentions = :total_mentions, total_responses = :total_responses,
		mention_counts = :mention_counts, share_of_voice = :share_of_voice,
		brand_share = :brand_share, coverage = :coverage,
		ai_visibility_score = :ai_visibility_score, updated_at = :updated_at
		WHERE id = :id`, sovRowFrom(rec))
	if err != nil {
		return fmt.Errorf("failed to update share of voice record: %w", err)
	}
	if n, _ := affected(res); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgSOVRepo) one(ctx context.Context, where string, arg any) (*models.ShareOfVoiceRecord, error) {
	var row sovRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+sovColumns+` FROM share_of_voice WHERE `+where+
		` ORDER BY calculated_at DESC LIMIT 1`, arg); err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (r *pgSOVRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ShareOfVoiceRecord, error) {
	return r.one(ctx, "id = $1", id)
}

func (r *pgSOVRepo) LatestBySession(ctx context.Context, sessionID string) (*models.ShareOfVoiceRecord, error) {
	return r.one(ctx, "analysis_session_id = $1", sessionID)
}

func (r *pgSOVRepo) LatestByBrand(ctx context.Context, brandID uuid.UUID) (*models.ShareOfVoiceRecord, error) {
	return r.one(ctx, "brand_id = $1", brandID)
}

func (r *pgSOVRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.ShareOfVoiceRecord, error) {
	var rows []sovRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+sovColumns+` FROM share_of_voice
		WHERE brand_id = $1 ORDER BY calculated_at DESC`, brandID); err != nil {
		return nil, fmt.Errorf("failed to list share of voice records: %w", err)
	}
	out := make([]*models.ShareOfVoiceRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (r *pgSOVRepo) DeleteByBrandSession(ctx context.Context, brandID uuid.UUID, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM share_of_voice
		WHERE brand_id = $1 AND analysis_session_id = $2`, brandID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete share of voice records: %w", err)
	}
	return affected(res)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
