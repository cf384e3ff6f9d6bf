package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/google/uuid"
)

// memoryDB holds every table behind one lock. Rows are copied on the way in
// and out so callers never share memory with the store.
type memoryDB struct {
	mu         sync.RWMutex
	brands     map[uuid.UUID]*models.Brand
	categories map[uuid.UUID]*models.Category
	prompts    map[uuid.UUID]*models.Prompt
	responses  map[uuid.UUID]*models.AIResponse
	mentions   map[uuid.UUID]*models.Mention
	citations  map[uuid.UUID]*models.Citation
	seeds      map[uuid.UUID]*models.CompetitorSeed
	sov        map[uuid.UUID]*models.ShareOfVoiceRecord
	// seq orders rows with identical timestamps by insertion.
	seq   int64
	order map[uuid.UUID]int64
}

// NewMemoryRepositoryManager returns a manager backed by process memory.
func NewMemoryRepositoryManager() *RepositoryManager {
	db := &memoryDB{
		brands:     make(map[uuid.UUID]*models.Brand),
		categories: make(map[uuid.UUID]*models.Category),
		prompts:    make(map[uuid.UUID]*models.Prompt),
		responses:  make(map[uuid.UUID]*models.AIResponse),
		mentions:   make(map[uuid.UUID]*models.Mention),
		citations:  make(map[uuid.UUID]*models.Citation),
		seeds:      make(map[uuid.UUID]*models.CompetitorSeed),
		sov:        make(map[uuid.UUID]*models.ShareOfVoiceRecord),
		order:      make(map[uuid.UUID]int64),
	}
	return &RepositoryManager{
		BrandRepo:    &memoryBrandRepo{db},
		CategoryRepo: &memoryCategoryRepo{db},
		PromptRepo:   &memoryPromptRepo{db},
		ResponseRepo: &memoryResponseRepo{db},
		MentionRepo:  &memoryMentionRepo{db},
		CitationRepo: &memoryCitationRepo{db},
		SeedRepo:     &memorySeedRepo{db},
		SOVRepo:      &memorySOVRepo{db},
	}
}

func (db *memoryDB) touch(id uuid.UUID) {
	if _, ok := db.order[id]; !ok {
		db.seq++
		db.order[id] = db.seq
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func stamp(t *time.Time, now time.Time) {
	if t.IsZero() {
		*t = now
	}
}

// ---- brands ----

type memoryBrandRepo struct{ db *memoryDB }

func copyBrand(b *models.Brand) *models.Brand {
	out := *b
	out.Competitors = append([]string(nil), b.Competitors...)
	return &out
}

func (r *memoryBrandRepo) Create(ctx context.Context, brand *models.Brand) error {
	ensureID(&brand.ID)
	now := time.Now().UTC()
	stamp(&brand.CreatedAt, now)
	stamp(&brand.UpdatedAt, now)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.brands[brand.ID] = copyBrand(brand)
	r.db.touch(brand.ID)
	return nil
}

func (r *memoryBrandRepo) Update(ctx context.Context, brand *models.Brand) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.brands[brand.ID]; !ok {
		return ErrNotFound
	}
	brand.UpdatedAt = time.Now().UTC()
	r.db.brands[brand.ID] = copyBrand(brand)
	return nil
}

func (r *memoryBrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.brands[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBrand(b), nil
}

func (r *memoryBrandRepo) GetByOwner(ctx context.Context, ownerID string) (*models.Brand, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, b := range r.db.brands {
		if b.OwnerID == ownerID && !b.Isolated {
			return copyBrand(b), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryBrandRepo) List(ctx context.Context, isolated bool) ([]*models.Brand, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Brand
	for _, b := range r.db.brands {
		if b.Isolated == isolated {
			out = append(out, copyBrand(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out, nil
}

// ---- categories ----

type memoryCategoryRepo struct{ db *memoryDB }

func (r *memoryCategoryRepo) FindOrCreate(ctx context.Context, brandID uuid.UUID, name, sessionID string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.categories {
		if c.BrandID == brandID && strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	c := &models.Category{
		ID:        uuid.New(),
		BrandID:   brandID,
		Name:      name,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	r.db.categories[c.ID] = c
	r.db.touch(c.ID)
	out := *c
	return &out, nil
}

func (r *memoryCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *memoryCategoryRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Category
	for _, c := range r.db.categories {
		if c.BrandID == brandID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out, nil
}

// ---- prompts ----

type memoryPromptRepo struct{ db *memoryDB }

func (r *memoryPromptRepo) Create(ctx context.Context, prompt *models.Prompt) error {
	ensureID(&prompt.ID)
	now := time.Now().UTC()
	stamp(&prompt.CreatedAt, now)
	stamp(&prompt.UpdatedAt, now)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *prompt
	r.db.prompts[prompt.ID] = &cp
	r.db.touch(prompt.ID)
	return nil
}

func (r *memoryPromptRepo) Update(ctx context.Context, prompt *models.Prompt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.prompts[prompt.ID]; !ok {
		return ErrNotFound
	}
	prompt.UpdatedAt = time.Now().UTC()
	cp := *prompt
	r.db.prompts[prompt.ID] = &cp
	return nil
}

func (r *memoryPromptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPromptRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Prompt, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Prompt
	for _, p := range r.db.prompts {
		if p.SessionID == sessionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out, nil
}

// ---- responses ----

type memoryResponseRepo struct{ db *memoryDB }

func (r *memoryResponseRepo) Create(ctx context.Context, response *models.AIResponse) error {
	ensureID(&response.ID)
	stamp(&response.CreatedAt, time.Now().UTC())

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *response
	r.db.responses[response.ID] = &cp
	r.db.touch(response.ID)
	return nil
}

func (r *memoryResponseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AIResponse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	resp, ok := r.db.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *resp
	return &cp, nil
}

func (r *memoryResponseRepo) list(match func(*models.AIResponse) bool) []*models.AIResponse {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.AIResponse
	for _, resp := range r.db.responses {
		if match(resp) {
			cp := *resp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out
}

func (r *memoryResponseRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.AIResponse, error) {
	return r.list(func(resp *models.AIResponse) bool { return resp.SessionID == sessionID }), nil
}

func (r *memoryResponseRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.AIResponse, error) {
	return r.list(func(resp *models.AIResponse) bool { return resp.BrandID == brandID }), nil
}

func (r *memoryResponseRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, resp := range r.db.responses {
		if resp.SessionID == sessionID {
			delete(r.db.responses, id)
			n++
		}
	}
	return n, nil
}

// ---- citations ----

type memoryCitationRepo struct{ db *memoryDB }

// CreateMany skips a URL already stored for the same response.
func (r *memoryCitationRepo) CreateMany(ctx context.Context, citations []*models.Citation) error {
	now := time.Now().UTC()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range citations {
		dup := false
		for _, existing := range r.db.citations {
			if existing.ResponseID == c.ResponseID && existing.URL == c.URL {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		ensureID(&c.ID)
		stamp(&c.CreatedAt, now)
		cp := *c
		r.db.citations[c.ID] = &cp
		r.db.touch(c.ID)
	}
	return nil
}

func (r *memoryCitationRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Citation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Citation
	for _, c := range r.db.citations {
		if c.SessionID == sessionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out, nil
}

func (r *memoryCitationRepo) deleteWhere(match func(*models.Citation) bool) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, c := range r.db.citations {
		if match(c) {
			delete(r.db.citations, id)
			n++
		}
	}
	return n
}

func (r *memoryCitationRepo) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error) {
	return r.deleteWhere(func(c *models.Citation) bool { return c.ResponseID == responseID }), nil
}

func (r *memoryCitationRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	return r.deleteWhere(func(c *models.Citation) bool { return c.SessionID == sessionID }), nil
}

// ---- mentions ----

type memoryMentionRepo struct{ db *memoryDB }

func (r *memoryMentionRepo) CreateMany(ctx context.Context, mentions []*models.Mention) error {
	now := time.Now().UTC()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range mentions {
		if r.existsLocked(m.ResponseID, m.CompanyName) {
			continue
		}
		ensureID(&m.ID)
		stamp(&m.CreatedAt, now)
		cp := *m
		r.db.mentions[m.ID] = &cp
		r.db.touch(m.ID)
	}
	return nil
}

// existsLocked mirrors the (response, company) unique index of postgres.
func (r *memoryMentionRepo) existsLocked(responseID uuid.UUID, company string) bool {
	for _, m := range r.db.mentions {
		if m.ResponseID == responseID && m.CompanyName == company {
			return true
		}
	}
	return false
}

func (r *memoryMentionRepo) list(match func(*models.Mention) bool) []*models.Mention {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Mention
	for _, m := range r.db.mentions {
		if match(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out
}

func (r *memoryMentionRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Mention, error) {
	return r.list(func(m *models.Mention) bool { return m.SessionID == sessionID }), nil
}

func (r *memoryMentionRepo) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*models.Mention, error) {
	return r.list(func(m *models.Mention) bool { return m.ResponseID == responseID }), nil
}

func (r *memoryMentionRepo) deleteWhere(match func(*models.Mention) bool) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, m := range r.db.mentions {
		if match(m) {
			delete(r.db.mentions, id)
			n++
		}
	}
	return n
}

func (r *memoryMentionRepo) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error) {
	return r.deleteWhere(func(m *models.Mention) bool { return m.ResponseID == responseID }), nil
}

func (r *memoryMentionRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	return r.deleteWhere(func(m *models.Mention) bool { return m.SessionID == sessionID }), nil
}

// ---- competitor seeds ----

type memorySeedRepo struct{ db *memoryDB }

func (r *memorySeedRepo) CreateMany(ctx context.Context, seeds []*models.CompetitorSeed) error {
	now := time.Now().UTC()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range seeds {
		ensureID(&s.ID)
		stamp(&s.CreatedAt, now)
		cp := *s
		r.db.seeds[s.ID] = &cp
		r.db.touch(s.ID)
	}
	return nil
}

func (r *memorySeedRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.CompetitorSeed, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.CompetitorSeed
	for _, s := range r.db.seeds {
		if s.BrandID == brandID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.db.order[out[i].ID] < r.db.order[out[j].ID] })
	return out, nil
}

// ---- share of voice ----

type memorySOVRepo struct{ db *memoryDB }

func (r *memorySOVRepo) Create(ctx context.Context, record *models.ShareOfVoiceRecord) error {
	ensureID(&record.ID)
	now := time.Now().UTC()
	stamp(&record.CalculatedAt, now)
	stamp(&record.UpdatedAt, now)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sov[record.ID] = record.Clone()
	r.db.touch(record.ID)
	return nil
}

func (r *memorySOVRepo) Update(ctx context.Context, record *models.ShareOfVoiceRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sov[record.ID]; !ok {
		return ErrNotFound
	}
	record.UpdatedAt = time.Now().UTC()
	r.db.sov[record.ID] = record.Clone()
	return nil
}

func (r *memorySOVRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ShareOfVoiceRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rec, ok := r.db.sov[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// newestFirst lists matching records by calculation time, newest first.
func (r *memorySOVRepo) newestFirst(match func(*models.ShareOfVoiceRecord) bool) []*models.ShareOfVoiceRecord {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.ShareOfVoiceRecord
	for _, rec := range r.db.sov {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CalculatedAt.Equal(out[j].CalculatedAt) {
			return out[i].CalculatedAt.After(out[j].CalculatedAt)
		}
		return r.db.order[out[i].ID] > r.db.order[out[j].ID]
	})
	return out
}

func (r *memorySOVRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.ShareOfVoiceRecord, error) {
	return r.newestFirst(func(rec *models.ShareOfVoiceRecord) bool { return rec.BrandID == brandID }), nil
}

func (r *memorySOVRepo) LatestBySession(ctx context.Context, sessionID string) (*models.ShareOfVoiceRecord, error) {
	recs := r.newestFirst(func(rec *models.ShareOfVoiceRecord) bool { return rec.SessionID == sessionID })
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (r *memorySOVRepo) LatestByBrand(ctx context.Context, brandID uuid.UUID) (*models.ShareOfVoiceRecord, error) {
	recs := r.newestFirst(func(rec *models.ShareOfVoiceRecord) bool { return rec.BrandID == brandID })
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (r *memorySOVRepo) DeleteByBrandSession(ctx context.Context, brandID uuid.UUID, sessionID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, rec := range r.db.sov {
		if rec.BrandID == brandID && rec.SessionID == sessionID {
			delete(r.db.sov, id)
			n++
		}
	}
	return n, nil
}
