// Package store persists brands and every session-scoped pipeline artifact.
// Two backends implement the same repositories: an in-memory one used by
// tests and local runs, and PostgreSQL through sqlx.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

type BrandRepository interface {
	Create(ctx context.Context, brand *models.Brand) error
	Update(ctx context.Context, brand *models.Brand) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
	// GetByOwner returns the owner's normal (non-isolated) brand.
	GetByOwner(ctx context.Context, ownerID string) (*models.Brand, error)
	List(ctx context.Context, isolated bool) ([]*models.Brand, error)
}

type CategoryRepository interface {
	// FindOrCreate is keyed by brand and case-insensitive name.
	FindOrCreate(ctx context.Context, brandID uuid.UUID, name, sessionID string) (*models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.Category, error)
}

type PromptRepository interface {
	Create(ctx context.Context, prompt *models.Prompt) error
	Update(ctx context.Context, prompt *models.Prompt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Prompt, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, response *models.AIResponse) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AIResponse, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.AIResponse, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.AIResponse, error)
	DeleteBySession(ctx context.Context, sessionID string) (int, error)
}

type MentionRepository interface {
	CreateMany(ctx context.Context, mentions []*models.Mention) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Mention, error)
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*models.Mention, error)
	DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error)
	DeleteBySession(ctx context.Context, sessionID string) (int, error)
}

type CitationRepository interface {
	CreateMany(ctx context.Context, citations []*models.Citation) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Citation, error)
	DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int, error)
	DeleteBySession(ctx context.Context, sessionID string) (int, error)
}

type CompetitorSeedRepository interface {
	CreateMany(ctx context.Context, seeds []*models.CompetitorSeed) error
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.CompetitorSeed, error)
}

type ShareOfVoiceRepository interface {
	Create(ctx context.Context, record *models.ShareOfVoiceRecord) error
	Update(ctx context.Context, record *models.ShareOfVoiceRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ShareOfVoiceRecord, error)
	// ListByBrand returns records newest first.
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*models.ShareOfVoiceRecord, error)
	LatestBySession(ctx context.Context, sessionID string) (*models.ShareOfVoiceRecord, error)
	LatestByBrand(ctx context.Context, brandID uuid.UUID) (*models.ShareOfVoiceRecord, error)
	// DeleteByBrandSession removes the records a fresh calculation supersedes.
	DeleteByBrandSession(ctx context.Context, brandID uuid.UUID, sessionID string) (int, error)
}

// RepositoryManager manages all repositories of one backend.
type RepositoryManager struct {
	db           *sqlx.DB
	BrandRepo    BrandRepository
	CategoryRepo CategoryRepository
	PromptRepo   PromptRepository
	ResponseRepo ResponseRepository
	MentionRepo  MentionRepository
	CitationRepo CitationRepository
	SeedRepo     CompetitorSeedRepository
	SOVRepo      ShareOfVoiceRepository
}

// Backend names the store behind the manager.
func (rm *RepositoryManager) Backend() string {
	if rm.db == nil {
		return "memory"
	}
	return "postgres"
}

// Ping checks the database connection. The memory backend is always up.
func (rm *RepositoryManager) Ping(ctx context.Context) error {
	if rm.db == nil {
		return nil
	}
	return rm.db.PingContext(ctx)
}

func (rm *RepositoryManager) Close() error {
	if rm.db == nil {
		return nil
	}
	return rm.db.Close()
}

// Open builds the repository manager for the configured backend. The
// postgres backend connects, applies pool limits and ensures the schema.
func Open(ctx context.Context, cfg *config.Config) (*RepositoryManager, error) {
	switch cfg.Pipeline.StoreBackend {
	case "", "memory":
		log.Info().Msg("[store.Open] Using in-memory store")
		return NewMemoryRepositoryManager(), nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Pipeline.StoreBackend)
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("[store.Open] Connected to postgres")
	return NewPostgresRepositoryManager(db), nil
}
