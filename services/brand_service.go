package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type brandService struct {
	repos *store.RepositoryManager
	sync  SyncManager
}

func NewBrandService(repos *store.RepositoryManager, sync SyncManager) BrandService {
	return &brandService{repos: repos, sync: sync}
}

// EnsureBrand upserts the owner's normal brand, or creates a fresh brand
// bound to the session for isolated analyses.
func (s *brandService) EnsureBrand(ctx context.Context, req BrandRequest) (*models.Brand, error) {
	domain := NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = BrandNameFromDomain(domain)
	}

	if req.Isolated {
		if req.SessionID == "" {
			return nil, fmt.Errorf("%w: isolated analyses need a session id", ErrInvalidRequest)
		}
		brand := &models.Brand{
			OwnerID:      req.OwnerID,
			Domain:       domain,
			Name:         name,
			Isolated:     true,
			IsLocalBrand: req.IsLocalBrand,
			Location:     strings.TrimSpace(req.Location),
			SessionID:    req.SessionID,
		}
		if err := s.repos.BrandRepo.Create(ctx, brand); err != nil {
			return nil, fmt.Errorf("failed to create isolated brand: %w", err)
		}
		log.Info().Str("brand_id", brand.ID.String()).Str("session_id", req.SessionID).Msg("[EnsureBrand] Created isolated brand")
		return brand, nil
	}

	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidRequest)
	}
	existing, err := s.repos.BrandRepo.GetByOwner(ctx, req.OwnerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		brand := &models.Brand{
			OwnerID:      req.OwnerID,
			Domain:       domain,
			Name:         name,
			IsLocalBrand: req.IsLocalBrand,
			Location:     strings.TrimSpace(req.Location),
		}
		if err := s.repos.BrandRepo.Create(ctx, brand); err != nil {
			return nil, fmt.Errorf("failed to create brand: %w", err)
		}
		log.Info().Str("brand_id", brand.ID.String()).Str("owner_id", req.OwnerID).Msg("[EnsureBrand] Created brand")
		return brand, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load brand for owner %s: %w", req.OwnerID, err)
	}

	existing.Domain = domain
	existing.Name = name
	existing.IsLocalBrand = req.IsLocalBrand
	existing.Location = strings.TrimSpace(req.Location)
	if err := s.repos.BrandRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update brand: %w", err)
	}
	return existing, nil
}

func (s *brandService) GetBrand(ctx context.Context, brandID uuid.UUID) (*models.Brand, error) {
	brand, err := s.repos.BrandRepo.GetByID(ctx, brandID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load brand %s: %w", brandID, err)
	}
	return brand, nil
}

// UpdateCompetitors stores the new list and propagates it into every
// historical share of voice record of the brand.
func (s *brandService) UpdateCompetitors(ctx context.Context, brandID uuid.UUID, competitors []string) ([]SyncOutcome, error) {
	brand, err := s.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	brand.Competitors = DedupeCompetitors(competitors)
	if err := s.repos.BrandRepo.Update(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to update competitors: %w", err)
	}
	log.Info().
		Str("brand_id", brandID.String()).
		Strs("competitors", brand.Competitors).
		Msg("[UpdateCompetitors] Competitor list updated")
	return s.sync.SyncCompetitors(ctx, brand)
}

func (s *brandService) Candidates(brand *models.Brand, competitors []string) []Candidate {
	return BuildCandidates(brand, competitors)
}

// DedupeCompetitors trims names and drops empties and exact duplicates,
// keeping the first spelling.
func DedupeCompetitors(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
