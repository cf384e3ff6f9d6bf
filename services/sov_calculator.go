package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Weights of the AI visibility score.
const (
	coverageWeight   = 0.6
	brandShareWeight = 0.4
)

type sovCalculator struct {
	repos *store.RepositoryManager
}

func NewShareOfVoiceCalculator(repos *store.RepositoryManager) ShareOfVoiceCalculator {
	return &sovCalculator{repos: repos}
}

// CalculateSOV aggregates the stored mentions of in.Responses. Counts are
// the number of distinct responses a company appears in.
func (s *sovCalculator) CalculateSOV(ctx context.Context, in SOVInput) (*models.ShareOfVoiceRecord, error) {
	if in.Brand == nil {
		return nil, ErrBrandNotFound
	}

	responses := filterResponses(in.Responses, in.CategoryID)
	mentions, err := mentionsFor(ctx, s.repos, in.SessionID, responses)
	if err != nil {
		return nil, err
	}

	record := ComputeShareOfVoice(in.Brand.Name, in.Competitors, responses, mentions)
	record.BrandID = in.Brand.ID
	record.SessionID = in.SessionID
	record.CategoryID = in.CategoryID

	if !in.PreserveOldRecords {
		n, err := s.repos.SOVRepo.DeleteByBrandSession(ctx, in.Brand.ID, in.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to supersede share of voice records: %w", err)
		}
		if n > 0 {
			log.Info().Str("session_id", in.SessionID).Int("superseded", n).Msg("[CalculateSOV] Replaced earlier records")
		}
	}
	if err := s.repos.SOVRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store share of voice record: %w", err)
	}

	log.Info().
		Str("session_id", in.SessionID).
		Str("brand_id", in.Brand.ID.String()).
		Int("total_mentions", record.TotalMentions).
		Int("total_responses", record.TotalResponses).
		Float64("brand_share", record.BrandShare).
		Float64("ai_visibility_score", record.AIVisibilityScore).
		Msg("[CalculateSOV] Share of voice calculated")
	return record, nil
}

// mentionsFor loads the mentions of the given responses. Session runs read
// the session's mention set once; legacy runs read per response.
func mentionsFor(ctx context.Context, repos *store.RepositoryManager, sessionID string, responses []*models.AIResponse) ([]*models.Mention, error) {
	ids := make(map[uuid.UUID]struct{}, len(responses))
	for _, r := range responses {
		ids[r.ID] = struct{}{}
	}
	if sessionID != "" {
		all, err := repos.MentionRepo.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load mentions for session %s: %w", sessionID, err)
		}
		out := all[:0:0]
		for _, m := range all {
			if _, ok := ids[m.ResponseID]; ok {
				out = append(out, m)
			}
		}
		return out, nil
	}

	var out []*models.Mention
	for _, r := range responses {
		ms, err := repos.MentionRepo.ListByResponse(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load mentions for response %s: %w", r.ID, err)
		}
		out = append(out, ms...)
	}
	return out, nil
}

func filterResponses(responses []*models.AIResponse, categoryID *uuid.UUID) []*models.AIResponse {
	if categoryID == nil {
		return responses
	}
	out := make([]*models.AIResponse, 0, len(responses))
	for _, r := range responses {
		if r.CategoryID == *categoryID {
			out = append(out, r)
		}
	}
	return out
}

// ComputeShareOfVoice builds an unsaved record from responses and their
// mentions. Mentions of names outside brand and competitors are ignored;
// names are matched case-insensitively to the candidate spelling.
func ComputeShareOfVoice(brandName string, competitors []string, responses []*models.AIResponse, mentions []*models.Mention) *models.ShareOfVoiceRecord {
	canonical := make(map[string]string, len(competitors)+1)
	counts := make(map[string]int, len(competitors)+1)
	for _, name := range append([]string{brandName}, competitors...) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := canonical[key]; ok {
			continue
		}
		canonical[key] = name
		counts[name] = 0
	}

	seen := make(map[string]map[uuid.UUID]struct{})
	for _, m := range mentions {
		name, ok := canonical[strings.ToLower(strings.TrimSpace(m.CompanyName))]
		if !ok {
			continue
		}
		if seen[name] == nil {
			seen[name] = make(map[uuid.UUID]struct{})
		}
		seen[name][m.ResponseID] = struct{}{}
	}
	for name, ids := range seen {
		counts[name] = len(ids)
	}

	now := time.Now().UTC()
	record := &models.ShareOfVoiceRecord{
		BrandName:      brandName,
		Competitors:    append([]string{}, competitors...),
		TotalResponses: len(responses),
		MentionCounts:  counts,
		CalculatedAt:   now,
		UpdatedAt:      now,
	}
	coverage := 0.0
	if len(responses) > 0 {
		coverage = 100 * float64(len(seen[brandName])) / float64(len(responses))
	}
	applyShares(record, coverage)
	return record
}

// applyShares derives totals, shares and the visibility score from
// MentionCounts. Coverage is kept as given.
func applyShares(record *models.ShareOfVoiceRecord, coverage float64) {
	total := 0
	for _, c := range record.MentionCounts {
		total += c
	}
	record.TotalMentions = total
	record.ShareOfVoice = make(map[string]float64, len(record.MentionCounts))
	for name, c := range record.MentionCounts {
		if total > 0 {
			record.ShareOfVoice[name] = 100 * float64(c) / float64(total)
		} else {
			record.ShareOfVoice[name] = 0
		}
	}
	record.BrandShare = record.ShareOfVoice[record.BrandName]
	record.Coverage = coverage
	record.AIVisibilityScore = VisibilityScore(coverage, record.BrandShare)
}

// VisibilityScore blends response coverage with brand share, both in
// percent, into a score in [0, 100] rounded to two decimals.
func VisibilityScore(coverage, brandShare float64) float64 {
	score := coverageWeight*coverage + brandShareWeight*brandShare
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}
