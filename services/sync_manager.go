package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
	"github.com/rs/zerolog/log"
)

type syncManager struct {
	repos    *store.RepositoryManager
	mentions MentionExtractor
}

func NewSyncManager(repos *store.RepositoryManager, mentions MentionExtractor) SyncManager {
	return &syncManager{repos: repos, mentions: mentions}
}

// SyncCompetitors rewrites every historical record of brand to the brand's
// current competitor list, one record at a time. A failing record is
// reported in its outcome and the rest are still processed. Records whose
// session still has responses are recomputed from a fresh mention scan;
// the others have removed names pruned and new names added at zero.
func (s *syncManager) SyncCompetitors(ctx context.Context, brand *models.Brand) ([]SyncOutcome, error) {
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	records, err := s.repos.SOVRepo.ListByBrand(ctx, brand.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share of voice records: %w", err)
	}
	log.Info().
		Str("brand_id", brand.ID.String()).
		Int("records", len(records)).
		Strs("competitors", brand.Competitors).
		Msg("[SyncCompetitors] Syncing competitor list into snapshots")

	candidates := BuildCandidates(brand, brand.Competitors)
	rescanned := make(map[string]bool)
	outcomes := make([]SyncOutcome, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome := s.syncRecord(ctx, brand, record, candidates, rescanned)
		telemetry.RecordSyncOutcome(ctx, outcome.OK)
		if !outcome.OK {
			log.Warn().
				Str("brand_id", brand.ID.String()).
				Str("record_id", record.ID.String()).
				Str("error", outcome.Error).
				Msg("[SyncCompetitors] Record sync failed, continuing")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *syncManager) syncRecord(ctx context.Context, brand *models.Brand, record *models.ShareOfVoiceRecord, candidates []Candidate, rescanned map[string]bool) SyncOutcome {
	removed, added := diffNames(record.Competitors, brand.Competitors)
	outcome := SyncOutcome{
		RecordID:  record.ID,
		SessionID: record.SessionID,
		Removed:   removed,
		Added:     added,
	}

	updated, recomputed, err := s.recompute(ctx, brand, record, candidates, rescanned)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if !recomputed {
		updated = patchRecord(record, brand.Competitors)
	}
	if err := s.repos.SOVRepo.Update(ctx, updated); err != nil {
		outcome.Error = fmt.Sprintf("failed to update record: %v", err)
		return outcome
	}
	outcome.OK = true
	outcome.Recomputed = recomputed
	return outcome
}

// recompute rebuilds a session record from its responses. It reports false
// when the record has no session or the session has no responses left.
func (s *syncManager) recompute(ctx context.Context, brand *models.Brand, record *models.ShareOfVoiceRecord, candidates []Candidate, rescanned map[string]bool) (*models.ShareOfVoiceRecord, bool, error) {
	if record.SessionID == "" || s.mentions == nil {
		return nil, false, nil
	}
	all, err := s.repos.ResponseRepo.ListBySession(ctx, record.SessionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load responses: %w", err)
	}
	responses := all[:0:0]
	for _, r := range all {
		if r.BrandID == brand.ID {
			responses = append(responses, r)
		}
	}
	if len(responses) == 0 {
		return nil, false, nil
	}

	if !rescanned[record.SessionID] {
		for _, r := range responses {
			if _, err := s.mentions.ExtractMentions(ctx, r, candidates); err != nil {
				return nil, false, err
			}
		}
		rescanned[record.SessionID] = true
	}

	responses = filterResponses(responses, record.CategoryID)
	mentions, err := mentionsFor(ctx, s.repos, record.SessionID, responses)
	if err != nil {
		return nil, false, err
	}

	fresh := ComputeShareOfVoice(brand.Name, brand.Competitors, responses, mentions)
	fresh.ID = record.ID
	fresh.BrandID = record.BrandID
	fresh.SessionID = record.SessionID
	fresh.CategoryID = record.CategoryID
	fresh.CalculatedAt = record.CalculatedAt
	return fresh, true, nil
}

// patchRecord rewrites the competitor keys of a record without rescanning.
// Any key other than the brand and the new competitors is dropped.
func patchRecord(record *models.ShareOfVoiceRecord, competitors []string) *models.ShareOfVoiceRecord {
	out := record.Clone()
	keep := map[string]struct{}{out.BrandName: {}}
	for _, name := range competitors {
		keep[name] = struct{}{}
	}
	for name := range out.MentionCounts {
		if _, ok := keep[name]; !ok {
			delete(out.MentionCounts, name)
		}
	}
	if _, ok := out.MentionCounts[out.BrandName]; !ok {
		out.MentionCounts[out.BrandName] = 0
	}
	for _, name := range competitors {
		if _, ok := out.MentionCounts[name]; !ok {
			out.MentionCounts[name] = 0
		}
	}
	out.Competitors = append([]string{}, competitors...)
	applyShares(out, out.Coverage)
	out.UpdatedAt = time.Now().UTC()
	return out
}

func diffNames(before, after []string) (removed, added []string) {
	inAfter := make(map[string]struct{}, len(after))
	for _, n := range after {
		inAfter[n] = struct{}{}
	}
	inBefore := make(map[string]struct{}, len(before))
	for _, n := range before {
		inBefore[n] = struct{}{}
		if _, ok := inAfter[n]; !ok {
			removed = append(removed, n)
		}
	}
	for _, n := range after {
		if _, ok := inBefore[n]; !ok {
			added = append(added, n)
		}
	}
	return removed, added
}

// NeedsSync reports whether record disagrees with the brand's current
// competitor list, either in its stored list or in its count keys.
func NeedsSync(brand *models.Brand, record *models.ShareOfVoiceRecord) bool {
	if brand == nil || record == nil {
		return false
	}
	removed, added := diffNames(record.Competitors, brand.Competitors)
	if len(removed) > 0 || len(added) > 0 {
		return true
	}
	for _, name := range brand.Competitors {
		if _, ok := record.MentionCounts[name]; !ok {
			return true
		}
	}
	for name := range record.MentionCounts {
		if name == record.BrandName {
			continue
		}
		if !containsName(brand.Competitors, name) {
			return true
		}
	}
	return false
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
