package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// AnalysisRun is the per-session context threaded through every stage. It
// is plain data so a durable workflow can checkpoint it between steps.
type AnalysisRun struct {
	SessionID       string                `json:"analysis_session_id"`
	BrandID         uuid.UUID             `json:"brand_id"`
	OwnerID         string                `json:"owner_id"`
	Domain          string                `json:"domain"`
	BrandName       string                `json:"brand_name"`
	Isolated        bool                  `json:"isolated"`
	Location        string                `json:"location,omitempty"`
	ProfileText     string                `json:"profile_text,omitempty"`
	Description     string                `json:"description,omitempty"`
	Categories      []string              `json:"categories"`
	CategoryIDs     []uuid.UUID           `json:"category_ids"`
	Competitors     []string              `json:"competitors"`
	PromptIDs       []uuid.UUID           `json:"prompt_ids"`
	ResponseIDs     []uuid.UUID           `json:"response_ids"`
	FailedResponses int                   `json:"failed_responses"`
	MentionCount    int                   `json:"mention_count"`
	CitationCount   int                   `json:"citation_count"`
	SOVRecordID     uuid.UUID             `json:"sov_record_id"`
	Stage           models.Stage          `json:"stage"`
	Failures        []models.StageFailure `json:"failures,omitempty"`
	Usage           Usage                 `json:"usage"`
	StartedAt       time.Time             `json:"started_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Advance moves the run to next. Skipping a stage is rejected; re-entering
// a stage already reached is allowed.
func (r *AnalysisRun) Advance(next models.Stage) error {
	if !r.Stage.CanEnter(next) {
		return fmt.Errorf("cannot enter stage %s from %s", next, r.Stage)
	}
	r.Stage = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AnalysisRun) absorb(report StageReport) {
	r.Failures = append(r.Failures, report.Failures...)
	r.Usage.Merge(report.Usage)
}

// FailuresOf returns the recorded failures of one kind.
func (r *AnalysisRun) FailuresOf(kind models.FailureKind) []models.StageFailure {
	var out []models.StageFailure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

type analysisService struct {
	cfg   *config.Config
	repos *store.RepositoryManager
	p     Pipeline
	now   func() time.Time
}

func NewAnalysisService(cfg *config.Config, repos *store.RepositoryManager, p Pipeline) AnalysisService {
	return &analysisService{cfg: cfg, repos: repos, p: p, now: time.Now}
}

// StartRun mints the session and resolves the brand.
func (s *analysisService) StartRun(ctx context.Context, req AnalysisRequest) (*AnalysisRun, error) {
	domain := NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		purpose := req.Purpose
		if purpose == "" {
			purpose = "analysis"
			if req.Isolated {
				purpose = "admin"
			}
		}
		sessionID = models.NewSessionID(purpose, s.now())
	}

	brand, err := s.p.Brands.EnsureBrand(ctx, BrandRequest{
		OwnerID:      req.OwnerID,
		Domain:       domain,
		Name:         req.BrandName,
		Isolated:     req.Isolated,
		IsLocalBrand: req.IsLocalBrand,
		Location:     req.Location,
		SessionID:    sessionID,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	run := &AnalysisRun{
		SessionID: sessionID,
		BrandID:   brand.ID,
		OwnerID:   brand.OwnerID,
		Domain:    brand.Domain,
		BrandName: brand.Name,
		Isolated:  brand.Isolated,
		Location:  brand.Location,
		Stage:     models.StageNotStarted,
		StartedAt: now,
		UpdatedAt: now,
	}
	log.Info().
		Str("session_id", sessionID).
		Str("brand_id", brand.ID.String()).
		Str("domain", domain).
		Bool("isolated", brand.Isolated).
		Msg("[StartRun] Analysis session started")
	return run, nil
}

func (s *analysisService) Profile(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StageProfilingDone); err != nil {
		return err
	}
	res, err := s.p.Profiler.ProfileDomain(ctx, run.Domain)
	if err != nil {
		return err
	}
	run.absorb(res.StageReport)
	run.ProfileText = res.ProfileText
	run.Description = res.Description
	return s.complete(ctx, run, models.StageProfilingDone)
}

func (s *analysisService) ExtractCategories(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StageCategoriesReady); err != nil {
		return err
	}
	brand, err := s.brand(ctx, run)
	if err != nil {
		return err
	}
	res, err := s.p.Categories.ExtractCategories(ctx, run.Domain, run.ProfileText)
	if err != nil {
		return err
	}
	run.absorb(res.StageReport)

	if brand.Description == "" && run.Description != "" {
		brand.Description = run.Description
		if err := s.repos.BrandRepo.Update(ctx, brand); err != nil {
			log.Warn().Err(err).Str("brand_id", brand.ID.String()).Msg("[ExtractCategories] Failed to store brand description")
		}
	}

	run.Categories = run.Categories[:0]
	run.CategoryIDs = run.CategoryIDs[:0]
	for _, name := range res.Categories {
		cat, err := s.repos.CategoryRepo.FindOrCreate(ctx, brand.ID, name, run.SessionID)
		if err != nil {
			run.absorb(failureReport(ctx, stageCategories, models.FailurePartialStage, name, err))
			continue
		}
		run.Categories = append(run.Categories, cat.Name)
		run.CategoryIDs = append(run.CategoryIDs, cat.ID)
	}
	return s.complete(ctx, run, models.StageCategoriesReady)
}

// ExtractCompetitors keeps a competitor list the owner already curated and
// extracts one otherwise.
func (s *analysisService) ExtractCompetitors(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StageCompetitorsReady); err != nil {
		return err
	}
	brand, err := s.brand(ctx, run)
	if err != nil {
		return err
	}
	if len(brand.Competitors) > 0 {
		run.Competitors = append([]string(nil), brand.Competitors...)
		log.Info().Str("session_id", run.SessionID).Strs("competitors", run.Competitors).Msg("[ExtractCompetitors] Using stored competitor list")
		return s.complete(ctx, run, models.StageCompetitorsReady)
	}

	res, err := s.p.Competitors.ExtractCompetitors(ctx, CompetitorInput{
		BrandID:   brand.ID,
		BrandName: brand.Name,
		Domain:    brand.Domain,
		Profile:   run.ProfileText,
		SessionID: run.SessionID,
	})
	if err != nil {
		return err
	}
	run.absorb(res.StageReport)
	run.Competitors = res.Competitors
	if res.Fallback {
		// Placeholders never replace the brand's list.
		log.Warn().Str("brand_id", brand.ID.String()).Msg("[ExtractCompetitors] Placeholder competitors not stored on brand")
		return s.complete(ctx, run, models.StageCompetitorsReady)
	}

	brand.Competitors = DedupeCompetitors(res.Competitors)
	if err := s.repos.BrandRepo.Update(ctx, brand); err != nil {
		run.absorb(failureReport(ctx, stageCompetitors, models.FailurePartialStage, brand.ID.String(), err))
	}
	return s.complete(ctx, run, models.StageCompetitorsReady)
}

func (s *analysisService) GeneratePrompts(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StagePromptsReady); err != nil {
		return err
	}
	brand, err := s.brand(ctx, run)
	if err != nil {
		return err
	}
	categories := make([]*models.Category, 0, len(run.CategoryIDs))
	for _, id := range run.CategoryIDs {
		cat, err := s.repos.CategoryRepo.GetByID(ctx, id)
		if err != nil {
			run.absorb(failureReport(ctx, stagePrompts, models.FailureValidation, id.String(), err))
			continue
		}
		categories = append(categories, cat)
	}

	res, err := s.p.Prompts.GeneratePrompts(ctx, PromptInput{
		Categories:  categories,
		Brand:       brand,
		Competitors: run.Competitors,
		Location:    run.Location,
		SessionID:   run.SessionID,
	})
	if err != nil {
		return err
	}
	run.absorb(res.StageReport)
	run.PromptIDs = run.PromptIDs[:0]
	for _, p := range res.Prompts {
		run.PromptIDs = append(run.PromptIDs, p.Prompt.ID)
	}
	return s.complete(ctx, run, models.StagePromptsReady)
}

// GenerateResponses answers the session's prompts. Earlier responses and
// mentions of the session are cleared first so a retried step starts over.
func (s *analysisService) GenerateResponses(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StageResponsesReady); err != nil {
		return err
	}
	if _, err := s.brand(ctx, run); err != nil {
		return err
	}
	if _, err := s.repos.MentionRepo.DeleteBySession(ctx, run.SessionID); err != nil {
		return fmt.Errorf("failed to clear session mentions: %w", err)
	}
	if _, err := s.repos.CitationRepo.DeleteBySession(ctx, run.SessionID); err != nil {
		return fmt.Errorf("failed to clear session citations: %w", err)
	}
	if _, err := s.repos.ResponseRepo.DeleteBySession(ctx, run.SessionID); err != nil {
		return fmt.Errorf("failed to clear session responses: %w", err)
	}

	prompts, err := s.sessionPrompts(ctx, run)
	if err != nil {
		return err
	}
	res, err := s.p.Responses.RunResponses(ctx, ResponseInput{
		Prompts:   prompts,
		BrandID:   run.BrandID,
		UserID:    run.OwnerID,
		SessionID: run.SessionID,
	})
	if res != nil {
		run.absorb(res.StageReport)
	}
	if err != nil {
		return err
	}

	run.ResponseIDs = run.ResponseIDs[:0]
	run.FailedResponses = 0
	for _, o := range res.Outcomes {
		if o.Err != nil {
			run.FailedResponses++
			continue
		}
		run.ResponseIDs = append(run.ResponseIDs, o.Result.Response.ID)
	}
	return s.complete(ctx, run, models.StageResponsesReady)
}

// sessionPrompts pairs the run's prompts with their categories. A prompt
// whose category is gone is passed on without one and rejected downstream.
func (s *analysisService) sessionPrompts(ctx context.Context, run *AnalysisRun) ([]*models.PromptWithCategory, error) {
	stored, err := s.repos.PromptRepo.ListBySession(ctx, run.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session prompts: %w", err)
	}
	wanted := make(map[uuid.UUID]struct{}, len(run.PromptIDs))
	for _, id := range run.PromptIDs {
		wanted[id] = struct{}{}
	}
	cats := make(map[uuid.UUID]*models.Category)
	out := make([]*models.PromptWithCategory, 0, len(stored))
	for _, p := range stored {
		if _, ok := wanted[p.ID]; !ok {
			continue
		}
		cat, ok := cats[p.CategoryID]
		if !ok {
			cat, err = s.repos.CategoryRepo.GetByID(ctx, p.CategoryID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to load category %s: %w", p.CategoryID, err)
			}
			cats[p.CategoryID] = cat
		}
		out = append(out, &models.PromptWithCategory{Prompt: p, Category: cat})
	}
	return out, nil
}

// ExtractMentions rescans every response of the session. All extraction
// work is joined before the stage completes.
func (s *analysisService) ExtractMentions(ctx context.Context, run *AnalysisRun) error {
	if err := s.enter(ctx, run, models.StageMentionsExtracted); err != nil {
		return err
	}
	brand, err := s.brand(ctx, run)
	if err != nil {
		return err
	}
	responses, err := s.repos.ResponseRepo.ListBySession(ctx, run.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session responses: %w", err)
	}
	candidates := BuildCandidates(brand, run.Competitors)

	var (
		mu        sync.Mutex
		count     int
		citations int
		report    StageReport
		g         errgroup.Group
	)
	g.SetLimit(maxConcurrency(s.cfg))
	for _, resp := range responses {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			mentions, err := s.p.Mentions.ExtractMentions(ctx, resp, candidates)
			var cited []*models.Citation
			var citeErr error
			if s.p.Citations != nil {
				cited, citeErr = s.p.Citations.ExtractCitations(ctx, resp, brand.Domain)
			}
			mu.Lock()
			defer mu.Unlock()
			if citeErr != nil {
				report.fail(ctx, stageMentions, models.FailurePartialStage, resp.ID.String(), citeErr.Error())
			}
			citations += len(cited)
			if err != nil {
				report.fail(ctx, stageMentions, models.FailurePartialStage, resp.ID.String(), err.Error())
				return nil
			}
			count += len(mentions)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	run.absorb(report)
	run.MentionCount = count
	run.CitationCount = citations
	log.Info().
		Str("session_id", run.SessionID).
		Int("responses", len(responses)).
		Int("mentions", count).
		Int("citations", citations).
		Msg("[ExtractMentions] Mentions extracted")
	return s.complete(ctx, run, models.StageMentionsExtracted)
}

// CalculateSOV computes the session record. Isolated runs keep every
// earlier record.
func (s *analysisService) CalculateSOV(ctx context.Context, run *AnalysisRun) (*models.ShareOfVoiceRecord, error) {
	if err := s.enter(ctx, run, models.StageSOVCalculated); err != nil {
		return nil, err
	}
	brand, err := s.brand(ctx, run)
	if err != nil {
		return nil, err
	}
	responses, err := s.repos.ResponseRepo.ListBySession(ctx, run.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session responses: %w", err)
	}
	record, err := s.p.SOV.CalculateSOV(ctx, SOVInput{
		Brand:              brand,
		Competitors:        run.Competitors,
		Responses:          responses,
		SessionID:          run.SessionID,
		PreserveOldRecords: run.Isolated,
	})
	if err != nil {
		return nil, err
	}
	run.SOVRecordID = record.ID
	if err := s.complete(ctx, run, models.StageSOVCalculated); err != nil {
		return nil, err
	}
	return record, nil
}

// IndexResponses pushes the session's responses to the configured index.
// Index failures are recorded on the run and never returned.
func (s *analysisService) IndexResponses(ctx context.Context, run *AnalysisRun) error {
	if s.p.Indexer == nil {
		return nil
	}
	responses, err := s.repos.ResponseRepo.ListBySession(ctx, run.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session responses: %w", err)
	}
	if err := s.p.Indexer.IndexResponses(ctx, responses); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("session_id", run.SessionID).Str("indexer", s.p.Indexer.Name()).Msg("[IndexResponses] Indexing failed")
		run.absorb(failureReport(ctx, stageIndex, models.FailurePartialStage, s.p.Indexer.Name(), err))
	}
	return nil
}

// RunAnalysis executes every stage in order in-process.
func (s *analysisService) RunAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisRun, *models.ShareOfVoiceRecord, error) {
	run, err := s.StartRun(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	stages := []func(context.Context, *AnalysisRun) error{
		s.Profile,
		s.ExtractCategories,
		s.ExtractCompetitors,
		s.GeneratePrompts,
		s.GenerateResponses,
		s.ExtractMentions,
	}
	for _, stage := range stages {
		if err := stage(ctx, run); err != nil {
			return run, nil, err
		}
	}
	record, err := s.CalculateSOV(ctx, run)
	if err != nil {
		return run, nil, err
	}
	if s.cfg.Pipeline.IndexResponses {
		if err := s.IndexResponses(ctx, run); err != nil {
			return run, record, err
		}
	}
	log.Info().
		Str("session_id", run.SessionID).
		Int("failures", len(run.Failures)).
		Float64("cost", run.Usage.Cost).
		Msg("[RunAnalysis] Analysis complete")
	return run, record, nil
}

// RegeneratePrompts re-enters prompt generation for an existing brand under
// a new or given session. The brand must already have categories.
func (s *analysisService) RegeneratePrompts(ctx context.Context, brandID uuid.UUID, sessionID string) (*AnalysisRun, error) {
	brand, err := s.p.Brands.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	categories, err := s.repos.CategoryRepo.ListByBrand(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCategories, brandID)
	}
	if sessionID == "" {
		sessionID = models.NewSessionID("regenerate", s.now())
	}

	now := s.now().UTC()
	run := &AnalysisRun{
		SessionID:   sessionID,
		BrandID:     brand.ID,
		OwnerID:     brand.OwnerID,
		Domain:      brand.Domain,
		BrandName:   brand.Name,
		Isolated:    brand.Isolated,
		Location:    brand.Location,
		Description: brand.Description,
		Competitors: append([]string(nil), brand.Competitors...),
		Stage:       models.StageCompetitorsReady,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	for _, c := range categories {
		run.Categories = append(run.Categories, c.Name)
		run.CategoryIDs = append(run.CategoryIDs, c.ID)
	}
	if err := s.GeneratePrompts(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

func (s *analysisService) enter(ctx context.Context, run *AnalysisRun, stage models.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !run.Stage.CanEnter(stage) {
		return fmt.Errorf("session %s: cannot enter stage %s from %s", run.SessionID, stage, run.Stage)
	}
	return nil
}

func (s *analysisService) complete(ctx context.Context, run *AnalysisRun, stage models.Stage) error {
	if err := run.Advance(stage); err != nil {
		return err
	}
	telemetry.RecordStage(ctx, stage.String())
	log.Info().Str("session_id", run.SessionID).Str("stage", stage.String()).Msg("[AnalysisRun] Stage complete")
	return nil
}

// brand loads the run's brand. A missing brand is the one failure that
// aborts the run.
func (s *analysisService) brand(ctx context.Context, run *AnalysisRun) (*models.Brand, error) {
	brand, err := s.p.Brands.GetBrand(ctx, run.BrandID)
	if err != nil {
		if errors.Is(err, ErrBrandNotFound) {
			run.absorb(failureReport(ctx, run.Stage.String(), models.FailureFatalPrerequisite, run.BrandID.String(), err))
		}
		return nil, err
	}
	return brand, nil
}

func failureReport(ctx context.Context, stage string, kind models.FailureKind, item string, err error) StageReport {
	var r StageReport
	r.fail(ctx, stage, kind, item, err.Error())
	return r
}
