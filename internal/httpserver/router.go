// Package httpserver exposes the read API over stored share of voice
// results, the analysis trigger and the inngest handler.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/AI-Template-SDK/senso-sov/services"
	"github.com/AI-Template-SDK/senso-sov/workflows"
)

// ErrEventsDisabled is returned when no event sender is configured.
var ErrEventsDisabled = errors.New("event delivery is not configured")

type Router struct {
	repos  *store.RepositoryManager
	brands services.BrandService
	events workflows.EventSender
	now    func() time.Time
}

// NewRouter builds the service handler. events and inngest may be nil; the
// analysis trigger then answers 503 and /api/inngest is not mounted.
func NewRouter(repos *store.RepositoryManager, brands services.BrandService, events workflows.EventSender, inngest http.Handler) http.Handler {
	r := &Router{repos: repos, brands: brands, events: events, now: time.Now}
	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	// Root endpoint for ALB health check
	mux.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": "senso-sov", "status": "running"})
	})
	mux.Get("/health", r.wrap(r.handleHealth))

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleStartAnalysis))
		rt.Get("/sessions/{sessionID}/sov", r.wrap(r.handleSessionSOV))
		rt.Get("/sessions/{sessionID}/mentions", r.wrap(r.handleSessionMentions))
		rt.Get("/sessions/{sessionID}/citations", r.wrap(r.handleSessionCitations))
		rt.Get("/brands/{brandID}/sov/latest", r.wrap(r.handleLatestBrandSOV))
		rt.Get("/brands/{brandID}/sov", r.wrap(r.handleBrandSOV))
		rt.Put("/brands/{brandID}/competitors", r.wrap(r.handleUpdateCompetitors))
	})

	if inngest != nil {
		mux.Handle("/api/inngest", inngest)
	}
	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrBrandNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, ErrEventsDisabled):
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("path", req.URL.Path).Msg("[HTTP] Request failed")
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("[HTTP] Failed to encode response")
	}
}

func brandIDParam(req *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(req, "brandID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid brand id", services.ErrInvalidRequest)
	}
	return id, nil
}

// GET /health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) error {
	if err := r.repos.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "store": r.repos.Backend(), "error": err.Error()})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "store": r.repos.Backend()})
	return nil
}

// POST /v1/analyses
// Body: services.AnalysisRequest. The session id is minted here so the
// caller can poll for the result.
func (r *Router) handleStartAnalysis(w http.ResponseWriter, req *http.Request) error {
	if r.events == nil {
		return ErrEventsDisabled
	}
	var body services.AnalysisRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidRequest, err)
	}
	if services.NormalizeDomain(body.Domain) == "" {
		return fmt.Errorf("%w: domain is required", services.ErrInvalidRequest)
	}
	if !body.Isolated && strings.TrimSpace(body.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id is required", services.ErrInvalidRequest)
	}
	if body.SessionID == "" {
		purpose := body.Purpose
		if purpose == "" {
			purpose = "analysis"
			if body.Isolated {
				purpose = "admin"
			}
		}
		body.SessionID = models.NewSessionID(purpose, r.now())
	}

	eventID, err := r.events.Send(req.Context(), workflows.NewAnalysisEvent(body, "api"))
	if err != nil {
		return fmt.Errorf("failed to send analysis event: %w", err)
	}
	log.Info().Str("session_id", body.SessionID).Str("domain", body.Domain).Msg("[HTTP] Analysis requested")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"analysis_session_id": body.SessionID,
		"event_id":            eventID,
	})
	return nil
}

// GET /v1/sessions/{sessionID}/sov
func (r *Router) handleSessionSOV(w http.ResponseWriter, req *http.Request) error {
	record, err := r.repos.SOVRepo.LatestBySession(req.Context(), chi.URLParam(req, "sessionID"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

// GET /v1/sessions/{sessionID}/mentions
func (r *Router) handleSessionMentions(w http.ResponseWriter, req *http.Request) error {
	mentions, err := r.repos.MentionRepo.ListBySession(req.Context(), chi.URLParam(req, "sessionID"))
	if err != nil {
		return err
	}
	if mentions == nil {
		mentions = []*models.Mention{}
	}
	writeJSON(w, http.StatusOK, mentions)
	return nil
}

// GET /v1/sessions/{sessionID}/citations
func (r *Router) handleSessionCitations(w http.ResponseWriter, req *http.Request) error {
	citations, err := r.repos.CitationRepo.ListBySession(req.Context(), chi.URLParam(req, "sessionID"))
	if err != nil {
		return err
	}
	if citations == nil {
		citations = []*models.Citation{}
	}
	writeJSON(w, http.StatusOK, citations)
	return nil
}

// GET /v1/brands/{brandID}/sov/latest
func (r *Router) handleLatestBrandSOV(w http.ResponseWriter, req *http.Request) error {
	id, err := brandIDParam(req)
	if err != nil {
		return err
	}
	record, err := r.repos.SOVRepo.LatestByBrand(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

// GET /v1/brands/{brandID}/sov
func (r *Router) handleBrandSOV(w http.ResponseWriter, req *http.Request) error {
	id, err := brandIDParam(req)
	if err != nil {
		return err
	}
	if _, err := r.brands.GetBrand(req.Context(), id); err != nil {
		return err
	}
	records, err := r.repos.SOVRepo.ListByBrand(req.Context(), id)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*models.ShareOfVoiceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
	return nil
}

// PUT /v1/brands/{brandID}/competitors
// Body: {"competitors": ["A", "B"]}
func (r *Router) handleUpdateCompetitors(w http.ResponseWriter, req *http.Request) error {
	id, err := brandIDParam(req)
	if err != nil {
		return err
	}
	var body struct {
		Competitors []string `json:"competitors"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidRequest, err)
	}
	if body.Competitors == nil {
		return fmt.Errorf("%w: competitors is required", services.ErrInvalidRequest)
	}

	outcomes, err := r.brands.UpdateCompetitors(req.Context(), id, body.Competitors)
	if err != nil {
		return err
	}
	synced, failed := 0, 0
	for _, o := range outcomes {
		if o.OK {
			synced++
		} else {
			failed++
		}
	}
	if outcomes == nil {
		outcomes = []services.SyncOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"brand_id": id.String(),
		"synced":   synced,
		"failed":   failed,
		"outcomes": outcomes,
	})
	return nil
}
