// Package http exposes the case workflow over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencivic/sdcrs/internal/presentation/graph"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Service is the slice of the root facade the HTTP layer needs.
type Service interface {
	SubmitReport(ctx context.Context, reporterID string, role domain.ReporterRole) (*domain.Instance, error)
	SubmitEvent(ctx context.Context, caseID string, event domain.Event) (domain.Outcome, error)
	GetCase(ctx context.Context, caseID string) (*domain.Instance, error)
	ListCases(ctx context.Context) ([]string, error)
}

// Server wires the Service into a chi router.
type Server struct {
	service Service
	logger  *slog.Logger
}

// NewHandler builds the HTTP handler. Health and metrics sit outside the
// logged group so probes do not flood the request log.
func NewHandler(service Service, logger *slog.Logger, gatherer prometheus.Gatherer, def GraphSource) http.Handler {
	s := &Server{service: service, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if def != nil {
		r.Get("/graph", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(graph.GenerateMermaid(def.Definition(), nil)))
		})
	}

	r.Route("/cases", func(r chi.Router) {
		r.Post("/", s.handleSubmitReport)
		r.Get("/", s.handleListCases)
		r.Get("/{caseID}", s.handleGetCase)
		r.Post("/{caseID}/events", s.handleSubmitEvent)
	})

	return r
}

// GraphSource provides the workflow definition for the /graph endpoint.
type GraphSource interface {
	Definition() *workflow.Definition
}

type submitReportRequest struct {
	ReporterID   string              `json:"reporter_id"`
	ReporterRole domain.ReporterRole `json:"reporter_role"`
}

type submitEventRequest struct {
	Type      domain.EventType `json:"type"`
	ActorID   string           `json:"actor_id"`
	ActorRole domain.ActorRole `json:"actor_role"`
	At        time.Time        `json:"at,omitempty"`
	Payload   map[string]any   `json:"payload,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var body submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ReporterID == "" {
		writeError(w, http.StatusBadRequest, "reporter_id is required")
		return
	}
	if body.ReporterRole == "" {
		body.ReporterRole = domain.ReporterCitizen
	}

	instance, err := s.service.SubmitReport(r.Context(), body.ReporterID, body.ReporterRole)
	if err != nil {
		s.logger.Error("submit report failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create case")
		return
	}
	writeJSON(w, http.StatusCreated, instance)
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	var body submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	payload, err := domain.DecodePayload(body.Type, body.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.service.SubmitEvent(r.Context(), caseID, domain.Event{
		Type:      body.Type,
		ActorID:   body.ActorID,
		ActorRole: body.ActorRole,
		At:        body.At,
		Payload:   payload,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		s.logger.Error("submit event failed", "case_id", caseID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to submit event")
		return
	}

	status := http.StatusOK
	if !outcome.Applied {
		// The event was understood but refused by the workflow.
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, outcome)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	instance, err := s.service.GetCase(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		s.logger.Error("get case failed", "case_id", caseID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load case")
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.ListCases(r.Context())
	if err != nil {
		s.logger.Error("list cases failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"case_ids": ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
