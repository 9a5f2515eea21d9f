package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pivotlp/internal/core"
	"pivotlp/internal/llm"
	"pivotlp/internal/logger"
	"pivotlp/internal/parser"
	"pivotlp/internal/pipeline"
	"pivotlp/internal/store"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the /api/status body.
type StatusResponse struct {
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Storage bool   `json:"storage"`
}

var serverStartTime = time.Now()

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["storage"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}
	checks["storage"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Version: "v1.1.0",
		Uptime:  time.Since(serverStartTime).String(),
		Storage: s.store.Ping(r.Context()) == nil,
	})
}

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// handleAnalyze handles POST /api/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	summary, err := s.pipeline.Analyze(r.Context(), req.URL)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// PivotsRequest is the POST /api/pivots body.
type PivotsRequest struct {
	Analyzed core.ServiceSummary `json:"analyzed"`
}

// PivotsResponse is the POST /api/pivots reply.
type PivotsResponse struct {
	Pivots []core.PivotConcept `json:"pivots"`
}

// handlePivots handles POST /api/pivots.
func (s *Server) handlePivots(w http.ResponseWriter, r *http.Request) {
	var req PivotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	pivots, err := s.pipeline.Pivots(r.Context(), req.Analyzed)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, PivotsResponse{Pivots: pivots})
}

// handleGenerate handles POST /api/generate.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	page, err := s.pipeline.Generate(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

// SavePageResponse is the POST /api/pages reply: the share id and the fully
// constructed share URL.
type SavePageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// handleSavePage handles POST /api/pages.
func (s *Server) handleSavePage(w http.ResponseWriter, r *http.Request) {
	var page core.LandingPage
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := page.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid landing page document", err.Error())
		return
	}

	id, err := s.store.Save(r.Context(), page)
	if err != nil {
		logger.Error("Failed to save page", err)
		s.respondError(w, http.StatusInternalServerError, "failed to save page", "")
		return
	}

	s.respondJSON(w, http.StatusOK, SavePageResponse{
		ID:  id,
		URL: strings.TrimSuffix(s.baseURL, "/") + "/lp/" + id,
	})
}

// handleGetPage handles GET /api/pages/{id}.
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, record.Page)
}

// PageDebugResponse is the GET /api/pages/{id}/debug reply: record metadata
// without the document body.
type PageDebugResponse struct {
	ID          string    `json:"id"`
	ServiceName string    `json:"serviceName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// handleGetPageDebug handles GET /api/pages/{id}/debug.
func (s *Server) handleGetPageDebug(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, PageDebugResponse{
		ID:          id,
		ServiceName: record.Page.ServiceName,
		CreatedAt:   record.CreatedAt,
	})
}

// ClientLogRequest is the POST /api/log body sent by the browser.
type ClientLogRequest struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// ClientLogResponse acknowledges an ingested client log line.
type ClientLogResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleClientLog handles POST /api/log: browser-side log lines are folded
// into the server log under a fresh record id so they can be correlated.
func (s *Server) handleClientLog(w http.ResponseWriter, r *http.Request) {
	var req ClientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "missing or invalid field: message")
		return
	}

	id := uuid.New().String()
	args := []any{"client_log_id", id, "client_level", req.Level}
	for k, v := range req.Context {
		args = append(args, "client_"+k, v)
	}

	switch req.Level {
	case "error":
		logger.Error("Client: "+req.Message, nil, args...)
	case "warn":
		logger.Warn("Client: "+req.Message, args...)
	default:
		logger.Info("Client: "+req.Message, args...)
	}

	s.respondJSON(w, http.StatusOK, ClientLogResponse{ID: id, Status: "accepted"})
}

// respondPipelineError maps the pipeline error taxonomy onto HTTP statuses.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	var validationErr *core.ValidationError
	var apiErr *llm.APIError

	switch {
	case errors.As(err, &validationErr):
		s.respondError(w, http.StatusBadRequest, "invalid request", validationErr.Error())
	case errors.Is(err, llm.ErrOverloaded):
		w.Header().Set("Retry-After", "10")
		s.respondError(w, http.StatusServiceUnavailable,
			"The generation service is temporarily overloaded. Please try again in a moment.", "")
	case errors.Is(err, llm.ErrAuth):
		logger.Error("Completion credentials rejected", err)
		s.respondError(w, http.StatusInternalServerError, "service is misconfigured", "")
	case errors.Is(err, parser.ErrMalformedOutput):
		logger.Error("Model returned malformed output", err)
		s.respondError(w, http.StatusBadGateway, "the model returned an unusable response, please retry", "")
	case errors.As(err, &apiErr):
		logger.Error("Upstream completion failure", err)
		s.respondError(w, http.StatusBadGateway, "upstream service failure", apiErr.Error())
	default:
		logger.Error("Pipeline stage failed", err)
		s.respondError(w, http.StatusInternalServerError, "request failed", "")
	}
}

// respondStoreError maps store errors onto HTTP statuses. Absent and expired
// records read identically as 404.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "page not found or expired", "")
	case errors.Is(err, store.ErrCorruptRecord):
		logger.Error("Corrupt page record", err)
		s.respondError(w, http.StatusInternalServerError, "stored page is unreadable", "")
	default:
		logger.Error("Failed to load page", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load page", "")
	}
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// respondError writes a uniform JSON error body.
func (s *Server) respondError(w http.ResponseWriter, status int, message, details string) {
	s.respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}
