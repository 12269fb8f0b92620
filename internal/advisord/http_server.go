package advisord

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perotf-lab/expadvisor/pkg/logger"
)

const maxBodyBytes = 8 << 20

type HTTPServer struct {
	mux     *http.ServeMux
	service *Service
}

// NewHTTPServer routes the API. gatherer serves /metrics when non-nil.
func NewHTTPServer(service *Service, gatherer prometheus.Gatherer) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		service: service,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("/v1/batches", s.handleBatches)
	s.mux.HandleFunc("/v1/batches/", s.handleBatchByID)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSuggestions handles POST /v1/suggestions
func (s *HTTPServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SuggestRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := s.service.Suggest(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// handleBatches handles GET /v1/batches?limit=N
func (s *HTTPServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := s.service.ListBatches(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, map[string]any{
			"id":                 rec.ID(),
			"created_at_unix_ms": rec.Batch.CreatedAt.UnixMilli(),
			"observations":       rec.Observations,
			"suggestions":        len(rec.Batch.Suggestions),
			"min_distance":       rec.Batch.Diversity.MinDistance,
			"breached":           rec.Batch.Diversity.Breached,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"batches": items})
}

// handleBatchByID handles GET /v1/batches/{id}
func (s *HTTPServer) handleBatchByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, "batch ID is required")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, err := s.service.GetBatch(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// Helper functions

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch classify(err) {
	case kindInvalid:
		status = http.StatusBadRequest
	case kindUnsatisfiable:
		status = http.StatusUnprocessableEntity
	case kindNotFound:
		status = http.StatusNotFound
	case kindUnavailable:
		status = http.StatusNotImplemented
	case kindCanceled:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}

	s.writeError(w, status, err.Error())
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
