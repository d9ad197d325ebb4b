package fitd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kinfit/kinfit-core/internal/kinetics"
	"github.com/kinfit/kinfit-core/pkg/logger"
)

// HTTPServer is the JSON serving surface of the fitting daemon.
type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor, reg *prometheus.Registry) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/models", s.handleModels)
	s.mux.HandleFunc("/v1/fits", s.handleFits)
	s.mux.HandleFunc("/v1/fits/", s.handleFitByID)
	if reg != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
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

// handleModels handles GET /v1/models, the kinetic model catalog.
func (s *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	models := make([]map[string]any, 0, kinetics.ModelCount)
	for m := 0; m < kinetics.ModelCount; m++ {
		models = append(models, map[string]any{
			"index": m,
			"name":  kinetics.ModelName(m),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleFits handles /v1/fits.
func (s *HTTPServer) handleFits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateFit(w, r)
	case http.MethodGet:
		s.handleListFits(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleFitByID handles /v1/fits/{id} and related endpoints.
func (s *HTTPServer) handleFitByID(w http.ResponseWriter, r *http.Request) {
	// Path shapes: /v1/fits/{id}, /v1/fits/{id}:cancel, /v1/fits/{id}/best
	path := strings.TrimPrefix(r.URL.Path, "/v1/fits/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if strings.HasSuffix(path, ":cancel") {
		runID := strings.TrimSuffix(path, ":cancel")
		if r.Method == http.MethodPost {
			s.handleCancelFit(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/best") {
		runID := strings.TrimSuffix(path, "/best")
		if r.Method == http.MethodGet {
			s.handleGetBest(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetFit(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateFit handles POST /v1/fits. The run starts immediately; the
// response carries the running record.
func (s *HTTPServer) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := s.Executor.Start(&req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("fit created (HTTP)", "run_id", rec.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": convertRunToJSON(rec),
	})
}

// handleListFits handles GET /v1/fits.
func (s *HTTPServer) handleListFits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	runs := s.store.List(limit)
	runsJSON := make([]map[string]any, 0, len(runs))
	for _, rec := range runs {
		runsJSON = append(runsJSON, convertRunToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runsJSON,
		"count": len(runs),
	})
}

// handleGetFit handles GET /v1/fits/{id}.
func (s *HTTPServer) handleGetFit(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": convertRunToJSON(rec),
	})
}

// handleCancelFit handles POST /v1/fits/{id}:cancel.
func (s *HTTPServer) handleCancelFit(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("fit cancellation requested (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": convertRunToJSON(updated),
	})
}

// handleGetBest handles GET /v1/fits/{id}/best. The best candidate is
// available as soon as the first generation completes.
func (s *HTTPServer) handleGetBest(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.Executor.Best(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if rec.Best == nil {
		s.writeError(w, http.StatusPreconditionFailed, "no candidate available yet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     rec.ID,
		"status":     string(rec.Status),
		"generation": rec.Generation,
		"best":       rec.Best,
		"best_mse":   rec.BestMSE,
	})
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

func convertRunToJSON(rec *RunRecord) map[string]any {
	out := map[string]any{
		"id":                 rec.ID,
		"status":             string(rec.Status),
		"generation":         rec.Generation,
		"best_mse":           rec.BestMSE,
		"created_at_unix_ms": rec.CreatedAtUnixMs,
		"started_at_unix_ms": rec.StartedAtUnixMs,
		"ended_at_unix_ms":   rec.EndedAtUnixMs,
	}
	if rec.Reason != "" {
		out["reason"] = rec.Reason
	}
	if rec.Error != "" {
		out["error"] = rec.Error
	}
	return out
}
