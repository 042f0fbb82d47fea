// Package api serves the run index over HTTP for inspection.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/store"
)

// RunReader is the read side of the run index.
type RunReader interface {
	ListRuns(ctx context.Context, f store.RunFilter) ([]store.RunRow, error)
	GetRun(ctx context.Context, runID string) (store.RunRow, error)
	Steps(ctx context.Context, runID string) ([]store.StepRow, error)
	Attempts(ctx context.Context, runID string) ([]store.AttemptRow, error)
	RegimeCounts(ctx context.Context, runID string) (map[string]int, error)
}

// Handler provides the read-only inspection endpoints.
type Handler struct {
	runs   RunReader
	logger *slog.Logger
}

func NewHandler(runs RunReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runs: runs, logger: logger.With("component", "api")}
}

// Router mounts the standard middleware, /healthz and the run routes.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/runs", h.Routes())
	return r
}

// Routes returns the run routes.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/steps", h.HandleSteps)
		r.Get("/attempts", h.HandleAttempts)
		r.Get("/regimes", h.HandleRegimes)
	})
	return r
}

// HandleList handles GET /runs?benchmark=&controller=&task=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RunFilter{Benchmark: q.Get("benchmark"), Controller: q.Get("controller"), Limit: 100}
	if c := f.Controller; c != "" && c != record.ControllerOff && c != record.ControllerOn {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "controller must be off or on")
		return
	}
	if v := q.Get("task"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id")
			return
		}
		f.TaskID = &n
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), f)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []store.RunRow{}
	}
	writeJSON(w, http.StatusOK, listResponse{Data: runs})
}

// HandleGet handles GET /runs/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleSteps handles GET /runs/{id}/steps. With ?full=1 the complete step
// records are returned instead of the indexed projection.
func (h *Handler) HandleSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existing(w, r)
	if !ok {
		return
	}
	steps, err := h.runs.Steps(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	if r.URL.Query().Get("full") == "1" {
		full := make([]json.RawMessage, len(steps))
		for i, s := range steps {
			full[i] = json.RawMessage(s.RecordJSON)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": full})
		return
	}
	if steps == nil {
		steps = []store.StepRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": steps})
}

// HandleAttempts handles GET /runs/{id}/attempts.
func (h *Handler) HandleAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existing(w, r)
	if !ok {
		return
	}
	attempts, err := h.runs.Attempts(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	if attempts == nil {
		attempts = []store.AttemptRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": attempts})
}

// HandleRegimes handles GET /runs/{id}/regimes.
func (h *Handler) HandleRegimes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existing(w, r)
	if !ok {
		return
	}
	counts, err := h.runs.RegimeCounts(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": counts})
}

// --- response types ---

type listResponse struct {
	Data []store.RunRow `json:"data"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- helpers ---

func runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid run id")
		return "", false
	}
	return id.String(), true
}

// existing resolves the run id and answers 404 for unknown runs.
func (h *Handler) existing(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := runID(w, r)
	if !ok {
		return "", false
	}
	if _, err := h.runs.GetRun(r.Context(), id); err != nil {
		h.handleStoreError(w, err)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "run not found")
	default:
		h.logger.Error("api handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
