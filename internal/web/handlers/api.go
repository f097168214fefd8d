package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/polematch/internal/audit"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/extract"
)

// RunStore persists run reports. *audit.Tracker satisfies it.
type RunStore interface {
	RecordRun(ctx context.Context, localDebug bool, rep *engine.Report) error
	GetRun(ctx context.Context, localDebug bool, runID uuid.UUID) (*audit.RunRecord, error)
}

// APIHandler serves the correlation API
type APIHandler struct {
	Store        RunStore
	MaxBodyBytes int64
	Debug        bool

	current atomic.Pointer[engine.Engine]
}

// NewAPIHandler creates a handler serving eng.
func NewAPIHandler(eng *engine.Engine, store RunStore) *APIHandler {
	h := &APIHandler{Store: store}
	h.current.Store(eng)
	return h
}

// SetEngine swaps the engine used by requests that start after the call.
func (h *APIHandler) SetEngine(eng *engine.Engine) {
	h.current.Store(eng)
}

// Engine returns the engine currently in use.
func (h *APIHandler) Engine() *engine.Engine {
	return h.current.Load()
}

// CorrelateRequest carries two decoded sources and optional field maps
// that replace the configured ones for this call.
type CorrelateRequest struct {
	A         any               `json:"a"`
	B         any               `json:"b"`
	FieldMapA *extract.FieldMap `json:"field_map_a,omitempty"`
	FieldMapB *extract.FieldMap `json:"field_map_b,omitempty"`
}

// SpansRequest carries connection records. CorrelatedPoles absent or null
// disables the endpoint filter; an empty list filters everything out.
type SpansRequest struct {
	Connections     any      `json:"connections"`
	CorrelatedPoles []string `json:"correlated_poles"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"store":  h.Store != nil,
	})
}

// Correlate matches two sources and returns the correlation result
func (h *APIHandler) Correlate(w http.ResponseWriter, r *http.Request) {
	var req CorrelateRequest
	if !h.decode(w, r, &req) {
		return
	}

	eng := h.Engine()
	fmA, fmB := eng.Rules().Sources.A, eng.Rules().Sources.B
	if req.FieldMapA != nil {
		fmA = *req.FieldMapA
	}
	if req.FieldMapB != nil {
		fmB = *req.FieldMapB
	}

	res, err := eng.CorrelateWith(req.A, req.B, fmA, fmB)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reconcile correlates two sources and returns one canonical record per match
func (h *APIHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req CorrelateRequest
	if !h.decode(w, r, &req) {
		return
	}

	eng := h.Engine()
	res, err := eng.Correlate(req.A, req.B)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	poles, err := eng.Reconcile(res, req.A, req.B)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, poles)
}

// Spans aggregates span wire annotations
func (h *APIHandler) Spans(w http.ResponseWriter, r *http.Request) {
	var req SpansRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Engine().AggregateSpans(req.Connections, req.CorrelatedPoles)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateRun executes a full run and records it when a store is configured
func (h *APIHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var in engine.Input
	if !h.decode(w, r, &in) {
		return
	}

	rep, err := h.Engine().Run(in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if h.Store != nil {
		if err := h.Store.RecordRun(r.Context(), h.Debug, rep); err != nil {
			slog.Error("failed to record run", slog.String("run_id", rep.RunID.String()), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, errors.New("run completed but could not be recorded"))
			return
		}
	}
	writeJSON(w, http.StatusCreated, rep)
}

// GetRun returns a recorded run
func (h *APIHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no run store configured"))
		return
	}

	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}

	run, err := h.Store.GetRun(r.Context(), h.Debug, runID)
	if errors.Is(err, audit.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		slog.Error("failed to load run", slog.String("run_id", runID.String()), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, errors.New("database error"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Rules returns the effective rules as YAML
func (h *APIHandler) Rules(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(h.Engine().Rules())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}
	return true
}

func statusFor(err error) int {
	if errors.Is(err, extract.ErrInvalidInput) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
