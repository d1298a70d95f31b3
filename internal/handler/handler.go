// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pinball19/bus-app/internal/export"
	"github.com/pinball19/bus-app/internal/model"
	"github.com/pinball19/bus-app/internal/repository"
	"github.com/pinball19/bus-app/internal/service"
)

// ScheduleHandler holds all HTTP handlers for the booking calendar API.
type ScheduleHandler struct {
	svc *service.ScheduleService
	log *zap.Logger
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(svc *service.ScheduleService, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// viewQuery reads year/month/bus/contact from the URL query, defaulting
// to the current month.
func viewQuery(r *http.Request) (model.ViewQuery, error) {
	now := time.Now()
	q := model.ViewQuery{
		Year:          now.Year(),
		Month:         now.Month(),
		BusName:       r.URL.Query().Get("bus"),
		ContactPerson: r.URL.Query().Get("contact"),
	}
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 1 {
			return q, fmt.Errorf("invalid year %q", v)
		}
		q.Year = year
	}
	if v := r.URL.Query().Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return q, fmt.Errorf("invalid month %q", v)
		}
		q.Month = time.Month(month)
	}
	return q, nil
}

// serviceError maps service failures onto the HTTP error taxonomy:
// validation failures are 400 with the inline message, unknown ids are
// 404, anything else is a generic persistence failure.
func serviceError(w http.ResponseWriter, err error, fallback string) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "schedule not found")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListSchedules handles GET /api/schedules
// Returns the raw schedule list for the queried month, optionally
// narrowed by bus name or contact person.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q, err := viewQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedules, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if schedules == nil {
		schedules = []model.Schedule{}
	}

	writeJSON(w, http.StatusOK, schedules)
}

// GetGrid handles GET /api/grid
// Returns the projected month grid: one row per roster bus, one cell
// per day.
func (h *ScheduleHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	q, err := viewQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grid, err := h.svc.Grid(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load grid")
		return
	}

	writeJSON(w, http.StatusOK, grid)
}

// CreateSchedule handles POST /api/schedules
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input model.ScheduleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.svc.Create(r.Context(), input)
	if err != nil {
		serviceError(w, err, "failed to save schedule")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateSchedule handles PUT /api/schedules/{id}
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input model.ScheduleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		serviceError(w, err, "failed to update schedule")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteSchedule handles DELETE /api/schedules/{id}
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q, err := viewQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id, q); err != nil {
		serviceError(w, err, "failed to delete schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile handles POST /api/reconcile
// Applies one form edit to the departure/return/span triple and returns
// the consistent result the form should display.
func (h *ScheduleHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req model.ReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.Reconcile(req)
	if err != nil {
		serviceError(w, err, "failed to reconcile dates")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportCSV handles GET /api/schedules/export
// Streams the queried month as a CSV download.
func (h *ScheduleHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := viewQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.svc.ExportRows(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export schedules")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=schedules_%d_%02d.csv", q.Year, int(q.Month)))
	if err := export.WriteCSV(w, rows); err != nil {
		// Headers are already gone; all that remains is the diagnostic.
		h.log.Error("csv export aborted mid-stream",
			zap.Int("year", q.Year),
			zap.Int("month", int(q.Month)),
			zap.Error(err),
		)
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
