// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinball19/bus-app/internal/calendar"
	"github.com/pinball19/bus-app/internal/export"
	"github.com/pinball19/bus-app/internal/model"
)

// ScheduleStore is the persistence contract the service works against.
// *repository.ScheduleRepository and *repository.MemoryRepository both
// satisfy it.
type ScheduleStore interface {
	List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error)
	Create(ctx context.Context, s model.Schedule) (*model.Schedule, error)
	Update(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleService orchestrates schedule operations: it validates and
// normalizes incoming bookings, persists them, and keeps the grid view
// rebuilt from the authoritative stored list after every mutation.
type ScheduleService struct {
	store  ScheduleStore
	view   *GridView
	roster []string
	log    *zap.Logger
}

// NewScheduleService constructs a ScheduleService with its dependencies.
func NewScheduleService(store ScheduleStore, roster []string, log *zap.Logger) *ScheduleService {
	return &ScheduleService{
		store:  store,
		view:   NewGridView(store, roster, log),
		roster: roster,
		log:    log,
	}
}

// Roster returns the fixed, ordered bus roster defining the grid rows.
func (s *ScheduleService) Roster() []string {
	return s.roster
}

// Grid refreshes and returns the projected month grid for the query.
func (s *ScheduleService) Grid(ctx context.Context, q model.ViewQuery) (*calendar.Grid, error) {
	return s.view.Refresh(ctx, q)
}

// List returns the raw schedule list for the query.
func (s *ScheduleService) List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error) {
	return s.store.List(ctx, q)
}

// Create validates and normalizes a new booking, persists it, and
// rebuilds the grid from the stored list.
func (s *ScheduleService) Create(ctx context.Context, input model.ScheduleInput) (*model.Schedule, error) {
	sched, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, *sched)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.refreshAfterMutation(ctx, created.Year, created.Month)
	return created, nil
}

// Update validates and normalizes an edited booking and replaces the
// stored schedule's mutable fields wholesale.
func (s *ScheduleService) Update(ctx context.Context, id string, input model.ScheduleInput) (*model.Schedule, error) {
	if id == "" {
		return nil, &model.ValidationError{Field: "id", Message: "schedule id is required"}
	}
	sched, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, id, *sched)
	if err != nil {
		return nil, err
	}
	s.refreshAfterMutation(ctx, updated.Year, updated.Month)
	return updated, nil
}

// Delete removes a booking outright.
func (s *ScheduleService) Delete(ctx context.Context, id string, q model.ViewQuery) error {
	if id == "" {
		return &model.ValidationError{Field: "id", Message: "schedule id is required"}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshAfterMutation(ctx, q.Year, int(q.Month))
	return nil
}

// Reconcile applies one form edit to the date/span triple and returns
// the consistent result. A return date before the departure date is the
// only rejection; it surfaces as a validation error with no state change.
func (s *ScheduleService) Reconcile(req model.ReconcileRequest) (*model.ReconcileResponse, error) {
	rec := calendar.Reconciler{
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Span:          req.Span,
	}
	switch req.Edited {
	case "departureDate":
		rec.SetDepartureDate(req.DepartureDate)
	case "returnDate":
		rec.DepartureDate = req.DepartureDate
		rec.ReturnDate = model.Date{}
		if err := rec.SetReturnDate(req.ReturnDate); err != nil {
			return nil, &model.ValidationError{Field: "returnDate", Message: err.Error()}
		}
	case "span":
		rec.SetSpan(req.Span)
	default:
		return nil, &model.ValidationError{Field: "edited", Message: "must be departureDate, returnDate or span"}
	}
	return &model.ReconcileResponse{
		DepartureDate: rec.DepartureDate,
		ReturnDate:    rec.ReturnDate,
		Span:          rec.Span,
	}, nil
}

// ExportRows flattens the queried month into human-labeled CSV rows.
func (s *ScheduleService) ExportRows(ctx context.Context, q model.ViewQuery) ([]export.Row, error) {
	schedules, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("export schedules: %w", err)
	}
	rows := make([]export.Row, 0, len(schedules))
	for _, sched := range schedules {
		rows = append(rows, export.FromSchedule(sched))
	}
	return rows, nil
}

// prepare runs the shared validation and submission-time normalization
// for create and update. Validation failures block the save; an
// out-of-range day or an overshooting span is corrected, not rejected,
// and logged as a warning.
func (s *ScheduleService) prepare(input model.ScheduleInput) (*model.Schedule, error) {
	input.BusName = strings.TrimSpace(input.BusName)
	if input.BusName == "" {
		return nil, &model.ValidationError{Field: "busName", Message: "bus name is required"}
	}
	if input.Year < 1 {
		return nil, &model.ValidationError{Field: "year", Message: "year is required"}
	}
	if input.Month < 1 || input.Month > 12 {
		return nil, &model.ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if !input.DepartureDate.IsZero() && !input.ReturnDate.IsZero() &&
		input.ReturnDate.Before(input.DepartureDate.Time) {
		return nil, &model.ValidationError{
			Field:   "returnDate",
			Message: calendar.ErrReturnBeforeDeparture.Error(),
		}
	}

	day, span, clipped := calendar.ClipToMonth(input.Day, input.Span, input.Year, time.Month(input.Month))
	if clipped {
		s.log.Warn("schedule normalized to fit month",
			zap.String("bus", input.BusName),
			zap.Int("year", input.Year),
			zap.Int("month", input.Month),
			zap.Int("requestedDay", input.Day),
			zap.Int("requestedSpan", input.Span),
			zap.Int("day", day),
			zap.Int("span", span),
		)
	}

	return &model.Schedule{
		BusName:       input.BusName,
		Year:          input.Year,
		Month:         input.Month,
		Day:           day,
		Span:          span,
		OrderDate:     input.OrderDate,
		DepartureDate: input.DepartureDate,
		ReturnDate:    input.ReturnDate,
		GroupName:     input.GroupName,
		Destination:   input.Destination,
		Passengers:    input.Passengers,
		Price:         input.Price,
		ContactPerson: input.ContactPerson,
		ContactInfo:   input.ContactInfo,
		BusType:       input.BusType,
		Memo:          input.Memo,
	}, nil
}

// refreshAfterMutation rebuilds the cached grid from the stored list.
// The grid is never patched in place; a refresh failure keeps the last
// successfully loaded grid and is only logged, since the mutation
// itself already succeeded.
func (s *ScheduleService) refreshAfterMutation(ctx context.Context, year, month int) {
	q := model.ViewQuery{Year: year, Month: time.Month(month)}
	if _, err := s.view.Refresh(ctx, q); err != nil {
		s.log.Error("grid refresh after mutation failed", zap.Error(err))
	}
}
