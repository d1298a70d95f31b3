package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pinball19/bus-app/internal/calendar"
	"github.com/pinball19/bus-app/internal/model"
	"github.com/pinball19/bus-app/internal/repository"
)

var testRoster = []string{"micro-1", "micro-2"}

func newTestService() (*ScheduleService, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	return NewScheduleService(repo, testRoster, zap.NewNop()), repo
}

func validInput() model.ScheduleInput {
	return model.ScheduleInput{
		BusName:       "micro-1",
		Year:          2024,
		Month:         9,
		Day:           10,
		Span:          4,
		OrderDate:     model.NewDate(2024, time.September, 1),
		DepartureDate: model.NewDate(2024, time.September, 10),
		ReturnDate:    model.NewDate(2024, time.September, 13),
		GroupName:     "alumni reunion",
		ContactPerson: "tanaka",
	}
}

func TestCreateAndGrid(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected server-assigned id")
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Error("expected matching created/updated stamps on create")
	}

	grid, err := svc.Grid(ctx, model.ViewQuery{Year: 2024, Month: time.September})
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	row := grid.Rows[0]
	if row.BusName != "micro-1" {
		t.Fatalf("row 0 = %q, want micro-1", row.BusName)
	}
	if row.Cells[9].Kind != calendar.CellBooked || row.Cells[9].Span != 4 {
		t.Errorf("day 10: got %s span %d, want booked span 4", row.Cells[9].Kind, row.Cells[9].Span)
	}
}

func TestCreateRejectsReturnBeforeDeparture(t *testing.T) {
	svc, _ := newTestService()

	input := validInput()
	input.ReturnDate = model.NewDate(2024, time.September, 8)

	_, err := svc.Create(context.Background(), input)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Nothing may have been persisted.
	schedules, err := svc.List(context.Background(), model.ViewQuery{Year: 2024, Month: time.September})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(schedules) != 0 {
		t.Errorf("store holds %d schedules after rejected create, want 0", len(schedules))
	}
}

func TestCreateClipsToMonth(t *testing.T) {
	svc, _ := newTestService()

	input := validInput()
	input.Day = 29
	input.Span = 5
	input.DepartureDate = model.Date{}
	input.ReturnDate = model.Date{}

	created, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Day != 29 || created.Span != 2 {
		t.Errorf("stored (day, span) = (%d, %d), want (29, 2)", created.Day, created.Span)
	}
}

func TestCreateClampsDay(t *testing.T) {
	svc, _ := newTestService()

	input := validInput()
	input.Day = 45
	input.Span = 1
	input.DepartureDate = model.Date{}
	input.ReturnDate = model.Date{}

	created, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Day != 30 {
		t.Errorf("day = %d, want clamped to 30", created.Day)
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(*model.ScheduleInput)
	}{
		{"missing bus", func(in *model.ScheduleInput) { in.BusName = " " }},
		{"missing year", func(in *model.ScheduleInput) { in.Year = 0 }},
		{"bad month", func(in *model.ScheduleInput) { in.Month = 13 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateReplacesFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	input := validInput()
	input.GroupName = "company outing"
	input.Day = 20
	input.Span = 2
	input.DepartureDate = model.NewDate(2024, time.September, 20)
	input.ReturnDate = model.NewDate(2024, time.September, 21)

	updated, err := svc.Update(ctx, created.ID, input)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.GroupName != "company outing" || updated.Day != 20 || updated.Span != 2 {
		t.Errorf("update did not replace fields: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("update altered the creation timestamp")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) && !updated.UpdatedAt.Equal(created.UpdatedAt) {
		t.Error("update did not re-stamp updated_at")
	}
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), "nope", validInput())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesSchedule(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	q := model.ViewQuery{Year: 2024, Month: time.September}
	if err := svc.Delete(ctx, created.ID, q); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	schedules, err := svc.List(ctx, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(schedules) != 0 {
		t.Errorf("store holds %d schedules after delete, want 0", len(schedules))
	}

	if err := svc.Delete(ctx, created.ID, q); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestReconcileTransitions(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.Reconcile(model.ReconcileRequest{
		DepartureDate: model.NewDate(2024, time.September, 10),
		Span:          4,
		Edited:        "span",
	})
	if err != nil {
		t.Fatalf("Reconcile(span): %v", err)
	}
	if want := model.NewDate(2024, time.September, 13); !resp.ReturnDate.Equal(want.Time) {
		t.Errorf("return date = %s, want %s", resp.ReturnDate, want)
	}

	resp, err = svc.Reconcile(model.ReconcileRequest{
		DepartureDate: model.NewDate(2024, time.September, 10),
		ReturnDate:    model.NewDate(2024, time.September, 13),
		Edited:        "returnDate",
	})
	if err != nil {
		t.Fatalf("Reconcile(returnDate): %v", err)
	}
	if resp.Span != 4 {
		t.Errorf("span = %d, want 4", resp.Span)
	}

	_, err = svc.Reconcile(model.ReconcileRequest{
		DepartureDate: model.NewDate(2024, time.September, 10),
		ReturnDate:    model.NewDate(2024, time.September, 8),
		Edited:        "returnDate",
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error for return before departure, got %v", err)
	}
}

func TestExportRows(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := svc.ExportRows(ctx, model.ViewQuery{Year: 2024, Month: time.September})
	if err != nil {
		t.Fatalf("ExportRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].BusName != "micro-1" || rows[0].Date != "2024/9/10" || rows[0].Span != "4" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

// ─── Stale fetch handling ─────────────────────────────────────────────────────

// slowFirstStore blocks its first List call until released; later calls
// return immediately. Mutations are never used here.
type slowFirstStore struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	first   []model.Schedule
	second  []model.Schedule
}

func (s *slowFirstStore) List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		close(s.started)
		<-s.release
		return s.first, nil
	}
	return s.second, nil
}

func (s *slowFirstStore) Create(ctx context.Context, sc model.Schedule) (*model.Schedule, error) {
	panic("not used")
}

func (s *slowFirstStore) Update(ctx context.Context, id string, sc model.Schedule) (*model.Schedule, error) {
	panic("not used")
}

func (s *slowFirstStore) Delete(ctx context.Context, id string) error {
	panic("not used")
}

func TestGridViewDiscardsSupersededFetch(t *testing.T) {
	store := &slowFirstStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
		first:   []model.Schedule{{BusName: "micro-1", Day: 1, Span: 1}},
		second:  []model.Schedule{{BusName: "micro-1", Day: 15, Span: 2}},
	}
	view := NewGridView(store, testRoster, zap.NewNop())
	ctx := context.Background()

	var (
		lateGrid *calendar.Grid
		lateErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Fetch for August; it will resolve only after the September
		// fetch has already landed.
		lateGrid, lateErr = view.Refresh(ctx, model.ViewQuery{Year: 2024, Month: time.August})
	}()
	<-store.started

	grid, err := view.Refresh(ctx, model.ViewQuery{Year: 2024, Month: time.September})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if grid.Month != 9 {
		t.Fatalf("grid month = %d, want 9", grid.Month)
	}

	close(store.release)
	<-done

	// The slow caller still gets an answer to its own query, never the
	// newer query's grid.
	if lateErr != nil {
		t.Fatalf("late Refresh: %v", lateErr)
	}
	if lateGrid.Month != 8 {
		t.Errorf("late caller asked for August, got month %d", lateGrid.Month)
	}
	if lateGrid.Rows[0].Cells[0].Kind != calendar.CellBooked {
		t.Errorf("late caller's grid does not reflect its own query's schedules")
	}

	// The late August response must not have replaced the newer grid.
	current := view.Current()
	if current.Month != 9 {
		t.Errorf("current grid month = %d after stale fetch resolved, want 9", current.Month)
	}
	if current.Rows[0].Cells[14].Kind != calendar.CellBooked {
		t.Errorf("newer grid content was overwritten by the stale response")
	}
}

func TestGridViewKeepsLastGridOnFetchFailure(t *testing.T) {
	repo := repository.NewMemoryRepository()
	view := NewGridView(&failingAfterFirst{inner: repo}, testRoster, zap.NewNop())
	ctx := context.Background()
	q := model.ViewQuery{Year: 2024, Month: time.September}

	grid, err := view.Refresh(ctx, q)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	got, err := view.Refresh(ctx, q)
	if err == nil {
		t.Fatal("expected the second fetch to fail")
	}
	if got != grid {
		t.Error("fetch failure did not keep the last successfully loaded grid")
	}
}

// failingAfterFirst delegates the first List call and fails the rest.
type failingAfterFirst struct {
	inner ScheduleStore
	calls int
}

func (f *failingAfterFirst) List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("connection reset")
	}
	return f.inner.List(ctx, q)
}

func (f *failingAfterFirst) Create(ctx context.Context, s model.Schedule) (*model.Schedule, error) {
	return f.inner.Create(ctx, s)
}

func (f *failingAfterFirst) Update(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error) {
	return f.inner.Update(ctx, id, s)
}

func (f *failingAfterFirst) Delete(ctx context.Context, id string) error {
	return f.inner.Delete(ctx, id)
}
