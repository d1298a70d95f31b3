package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pinball19/bus-app/internal/model"
)

// MemoryRepository is a mutex-guarded in-memory schedule store with the
// same behavior as ScheduleRepository. It backs tests and local runs
// without a database.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]model.Schedule
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]model.Schedule)}
}

// List returns the queried month's schedules ordered by bus and day.
func (r *MemoryRepository) List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var schedules []model.Schedule
	for _, s := range r.data {
		if s.Year != q.Year || s.Month != int(q.Month) {
			continue
		}
		if q.BusName != "" && s.BusName != q.BusName {
			continue
		}
		if q.BusName == "" && q.ContactPerson != "" && s.ContactPerson != q.ContactPerson {
			continue
		}
		schedules = append(schedules, s)
	}
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].BusName != schedules[j].BusName {
			return schedules[i].BusName < schedules[j].BusName
		}
		return schedules[i].Day < schedules[j].Day
	})
	return schedules, nil
}

// Create stores a new schedule under a generated UUID.
func (r *MemoryRepository) Create(ctx context.Context, s model.Schedule) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	r.data[s.ID] = s
	return &s, nil
}

// Update replaces an existing schedule's mutable fields.
func (r *MemoryRepository) Update(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.ID = id
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	r.data[id] = s
	return &s, nil
}

// Delete removes a schedule or returns ErrNotFound.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}
