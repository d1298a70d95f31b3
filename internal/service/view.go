package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pinball19/bus-app/internal/calendar"
	"github.com/pinball19/bus-app/internal/model"
)

// GridView holds the single in-memory grid a month view displays. The
// grid is always rebuilt wholesale from the stored schedule list; it is
// never mutated in place.
//
// Every refresh is tagged with a monotonically increasing sequence
// number taken before the fetch starts. A fetch that resolves after a
// newer fetch has already been applied never writes the cache, so a
// slow response for a previously selected month cannot overwrite the
// grid of the month the user has since switched to.
type GridView struct {
	store  ScheduleStore
	roster []string
	log    *zap.Logger

	mu      sync.Mutex
	seq     uint64 // last issued fetch tag
	applied uint64 // fetch tag of the grid currently held
	grid    *calendar.Grid
}

// NewGridView constructs a GridView over the given store and roster.
func NewGridView(store ScheduleStore, roster []string, log *zap.Logger) *GridView {
	return &GridView{store: store, roster: roster, log: log}
}

// Refresh fetches the query's schedules and reorganizes them onto the
// month grid. On a fetch error the previously loaded grid is kept and
// returned alongside the error. The caller always gets the grid built
// for its own query; when the response turns out to be superseded by a
// newer fetch, only the cache write is skipped, so the held grid stays
// the newest one without the slow caller being answered with another
// query's data.
func (v *GridView) Refresh(ctx context.Context, q model.ViewQuery) (*calendar.Grid, error) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.mu.Unlock()

	schedules, err := v.store.List(ctx, q)
	if err != nil {
		return v.Current(), fmt.Errorf("list schedules: %w", err)
	}
	grid := calendar.Reorganize(schedules, v.roster, q.Year, q.Month)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq < v.applied {
		v.log.Debug("superseded grid fetch; cache kept",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", v.applied),
		)
		return grid, nil
	}
	v.applied = seq
	v.grid = grid
	return grid, nil
}

// Current returns the last successfully loaded grid, or nil before the
// first refresh.
func (v *GridView) Current() *calendar.Grid {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.grid
}
