// Package calendar implements the month-grid projection and the
// date/span reconciliation the booking forms rely on.
package calendar

import (
	"time"

	"github.com/pinball19/bus-app/internal/model"
)

// CellKind discriminates the three states a (bus, day) grid cell can be in.
type CellKind string

const (
	// CellEmpty is a free, bookable day.
	CellEmpty CellKind = "empty"
	// CellBooked is the first day of a schedule; it spans Cell.Span columns.
	CellBooked CellKind = "booked"
	// CellContinuation is a day covered by an earlier booked cell's span.
	// It must not be rendered; the booked cell's colspan already owns it.
	CellContinuation CellKind = "continuation"
)

// Cell is one entry of the projected month grid.
type Cell struct {
	Kind CellKind `json:"kind"`
	// Span is the effective span in columns, set for booked cells only.
	// It is re-clipped to the month at projection time, so it may be
	// smaller than the stored schedule's span.
	Span     int             `json:"span,omitempty"`
	Schedule *model.Schedule `json:"schedule,omitempty"`
}

// Row is one bus's projected month: Cells[i] is day i+1.
type Row struct {
	BusName string `json:"busName"`
	Cells   []Cell `json:"cells"`
}

// Grid is the fully projected month view: one row per roster bus, in
// roster order, regardless of whether the bus has any schedules.
type Grid struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Days  int   `json:"days"`
	Rows  []Row `json:"rows"`
}

// DaysInMonth returns the number of days in the given month.
// Day zero of the following month is the last day of this one.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ProjectRow lays one bus's schedules onto a row of daysInMonth cells.
//
// It walks the days left to right: a schedule starting at the current
// day emits a booked cell and jumps past its effective span, marking
// the covered days as continuations; any other day is empty. The
// effective span is re-clipped against the month end here even though
// saves already clip, so stale or foreign data can never occupy columns
// past the last day. If two schedules claim the same start day the
// first one in list order wins; the loser simply never renders.
//
// ProjectRow never fails: no schedules means an all-empty row, and
// out-of-range positions are clipped or skipped rather than rejected.
func ProjectRow(schedules []model.Schedule, daysInMonth int) []Cell {
	cells := make([]Cell, daysInMonth)
	day := 1
	for day <= daysInMonth {
		s := findByDay(schedules, day)
		if s == nil {
			cells[day-1] = Cell{Kind: CellEmpty}
			day++
			continue
		}
		effective := s.Span
		if effective < 1 {
			effective = 1
		}
		if day+effective-1 > daysInMonth {
			effective = daysInMonth - day + 1
		}
		cells[day-1] = Cell{Kind: CellBooked, Span: effective, Schedule: s}
		for i := 1; i < effective; i++ {
			cells[day-1+i] = Cell{Kind: CellContinuation}
		}
		day += effective
	}
	return cells
}

// findByDay returns the first schedule starting at the given day.
func findByDay(schedules []model.Schedule, day int) *model.Schedule {
	for i := range schedules {
		if schedules[i].Day == day {
			return &schedules[i]
		}
	}
	return nil
}

// Reorganize projects a raw schedule list onto the full month grid for
// the given roster. It is pure: the same inputs always produce the same
// grid, and it is the single reorganization point called after every
// list, create, update and delete. Schedules for buses not on the
// roster have no row to land on and are dropped.
func Reorganize(schedules []model.Schedule, roster []string, year int, month time.Month) *Grid {
	days := DaysInMonth(year, month)
	byBus := make(map[string][]model.Schedule, len(roster))
	for _, s := range schedules {
		byBus[s.BusName] = append(byBus[s.BusName], s)
	}

	rows := make([]Row, 0, len(roster))
	for _, bus := range roster {
		rows = append(rows, Row{
			BusName: bus,
			Cells:   ProjectRow(byBus[bus], days),
		})
	}
	return &Grid{Year: year, Month: int(month), Days: days, Rows: rows}
}
