package calendar

import (
	"errors"
	"time"

	"github.com/pinball19/bus-app/internal/model"
)

// ErrReturnBeforeDeparture is the one hard validation failure in the
// date/span subsystem: a return date earlier than the departure date.
var ErrReturnBeforeDeparture = errors.New("return date is before the departure date")

// Reconciler keeps a booking form's departure date, return date and
// span (number of booked days, departure day included) mutually
// consistent as any one of them is edited, maintaining
//
//	returnDate = departureDate + (span - 1) days
//
// after every transition. It is the single source of truth for these
// three fields; the form only reflects its state.
type Reconciler struct {
	DepartureDate model.Date
	ReturnDate    model.Date
	Span          int
}

// SetDepartureDate records a new departure date and recomputes the
// return date from the known span; with no span yet the return date
// defaults to the departure date itself, a one-day booking.
func (r *Reconciler) SetDepartureDate(d model.Date) {
	r.DepartureDate = d
	if d.IsZero() {
		return
	}
	if r.Span < 1 {
		r.Span = 1
	}
	r.ReturnDate = d.AddDays(r.Span - 1)
}

// SetReturnDate records a new return date and recomputes the span as
// the inclusive day count between departure and return. A return date
// earlier than the departure date is rejected and leaves the state
// untouched.
func (r *Reconciler) SetReturnDate(d model.Date) error {
	if !r.DepartureDate.IsZero() && !d.IsZero() && d.Before(r.DepartureDate.Time) {
		return ErrReturnBeforeDeparture
	}
	r.ReturnDate = d
	if !r.DepartureDate.IsZero() && !d.IsZero() {
		r.Span = daysBetween(r.DepartureDate, d) + 1
	}
	return nil
}

// SetSpan records a new span and recomputes the return date, provided
// a departure date is set; without one the return date stays blank.
// A span below one is corrected to one, never rejected.
func (r *Reconciler) SetSpan(span int) {
	if span < 1 {
		span = 1
	}
	r.Span = span
	if !r.DepartureDate.IsZero() {
		r.ReturnDate = r.DepartureDate.AddDays(span - 1)
	}
}

// daysBetween counts whole days from a to b, both at day granularity.
func daysBetween(a, b model.Date) int {
	return int(b.Sub(a.Time).Hours() / 24)
}

// ClipToMonth normalizes a (day, span) pair to fit the given month:
// the day is clamped into [1, lastDay] and an overshooting span is
// truncated so day+span-1 never passes the month's last day. It is
// applied once, at submission time. The returned flag reports whether
// anything was corrected so the caller can log it; corrections are a
// deliberate leniency, not errors, and nothing here ever fails.
func ClipToMonth(day, span, year int, month time.Month) (int, int, bool) {
	lastDay := DaysInMonth(year, month)
	clipped := false

	if day < 1 {
		day = 1
		clipped = true
	} else if day > lastDay {
		day = lastDay
		clipped = true
	}
	if span < 1 {
		span = 1
		clipped = true
	}
	if day+span-1 > lastDay {
		span = lastDay - day + 1
		clipped = true
	}
	return day, span, clipped
}
