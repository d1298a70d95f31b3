// Package model defines the core domain types for the fleet booking calendar.
package model

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a day-granular calendar date. It marshals to and from the
// "yyyy-mm-dd" strings used by HTML date inputs; the zero value marshals
// to an empty string and means "not set".
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected yyyy-mm-dd", s)
	}
	*d = Date{t}
	return nil
}

// Schedule represents one booked use of one bus: a block of consecutive
// days on the month grid plus the descriptive booking details. Day and
// Span position the block on the grid; the date fields and everything
// below them are carried opaquely for the forms and the CSV export.
type Schedule struct {
	ID      string `json:"id"`
	BusName string `json:"busName"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	Span    int    `json:"span"`

	OrderDate     Date `json:"orderDate"`
	DepartureDate Date `json:"departureDate"`
	ReturnDate    Date `json:"returnDate"`

	GroupName     string `json:"groupName"`
	Destination   string `json:"destination"`
	Passengers    string `json:"passengers"`
	Price         string `json:"price"`
	ContactPerson string `json:"contactPerson"`
	ContactInfo   string `json:"contactInfo"`
	BusType       string `json:"busType"`
	Memo          string `json:"memo"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ScheduleInput is the payload for creating or updating a schedule.
// The server assigns the ID and the created/updated timestamps.
type ScheduleInput struct {
	BusName string `json:"busName"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	Span    int    `json:"span"`

	OrderDate     Date `json:"orderDate"`
	DepartureDate Date `json:"departureDate"`
	ReturnDate    Date `json:"returnDate"`

	GroupName     string `json:"groupName"`
	Destination   string `json:"destination"`
	Passengers    string `json:"passengers"`
	Price         string `json:"price"`
	ContactPerson string `json:"contactPerson"`
	ContactInfo   string `json:"contactInfo"`
	BusType       string `json:"busType"`
	Memo          string `json:"memo"`
}

// ViewQuery selects the slice of schedules a view is looking at: one
// month, optionally narrowed to one bus or one contact person. It is
// passed explicitly into the list operation and into the grid
// projection so no component depends on ambient view state.
type ViewQuery struct {
	Year          int
	Month         time.Month
	BusName       string
	ContactPerson string
}

// ReconcileRequest carries the booking form's date/span state plus
// which field the user just edited. All fields other than Edited hold
// the state after the edit.
type ReconcileRequest struct {
	DepartureDate Date   `json:"departureDate"`
	ReturnDate    Date   `json:"returnDate"`
	Span          int    `json:"span"`
	Edited        string `json:"edited"` // "departureDate", "returnDate" or "span"
}

// ReconcileResponse is the mutually consistent date/span triple the
// form should display after an edit.
type ReconcileResponse struct {
	DepartureDate Date `json:"departureDate"`
	ReturnDate    Date `json:"returnDate"`
	Span          int  `json:"span"`
}

// ValidationError is a user-facing input error. It blocks the attempted
// operation before any persistence call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
