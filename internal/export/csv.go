// Package export flattens schedules into the human-labeled rows of the
// bulk CSV download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pinball19/bus-app/internal/model"
)

// Row is a single line of the schedule export: a flat, denormalized
// view of one booking with every field rendered as display text.
type Row struct {
	Date          string
	DepartureDate string
	ReturnDate    string
	BusName       string
	Span          string
	GroupName     string
	Destination   string
	Price         string
	Passengers    string
	ContactPerson string
	ContactInfo   string
	BusType       string
	Memo          string
	CreatedAt     string
	UpdatedAt     string
}

// Header is the CSV header row, in column order.
var Header = []string{
	"Date", "Departure Date", "Return Date", "Bus", "Days Booked",
	"Group", "Destination", "Price", "Passengers",
	"Contact Person", "Contact Info", "Bus Type", "Memo",
	"Created", "Updated",
}

// FromSchedule renders one schedule as an export row. Unset dates come
// out as empty cells rather than zero-time noise.
func FromSchedule(s model.Schedule) Row {
	return Row{
		Date:          fmt.Sprintf("%d/%d/%d", s.Year, s.Month, s.Day),
		DepartureDate: s.DepartureDate.String(),
		ReturnDate:    s.ReturnDate.String(),
		BusName:       s.BusName,
		Span:          fmt.Sprintf("%d", s.Span),
		GroupName:     s.GroupName,
		Destination:   s.Destination,
		Price:         s.Price,
		Passengers:    s.Passengers,
		ContactPerson: s.ContactPerson,
		ContactInfo:   s.ContactInfo,
		BusType:       s.BusType,
		Memo:          s.Memo,
		CreatedAt:     s.CreatedAt.Format("2006-01-02"),
		UpdatedAt:     s.UpdatedAt.Format("2006-01-02"),
	}
}

func (r Row) fields() []string {
	return []string{
		r.Date, r.DepartureDate, r.ReturnDate, r.BusName, r.Span,
		r.GroupName, r.Destination, r.Price, r.Passengers,
		r.ContactPerson, r.ContactInfo, r.BusType, r.Memo,
		r.CreatedAt, r.UpdatedAt,
	}
}

// WriteCSV streams the header and all rows to w.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.fields()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
