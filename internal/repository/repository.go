// Package repository implements all database queries for the booking
// calendar. It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinball19/bus-app/internal/model"
)

// ErrNotFound is returned when a requested schedule does not exist.
var ErrNotFound = errors.New("not found")

const scheduleColumns = `id, bus_name, year, month, day, span,
	order_date, departure_date, return_date,
	group_name, destination, passengers, price,
	contact_person, contact_info, bus_type, memo,
	created_at, updated_at`

// ScheduleRepository handles persistence for schedules.
type ScheduleRepository struct {
	db *pgxpool.Pool
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns the schedules of the queried month ordered by bus and
// day. A bus name or contact person on the query narrows the result
// server-side; the bus filter takes precedence when both are set.
func (r *ScheduleRepository) List(ctx context.Context, q model.ViewQuery) ([]model.Schedule, error) {
	sql := `SELECT ` + scheduleColumns + ` FROM schedules WHERE year = $1 AND month = $2`
	args := []any{q.Year, int(q.Month)}
	switch {
	case q.BusName != "":
		sql += ` AND bus_name = $3`
		args = append(args, q.BusName)
	case q.ContactPerson != "":
		sql += ` AND contact_person = $3`
		args = append(args, q.ContactPerson)
	}
	sql += ` ORDER BY bus_name, day`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// Create inserts a new schedule and returns it with a generated UUID
// and fresh created/updated timestamps.
func (r *ScheduleRepository) Create(ctx context.Context, s model.Schedule) (*model.Schedule, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt

	_, err := r.db.Exec(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		s.ID, s.BusName, s.Year, s.Month, s.Day, s.Span,
		dateArg(s.OrderDate), dateArg(s.DepartureDate), dateArg(s.ReturnDate),
		s.GroupName, s.Destination, s.Passengers, s.Price,
		s.ContactPerson, s.ContactInfo, s.BusType, s.Memo,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return &s, nil
}

// Update replaces all mutable fields of an existing schedule and
// re-stamps updated_at. created_at is never touched.
func (r *ScheduleRepository) Update(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error) {
	s.ID = id
	s.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx,
		`UPDATE schedules SET
			bus_name = $2, year = $3, month = $4, day = $5, span = $6,
			order_date = $7, departure_date = $8, return_date = $9,
			group_name = $10, destination = $11, passengers = $12, price = $13,
			contact_person = $14, contact_info = $15, bus_type = $16, memo = $17,
			updated_at = $18
		 WHERE id = $1`,
		s.ID, s.BusName, s.Year, s.Month, s.Day, s.Span,
		dateArg(s.OrderDate), dateArg(s.DepartureDate), dateArg(s.ReturnDate),
		s.GroupName, s.Destination, s.Passengers, s.Price,
		s.ContactPerson, s.ContactInfo, s.BusType, s.Memo,
		s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	var created time.Time
	err = r.db.QueryRow(ctx, `SELECT created_at FROM schedules WHERE id = $1`, id).Scan(&created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reload schedule: %w", err)
	}
	s.CreatedAt = created
	return &s, nil
}

// Delete removes a schedule outright or returns ErrNotFound.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// dateArg maps a zero Date to SQL NULL.
func dateArg(d model.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func scanSchedule(rows pgx.Rows) (model.Schedule, error) {
	var (
		s                  model.Schedule
		order, depart, ret *time.Time
	)
	err := rows.Scan(
		&s.ID, &s.BusName, &s.Year, &s.Month, &s.Day, &s.Span,
		&order, &depart, &ret,
		&s.GroupName, &s.Destination, &s.Passengers, &s.Price,
		&s.ContactPerson, &s.ContactInfo, &s.BusType, &s.Memo,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.Schedule{}, err
	}
	s.OrderDate = datePtr(order)
	s.DepartureDate = datePtr(depart)
	s.ReturnDate = datePtr(ret)
	return s, nil
}

func datePtr(t *time.Time) model.Date {
	if t == nil {
		return model.Date{}
	}
	return model.DateOf(*t)
}
