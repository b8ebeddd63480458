package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockStaff serializes booking writes for one staff member for the duration
// of the transaction. Different staff members never contend.
func (r *BookingRepository) LockStaff(ctx context.Context, tx pgx.Tx, staffID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, staffID)
	return err
}

// Conflicts reports whether any non-cancelled appointment for the staff
// member overlaps [start, end). excludeID skips one row, for reschedules.
func (r *BookingRepository) Conflicts(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE staff_id = $1
				AND status <> 'cancelled'
				AND start_time < $3
				AND end_time > $2
				AND ($4 = '' OR id::text <> $4)
		)
	`, staffID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(client_id, service_id, staff_id, staff_name, service_name, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, appt.ClientID, appt.ServiceID, appt.StaffID, appt.StaffName, appt.ServiceName,
		appt.StartTime, appt.EndTime, appt.Status, appt.Notes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return r.get(ctx, r.pool, id, false)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	return r.get(ctx, tx, id, true)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *BookingRepository) get(ctx context.Context, q querier, id string, forUpdate bool) (model.Appointment, error) {
	query := `
		SELECT id, COALESCE(client_id::text, ''), COALESCE(service_id::text, ''), COALESCE(staff_id::text, ''),
			staff_name, service_name, start_time, end_time, status, COALESCE(notes, ''), created_at, updated_at
		FROM appointments
		WHERE id = $1`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	var appt model.Appointment
	err := q.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.ServiceID,
		&appt.StaffID,
		&appt.StaffName,
		&appt.ServiceName,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Update patches status, notes and times. Time changes must be re-checked
// for conflicts by the caller before commit.
func (r *BookingRepository) Update(ctx context.Context, tx pgx.Tx, appt model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			notes = $3,
			start_time = $4,
			end_time = $5,
			updated_at = now()
		WHERE id = $1
	`, appt.ID, appt.Status, appt.Notes, appt.StartTime, appt.EndTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) ListByStaffDay(ctx context.Context, staffID string, dayStart, dayEnd time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(client_id::text, ''), COALESCE(service_id::text, ''), COALESCE(staff_id::text, ''),
			staff_name, service_name, start_time, end_time, status, COALESCE(notes, ''), created_at, updated_at
		FROM appointments
		WHERE staff_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.ClientID,
			&appt.ServiceID,
			&appt.StaffID,
			&appt.StaffName,
			&appt.ServiceName,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.Notes,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// ListBookedIntervals returns the non-cancelled intervals overlapping
// [start, end) for the staff member, ordered by start.
func (r *BookingRepository) ListBookedIntervals(ctx context.Context, staffID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, status
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, staffID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(&appt.ID, &appt.StartTime, &appt.EndTime, &appt.Status); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
