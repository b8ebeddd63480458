package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/salon-service/internal/model"
)

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ScheduleRepository) CreateWorkingHours(ctx context.Context, tx pgx.Tx, wh *model.WorkingHours) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO staff_working_hours
			(staff_id, pattern, day_of_week, start_date, end_date, week_of_month, start_time, end_time, is_active)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, NULLIF($5, '')::date, $6, $7::time, $8::time, $9)
		RETURNING id
	`, wh.StaffID, wh.Pattern, wh.DayOfWeek, wh.StartDate, wh.EndDate, wh.WeekOfMonth,
		wh.StartTime, wh.EndTime, wh.IsActive).Scan(&id)
	if err != nil {
		return "", err
	}
	if err := r.replaceBreaks(ctx, tx, id, wh.Breaks); err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) UpdateWorkingHours(ctx context.Context, tx pgx.Tx, wh *model.WorkingHours) error {
	tag, err := tx.Exec(ctx, `
		UPDATE staff_working_hours
		SET pattern = $2,
			day_of_week = $3,
			start_date = NULLIF($4, '')::date,
			end_date = NULLIF($5, '')::date,
			week_of_month = $6,
			start_time = $7::time,
			end_time = $8::time,
			is_active = $9
		WHERE id = $1
	`, wh.ID, wh.Pattern, wh.DayOfWeek, wh.StartDate, wh.EndDate, wh.WeekOfMonth,
		wh.StartTime, wh.EndTime, wh.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.replaceBreaks(ctx, tx, wh.ID, wh.Breaks)
}

func (r *ScheduleRepository) DeleteWorkingHours(ctx context.Context, tx pgx.Tx, id string) (string, error) {
	var staffID string
	err := tx.QueryRow(ctx, `
		DELETE FROM staff_working_hours WHERE id = $1 RETURNING staff_id::text
	`, id).Scan(&staffID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return staffID, err
}

func (r *ScheduleRepository) ListWorkingHours(ctx context.Context, staffID string) ([]model.WorkingHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id::text, pattern, day_of_week,
			COALESCE(start_date::text, ''), COALESCE(end_date::text, ''), week_of_month,
			to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_active
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY id
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHours
	for rows.Next() {
		var wh model.WorkingHours
		if err := rows.Scan(&wh.ID, &wh.StaffID, &wh.Pattern, &wh.DayOfWeek,
			&wh.StartDate, &wh.EndDate, &wh.WeekOfMonth,
			&wh.StartTime, &wh.EndTime, &wh.IsActive); err != nil {
			return nil, err
		}
		wh.Breaks = []model.Break{}
		out = append(out, wh)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range out {
		breaks, err := r.listBreaks(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Breaks = breaks
	}
	return out, nil
}

func (r *ScheduleRepository) CreateTimeOff(ctx context.Context, tx pgx.Tx, off *model.TimeOff) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO staff_time_off (staff_id, start_date, end_date, reason)
		VALUES ($1, $2::date, $3::date, $4)
		RETURNING id
	`, off.StaffID, off.StartDate, off.EndDate, off.Reason).Scan(&id)
	return id, err
}

func (r *ScheduleRepository) DeleteTimeOff(ctx context.Context, tx pgx.Tx, id string) (string, error) {
	var staffID string
	err := tx.QueryRow(ctx, `
		DELETE FROM staff_time_off WHERE id = $1 RETURNING staff_id::text
	`, id).Scan(&staffID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return staffID, err
}

func (r *ScheduleRepository) ListTimeOff(ctx context.Context, staffID string) ([]model.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id::text, start_date::text, end_date::text, COALESCE(reason, '')
		FROM staff_time_off
		WHERE staff_id = $1
		ORDER BY start_date
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var off model.TimeOff
		if err := rows.Scan(&off.ID, &off.StaffID, &off.StartDate, &off.EndDate, &off.Reason); err != nil {
			return nil, err
		}
		out = append(out, off)
	}
	return out, rows.Err()
}

func (r *ScheduleRepository) replaceBreaks(ctx context.Context, tx pgx.Tx, workingHoursID string, breaks []model.Break) error {
	if _, err := tx.Exec(ctx, `DELETE FROM staff_breaks WHERE working_hours_id = $1`, workingHoursID); err != nil {
		return err
	}
	for _, b := range breaks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_breaks (working_hours_id, start_time, end_time)
			VALUES ($1, $2::time, $3::time)
		`, workingHoursID, b.StartTime, b.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScheduleRepository) listBreaks(ctx context.Context, workingHoursID string) ([]model.Break, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
		FROM staff_breaks
		WHERE working_hours_id = $1
		ORDER BY start_time
	`, workingHoursID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breaks := []model.Break{}
	for rows.Next() {
		var b model.Break
		if err := rows.Scan(&b.ID, &b.StartTime, &b.EndTime); err != nil {
			return nil, err
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}
