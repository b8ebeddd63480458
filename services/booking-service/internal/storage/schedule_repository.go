package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
	"github.com/intonus/salon-backend/services/booking-service/internal/schedule"
)

// ScheduleRepository reads the admin-maintained schedule data: working-hours
// rules with their breaks, time off, and the staff/service catalogs.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) RulesForStaff(ctx context.Context, staffID string) ([]schedule.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, pattern,
			COALESCE(day_of_week, 0),
			COALESCE(start_date, '0001-01-01'::date),
			COALESCE(end_date, '0001-01-01'::date),
			COALESCE(week_of_month, 0),
			to_char(start_time, 'HH24:MI'),
			to_char(end_time, 'HH24:MI'),
			is_active
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY id
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []schedule.Rule
	index := map[string]int{}
	for rows.Next() {
		var rule schedule.Rule
		if err := rows.Scan(
			&rule.ID,
			&rule.StaffID,
			&rule.Pattern,
			&rule.DayOfWeek,
			&rule.StartDate,
			&rule.EndDate,
			&rule.WeekOfMonth,
			&rule.StartTime,
			&rule.EndTime,
			&rule.IsActive,
		); err != nil {
			return nil, err
		}
		index[rule.ID] = len(rules)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(rules) == 0 {
		return nil, nil
	}

	breakRows, err := r.pool.Query(ctx, `
		SELECT b.id, b.working_hours_id::text, to_char(b.start_time, 'HH24:MI'), to_char(b.end_time, 'HH24:MI')
		FROM staff_breaks b
		JOIN staff_working_hours wh ON wh.id = b.working_hours_id
		WHERE wh.staff_id = $1
		ORDER BY b.start_time
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer breakRows.Close()

	for breakRows.Next() {
		var brk schedule.Break
		var ruleID string
		if err := breakRows.Scan(&brk.ID, &ruleID, &brk.StartTime, &brk.EndTime); err != nil {
			return nil, err
		}
		if i, ok := index[ruleID]; ok {
			rules[i].Breaks = append(rules[i].Breaks, brk)
		}
	}
	if breakRows.Err() != nil {
		return nil, breakRows.Err()
	}
	return rules, nil
}

func (r *ScheduleRepository) TimeOffForStaff(ctx context.Context, staffID string, around time.Time) ([]schedule.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, start_date, end_date, COALESCE(reason, '')
		FROM staff_time_off
		WHERE staff_id = $1
			AND start_date <= $2::date
			AND end_date >= $2::date
	`, staffID, around)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offs []schedule.TimeOff
	for rows.Next() {
		var off schedule.TimeOff
		if err := rows.Scan(&off.ID, &off.StaffID, &off.StartDate, &off.EndDate, &off.Reason); err != nil {
			return nil, err
		}
		offs = append(offs, off)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return offs, nil
}

func (r *ScheduleRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), price, duration_minutes, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.DurationMinutes, &svc.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func (r *ScheduleRepository) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	var st model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(specialty, ''), is_active
		FROM staff
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Specialty, &st.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, ErrNotFound
	}
	if err != nil {
		return model.Staff{}, err
	}
	return st, nil
}

// StaffPerformsService reports whether the service is in the staff member's
// offered set. An empty set means the staff member performs everything.
func (r *ScheduleRepository) StaffPerformsService(ctx context.Context, staffID, serviceID string) (bool, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM staff_services WHERE staff_id = $1
	`, staffID).Scan(&total); err != nil {
		return false, err
	}
	if total == 0 {
		return true, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff_services WHERE staff_id = $1 AND service_id = $2
		)
	`, staffID, serviceID).Scan(&exists)
	return exists, err
}
