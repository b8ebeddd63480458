package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/salon-service/internal/model"
)

var ErrNotFound = errors.New("not found")

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *StaffRepository) Create(ctx context.Context, tx pgx.Tx, s *model.Staff) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO staff (name, specialty, bio, image_url, phone, email, telegram_bot_token, telegram_chat_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, s.Name, s.Specialty, s.Bio, s.ImageURL, s.Phone, s.Email, s.TelegramBotToken, s.TelegramChatID, s.IsActive).Scan(&id)
	if err != nil {
		return "", err
	}
	if err := r.replaceServices(ctx, tx, id, s.ServiceIDs); err != nil {
		return "", err
	}
	return id, nil
}

func (r *StaffRepository) Update(ctx context.Context, tx pgx.Tx, s *model.Staff) error {
	tag, err := tx.Exec(ctx, `
		UPDATE staff
		SET name = $2,
			specialty = $3,
			bio = $4,
			image_url = $5,
			phone = $6,
			email = $7,
			telegram_bot_token = $8,
			telegram_chat_id = $9,
			is_active = $10,
			updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.Specialty, s.Bio, s.ImageURL, s.Phone, s.Email, s.TelegramBotToken, s.TelegramChatID, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.replaceServices(ctx, tx, s.ID, s.ServiceIDs)
}

// Delete removes the staff row. Rules, breaks, time off and service links go
// with it via ON DELETE CASCADE; appointments keep their denormalized names.
func (r *StaffRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StaffRepository) Get(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(specialty, ''), COALESCE(bio, ''), COALESCE(image_url, ''),
			COALESCE(phone, ''), COALESCE(email, ''), COALESCE(telegram_bot_token, ''),
			COALESCE(telegram_chat_id, ''), is_active
		FROM staff
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Specialty, &s.Bio, &s.ImageURL, &s.Phone, &s.Email,
		&s.TelegramBotToken, &s.TelegramChatID, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, ErrNotFound
	}
	if err != nil {
		return model.Staff{}, err
	}

	s.ServiceIDs, err = r.serviceIDs(ctx, id)
	if err != nil {
		return model.Staff{}, err
	}
	return s, nil
}

func (r *StaffRepository) List(ctx context.Context, activeOnly bool) ([]model.Staff, error) {
	query := `
		SELECT id, name, COALESCE(specialty, ''), COALESCE(bio, ''), COALESCE(image_url, ''),
			COALESCE(phone, ''), COALESCE(email, ''), COALESCE(telegram_bot_token, ''),
			COALESCE(telegram_chat_id, ''), is_active
		FROM staff`
	if activeOnly {
		query += `
		WHERE is_active`
	}
	query += `
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.Specialty, &s.Bio, &s.ImageURL, &s.Phone, &s.Email,
			&s.TelegramBotToken, &s.TelegramChatID, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range out {
		out[i].ServiceIDs, err = r.serviceIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *StaffRepository) replaceServices(ctx context.Context, tx pgx.Tx, staffID string, serviceIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM staff_services WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_services (staff_id, service_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, staffID, serviceID); err != nil {
			return err
		}
	}
	return nil
}

func (r *StaffRepository) serviceIDs(ctx context.Context, staffID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT service_id::text FROM staff_services WHERE staff_id = $1 ORDER BY service_id
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
