package alerts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
)

// Repository reads staff Telegram credentials for alert delivery.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) StaffCredentials(ctx context.Context, staffID string) (Credentials, error) {
	var creds Credentials
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(telegram_bot_token, ''), COALESCE(telegram_chat_id, '')
		FROM staff
		WHERE id = $1
	`, staffID).Scan(&creds.BotToken, &creds.ChatID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Staff already deleted; nothing to alert.
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
