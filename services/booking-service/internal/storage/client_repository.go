package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
)

type ClientRepository struct {
	pool *db.Pool
}

func NewClientRepository(pool *db.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

// UpsertByPhone finds the client by normalized phone and refreshes the
// mutable fields, or inserts a new row. The phone column carries a unique
// constraint, so concurrent upserts for the same phone resolve to one row.
func (r *ClientRepository) UpsertByPhone(ctx context.Context, tx pgx.Tx, name, phone, email string) (model.Client, error) {
	var c model.Client
	err := tx.QueryRow(ctx, `
		INSERT INTO clients (name, phone, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET name = EXCLUDED.name,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE clients.email END,
			updated_at = now()
		RETURNING id, name, phone, COALESCE(email, '')
	`, name, phone, email).Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, COALESCE(email, '')
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if err == pgx.ErrNoRows {
		return model.Client{}, ErrNotFound
	}
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}
