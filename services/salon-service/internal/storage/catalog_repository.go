package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/services/salon-service/internal/model"
)

type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *CatalogRepository) CreateService(ctx context.Context, tx pgx.Tx, s *model.Service) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO services (name, description, price, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.Name, s.Description, s.Price, s.DurationMinutes, s.IsActive).Scan(&id)
	return id, err
}

func (r *CatalogRepository) UpdateService(ctx context.Context, tx pgx.Tx, s *model.Service) error {
	tag, err := tx.Exec(ctx, `
		UPDATE services
		SET name = $2,
			description = $3,
			price = $4,
			duration_minutes = $5,
			is_active = $6,
			updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.Description, s.Price, s.DurationMinutes, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteService deactivates rather than removes: appointments and staff links
// reference the row, and history pages still need the name and price.
func (r *CatalogRepository) DeleteService(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE services SET is_active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), price, duration_minutes, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	return s, err
}

func (r *CatalogRepository) ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), price, duration_minutes, is_active
		FROM services`
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

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, message_template, COALESCE(route, ''), delay_hours, is_active
		FROM notification_templates
		ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Type, &t.MessageTemplate, &t.Route, &t.DelayHours, &t.IsActive); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) UpdateTemplate(ctx context.Context, tx pgx.Tx, t *model.Template) error {
	tag, err := tx.Exec(ctx, `
		UPDATE notification_templates
		SET message_template = $2,
			route = NULLIF($3, ''),
			delay_hours = $4,
			is_active = $5,
			updated_at = now()
		WHERE id = $1
	`, t.ID, t.MessageTemplate, t.Route, t.DelayHours, t.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) GatewaySettings(ctx context.Context) (model.GatewaySettings, error) {
	var s model.GatewaySettings
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(api_key, ''), COALESCE(sender_name, ''), default_route, default_priority,
			test_mode, COALESCE(location, ''), COALESCE(base_url, ''), COALESCE(site_url, ''),
			queue_check_interval_s, batch_size
		FROM gateway_settings
		WHERE id = 1
	`).Scan(&s.APIKey, &s.SenderName, &s.DefaultRoute, &s.DefaultPriority,
		&s.TestMode, &s.Location, &s.BaseURL, &s.SiteURL, &s.QueueCheckInterval, &s.BatchSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GatewaySettings{
			DefaultRoute:       "wp-sms",
			DefaultPriority:    2,
			QueueCheckInterval: 60,
			BatchSize:          50,
		}, nil
	}
	return s, err
}

// SaveGatewaySettings upserts the single settings row. The dispatcher reads
// it at startup, so changes take effect on the next notify-service restart.
func (r *CatalogRepository) SaveGatewaySettings(ctx context.Context, s *model.GatewaySettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gateway_settings
			(id, api_key, sender_name, default_route, default_priority, test_mode,
			 location, base_url, site_url, queue_check_interval_s, batch_size, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			sender_name = EXCLUDED.sender_name,
			default_route = EXCLUDED.default_route,
			default_priority = EXCLUDED.default_priority,
			test_mode = EXCLUDED.test_mode,
			location = EXCLUDED.location,
			base_url = EXCLUDED.base_url,
			site_url = EXCLUDED.site_url,
			queue_check_interval_s = EXCLUDED.queue_check_interval_s,
			batch_size = EXCLUDED.batch_size,
			updated_at = now()
	`, s.APIKey, s.SenderName, s.DefaultRoute, s.DefaultPriority, s.TestMode,
		s.Location, s.BaseURL, s.SiteURL, s.QueueCheckInterval, s.BatchSize)
	return err
}
