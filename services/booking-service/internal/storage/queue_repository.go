package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
)

type Template struct {
	ID              string
	Type            string
	MessageTemplate string
	Route           string
	DelayHours      int
	IsActive        bool
}

// QueueRepository writes notification_queue rows from the booking flow.
// Reading and completing queue items is the dispatcher's job.
type QueueRepository struct {
	pool *db.Pool
}

func NewQueueRepository(pool *db.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

func (r *QueueRepository) ActiveTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, message_template, COALESCE(route, ''), COALESCE(delay_hours, 0), is_active
		FROM notification_templates
		WHERE is_active
		ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var tpl Template
		if err := rows.Scan(&tpl.ID, &tpl.Type, &tpl.MessageTemplate, &tpl.Route, &tpl.DelayHours, &tpl.IsActive); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return templates, nil
}

func (r *QueueRepository) Enqueue(ctx context.Context, tx pgx.Tx, appointmentID, templateID string, scheduledTime time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notification_queue (appointment_id, template_id, scheduled_time, status)
		VALUES ($1, $2, $3, 'pending')
	`, appointmentID, templateID, scheduledTime)
	return err
}
