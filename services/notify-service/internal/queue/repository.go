package queue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/db"
)

var ErrNotFound = errors.New("queue item not found")

// Item is one due notification joined with everything the dispatcher needs
// to render and deliver it. Staff and service names come from the
// appointment's denormalized columns, so items survive staff deletion.
type Item struct {
	ID                int64
	AppointmentID     string
	TemplateID        string
	ScheduledTime     time.Time
	TemplateType      string
	MessageTemplate   string
	Route             string
	ClientName        string
	ClientPhone       string
	ServiceName       string
	StaffName         string
	StaffBotToken     string
	StaffChatID       string
	AppointmentStart  time.Time
	AppointmentStatus string
}

type FailedItem struct {
	ID            int64
	AppointmentID string
	TemplateType  string
	ScheduledTime time.Time
	ErrorMessage  string
	UpdatedAt     time.Time
}

type Settings struct {
	APIKey             string
	SenderName         string
	DefaultRoute       string
	DefaultPriority    int
	TestMode           bool
	Location           string
	BaseURL            string
	SiteURL            string
	QueueCheckInterval time.Duration
	BatchSize          int
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// FetchDue locks up to limit pending items whose scheduled time has passed.
// SKIP LOCKED keeps a second dispatcher instance from double-sending.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int, now time.Time) ([]Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT q.id, q.appointment_id::text, q.template_id::text, q.scheduled_time,
			t.type, t.message_template, COALESCE(t.route, ''),
			COALESCE(c.name, ''), COALESCE(c.phone, ''),
			a.service_name, a.staff_name,
			COALESCE(st.telegram_bot_token, ''), COALESCE(st.telegram_chat_id, ''),
			a.start_time, a.status
		FROM notification_queue q
		JOIN appointments a ON a.id = q.appointment_id
		JOIN notification_templates t ON t.id = q.template_id
		LEFT JOIN clients c ON c.id = a.client_id
		LEFT JOIN staff st ON st.id = a.staff_id
		WHERE q.status = 'pending'
			AND q.scheduled_time <= $2
		ORDER BY q.scheduled_time ASC
		LIMIT $1
		FOR UPDATE OF q SKIP LOCKED
	`, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID,
			&it.AppointmentID,
			&it.TemplateID,
			&it.ScheduledTime,
			&it.TemplateType,
			&it.MessageTemplate,
			&it.Route,
			&it.ClientName,
			&it.ClientPhone,
			&it.ServiceName,
			&it.StaffName,
			&it.StaffBotToken,
			&it.StaffChatID,
			&it.AppointmentStart,
			&it.AppointmentStatus,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) MarkSent(ctx context.Context, tx pgx.Tx, id int64, sentAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sent',
			sent_at = $2,
			error_message = NULL,
			updated_at = now()
		WHERE id = $1
	`, id, sentAt)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, errMsg string) error {
	_, err := tx.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed',
			error_message = $2,
			updated_at = now()
		WHERE id = $1
	`, id, errMsg)
	return err
}

func (r *Repository) ListFailed(ctx context.Context, limit int) ([]FailedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.appointment_id::text, t.type, q.scheduled_time, COALESCE(q.error_message, ''), q.updated_at
		FROM notification_queue q
		JOIN notification_templates t ON t.id = q.template_id
		WHERE q.status = 'failed'
		ORDER BY q.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FailedItem
	for rows.Next() {
		var it FailedItem
		if err := rows.Scan(&it.ID, &it.AppointmentID, &it.TemplateType, &it.ScheduledTime, &it.ErrorMessage, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// Requeue re-arms a failed item: back to pending, due immediately. The
// operator's escape hatch since failed is otherwise terminal.
func (r *Repository) Requeue(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending',
			scheduled_time = now(),
			error_message = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'failed'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	var intervalSeconds int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(api_key, ''), COALESCE(sender_name, ''), COALESCE(default_route, 'wp-sms'),
			COALESCE(default_priority, 2), COALESCE(test_mode, false), COALESCE(location, ''),
			COALESCE(base_url, ''), COALESCE(site_url, ''), COALESCE(queue_check_interval_s, 60),
			COALESCE(batch_size, 50)
		FROM gateway_settings
		WHERE id = 1
	`).Scan(
		&s.APIKey,
		&s.SenderName,
		&s.DefaultRoute,
		&s.DefaultPriority,
		&s.TestMode,
		&s.Location,
		&s.BaseURL,
		&s.SiteURL,
		&intervalSeconds,
		&s.BatchSize,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{DefaultRoute: "wp-sms", DefaultPriority: 2, QueueCheckInterval: 60 * time.Second, BatchSize: 50}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	s.QueueCheckInterval = time.Duration(intervalSeconds) * time.Second
	return s, nil
}
