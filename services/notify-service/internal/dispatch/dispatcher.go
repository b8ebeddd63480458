package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/services/notify-service/internal/alerts"
	"github.com/intonus/salon-backend/services/notify-service/internal/gateway"
	"github.com/intonus/salon-backend/services/notify-service/internal/queue"
	"github.com/intonus/salon-backend/services/notify-service/internal/template"
)

type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	FetchDue(ctx context.Context, tx pgx.Tx, limit int, now time.Time) ([]queue.Item, error)
	MarkSent(ctx context.Context, tx pgx.Tx, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id int64, errMsg string) error
}

type Gateway interface {
	SendMessage(ctx context.Context, phone, text string, priority int, route string) (string, error)
	CheckBalance(ctx context.Context) (float64, error)
}

type Telegram interface {
	SendMessage(ctx context.Context, botToken, chatID, text, parseMode string) error
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	Location  string
	// SiteURL is the public site base; review_link and booking_link
	// placeholders resolve against it.
	SiteURL string
}

// Dispatcher drains due notification_queue items on a fixed interval. A
// cycle runs to completion before the next tick is considered, so cycles
// never overlap; a zero balance skips the whole cycle and leaves every item
// pending for the next one.
type Dispatcher struct {
	store     Store
	gateway   Gateway
	telegram  Telegram
	logger    *slog.Logger
	loc       *time.Location
	interval  time.Duration
	batchSize int
	location  string
	siteURL   string
	now       func() time.Time
}

func New(store Store, gw Gateway, tg Telegram, logger *slog.Logger, loc *time.Location, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Dispatcher{
		store:     store,
		gateway:   gw,
		telegram:  tg,
		logger:    logger,
		loc:       loc,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		location:  cfg.Location,
		siteURL:   strings.TrimRight(cfg.SiteURL, "/"),
		now:       time.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Cycle(ctx); err != nil {
				d.logger.Error("dispatch cycle failed", "err", err)
			}
		}
	}
}

// Cycle processes one batch of due items. Exported for the tests and for a
// manual trigger.
func (d *Dispatcher) Cycle(ctx context.Context) error {
	balance, err := d.gateway.CheckBalance(ctx)
	if err != nil {
		d.logger.Warn("balance check failed; skipping cycle", "err", err)
		return nil
	}
	if balance <= 0 {
		d.logger.Warn("gateway balance exhausted; skipping cycle", "balance", balance)
		return nil
	}

	tx, err := d.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := d.now()
	items, err := d.store.FetchDue(ctx, tx, d.batchSize, now)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return tx.Commit(ctx)
	}

	for _, item := range items {
		// One item's failure never stops the batch.
		if err := d.process(ctx, tx, item); err != nil {
			d.logger.Warn("notification failed", "queue_id", item.ID, "appointment_id", item.AppointmentID, "err", err)
			if markErr := d.store.MarkFailed(ctx, tx, item.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := d.store.MarkSent(ctx, tx, item.ID, d.now()); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (d *Dispatcher) process(ctx context.Context, tx pgx.Tx, item queue.Item) error {
	if item.AppointmentStatus == "cancelled" {
		return fmt.Errorf("appointment cancelled before delivery")
	}
	if item.ClientPhone == "" {
		return fmt.Errorf("client has no phone number")
	}

	text := template.Render(item.MessageTemplate, map[string]string{
		"client_name":      item.ClientName,
		"service_name":     item.ServiceName,
		"staff_name":       item.StaffName,
		"appointment_time": item.AppointmentStart.In(d.loc).Format("02.01.2006 15:04"),
		"location":         d.location,
		"review_link":      d.siteURL + "/reviews",
		"booking_link":     d.siteURL + "/booking",
	})

	// Staff members get a bot copy of created/reminder notices when they
	// have bot credentials. Best effort only.
	if d.telegram != nil && item.StaffBotToken != "" && item.StaffChatID != "" {
		start := item.AppointmentStart.In(d.loc)
		var notice string
		switch item.TemplateType {
		case "appointment_created":
			notice = alerts.BookedMessage(item.ClientName, item.ServiceName, start)
		case "appointment_reminder":
			notice = alerts.ReminderMessage(item.ClientName, item.ServiceName, start)
		}
		if notice != "" {
			if err := d.telegram.SendMessage(ctx, item.StaffBotToken, item.StaffChatID, notice, "HTML"); err != nil {
				d.logger.Warn("staff telegram copy failed", "queue_id", item.ID, "err", err)
			}
		}
	}

	priority := gateway.PriorityDefault
	if item.TemplateType == "appointment_reminder" {
		priority = gateway.PriorityHigh
	}

	if _, err := d.gateway.SendMessage(ctx, item.ClientPhone, text, priority, item.Route); err != nil {
		return err
	}
	return nil
}
