package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/libs/kafkax"
	otelx "github.com/intonus/salon-backend/libs/otel"
)

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

// Publisher moves committed outbox rows into Kafka. Each poll locks a batch
// of unpublished rows, writes them topic-per-event-type keyed by aggregate
// id, and marks them published in the same transaction, so a crashed poll
// re-delivers rather than loses (consumers dedup through their inbox).
type Publisher struct {
	pool    *db.Pool
	repo    *Repository
	logger  *slog.Logger
	brokers []string
	every   time.Duration
	batch   int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	p := &Publisher{
		pool:    pool,
		repo:    repo,
		logger:  logger,
		brokers: kafkax.SplitBrokers(cfg.Brokers),
		every:   cfg.PollEvery,
		batch:   cfg.BatchSize,
	}
	if p.every <= 0 {
		p.every = 2 * time.Second
	}
	if p.batch <= 0 {
		p.batch = 50
	}
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled: no kafka brokers configured")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  p.brokers,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx, writer); err != nil {
				p.logger.Error("outbox drain failed", "err", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context, writer *kafka.Writer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if err := writer.WriteMessages(ctx, p.message(ctx, rec)); err != nil {
			return err
		}
		ids = append(ids, rec.ID)
	}

	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// message builds the Kafka message for one outbox record, restoring the
// producer's trace context so the consumer span links to the originating
// request.
func (p *Publisher) message(ctx context.Context, rec Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
	msg := kafka.Message{
		Topic: rec.EventType,
		Key:   []byte(rec.AggregateID),
		Value: rec.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(rec.EventID)},
			{Key: "event_type", Value: []byte(rec.EventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
