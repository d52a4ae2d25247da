package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/worker/domain"
	"github.com/cuongbtq/gigmarket-be/shared/rabbitmq"
)

// Outbox hands out unpublished events
type Outbox interface {
	PublishPending(ctx context.Context, limit int, publish func(context.Context, domain.OutboxEvent) error) (int, error)
}

// Publisher sends a message to the broker
type Publisher interface {
	PublishWithRetry(ctx context.Context, msg rabbitmq.Message) error
}

// RelayConfig holds outbox relay configuration
type RelayConfig struct {
	Logger    *slog.Logger
	Outbox    Outbox
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
}

// Relay moves committed outbox events to RabbitMQ. An event can be published
// more than once if marking it fails after the broker accepted it.
type Relay struct {
	logger    *slog.Logger
	outbox    Outbox
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewRelay(cfg *RelayConfig) *Relay {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Relay{
		logger:    cfg.Logger,
		outbox:    cfg.Outbox,
		publisher: cfg.Publisher,
		interval:  interval,
		batchSize: batch,
	}
}

// Run polls the outbox until ctx is canceled
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Outbox relay started",
		slog.Duration("interval", r.interval),
		slog.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Outbox relay failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Drain publishes batches until the outbox is empty or a batch fails
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.outbox.PublishPending(ctx, r.batchSize, r.publish)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batchSize {
			if total > 0 {
				r.logger.Info("Outbox events published",
					slog.Int("count", total),
				)
			}
			return total, nil
		}
	}
}

func (r *Relay) publish(ctx context.Context, event domain.OutboxEvent) error {
	body, err := EncodeEnvelope(event)
	if err != nil {
		return err
	}
	return r.publisher.PublishWithRetry(ctx, rabbitmq.Message{
		ID:         event.ID,
		Type:       event.Type,
		Body:       body,
		RoutingKey: event.Type,
	})
}

// EncodeEnvelope wraps an outbox row in the message body consumers decode
func EncodeEnvelope(event domain.OutboxEvent) ([]byte, error) {
	env := domain.Envelope{
		EventID:    event.ID,
		EventType:  event.Type,
		JobID:      event.JobID,
		OccurredAt: event.CreatedAt.UTC(),
		Payload:    json.RawMessage(event.Payload),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	return body, nil
}
