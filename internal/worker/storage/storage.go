package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/gigmarket-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// PublishPending claims up to limit unpublished outbox events and passes each
// to publish, oldest first. Events that publish successfully are marked
// published when the transaction commits. The first publish failure stops the
// batch; the remaining events stay pending for the next run.
// SKIP LOCKED lets several relays run without handing out the same event twice.
func (s *Storage) PublishPending(ctx context.Context, limit int, publish func(context.Context, domain.OutboxEvent) error) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, event_type, job_id, payload, created_at
		FROM job_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	var events []domain.OutboxEvent
	if err := tx.SelectContext(ctx, &events, query, limit); err != nil {
		return 0, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	var publishErr error
	for _, event := range events {
		if publishErr = publish(ctx, event); publishErr != nil {
			s.logger.Warn("Failed to publish outbox event, leaving pending",
				slog.String("event_id", event.ID),
				slog.String("error", publishErr.Error()),
			)
			break
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE job_events SET published_at = NOW() WHERE id = $1`, event.ID,
		); err != nil {
			return 0, fmt.Errorf("failed to mark event published: %w", err)
		}
		published++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	if publishErr != nil {
		return published, fmt.Errorf("failed to publish event: %w", publishErr)
	}
	return published, nil
}

// CreateReviewStubs inserts empty reviews and returns how many were new.
// Existing (reviewer, reviewee, job) rows are left untouched.
func (s *Storage) CreateReviewStubs(ctx context.Context, stubs []domain.ReviewStub) (int, error) {
	query := `
		INSERT INTO reviews (id, job_id, reviewer_id, reviewee_id)
		VALUES (:id, :job_id, :reviewer_id, :reviewee_id)
		ON CONFLICT (reviewer_id, reviewee_id, job_id) DO NOTHING
	`

	return s.insertEach(ctx, query, len(stubs), func(i int) interface{} { return stubs[i] })
}

// CreatePendingPayments inserts pending payouts and returns how many were new.
// A (job, user) pair that already has a payment is skipped.
func (s *Storage) CreatePendingPayments(ctx context.Context, payments []domain.Payment) (int, error) {
	query := `
		INSERT INTO payments (id, job_id, user_id, amount, currency, status, transaction_id)
		VALUES (:id, :job_id, :user_id, :amount, :currency, :status, :transaction_id)
		ON CONFLICT DO NOTHING
	`

	return s.insertEach(ctx, query, len(payments), func(i int) interface{} { return payments[i] })
}

func (s *Storage) insertEach(ctx context.Context, query string, n int, row func(i int) interface{}) (int, error) {
	if n == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for i := 0; i < n; i++ {
		res, err := tx.NamedExecContext(ctx, query, row(i))
		if err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}
