package worker

import (
	"context"
	"fmt"
	"log/slog"

	jobdomain "github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/worker/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listener reacts to a completed job. Handling the same event twice must
// leave the same state as handling it once.
type Listener interface {
	Name() string
	HandleJobCompleted(ctx context.Context, event *jobdomain.JobCompletedEvent) error
}

// ReviewStore persists review stubs
type ReviewStore interface {
	CreateReviewStubs(ctx context.Context, stubs []domain.ReviewStub) (int, error)
}

// PaymentStore persists pending payments
type PaymentStore interface {
	CreatePendingPayments(ctx context.Context, payments []domain.Payment) (int, error)
}

// ReviewStubListener opens a review in both directions between the client and
// every hired worker
type ReviewStubListener struct {
	store  ReviewStore
	logger *slog.Logger
}

func NewReviewStubListener(store ReviewStore, logger *slog.Logger) *ReviewStubListener {
	return &ReviewStubListener{store: store, logger: logger}
}

func (l *ReviewStubListener) Name() string { return "review_stubs" }

func (l *ReviewStubListener) HandleJobCompleted(ctx context.Context, event *jobdomain.JobCompletedEvent) error {
	stubs := ReviewStubsFor(event)
	if len(stubs) == 0 {
		return nil
	}

	created, err := l.store.CreateReviewStubs(ctx, stubs)
	if err != nil {
		return fmt.Errorf("failed to create review stubs: %w", err)
	}

	l.logger.Info("Review stubs created",
		slog.String("job_id", event.JobID),
		slog.Int("created", created),
		slog.Int("skipped", len(stubs)-created),
	)
	return nil
}

// ReviewStubsFor builds the client->worker and worker->client stubs for an event
func ReviewStubsFor(event *jobdomain.JobCompletedEvent) []domain.ReviewStub {
	stubs := make([]domain.ReviewStub, 0, 2*len(event.HiredWorkerIDs))
	for _, workerID := range event.HiredWorkerIDs {
		stubs = append(stubs,
			domain.ReviewStub{
				ID:         uuid.NewString(),
				JobID:      event.JobID,
				ReviewerID: event.ClientID,
				RevieweeID: workerID,
			},
			domain.ReviewStub{
				ID:         uuid.NewString(),
				JobID:      event.JobID,
				ReviewerID: workerID,
				RevieweeID: event.ClientID,
			},
		)
	}
	return stubs
}

// PaymentListener records a pending payout for every hired worker, splitting
// the job budget evenly
type PaymentListener struct {
	store    PaymentStore
	currency string
	logger   *slog.Logger
}

func NewPaymentListener(store PaymentStore, currency string, logger *slog.Logger) *PaymentListener {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &PaymentListener{store: store, currency: currency, logger: logger}
}

func (l *PaymentListener) Name() string { return "payments" }

func (l *PaymentListener) HandleJobCompleted(ctx context.Context, event *jobdomain.JobCompletedEvent) error {
	payments := PaymentsFor(event, l.currency)
	if len(payments) == 0 {
		l.logger.Debug("No payments to create",
			slog.String("job_id", event.JobID),
			slog.Bool("has_budget", event.Budget.Valid),
			slog.Int("hired", len(event.HiredWorkerIDs)),
		)
		return nil
	}

	created, err := l.store.CreatePendingPayments(ctx, payments)
	if err != nil {
		return fmt.Errorf("failed to create payments: %w", err)
	}

	l.logger.Info("Pending payments created",
		slog.String("job_id", event.JobID),
		slog.Int("created", created),
		slog.String("total", event.Budget.Decimal.StringFixed(2)),
		slog.String("currency", l.currency),
	)
	return nil
}

// PaymentsFor splits the budget across the hired workers, rounded to cents.
// The first hired worker takes the rounding remainder so the payouts add up to
// the budget. Transaction ids derive from (job, worker) so a redelivered event
// maps onto the same rows. Jobs without a budget or without hires produce nothing.
func PaymentsFor(event *jobdomain.JobCompletedEvent, currency string) []domain.Payment {
	n := len(event.HiredWorkerIDs)
	if !event.Budget.Valid || n == 0 {
		return nil
	}

	total := event.Budget.Decimal.Round(2)
	share := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	first := total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))

	payments := make([]domain.Payment, 0, n)
	for i, workerID := range event.HiredWorkerIDs {
		amount := share
		if i == 0 {
			amount = first
		}
		payments = append(payments, domain.Payment{
			ID:            uuid.NewString(),
			JobID:         event.JobID,
			UserID:        workerID,
			Amount:        amount,
			Currency:      currency,
			Status:        domain.PaymentStatusPending,
			TransactionID: TransactionID(event.JobID, workerID),
		})
	}
	return payments
}

// TransactionID is the deterministic payment reference for a worker on a job
func TransactionID(jobID, workerID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(jobID+":"+workerID)).String()
}
