package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types written to the outbox
const (
	EventTypeJobCompleted = "job.completed"
)

// Event is an outbox record. Payload holds the JSON encoded event body.
type Event struct {
	ID          string     `db:"id"`
	Type        string     `db:"event_type"`
	JobID       string     `db:"job_id"`
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
}

// JobCompletedEvent is emitted when a job transitions to completed.
// Consumers must treat redelivery of the same EventID as a no-op.
type JobCompletedEvent struct {
	EventID        string              `json:"event_id"`
	JobID          string              `json:"job_id"`
	ClientID       string              `json:"client_id"`
	HiredWorkerIDs []string            `json:"hired_worker_ids"`
	Budget         decimal.NullDecimal `json:"budget"`
	CompletedAt    time.Time           `json:"completed_at"`
}
