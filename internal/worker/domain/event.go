package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Envelope is the message body published for every outbox event
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	JobID      string          `json:"job_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// EventMessage is an envelope received from RabbitMQ
type EventMessage struct {
	Envelope
	DeliveryTag uint64 `json:"-"`
	Redelivered bool   `json:"-"`
}

// OutboxEvent is an unpublished row claimed by the relay
type OutboxEvent struct {
	ID        string    `db:"id"`
	Type      string    `db:"event_type"`
	JobID     string    `db:"job_id"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// ReviewStub is an empty review awaiting a rating
type ReviewStub struct {
	ID         string `db:"id"`
	JobID      string `db:"job_id"`
	ReviewerID string `db:"reviewer_id"`
	RevieweeID string `db:"reviewee_id"`
}

// Payment is a pending payout to a hired worker
type Payment struct {
	ID            string          `db:"id"`
	JobID         string          `db:"job_id"`
	UserID        string          `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Currency      string          `db:"currency"`
	Status        string          `db:"status"`
	TransactionID string          `db:"transaction_id"`
}
