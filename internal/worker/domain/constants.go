package domain

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// DefaultCurrency is used when the worker config does not name one
const DefaultCurrency = "USD"
