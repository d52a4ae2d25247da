package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	jobdomain "github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/worker/domain"
	"github.com/google/uuid"
)

// processEvent decodes an event and runs every listener for it under the event timeout
func (w *Worker) processEvent(ctx context.Context, msg *domain.EventMessage) error {
	w.logger.Debug("Processing event",
		slog.String("event_id", msg.EventID),
		slog.String("event_type", msg.EventType),
		slog.Bool("redelivered", msg.Redelivered),
	)

	switch msg.EventType {
	case jobdomain.EventTypeJobCompleted:
		event, err := decodeJobCompleted(msg)
		if err != nil {
			return err
		}

		eventCtx, cancel := context.WithTimeout(ctx, w.eventTimeout)
		defer cancel()
		return w.runListeners(eventCtx, event)

	default:
		// other services may share the exchange; nothing to do here
		w.logger.Warn("Ignoring event with unknown type",
			slog.String("event_id", msg.EventID),
			slog.String("event_type", msg.EventType),
		)
		return nil
	}
}

// runListeners calls each listener in order. Listeners are idempotent, so a
// failure requeues the whole event and the listeners that already succeeded
// simply find nothing to do on redelivery.
func (w *Worker) runListeners(ctx context.Context, event *jobdomain.JobCompletedEvent) error {
	for _, l := range w.listeners {
		if err := l.HandleJobCompleted(ctx, event); err != nil {
			return domain.NewRetryableError(fmt.Errorf("listener %s: %w", l.Name(), err))
		}
	}
	return nil
}

func decodeJobCompleted(msg *domain.EventMessage) (*jobdomain.JobCompletedEvent, error) {
	var event jobdomain.JobCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if event.EventID == "" {
		event.EventID = msg.EventID
	}
	if event.JobID == "" {
		event.JobID = msg.JobID
	}
	if _, err := uuid.Parse(event.JobID); err != nil {
		return nil, fmt.Errorf("%w: job_id is not a UUID", domain.ErrInvalidPayload)
	}
	if _, err := uuid.Parse(event.ClientID); err != nil {
		return nil, fmt.Errorf("%w: client_id is not a UUID", domain.ErrInvalidPayload)
	}
	return &event, nil
}
