package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/worker/domain"
	"github.com/cuongbtq/gigmarket-be/shared/rabbitmq"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutbox follows Storage.PublishPending: oldest first, stop at the first failure
type fakeOutbox struct {
	pending []domain.OutboxEvent
}

func (o *fakeOutbox) PublishPending(ctx context.Context, limit int, publish func(context.Context, domain.OutboxEvent) error) (int, error) {
	n := 0
	for n < limit && len(o.pending) > 0 {
		if err := publish(ctx, o.pending[0]); err != nil {
			return n, err
		}
		o.pending = o.pending[1:]
		n++
	}
	return n, nil
}

type fakePublisher struct {
	sent   []rabbitmq.Message
	failAt int
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, msg rabbitmq.Message) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		p.failAt = 0
		return errors.New("channel closed")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func outboxEvents(n int) []domain.OutboxEvent {
	events := make([]domain.OutboxEvent, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range events {
		events[i] = domain.OutboxEvent{
			ID:        uuid.NewString(),
			Type:      "job.completed",
			JobID:     uuid.NewString(),
			Payload:   []byte(`{"job_id":"x"}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return events
}

func TestRelay_Drain(t *testing.T) {
	events := outboxEvents(5)
	outbox := &fakeOutbox{pending: events}
	publisher := &fakePublisher{}
	relay := NewRelay(&RelayConfig{
		Logger:    testLogger(),
		Outbox:    outbox,
		Publisher: publisher,
		BatchSize: 2,
	})

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, outbox.pending)

	require.Len(t, publisher.sent, 5)
	for i, msg := range publisher.sent {
		assert.Equal(t, events[i].ID, msg.ID)
		assert.Equal(t, "job.completed", msg.Type)
		assert.Equal(t, "job.completed", msg.RoutingKey)

		var env domain.Envelope
		require.NoError(t, json.Unmarshal(msg.Body, &env))
		assert.Equal(t, events[i].ID, env.EventID)
		assert.Equal(t, events[i].JobID, env.JobID)
		assert.True(t, events[i].CreatedAt.Equal(env.OccurredAt))
		assert.JSONEq(t, `{"job_id":"x"}`, string(env.Payload))
	}
}

func TestRelay_DrainStopsOnFailure(t *testing.T) {
	outbox := &fakeOutbox{pending: outboxEvents(4)}
	publisher := &fakePublisher{failAt: 3}
	relay := NewRelay(&RelayConfig{
		Logger:    testLogger(),
		Outbox:    outbox,
		Publisher: publisher,
		BatchSize: 10,
	})

	n, err := relay.Drain(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, outbox.pending, 2)

	// the next run picks up where the failed one stopped
	n, err = relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, publisher.sent, 4)
}
