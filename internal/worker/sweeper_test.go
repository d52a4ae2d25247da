package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	mu    sync.Mutex
	calls []time.Time
	n     int
	err   error
}

func (e *fakeExpirer) ExpireJobs(_ context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, now)
	return e.n, e.err
}

func (e *fakeExpirer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func TestNewSweeper_Schedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "hourly", schedule: "0 * * * *"},
		{name: "descriptor", schedule: "@every 5m"},
		{name: "garbage", schedule: "every hour", wantErr: true},
		{name: "empty", schedule: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSweeper(&SweeperConfig{
				Logger:   testLogger(),
				Expirer:  &fakeExpirer{},
				Schedule: tt.schedule,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	expirer := &fakeExpirer{n: 3}
	s, err := NewSweeper(&SweeperConfig{
		Logger:   testLogger(),
		Expirer:  expirer,
		Schedule: "0 * * * *",
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Sweep(context.Background()))
	require.Len(t, expirer.calls, 1)
	assert.True(t, now.Equal(expirer.calls[0]))
	assert.Equal(t, time.UTC, expirer.calls[0].Location())

	expirer.err = errors.New("db down")
	expirer.n = 1
	assert.Equal(t, 1, s.Sweep(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.Sweep(ctx))
	assert.Len(t, expirer.calls, 2)
}

func TestSweeper_RunOnStart(t *testing.T) {
	expirer := &fakeExpirer{}
	s, err := NewSweeper(&SweeperConfig{
		Logger:     testLogger(),
		Expirer:    expirer,
		Schedule:   "0 0 1 1 *",
		RunOnStart: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return expirer.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type fakeRecommender struct {
	calls []time.Time
	n     int
	err   error
}

func (r *fakeRecommender) RecommendJobs(_ context.Context, now time.Time) (int, error) {
	r.calls = append(r.calls, now)
	return r.n, r.err
}

func TestSweeper_Recommend(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("invalid schedule", func(t *testing.T) {
		s, err := NewSweeper(&SweeperConfig{
			Logger:            testLogger(),
			Expirer:           &fakeExpirer{},
			Schedule:          "0 * * * *",
			Recommender:       &fakeRecommender{},
			RecommendSchedule: "whenever",
		})
		require.Error(t, err)
		assert.Nil(t, s)
	})

	t.Run("runs the rebuild", func(t *testing.T) {
		recommender := &fakeRecommender{n: 7}
		s, err := NewSweeper(&SweeperConfig{
			Logger:            testLogger(),
			Expirer:           &fakeExpirer{},
			Schedule:          "0 * * * *",
			Now:               func() time.Time { return now },
			Recommender:       recommender,
			RecommendSchedule: "30 * * * *",
		})
		require.NoError(t, err)

		assert.Equal(t, 7, s.Recommend(context.Background()))
		require.Len(t, recommender.calls, 1)
		assert.True(t, now.Equal(recommender.calls[0]))

		recommender.err = errors.New("db down")
		recommender.n = 2
		assert.Equal(t, 2, s.Recommend(context.Background()))
	})

	t.Run("disabled without recommender", func(t *testing.T) {
		s, err := NewSweeper(&SweeperConfig{
			Logger:   testLogger(),
			Expirer:  &fakeExpirer{},
			Schedule: "0 * * * *",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, s.Recommend(context.Background()))
	})
}
