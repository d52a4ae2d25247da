package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	client = domain.Actor{ID: "client-1", Role: domain.RoleClient}
	other  = domain.Actor{ID: "client-2", Role: domain.RoleClient}
	admin  = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func worker(id string) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleWorker}
}

func newTestManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(store, logger, WithClock(func() time.Time { return testNow })), store
}

func createJob(t *testing.T, m *Manager, in CreateJobInput) *domain.Job {
	t.Helper()
	if in.Title == "" {
		in.Title = "Warehouse shift"
	}
	if in.MaxWorkers == 0 {
		in.MaxWorkers = 1
	}
	job, err := m.CreateJob(context.Background(), client, in)
	require.NoError(t, err)
	return job
}

func budget(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func TestCreateJob(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		input   CreateJobInput
		wantErr error
	}{
		{
			name:  "positive budget accepted",
			actor: client,
			input: CreateJobInput{Title: "Dishwasher", Budget: budget(100), MaxWorkers: 2},
		},
		{
			name:  "budget omitted",
			actor: client,
			input: CreateJobInput{Title: "Dishwasher", MaxWorkers: 1},
		},
		{
			name:    "zero budget rejected",
			actor:   client,
			input:   CreateJobInput{Title: "Dishwasher", Budget: budget(0), MaxWorkers: 1},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "negative budget rejected",
			actor:   client,
			input:   CreateJobInput{Title: "Dishwasher", Budget: budget(-5), MaxWorkers: 1},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "missing title",
			actor:   client,
			input:   CreateJobInput{Title: "   ", MaxWorkers: 1},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "max workers below one",
			actor:   client,
			input:   CreateJobInput{Title: "Dishwasher", MaxWorkers: 0},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "workers cannot post jobs",
			actor:   worker("w-1"),
			input:   CreateJobInput{Title: "Dishwasher", MaxWorkers: 1},
			wantErr: domain.ErrPermission,
		},
		{
			name:  "admin can post jobs",
			actor: admin,
			input: CreateJobInput{Title: "Dishwasher", MaxWorkers: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)

			job, err := m.CreateJob(context.Background(), tt.actor, tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, job)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, tt.actor.ID, job.ClientID)
			assert.Equal(t, domain.JobStatusOpen, job.Status)
			assert.Equal(t, testNow, job.CreatedAt)
		})
	}
}

func TestCreateJob_NormalizesSkills(t *testing.T) {
	m, _ := newTestManager(t)

	job := createJob(t, m, CreateJobInput{RequiredSkills: []string{"Forklift", "forklift ", "cooking"}})

	assert.Equal(t, []string{"cooking", "forklift"}, job.RequiredSkills)
}

func TestApplyToJob(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unhired application", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		app, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)

		require.NoError(t, err)
		assert.Equal(t, job.ID, app.JobID)
		assert.Equal(t, "w-1", app.WorkerID)
		assert.False(t, app.IsHired)
		assert.Equal(t, testNow, app.AppliedAt)
	})

	t.Run("second apply conflicts", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.ApplyToJob(ctx, worker("w-1"), job.ID)

		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("second apply conflicts after job left open", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.CancelJob(ctx, client, job.ID)
		require.NoError(t, err)
		_, err = m.ApplyToJob(ctx, worker("w-1"), job.ID)

		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("owner cannot apply", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		_, err := m.ApplyToJob(ctx, client, job.ID)

		assert.ErrorIs(t, err, domain.ErrPermission)
	})

	t.Run("job not open", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.CancelJob(ctx, client, job.ID)
		require.NoError(t, err)

		_, err = m.ApplyToJob(ctx, worker("w-1"), job.ID)

		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("job expired", func(t *testing.T) {
		m, _ := newTestManager(t)
		past := testNow.Add(-time.Minute)
		job := createJob(t, m, CreateJobInput{ExpiresAt: &past})

		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)

		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("unknown job", func(t *testing.T) {
		m, _ := newTestManager(t)

		_, err := m.ApplyToJob(ctx, worker("w-1"), "missing")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHireWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner cannot hire", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)

		_, err = m.HireWorker(ctx, other, job.ID, "w-1")

		assert.ErrorIs(t, err, domain.ErrPermission)
	})

	t.Run("worker without application", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		_, err := m.HireWorker(ctx, client, job.ID, "w-1")

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "application not found")
	})

	t.Run("already hired worker conflicts", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{MaxWorkers: 3})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)

		_, err = m.HireWorker(ctx, client, job.ID, "w-1")

		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("stays open until capacity is reached", func(t *testing.T) {
		m, store := newTestManager(t)
		job := createJob(t, m, CreateJobInput{MaxWorkers: 2})
		for _, id := range []string{"w-1", "w-2"} {
			_, err := m.ApplyToJob(ctx, worker(id), job.ID)
			require.NoError(t, err)
		}

		res, err := m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusOpen, res.JobStatus)
		assert.Equal(t, 1, res.HiredCount)

		res, err = m.HireWorker(ctx, client, job.ID, "w-2")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusInProgress, res.JobStatus)
		assert.Equal(t, 2, res.HiredCount)

		stored, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusInProgress, stored.Status)
	})

	t.Run("terminal job", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.CancelJob(ctx, client, job.ID)
		require.NoError(t, err)

		_, err = m.HireWorker(ctx, client, job.ID, "w-1")

		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("admin can hire", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)

		res, err := m.HireWorker(ctx, admin, job.ID, "w-1")

		require.NoError(t, err)
		assert.True(t, res.Application.IsHired)
	})
}

func TestHireWorker_SingleSlotScenario(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	job := createJob(t, m, CreateJobInput{Budget: budget(100), MaxWorkers: 1})
	appA, err := m.ApplyToJob(ctx, worker("worker-a"), job.ID)
	require.NoError(t, err)
	assert.False(t, appA.IsHired)
	_, err = m.ApplyToJob(ctx, worker("worker-b"), job.ID)
	require.NoError(t, err)

	res, err := m.HireWorker(ctx, client, job.ID, "worker-a")
	require.NoError(t, err)
	assert.True(t, res.Application.IsHired)
	assert.Equal(t, domain.JobStatusInProgress, res.JobStatus)

	_, err = m.HireWorker(ctx, client, job.ID, "worker-b")
	assert.ErrorIs(t, err, domain.ErrCapacity)

	apps, err := store.ListApplicationsByJob(ctx, job.ID)
	require.NoError(t, err)
	hired := map[string]bool{}
	for _, a := range apps {
		hired[a.WorkerID] = a.IsHired
	}
	assert.Equal(t, map[string]bool{"worker-a": true, "worker-b": false}, hired)
}

func TestHireWorker_ConcurrentHiresRespectCapacity(t *testing.T) {
	const (
		applicants = 20
		capacity   = 5
	)
	ctx := context.Background()
	m, store := newTestManager(t)

	job := createJob(t, m, CreateJobInput{MaxWorkers: capacity})
	for i := 0; i < applicants; i++ {
		_, err := m.ApplyToJob(ctx, worker(fmt.Sprintf("w-%02d", i)), job.ID)
		require.NoError(t, err)
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		capacityErrs int
		otherErrs    []error
	)
	start := make(chan struct{})
	for i := 0; i < applicants; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_, err := m.HireWorker(ctx, client, job.ID, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case domain.Kind(err) == domain.ErrCapacity:
				capacityErrs++
			default:
				otherErrs = append(otherErrs, err)
			}
		}(fmt.Sprintf("w-%02d", i))
	}
	close(start)
	wg.Wait()

	assert.Empty(t, otherErrs)
	assert.Equal(t, capacity, successes)
	assert.Equal(t, applicants-capacity, capacityErrs)

	apps, err := store.ListApplicationsByJob(ctx, job.ID)
	require.NoError(t, err)
	hired := 0
	for _, a := range apps {
		if a.IsHired {
			hired++
		}
	}
	assert.Equal(t, capacity, hired)

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, stored.Status)
}

func TestCompleteJob(t *testing.T) {
	ctx := context.Background()

	t.Run("records completion event", func(t *testing.T) {
		m, store := newTestManager(t)
		job := createJob(t, m, CreateJobInput{Budget: budget(300), MaxWorkers: 1})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)

		completed, err := m.CompleteJob(ctx, client, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, completed.Status)

		events := store.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTypeJobCompleted, events[0].Type)
		assert.Equal(t, job.ID, events[0].JobID)

		var payload domain.JobCompletedEvent
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, events[0].ID, payload.EventID)
		assert.Equal(t, client.ID, payload.ClientID)
		assert.Equal(t, []string{"w-1"}, payload.HiredWorkerIDs)
		assert.True(t, payload.Budget.Decimal.Equal(decimal.NewFromInt(300)))
	})

	t.Run("open job cannot be completed", func(t *testing.T) {
		m, store := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})

		_, err := m.CompleteJob(ctx, client, job.ID)

		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Empty(t, store.Events())
	})

	t.Run("only owner completes", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)

		_, err = m.CompleteJob(ctx, worker("w-1"), job.ID)

		assert.ErrorIs(t, err, domain.ErrPermission)
	})

	t.Run("completed job is terminal", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)
		_, err = m.CompleteJob(ctx, client, job.ID)
		require.NoError(t, err)

		_, err = m.CompleteJob(ctx, client, job.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		_, err = m.CancelJob(ctx, client, job.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestCancelJob(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	job := createJob(t, m, CreateJobInput{})

	_, err := m.CancelJob(ctx, other, job.ID)
	assert.ErrorIs(t, err, domain.ErrPermission)

	cancelled, err := m.CancelJob(ctx, client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)

	_, err = m.CancelJob(ctx, client, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("edits open job", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{Budget: budget(50)})
		title := "Night shift"
		b := decimal.NewFromInt(80)

		updated, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{
			Title:          &title,
			Budget:         &b,
			RequiredSkills: []string{"Security"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Night shift", updated.Title)
		assert.True(t, updated.Budget.Decimal.Equal(b))
		assert.Equal(t, []string{"security"}, updated.RequiredSkills)
	})

	t.Run("clears expiry", func(t *testing.T) {
		m, _ := newTestManager(t)
		hourAgo := testNow.Add(-time.Hour)
		job := createJob(t, m, CreateJobInput{ExpiresAt: &hourAgo})

		updated, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{ClearExpiresAt: true})
		require.NoError(t, err)
		assert.Nil(t, updated.ExpiresAt)

		n, err := m.ExpireJobs(ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("set and clear expiry together", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		tomorrow := testNow.Add(24 * time.Hour)

		_, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{ExpiresAt: &tomorrow, ClearExpiresAt: true})

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rejects non-positive budget", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		b := decimal.Zero

		_, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{Budget: &b})

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("max workers below hired count", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{MaxWorkers: 3})
		for _, id := range []string{"w-1", "w-2"} {
			_, err := m.ApplyToJob(ctx, worker(id), job.ID)
			require.NoError(t, err)
			_, err = m.HireWorker(ctx, client, job.ID, id)
			require.NoError(t, err)
		}
		one := 1

		_, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{MaxWorkers: &one})

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("shrinking to hired count starts the job", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{MaxWorkers: 3})
		_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
		require.NoError(t, err)
		_, err = m.HireWorker(ctx, client, job.ID, "w-1")
		require.NoError(t, err)
		one := 1

		updated, err := m.UpdateJob(ctx, client, job.ID, UpdateJobInput{MaxWorkers: &one})

		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusInProgress, updated.Status)
	})

	t.Run("non-owner", func(t *testing.T) {
		m, _ := newTestManager(t)
		job := createJob(t, m, CreateJobInput{})
		title := "x"

		_, err := m.UpdateJob(ctx, other, job.ID, UpdateJobInput{Title: &title})

		assert.ErrorIs(t, err, domain.ErrPermission)
	})
}

func TestGetJob_Visibility(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	job := createJob(t, m, CreateJobInput{})

	_, err := m.GetJob(ctx, worker("w-1"), job.ID)
	require.NoError(t, err)

	_, err = m.CancelJob(ctx, client, job.ID)
	require.NoError(t, err)

	_, err = m.GetJob(ctx, worker("w-1"), job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = m.GetJob(ctx, client, job.ID)
	assert.NoError(t, err)
	_, err = m.GetJob(ctx, admin, job.ID)
	assert.NoError(t, err)
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	for i := 0; i < 3; i++ {
		createJob(t, m, CreateJobInput{Budget: budget(int64(100 * (i + 1))), RequiredSkills: []string{"cooking"}})
	}
	hidden := createJob(t, m, CreateJobInput{})
	_, err := m.CancelJob(ctx, client, hidden.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   domain.Actor
		filter  domain.JobFilter
		want    int
		wantErr error
	}{
		{name: "worker sees open jobs", actor: worker("w-1"), want: 3},
		{name: "owner sees own cancelled job", actor: client, want: 4},
		{name: "admin sees everything", actor: admin, want: 4},
		{name: "page size returns one extra", actor: admin, filter: domain.JobFilter{PageSize: 2}, want: 3},
		{name: "skill filter", actor: worker("w-1"), filter: domain.JobFilter{Skill: "Cooking"}, want: 3},
		{name: "budget range", actor: worker("w-1"), filter: domain.JobFilter{MinBudget: budget(150), MaxBudget: budget(250)}, want: 1},
		{name: "status filter", actor: client, filter: domain.JobFilter{Status: domain.JobStatusCancelled}, want: 1},
		{name: "unknown status", actor: client, filter: domain.JobFilter{Status: "paused"}, wantErr: domain.ErrValidation},
		{name: "inverted budget range", actor: client, filter: domain.JobFilter{MinBudget: budget(5), MaxBudget: budget(1)}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := m.ListJobs(ctx, tt.actor, tt.filter)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, jobs, tt.want)
		})
	}
}

func TestListApplications(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	job := createJob(t, m, CreateJobInput{MaxWorkers: 2})
	_, err := m.ApplyToJob(ctx, worker("w-1"), job.ID)
	require.NoError(t, err)

	apps, err := m.ListApplications(ctx, client, job.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	_, err = m.ListApplications(ctx, worker("w-1"), job.ID)
	assert.ErrorIs(t, err, domain.ErrPermission)

	mine, err := m.ListWorkerApplications(ctx, worker("w-1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, job.ID, mine[0].JobID)
}
