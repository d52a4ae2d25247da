package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPageSize is used when a listing does not specify one
	DefaultPageSize = 20
	// MaxPageSize caps a single listing page
	MaxPageSize = 100
	// DefaultExpireBatchSize bounds the number of jobs loaded per sweep query
	DefaultExpireBatchSize = 200
)

// Manager enforces the job posting, application, hiring and expiry rules
type Manager struct {
	repo            domain.JobRepository
	logger          *slog.Logger
	now             func() time.Time
	expireBatchSize int
	recommendLimit  int
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithExpireBatchSize overrides how many expirable jobs are fetched per query
func WithExpireBatchSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.expireBatchSize = size
		}
	}
}

// WithRecommendLimit overrides how many recommendations are kept per worker
func WithRecommendLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.recommendLimit = limit
		}
	}
}

// NewManager creates a lifecycle manager on top of a job repository
func NewManager(repo domain.JobRepository, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:            repo,
		logger:          logger,
		now:             time.Now,
		expireBatchSize: DefaultExpireBatchSize,
		recommendLimit:  DefaultRecommendLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateJobInput holds the fields of a new job posting
type CreateJobInput struct {
	Title          string
	Description    string
	Budget         decimal.NullDecimal
	MaxWorkers     int
	ExpiresAt      *time.Time
	RequiredSkills []string
	LocationID     *string
	ShiftID        *string
}

// UpdateJobInput holds client edits. Nil fields are left unchanged.
// ClearExpiresAt removes the expiry and cannot be combined with ExpiresAt.
type UpdateJobInput struct {
	Title          *string
	Description    *string
	Budget         *decimal.Decimal
	MaxWorkers     *int
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	RequiredSkills []string
	LocationID     *string
	ShiftID        *string
}

// HireResult describes a successful hire
type HireResult struct {
	Application domain.JobApplication
	JobTitle    string
	JobStatus   domain.JobStatus
	HiredCount  int
	MaxWorkers  int
}

// CreateJob posts a new open job owned by the actor
func (m *Manager) CreateJob(ctx context.Context, actor domain.Actor, in CreateJobInput) (*domain.Job, error) {
	if err := Authorize(actor, nil, ActionCreate); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if err := validateBudget(in.Budget); err != nil {
		return nil, err
	}
	if in.MaxWorkers < 1 {
		return nil, fmt.Errorf("%w: max_workers must be at least 1", domain.ErrValidation)
	}

	now := m.now().UTC()
	job := &domain.Job{
		ID:             uuid.NewString(),
		ClientID:       actor.ID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Budget:         in.Budget,
		MaxWorkers:     in.MaxWorkers,
		Status:         domain.JobStatusOpen,
		RequiredSkills: domain.NormalizeSkills(in.RequiredSkills),
		LocationID:     in.LocationID,
		ShiftID:        in.ShiftID,
		ExpiresAt:      utcPtr(in.ExpiresAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("client_id", job.ClientID),
		slog.Int("max_workers", job.MaxWorkers),
	)

	return job, nil
}

// UpdateJob applies client edits to an open job
func (m *Manager) UpdateJob(ctx context.Context, actor domain.Actor, jobID string, in UpdateJobInput) (*domain.Job, error) {
	var updated *domain.Job

	err := m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if err := Authorize(actor, job, ActionEdit); err != nil {
			return err
		}
		if job.Status != domain.JobStatusOpen {
			return fmt.Errorf("%w: only open jobs can be edited (status %s)", domain.ErrInvalidState, job.Status)
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return fmt.Errorf("%w: title is required", domain.ErrValidation)
			}
			job.Title = title
		}
		if in.Description != nil {
			job.Description = strings.TrimSpace(*in.Description)
		}
		if in.Budget != nil {
			budget := decimal.NewNullDecimal(*in.Budget)
			if err := validateBudget(budget); err != nil {
				return err
			}
			job.Budget = budget
		}
		switch {
		case in.ClearExpiresAt && in.ExpiresAt != nil:
			return fmt.Errorf("%w: expires_at cannot be set and cleared at once", domain.ErrValidation)
		case in.ClearExpiresAt:
			job.ExpiresAt = nil
		case in.ExpiresAt != nil:
			job.ExpiresAt = utcPtr(in.ExpiresAt)
		}
		if in.RequiredSkills != nil {
			job.RequiredSkills = domain.NormalizeSkills(in.RequiredSkills)
		}
		if in.LocationID != nil {
			job.LocationID = in.LocationID
		}
		if in.ShiftID != nil {
			job.ShiftID = in.ShiftID
		}
		if in.MaxWorkers != nil {
			if *in.MaxWorkers < 1 {
				return fmt.Errorf("%w: max_workers must be at least 1", domain.ErrValidation)
			}
			hired, err := tx.CountHired(ctx)
			if err != nil {
				return err
			}
			if *in.MaxWorkers < hired {
				return fmt.Errorf("%w: max_workers cannot be lower than the %d workers already hired", domain.ErrValidation, hired)
			}
			job.MaxWorkers = *in.MaxWorkers
			if hired > 0 && hired >= job.MaxWorkers {
				job.Status = domain.JobStatusInProgress
			}
		}

		job.UpdatedAt = m.now().UTC()
		if err := tx.UpdateJob(ctx, job); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Job updated",
		slog.String("job_id", updated.ID),
		slog.String("status", string(updated.Status)),
	)
	return updated, nil
}

// GetJob returns a job visible to the actor. Invisible jobs are reported as not found.
func (m *Manager) GetJob(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, job, ActionView); err != nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return job, nil
}

// ListJobs lists the jobs visible to the actor. It returns at most
// filter.PageSize+1 jobs; the extra one signals a following page.
func (m *Manager) ListJobs(ctx context.Context, actor domain.Actor, filter domain.JobFilter) ([]domain.Job, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	filter.ViewerID = ""
	if !actor.IsAdmin() {
		filter.ViewerID = actor.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, filter.Status)
	}
	if filter.MinBudget.Valid && filter.MaxBudget.Valid && filter.MinBudget.Decimal.GreaterThan(filter.MaxBudget.Decimal) {
		return nil, fmt.Errorf("%w: min_budget is greater than max_budget", domain.ErrValidation)
	}
	filter.Skill = strings.ToLower(strings.TrimSpace(filter.Skill))

	return m.repo.ListJobs(ctx, filter)
}

// ApplyToJob records the actor's application to an open, unexpired job
func (m *Manager) ApplyToJob(ctx context.Context, actor domain.Actor, jobID string) (*domain.JobApplication, error) {
	var created *domain.JobApplication
	now := m.now().UTC()

	err := m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if err := Authorize(actor, job, ActionApply); err != nil {
			return err
		}

		_, err := tx.FindApplication(ctx, actor.ID)
		if err == nil {
			return fmt.Errorf("%w: already applied", domain.ErrConflict)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if job.Status != domain.JobStatusOpen {
			return fmt.Errorf("%w: job is not open (status %s)", domain.ErrInvalidState, job.Status)
		}
		if job.IsExpired(now) {
			return fmt.Errorf("%w: job has expired", domain.ErrInvalidState)
		}

		app := &domain.JobApplication{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			WorkerID:  actor.ID,
			AppliedAt: now,
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		created = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Application created",
		slog.String("job_id", jobID),
		slog.String("worker_id", actor.ID),
		slog.String("application_id", created.ID),
	)
	return created, nil
}

// ListApplications lists a job's applications for its owner or an administrator
func (m *Manager) ListApplications(ctx context.Context, actor domain.Actor, jobID string) ([]domain.JobApplication, error) {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, job, ActionListApplications); err != nil {
		return nil, err
	}
	return m.repo.ListApplicationsByJob(ctx, jobID)
}

// ListWorkerApplications lists the applications submitted by the actor
func (m *Manager) ListWorkerApplications(ctx context.Context, actor domain.Actor) ([]domain.JobApplication, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: unauthenticated actor", domain.ErrPermission)
	}
	return m.repo.ListApplicationsByWorker(ctx, actor.ID)
}

// HireWorker accepts workerID's application. The capacity check and the writes
// run inside one job transaction so concurrent hires are serialized per job.
func (m *Manager) HireWorker(ctx context.Context, actor domain.Actor, jobID, workerID string) (*HireResult, error) {
	var result *HireResult

	err := m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if err := Authorize(actor, job, ActionHire); err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: job is %s", domain.ErrInvalidState, job.Status)
		}

		app, err := tx.FindApplication(ctx, workerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: application not found", domain.ErrNotFound)
			}
			return err
		}
		if app.IsHired {
			return fmt.Errorf("%w: worker already hired", domain.ErrConflict)
		}

		hired, err := tx.CountHired(ctx)
		if err != nil {
			return err
		}
		if hired >= job.MaxWorkers {
			return fmt.Errorf("%w: maximum number of workers already hired for this job", domain.ErrCapacity)
		}

		if err := tx.MarkHired(ctx, app.ID); err != nil {
			return err
		}
		app.IsHired = true

		if hired+1 >= job.MaxWorkers {
			job.Status = domain.JobStatusInProgress
			job.UpdatedAt = m.now().UTC()
			if err := tx.UpdateJob(ctx, job); err != nil {
				return err
			}
		}

		result = &HireResult{
			Application: *app,
			JobTitle:    job.Title,
			JobStatus:   job.Status,
			HiredCount:  hired + 1,
			MaxWorkers:  job.MaxWorkers,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Worker hired",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.Int("hired_count", result.HiredCount),
		slog.String("job_status", string(result.JobStatus)),
	)
	return result, nil
}

// CompleteJob moves an in-progress job to completed and records a
// job.completed event in the same transaction
func (m *Manager) CompleteJob(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	var completed *domain.Job

	err := m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if err := Authorize(actor, job, ActionComplete); err != nil {
			return err
		}
		if job.Status != domain.JobStatusInProgress {
			return fmt.Errorf("%w: only in-progress jobs can be completed (status %s)", domain.ErrInvalidState, job.Status)
		}

		workers, err := tx.HiredWorkerIDs(ctx)
		if err != nil {
			return err
		}

		now := m.now().UTC()
		job.Status = domain.JobStatusCompleted
		job.UpdatedAt = now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return err
		}

		event, err := newCompletedEvent(job, workers, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}

		completed = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Job completed",
		slog.String("job_id", completed.ID),
		slog.String("client_id", completed.ClientID),
	)
	return completed, nil
}

// CancelJob cancels a job that has not reached a terminal state
func (m *Manager) CancelJob(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	var cancelled *domain.Job

	err := m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if err := Authorize(actor, job, ActionCancel); err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: job is already %s", domain.ErrInvalidState, job.Status)
		}
		job.Status = domain.JobStatusCancelled
		job.UpdatedAt = m.now().UTC()
		if err := tx.UpdateJob(ctx, job); err != nil {
			return err
		}
		cancelled = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Job cancelled",
		slog.String("job_id", cancelled.ID),
		slog.String("actor_id", actor.ID),
	)
	return cancelled, nil
}

func newCompletedEvent(job *domain.Job, workers []string, now time.Time) (*domain.Event, error) {
	if workers == nil {
		workers = []string{}
	}
	eventID := uuid.NewString()
	payload, err := json.Marshal(domain.JobCompletedEvent{
		EventID:        eventID,
		JobID:          job.ID,
		ClientID:       job.ClientID,
		HiredWorkerIDs: workers,
		Budget:         job.Budget,
		CompletedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion event: %w", err)
	}
	return &domain.Event{
		ID:        eventID,
		Type:      domain.EventTypeJobCompleted,
		JobID:     job.ID,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}

func validateBudget(budget decimal.NullDecimal) error {
	if budget.Valid && !budget.Decimal.IsPositive() {
		return fmt.Errorf("%w: budget must be greater than 0", domain.ErrValidation)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
