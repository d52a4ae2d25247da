package postgres

import (
	"context"
	"fmt"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/jmoiron/sqlx"
)

// jobTx is a domain.JobTx bound to a transaction holding the job row lock
type jobTx struct {
	tx  *sqlx.Tx
	job *domain.Job
}

func (t *jobTx) Job() *domain.Job {
	return t.job
}

func (t *jobTx) FindApplication(ctx context.Context, workerID string) (*domain.JobApplication, error) {
	var app domain.JobApplication
	query := `
		SELECT ` + applicationColumns + `
		FROM job_applications
		WHERE job_id = $1 AND worker_id::text = $2
	`

	if err := t.tx.GetContext(ctx, &app, query, t.job.ID, workerID); err != nil {
		return nil, mapError(err, "application for worker "+workerID)
	}
	return &app, nil
}

func (t *jobTx) CreateApplication(ctx context.Context, app *domain.JobApplication) error {
	query := `
		INSERT INTO job_applications (` + applicationColumns + `)
		VALUES (:id, :job_id, :worker_id, :applied_at, :is_hired)
	`

	if _, err := t.tx.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("failed to create application: %w", mapError(err, "application"))
	}
	return nil
}

func (t *jobTx) CountHired(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM job_applications WHERE job_id = $1 AND is_hired`

	if err := t.tx.GetContext(ctx, &n, query, t.job.ID); err != nil {
		return 0, fmt.Errorf("failed to count hired workers: %w", err)
	}
	return n, nil
}

func (t *jobTx) HiredWorkerIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := `
		SELECT worker_id
		FROM job_applications
		WHERE job_id = $1 AND is_hired
		ORDER BY applied_at ASC, id ASC
	`

	if err := t.tx.SelectContext(ctx, &ids, query, t.job.ID); err != nil {
		return nil, fmt.Errorf("failed to list hired workers: %w", err)
	}
	return ids, nil
}

func (t *jobTx) MarkHired(ctx context.Context, applicationID string) error {
	query := `UPDATE job_applications SET is_hired = TRUE WHERE id = $1 AND job_id = $2`

	res, err := t.tx.ExecContext(ctx, query, applicationID, t.job.ID)
	if err != nil {
		return fmt.Errorf("failed to mark application hired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark application hired: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: application %s", domain.ErrNotFound, applicationID)
	}
	return nil
}

func (t *jobTx) UpdateJob(ctx context.Context, job *domain.Job) error {
	if job.ID != t.job.ID {
		return fmt.Errorf("job %s does not match locked job %s", job.ID, t.job.ID)
	}

	query := `
		UPDATE jobs SET
			worker_id = :worker_id,
			title = :title,
			description = :description,
			budget = :budget,
			max_workers = :max_workers,
			status = :status,
			required_skills = :required_skills,
			location_id = :location_id,
			shift_id = :shift_id,
			expires_at = :expires_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	if _, err := t.tx.NamedExecContext(ctx, query, fromDomain(job)); err != nil {
		return fmt.Errorf("failed to update job: %w", mapError(err, "job "+job.ID))
	}
	return nil
}

func (t *jobTx) AppendEvent(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO job_events (id, event_type, job_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := t.tx.ExecContext(ctx, query,
		event.ID, event.Type, event.JobID, string(event.Payload), event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}
