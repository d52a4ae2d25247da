// Package postgres implements the job repository on PostgreSQL with sqlx.
// Mutations of a job run in a READ COMMITTED transaction that holds the job
// row lock (SELECT ... FOR UPDATE), which serializes hires per job.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store is a PostgreSQL domain.JobRepository
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a store on an open connection pool
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

var _ domain.JobRepository = (*Store)(nil)

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `
		) VALUES (
			:id, :client_id, :worker_id, :title, :description, :budget, :max_workers,
			:status, :required_skills, :location_id, :shift_id, :expires_at,
			:created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, fromDomain(job)); err != nil {
		return fmt.Errorf("failed to create job: %w", mapError(err, "job"))
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		return nil, mapError(err, "job "+jobID)
	}
	return row.toDomain(), nil
}

func (s *Store) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.ViewerID != "" {
		query += fmt.Sprintf(" AND (client_id::text = $%d OR status = 'open')", argIdx)
		args = append(args, filter.ViewerID)
		argIdx++
	}

	if filter.ClientID != "" {
		query += fmt.Sprintf(" AND client_id::text = $%d", argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	if filter.Skill != "" {
		query += fmt.Sprintf(" AND $%d = ANY(required_skills)", argIdx)
		args = append(args, filter.Skill)
		argIdx++
	}

	if filter.LocationID != "" {
		query += fmt.Sprintf(" AND location_id::text = $%d", argIdx)
		args = append(args, filter.LocationID)
		argIdx++
	}

	if filter.MinBudget.Valid {
		query += fmt.Sprintf(" AND budget >= $%d", argIdx)
		args = append(args, filter.MinBudget.Decimal)
		argIdx++
	}

	if filter.MaxBudget.Valid {
		query += fmt.Sprintf(" AND budget <= $%d", argIdx)
		args = append(args, filter.MaxBudget.Decimal)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id::text) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id::text DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toDomain()
	}
	return jobs, nil
}

func (s *Store) ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.JobApplication, error) {
	apps := []domain.JobApplication{}
	query := `
		SELECT ` + applicationColumns + `
		FROM job_applications
		WHERE job_id = $1
		ORDER BY applied_at ASC, id ASC
	`

	if err := s.db.SelectContext(ctx, &apps, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", mapError(err, "job "+jobID))
	}
	return apps, nil
}

func (s *Store) ListApplicationsByWorker(ctx context.Context, workerID string) ([]domain.JobApplication, error) {
	apps := []domain.JobApplication{}
	query := `
		SELECT ` + applicationColumns + `
		FROM job_applications
		WHERE worker_id::text = $1
		ORDER BY applied_at DESC, id DESC
	`

	if err := s.db.SelectContext(ctx, &apps, query, workerID); err != nil {
		return nil, fmt.Errorf("failed to list worker applications: %w", err)
	}
	return apps, nil
}

func (s *Store) ListExpirableJobIDs(ctx context.Context, now time.Time, skip []string, limit int) ([]string, error) {
	ids := []string{}
	query := `
		SELECT id
		FROM jobs
		WHERE status = 'open' AND expires_at < $1
		  AND NOT (id::text = ANY($2::text[]))
		ORDER BY expires_at ASC, id ASC
		LIMIT $3
	`

	if err := s.db.SelectContext(ctx, &ids, query, now, pq.StringArray(nonNil(skip)), limit); err != nil {
		return nil, fmt.Errorf("failed to list expirable jobs: %w", err)
	}
	return ids, nil
}

func (s *Store) ListWorkerIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := `SELECT DISTINCT worker_id::text FROM job_applications ORDER BY 1`

	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return ids, nil
}

func (s *Store) ListCandidateJobs(ctx context.Context, filter domain.CandidateFilter) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'open'
		  AND (expires_at IS NULL OR expires_at >= $1)
		  AND (required_skills && $2::text[] OR location_id::text = ANY($3::text[]))
		ORDER BY created_at DESC, id::text DESC
		LIMIT $4
	`

	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, query,
		filter.Now, pq.StringArray(nonNil(filter.Skills)), pq.StringArray(nonNil(filter.LocationIDs)), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate jobs: %w", err)
	}

	jobs := make([]domain.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toDomain()
	}
	return jobs, nil
}

// ReplaceRecommendations deletes and re-inserts a worker's rows in one transaction
func (s *Store) ReplaceRecommendations(ctx context.Context, workerID string, recs []domain.JobRecommendation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_recommendations WHERE worker_id::text = $1`, workerID); err != nil {
		return fmt.Errorf("failed to clear recommendations: %w", mapError(err, "worker "+workerID))
	}

	if len(recs) > 0 {
		query := `
			INSERT INTO job_recommendations (worker_id, job_id, score, recommended_at)
			VALUES (:worker_id, :job_id, :score, :recommended_at)
		`
		if _, err := tx.NamedExecContext(ctx, query, recs); err != nil {
			return fmt.Errorf("failed to insert recommendations: %w", mapError(err, "recommendation"))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendations: %w", err)
	}
	return nil
}

func (s *Store) ListRecommendedJobs(ctx context.Context, workerID string, limit int) ([]domain.RecommendedJob, error) {
	query := `
		SELECT ` + prefixedJobColumns + `, r.score, r.recommended_at
		FROM job_recommendations r
		JOIN jobs j ON j.id = r.job_id
		WHERE r.worker_id::text = $1
		  AND j.status = 'open'
		  AND NOT EXISTS (
			SELECT 1 FROM job_applications a
			WHERE a.job_id = j.id AND a.worker_id = r.worker_id
		  )
		ORDER BY r.score DESC, j.created_at DESC
		LIMIT $2
	`

	var rows []recommendedRow
	if err := s.db.SelectContext(ctx, &rows, query, workerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recommended jobs: %w", mapError(err, "worker "+workerID))
	}

	out := make([]domain.RecommendedJob, len(rows))
	for i := range rows {
		out[i] = domain.RecommendedJob{
			Job:           *rows[i].jobRow.toDomain(),
			Score:         rows[i].Score,
			RecommendedAt: rows[i].RecommendedAt.UTC(),
		}
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// InJobTx locks the job row for the duration of fn. Concurrent callers for
// the same job block on the lock and then see the committed state.
func (s *Store) InJobTx(ctx context.Context, jobID string, fn func(tx domain.JobTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op after a successful commit
	defer tx.Rollback()

	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &row, query, jobID); err != nil {
		return mapError(err, "job "+jobID)
	}

	if err := fn(&jobTx{tx: tx, job: row.toDomain()}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit job transaction",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
