package domain

import (
	"context"
	"time"
)

// JobRepository is the persistence boundary of the job lifecycle.
// Implementations never cache state between calls.
type JobRepository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// ListJobs returns at most filter.PageSize+1 jobs ordered by created_at DESC, id DESC
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]JobApplication, error)
	ListApplicationsByWorker(ctx context.Context, workerID string) ([]JobApplication, error)

	// ListExpirableJobIDs returns up to limit ids of open jobs whose expiry is
	// before now, earliest expiry first, leaving out the ids in skip
	ListExpirableJobIDs(ctx context.Context, now time.Time, skip []string, limit int) ([]string, error)

	// ListWorkerIDs returns every worker with at least one application
	ListWorkerIDs(ctx context.Context) ([]string, error)
	// ListCandidateJobs returns up to filter.Limit open, unexpired jobs that share
	// a skill or a location with the filter, newest first
	ListCandidateJobs(ctx context.Context, filter CandidateFilter) ([]Job, error)
	// ReplaceRecommendations swaps a worker's stored recommendations for recs
	ReplaceRecommendations(ctx context.Context, workerID string, recs []JobRecommendation) error
	// ListRecommendedJobs returns a worker's stored recommendations whose job is
	// still open and not yet applied to, best score first
	ListRecommendedJobs(ctx context.Context, workerID string, limit int) ([]RecommendedJob, error)

	// InJobTx runs fn with the job row locked. Writes made through the JobTx are
	// committed when fn returns nil and discarded otherwise. ErrNotFound is
	// returned when the job does not exist.
	InJobTx(ctx context.Context, jobID string, fn func(tx JobTx) error) error
}

// JobTx is a transaction scoped to one locked job and its applications
type JobTx interface {
	// Job returns the locked job snapshot
	Job() *Job
	FindApplication(ctx context.Context, workerID string) (*JobApplication, error)
	CreateApplication(ctx context.Context, app *JobApplication) error
	CountHired(ctx context.Context) (int, error)
	HiredWorkerIDs(ctx context.Context) ([]string, error)
	MarkHired(ctx context.Context, applicationID string) error
	UpdateJob(ctx context.Context, job *Job) error
	AppendEvent(ctx context.Context, event *Event) error
}
