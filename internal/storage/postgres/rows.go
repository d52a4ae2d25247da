package postgres

import (
	"database/sql"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const jobColumns = `
	id, client_id, worker_id, title, description, budget, max_workers,
	status, required_skills, location_id, shift_id, expires_at,
	created_at, updated_at`

const prefixedJobColumns = `
	j.id, j.client_id, j.worker_id, j.title, j.description, j.budget, j.max_workers,
	j.status, j.required_skills, j.location_id, j.shift_id, j.expires_at,
	j.created_at, j.updated_at`

const applicationColumns = `id, job_id, worker_id, applied_at, is_hired`

// jobRow mirrors the jobs table
type jobRow struct {
	ID             string              `db:"id"`
	ClientID       string              `db:"client_id"`
	WorkerID       sql.NullString      `db:"worker_id"`
	Title          string              `db:"title"`
	Description    string              `db:"description"`
	Budget         decimal.NullDecimal `db:"budget"`
	MaxWorkers     int                 `db:"max_workers"`
	Status         string              `db:"status"`
	RequiredSkills pq.StringArray      `db:"required_skills"`
	LocationID     sql.NullString      `db:"location_id"`
	ShiftID        sql.NullString      `db:"shift_id"`
	ExpiresAt      sql.NullTime        `db:"expires_at"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

// recommendedRow is a job joined with its job_recommendations row
type recommendedRow struct {
	jobRow
	Score         int       `db:"score"`
	RecommendedAt time.Time `db:"recommended_at"`
}

func (r *jobRow) toDomain() *domain.Job {
	job := &domain.Job{
		ID:             r.ID,
		ClientID:       r.ClientID,
		WorkerID:       nullString(r.WorkerID),
		Title:          r.Title,
		Description:    r.Description,
		Budget:         r.Budget,
		MaxWorkers:     r.MaxWorkers,
		Status:         domain.JobStatus(r.Status),
		RequiredSkills: []string(r.RequiredSkills),
		LocationID:     nullString(r.LocationID),
		ShiftID:        nullString(r.ShiftID),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if job.RequiredSkills == nil {
		job.RequiredSkills = []string{}
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time.UTC()
		job.ExpiresAt = &t
	}
	return job
}

func fromDomain(job *domain.Job) jobRow {
	r := jobRow{
		ID:             job.ID,
		ClientID:       job.ClientID,
		WorkerID:       toNullString(job.WorkerID),
		Title:          job.Title,
		Description:    job.Description,
		Budget:         job.Budget,
		MaxWorkers:     job.MaxWorkers,
		Status:         string(job.Status),
		RequiredSkills: pq.StringArray(job.RequiredSkills),
		LocationID:     toNullString(job.LocationID),
		ShiftID:        toNullString(job.ShiftID),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if r.RequiredSkills == nil {
		r.RequiredSkills = pq.StringArray{}
	}
	if job.ExpiresAt != nil {
		r.ExpiresAt = sql.NullTime{Time: *job.ExpiresAt, Valid: true}
	}
	return r
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
