package dto

import (
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/shopspring/decimal"
)

type CreateJobRequest struct {
	Title          string           `json:"title" binding:"required"`
	Description    string           `json:"description"`
	Budget         *decimal.Decimal `json:"budget"`
	MaxWorkers     *int             `json:"max_workers"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	RequiredSkills []string         `json:"required_skills"`
	LocationID     *string          `json:"location_id" binding:"omitempty,uuid"`
	ShiftID        *string          `json:"shift_id" binding:"omitempty,uuid"`
}

type UpdateJobRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Budget         *decimal.Decimal `json:"budget"`
	MaxWorkers     *int             `json:"max_workers"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	ClearExpiresAt bool             `json:"clear_expires_at"`
	RequiredSkills []string         `json:"required_skills"`
	LocationID     *string          `json:"location_id" binding:"omitempty,uuid"`
	ShiftID        *string          `json:"shift_id" binding:"omitempty,uuid"`
}

type HireRequest struct {
	WorkerID string `json:"worker_id" binding:"required,uuid"`
}

type ListJobsRequest struct {
	ClientID  string `form:"client_id"`
	Status    string `form:"status"`
	Skill     string `form:"skill"`
	MinBudget string `form:"min_budget"`
	MaxBudget string `form:"max_budget"`
	Location  string `form:"location_id" binding:"omitempty,uuid"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID             string   `json:"id"`
	ClientID       string   `json:"client_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Budget         *string  `json:"budget"`
	MaxWorkers     int      `json:"max_workers"`
	Status         string   `json:"status"`
	RequiredSkills []string `json:"required_skills"`
	LocationID     *string  `json:"location_id,omitempty"`
	ShiftID        *string  `json:"shift_id,omitempty"`
	ExpiresAt      *string  `json:"expires_at,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type ListRecommendedJobsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

type RecommendedJobDTO struct {
	JobDTO
	Score         int    `json:"score"`
	RecommendedAt string `json:"recommended_at"`
}

type ListRecommendedJobsResponse struct {
	Jobs []RecommendedJobDTO `json:"jobs"`
}

type ApplicationDTO struct {
	ID        string `json:"id"`
	JobID     string `json:"job_id"`
	WorkerID  string `json:"worker_id"`
	AppliedAt string `json:"applied_at"`
	IsHired   bool   `json:"is_hired"`
}

type ListApplicationsResponse struct {
	Applications []ApplicationDTO `json:"applications"`
}

type HireResponse struct {
	Detail      string         `json:"detail"`
	Application ApplicationDTO `json:"application"`
	JobStatus   string         `json:"job_status"`
	HiredCount  int            `json:"hired_count"`
	MaxWorkers  int            `json:"max_workers"`
}

// NewJobDTO converts a job for the response body
func NewJobDTO(job *domain.Job) JobDTO {
	d := JobDTO{
		ID:             job.ID,
		ClientID:       job.ClientID,
		Title:          job.Title,
		Description:    job.Description,
		MaxWorkers:     job.MaxWorkers,
		Status:         string(job.Status),
		RequiredSkills: job.RequiredSkills,
		LocationID:     job.LocationID,
		ShiftID:        job.ShiftID,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
	if d.RequiredSkills == nil {
		d.RequiredSkills = []string{}
	}
	if job.Budget.Valid {
		b := job.Budget.Decimal.StringFixed(2)
		d.Budget = &b
	}
	if job.ExpiresAt != nil {
		e := job.ExpiresAt.Format(time.RFC3339)
		d.ExpiresAt = &e
	}
	return d
}

// NewRecommendedJobDTO converts a recommendation for the response body
func NewRecommendedJobDTO(rec *domain.RecommendedJob) RecommendedJobDTO {
	return RecommendedJobDTO{
		JobDTO:        NewJobDTO(&rec.Job),
		Score:         rec.Score,
		RecommendedAt: rec.RecommendedAt.Format(time.RFC3339),
	}
}

// NewApplicationDTO converts an application for the response body
func NewApplicationDTO(app *domain.JobApplication) ApplicationDTO {
	return ApplicationDTO{
		ID:        app.ID,
		JobID:     app.JobID,
		WorkerID:  app.WorkerID,
		AppliedAt: app.AppliedAt.Format(time.RFC3339),
		IsHired:   app.IsHired,
	}
}
