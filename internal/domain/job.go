package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus is the lifecycle state of a job posting
type JobStatus string

// Job status constants
const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseJobStatus normalizes a user supplied status string
func ParseJobStatus(raw string) (JobStatus, bool) {
	status := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Job is a unit of work posted by a client
type Job struct {
	ID             string              `json:"id"`
	ClientID       string              `json:"client_id"`
	WorkerID       *string             `json:"worker_id,omitempty"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Budget         decimal.NullDecimal `json:"budget"`
	MaxWorkers     int                 `json:"max_workers"`
	Status         JobStatus           `json:"status"`
	RequiredSkills []string            `json:"required_skills"`
	LocationID     *string             `json:"location_id,omitempty"`
	ShiftID        *string             `json:"shift_id,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// IsExpired reports whether the job has an expiry strictly before now
func (j *Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// IsOwnedBy reports whether userID posted the job
func (j *Job) IsOwnedBy(userID string) bool {
	return j.ClientID == userID
}

// Clone returns a deep copy so callers never share slices or pointers with a store
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.RequiredSkills = append([]string(nil), j.RequiredSkills...)
	c.WorkerID = cloneString(j.WorkerID)
	c.LocationID = cloneString(j.LocationID)
	c.ShiftID = cloneString(j.ShiftID)
	if j.ExpiresAt != nil {
		t := *j.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// NormalizeSkills trims, lowercases and de-duplicates a skill list.
// Required skills are an unordered set so the result is sorted.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		name := strings.ToLower(strings.TrimSpace(s))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasSkill reports whether the job requires the given skill (case-insensitive)
func (j *Job) HasSkill(skill string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	for _, s := range j.RequiredSkills {
		if s == skill {
			return true
		}
	}
	return false
}

// JobFilter narrows a job listing
type JobFilter struct {
	// ViewerID restricts results to jobs owned by the viewer or open jobs.
	// Empty means no visibility restriction (administrators).
	ViewerID   string
	ClientID   string
	Status     JobStatus
	Skill      string
	LocationID string
	MinBudget  decimal.NullDecimal
	MaxBudget  decimal.NullDecimal
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is a keyset position in a listing ordered by created_at DESC, id DESC
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
