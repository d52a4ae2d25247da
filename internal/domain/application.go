package domain

import "time"

// JobApplication is a worker's request to be hired for a job
type JobApplication struct {
	ID        string    `json:"id" db:"id"`
	JobID     string    `json:"job_id" db:"job_id"`
	WorkerID  string    `json:"worker_id" db:"worker_id"`
	AppliedAt time.Time `json:"applied_at" db:"applied_at"`
	IsHired   bool      `json:"is_hired" db:"is_hired"`
}

// Role of an authenticated user
type Role string

const (
	RoleWorker Role = "worker"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleClient || r == RoleAdmin
}

// Actor is the authenticated caller of an operation
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor has administrator rights
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
