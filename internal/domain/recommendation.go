package domain

import (
	"sort"
	"time"
)

// JobRecommendation suggests an open job to a worker
type JobRecommendation struct {
	WorkerID      string    `json:"worker_id" db:"worker_id"`
	JobID         string    `json:"job_id" db:"job_id"`
	Score         int       `json:"score" db:"score"`
	RecommendedAt time.Time `json:"recommended_at" db:"recommended_at"`
}

// RecommendedJob is a stored recommendation joined with its job
type RecommendedJob struct {
	Job
	Score         int
	RecommendedAt time.Time
}

// WorkerProfile is what the marketplace knows about a worker from their own
// applications: the skills and locations of the jobs they applied to.
type WorkerProfile struct {
	WorkerID    string
	Skills      []string
	LocationIDs []string
	// Applied holds the ids of jobs the worker already applied to
	Applied map[string]bool
}

// BuildWorkerProfile folds the jobs a worker applied to into a profile
func BuildWorkerProfile(workerID string, applied []Job) WorkerProfile {
	p := WorkerProfile{WorkerID: workerID, Applied: make(map[string]bool, len(applied))}

	var skills []string
	locations := map[string]bool{}
	for _, job := range applied {
		p.Applied[job.ID] = true
		skills = append(skills, job.RequiredSkills...)
		if job.LocationID != nil && !locations[*job.LocationID] {
			locations[*job.LocationID] = true
			p.LocationIDs = append(p.LocationIDs, *job.LocationID)
		}
	}
	p.Skills = NormalizeSkills(skills)
	sort.Strings(p.LocationIDs)
	return p
}

// IsEmpty reports whether the profile has nothing to match jobs on
func (p WorkerProfile) IsEmpty() bool {
	return len(p.Skills) == 0 && len(p.LocationIDs) == 0
}

// Score weights a job for the worker: one point per shared skill and one for
// a location the worker has applied in before. Zero means no match.
func (p WorkerProfile) Score(job *Job) int {
	score := 0
	for _, s := range p.Skills {
		if job.HasSkill(s) {
			score++
		}
	}
	if job.LocationID != nil {
		for _, id := range p.LocationIDs {
			if id == *job.LocationID {
				score++
				break
			}
		}
	}
	return score
}

// Recommend scores the candidates, drops jobs the worker applied to or that do
// not match, and keeps the best limit ordered by score then newest first
func (p WorkerProfile) Recommend(candidates []Job, now time.Time, limit int) []JobRecommendation {
	type scored struct {
		job   *Job
		score int
	}
	var matched []scored
	for i := range candidates {
		job := &candidates[i]
		if p.Applied[job.ID] || job.Status != JobStatusOpen || job.IsExpired(now) {
			continue
		}
		if score := p.Score(job); score > 0 {
			matched = append(matched, scored{job: job, score: score})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.job.ID > b.job.ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	recs := make([]JobRecommendation, len(matched))
	for i, m := range matched {
		recs[i] = JobRecommendation{
			WorkerID:      p.WorkerID,
			JobID:         m.job.ID,
			Score:         m.score,
			RecommendedAt: now.UTC(),
		}
	}
	return recs
}

// CandidateFilter selects open jobs that might match a worker profile
type CandidateFilter struct {
	Skills      []string
	LocationIDs []string
	Now         time.Time
	Limit       int
}
