// Package memory is an in-process job repository. Each job has its own mutex
// held for the whole of InJobTx, and writes are staged in the transaction and
// applied together on success.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
)

// Store is an in-memory domain.JobRepository
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	apps   map[string]*domain.JobApplication
	byJob  map[string][]string
	events []domain.Event
	recs   map[string][]domain.JobRecommendation

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*domain.Job),
		apps:  make(map[string]*domain.JobApplication),
		byJob: make(map[string][]string),
		recs:  make(map[string][]domain.JobRecommendation),
		locks: make(map[string]*sync.Mutex),
	}
}

var _ domain.JobRepository = (*Store)(nil)

// CreateJob stores a new job
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already exists", domain.ErrConflict, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetJob returns a copy of the job
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return job.Clone(), nil
}

// ListJobs filters and pages jobs
func (s *Store) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if matches(job, filter) {
			out = append(out, *job.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

func matches(job *domain.Job, f domain.JobFilter) bool {
	if f.ViewerID != "" && job.ClientID != f.ViewerID && job.Status != domain.JobStatusOpen {
		return false
	}
	if f.ClientID != "" && job.ClientID != f.ClientID {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Skill != "" && !job.HasSkill(f.Skill) {
		return false
	}
	if f.LocationID != "" && (job.LocationID == nil || *job.LocationID != f.LocationID) {
		return false
	}
	if f.MinBudget.Valid && (!job.Budget.Valid || job.Budget.Decimal.LessThan(f.MinBudget.Decimal)) {
		return false
	}
	if f.MaxBudget.Valid && (!job.Budget.Valid || job.Budget.Decimal.GreaterThan(f.MaxBudget.Decimal)) {
		return false
	}
	if c := f.Cursor; c != nil {
		// keyset: (created_at, id) < (cursor.created_at, cursor.id)
		if job.CreatedAt.After(c.CreatedAt) {
			return false
		}
		if job.CreatedAt.Equal(c.CreatedAt) && job.ID >= c.JobID {
			return false
		}
	}
	return true
}

// ListApplicationsByJob returns a job's applications, oldest first
func (s *Store) ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.JobApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.JobApplication, 0, len(s.byJob[jobID]))
	for _, id := range s.byJob[jobID] {
		out = append(out, *s.apps[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppliedAt.Before(out[j].AppliedAt)
	})
	return out, nil
}

// ListApplicationsByWorker returns a worker's applications, newest first
func (s *Store) ListApplicationsByWorker(ctx context.Context, workerID string) ([]domain.JobApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.JobApplication{}
	for _, app := range s.apps {
		if app.WorkerID == workerID {
			out = append(out, *app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppliedAt.After(out[j].AppliedAt)
	})
	return out, nil
}

// ListExpirableJobIDs returns open jobs whose expiry is before now, earliest expiry first
func (s *Store) ListExpirableJobIDs(ctx context.Context, now time.Time, skip []string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skipped := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipped[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var expirable []*domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusOpen && job.IsExpired(now) && !skipped[job.ID] {
			expirable = append(expirable, job)
		}
	}
	sort.Slice(expirable, func(i, j int) bool {
		a, b := expirable[i], expirable[j]
		if !a.ExpiresAt.Equal(*b.ExpiresAt) {
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(expirable) > limit {
		expirable = expirable[:limit]
	}

	ids := make([]string, len(expirable))
	for i, job := range expirable {
		ids[i] = job.ID
	}
	return ids, nil
}

// ListWorkerIDs returns the workers that applied to any job, sorted
func (s *Store) ListWorkerIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	ids := []string{}
	for _, app := range s.apps {
		if !seen[app.WorkerID] {
			seen[app.WorkerID] = true
			ids = append(ids, app.WorkerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListCandidateJobs returns open unexpired jobs sharing a skill or location with the filter
func (s *Store) ListCandidateJobs(ctx context.Context, filter domain.CandidateFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	match := domain.WorkerProfile{Skills: filter.Skills, LocationIDs: filter.LocationIDs}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Job{}
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusOpen || job.IsExpired(filter.Now) {
			continue
		}
		if match.Score(job) > 0 {
			out = append(out, *job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ReplaceRecommendations stores recs as the worker's only recommendations
func (s *Store) ReplaceRecommendations(ctx context.Context, workerID string, recs []domain.JobRecommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.JobRecommendation, 0, len(recs))
	for _, r := range recs {
		if _, ok := s.jobs[r.JobID]; !ok {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, r.JobID)
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		delete(s.recs, workerID)
		return nil
	}
	s.recs[workerID] = kept
	return nil
}

// ListRecommendedJobs joins a worker's recommendations with jobs that are still open
func (s *Store) ListRecommendedJobs(ctx context.Context, workerID string, limit int) ([]domain.RecommendedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	applied := map[string]bool{}
	for _, app := range s.apps {
		if app.WorkerID == workerID {
			applied[app.JobID] = true
		}
	}

	out := []domain.RecommendedJob{}
	for _, r := range s.recs[workerID] {
		job, ok := s.jobs[r.JobID]
		if !ok || job.Status != domain.JobStatusOpen || applied[r.JobID] {
			continue
		}
		out = append(out, domain.RecommendedJob{Job: *job.Clone(), Score: r.Score, RecommendedAt: r.RecommendedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Events returns a copy of the recorded outbox events
func (s *Store) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Event(nil), s.events...)
}

// DeleteJob removes a job, its applications and its lock entry. A caller
// already blocked on the old lock finds the job gone and gets ErrNotFound.
func (s *Store) DeleteJob(jobID string) {
	s.mu.Lock()
	for _, id := range s.byJob[jobID] {
		delete(s.apps, id)
	}
	delete(s.byJob, jobID)
	delete(s.jobs, jobID)
	for workerID, recs := range s.recs {
		kept := recs[:0]
		for _, r := range recs {
			if r.JobID != jobID {
				kept = append(kept, r)
			}
		}
		s.recs[workerID] = kept
	}
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, jobID)
	s.locksMu.Unlock()
}

// InJobTx runs fn while holding the job's mutex
func (s *Store) InJobTx(ctx context.Context, jobID string, fn func(tx domain.JobTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	tx := &jobTx{store: s, job: job, hired: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	// a caller that gave up must not observe a half-applied change
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return tx.commit()
}

func (s *Store) jobLock(jobID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[jobID] = lock
	}
	return lock
}

type jobTx struct {
	store   *Store
	job     *domain.Job
	updated *domain.Job
	newApps []*domain.JobApplication
	hired   map[string]bool
	events  []domain.Event
}

func (t *jobTx) Job() *domain.Job {
	return t.job
}

// applications merges committed and staged applications of the locked job
func (t *jobTx) applications() []domain.JobApplication {
	t.store.mu.RLock()
	out := make([]domain.JobApplication, 0, len(t.store.byJob[t.job.ID])+len(t.newApps))
	for _, id := range t.store.byJob[t.job.ID] {
		out = append(out, *t.store.apps[id])
	}
	t.store.mu.RUnlock()

	for _, app := range t.newApps {
		out = append(out, *app)
	}
	for i := range out {
		if t.hired[out[i].ID] {
			out[i].IsHired = true
		}
	}
	return out
}

func (t *jobTx) FindApplication(ctx context.Context, workerID string) (*domain.JobApplication, error) {
	for _, app := range t.applications() {
		if app.WorkerID == workerID {
			return &app, nil
		}
	}
	return nil, fmt.Errorf("%w: application for worker %s", domain.ErrNotFound, workerID)
}

func (t *jobTx) CreateApplication(ctx context.Context, app *domain.JobApplication) error {
	if app.JobID != t.job.ID {
		return fmt.Errorf("application job %s does not match locked job %s", app.JobID, t.job.ID)
	}
	if _, err := t.FindApplication(ctx, app.WorkerID); err == nil {
		return fmt.Errorf("%w: already applied", domain.ErrConflict)
	}
	c := *app
	t.newApps = append(t.newApps, &c)
	return nil
}

func (t *jobTx) CountHired(ctx context.Context) (int, error) {
	n := 0
	for _, app := range t.applications() {
		if app.IsHired {
			n++
		}
	}
	return n, nil
}

func (t *jobTx) HiredWorkerIDs(ctx context.Context) ([]string, error) {
	apps := t.applications()
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].AppliedAt.Before(apps[j].AppliedAt)
	})
	ids := []string{}
	for _, app := range apps {
		if app.IsHired {
			ids = append(ids, app.WorkerID)
		}
	}
	return ids, nil
}

func (t *jobTx) MarkHired(ctx context.Context, applicationID string) error {
	for _, app := range t.applications() {
		if app.ID == applicationID {
			t.hired[applicationID] = true
			return nil
		}
	}
	return fmt.Errorf("%w: application %s", domain.ErrNotFound, applicationID)
}

func (t *jobTx) UpdateJob(ctx context.Context, job *domain.Job) error {
	if job.ID != t.job.ID {
		return fmt.Errorf("job %s does not match locked job %s", job.ID, t.job.ID)
	}
	t.updated = job.Clone()
	return nil
}

func (t *jobTx) AppendEvent(ctx context.Context, event *domain.Event) error {
	e := *event
	e.Payload = append([]byte(nil), event.Payload...)
	t.events = append(t.events, e)
	return nil
}

// commit applies the staged writes; the caller holds store.mu
func (t *jobTx) commit() error {
	s := t.store
	if _, ok := s.jobs[t.job.ID]; !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, t.job.ID)
	}

	for _, app := range t.newApps {
		s.apps[app.ID] = app
		s.byJob[app.JobID] = append(s.byJob[app.JobID], app.ID)
	}
	for id := range t.hired {
		if app, ok := s.apps[id]; ok {
			app.IsHired = true
		}
	}
	if t.updated != nil {
		s.jobs[t.job.ID] = t.updated
	}
	s.events = append(s.events, t.events...)
	return nil
}
