package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
)

const (
	// DefaultRecommendLimit caps the recommendations kept per worker
	DefaultRecommendLimit = 20
	// recommendCandidateLimit bounds the jobs scored for one worker
	recommendCandidateLimit = 500
)

// RecommendJobs rebuilds the stored recommendations of every worker who has
// applied to a job and returns how many recommendations were written. A worker
// whose rebuild fails is logged and skipped.
func (m *Manager) RecommendJobs(ctx context.Context, now time.Time) (int, error) {
	workers, err := m.repo.ListWorkerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list workers: %w", err)
	}

	total, failed := 0, 0
	for _, workerID := range workers {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := m.RecommendJobsForWorker(ctx, workerID, now)
		if err != nil {
			failed++
			m.logger.Warn("Failed to recommend jobs, skipping worker",
				slog.String("worker_id", workerID),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}

	m.logger.Info("Job recommendations rebuilt",
		slog.Int("workers", len(workers)),
		slog.Int("failed", failed),
		slog.Int("recommendations", total),
	)
	return total, nil
}

// RecommendJobsForWorker replaces one worker's recommendations with the open
// jobs that best match the skills and locations of the jobs they applied to
func (m *Manager) RecommendJobsForWorker(ctx context.Context, workerID string, now time.Time) (int, error) {
	apps, err := m.repo.ListApplicationsByWorker(ctx, workerID)
	if err != nil {
		return 0, err
	}

	applied := make([]domain.Job, 0, len(apps))
	for _, app := range apps {
		job, err := m.repo.GetJob(ctx, app.JobID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		applied = append(applied, *job)
	}

	profile := domain.BuildWorkerProfile(workerID, applied)
	var recs []domain.JobRecommendation
	if !profile.IsEmpty() {
		candidates, err := m.repo.ListCandidateJobs(ctx, domain.CandidateFilter{
			Skills:      profile.Skills,
			LocationIDs: profile.LocationIDs,
			Now:         now,
			Limit:       recommendCandidateLimit,
		})
		if err != nil {
			return 0, err
		}
		recs = profile.Recommend(candidates, now, m.recommendLimit)
	}

	if err := m.repo.ReplaceRecommendations(ctx, workerID, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// ListRecommendedJobs returns the caller's stored recommendations that are
// still open, unexpired and not yet applied to
func (m *Manager) ListRecommendedJobs(ctx context.Context, actor domain.Actor, limit int) ([]domain.RecommendedJob, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: unauthenticated actor", domain.ErrPermission)
	}
	if actor.Role != domain.RoleWorker {
		return nil, fmt.Errorf("%w: recommendations are for workers", domain.ErrPermission)
	}
	if limit <= 0 || limit > m.recommendLimit {
		limit = m.recommendLimit
	}

	recs, err := m.repo.ListRecommendedJobs(ctx, actor.ID, limit)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := recs[:0]
	for _, r := range recs {
		if !r.IsExpired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}
