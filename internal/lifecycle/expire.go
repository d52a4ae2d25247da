package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
)

// ExpireJob cancels one open job whose expiry is before now
func (m *Manager) ExpireJob(ctx context.Context, jobID string, now time.Time) error {
	return m.repo.InJobTx(ctx, jobID, func(tx domain.JobTx) error {
		job := tx.Job()
		if job.Status != domain.JobStatusOpen {
			return fmt.Errorf("%w: job is %s", domain.ErrInvalidState, job.Status)
		}
		if !job.IsExpired(now) {
			return fmt.Errorf("%w: job has not expired", domain.ErrInvalidState)
		}
		job.Status = domain.JobStatusCancelled
		job.UpdatedAt = now.UTC()
		return tx.UpdateJob(ctx, job)
	})
}

// ExpireJobs cancels every open job whose expiry is before now and returns how
// many were cancelled. Jobs that fail to expire are logged and left out of the
// rest of the run, so later pages still reach the healthy jobs behind them. A
// job that changed state since it was listed is skipped silently, so the sweep
// can be re-run at any time.
func (m *Manager) ExpireJobs(ctx context.Context, now time.Time) (int, error) {
	total := 0
	var skip []string

	for {
		ids, err := m.repo.ListExpirableJobIDs(ctx, now, skip, m.expireBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list expirable jobs: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			err := m.ExpireJob(ctx, id, now)
			switch {
			case err == nil:
				total++
				continue
			case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrNotFound):
				m.logger.Debug("Job no longer expirable, skipping",
					slog.String("job_id", id),
					slog.String("reason", err.Error()),
				)
			default:
				m.logger.Warn("Failed to expire job, skipping",
					slog.String("job_id", id),
					slog.String("error", err.Error()),
				)
			}
			skip = append(skip, id)
		}

		// every listed id is now cancelled or skipped, so only a short page ends the run
		if len(ids) < m.expireBatchSize {
			break
		}
	}

	if total > 0 {
		m.logger.Info("Expired jobs cancelled",
			slog.Int("count", total),
			slog.Time("now", now),
		)
	}
	return total, nil
}
