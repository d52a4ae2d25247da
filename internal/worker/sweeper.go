package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer cancels open jobs whose expiry has passed
type Expirer interface {
	ExpireJobs(ctx context.Context, now time.Time) (int, error)
}

// Recommender rebuilds the stored job recommendations of every worker
type Recommender interface {
	RecommendJobs(ctx context.Context, now time.Time) (int, error)
}

// SweeperConfig holds expiry sweep configuration. Recommender is optional and
// runs on RecommendSchedule.
type SweeperConfig struct {
	Logger            *slog.Logger
	Expirer           Expirer
	Schedule          string
	RunOnStart        bool
	Timeout           time.Duration
	Now               func() time.Time
	Recommender       Recommender
	RecommendSchedule string
}

// Sweeper runs the expiry sweep and the recommendation rebuild on cron
// schedules. A run that is still going when the next one is due causes that
// tick to be skipped.
type Sweeper struct {
	logger            *slog.Logger
	expirer           Expirer
	schedule          string
	runOnStart        bool
	timeout           time.Duration
	now               func() time.Time
	recommender       Recommender
	recommendSchedule string
}

func NewSweeper(cfg *SweeperConfig) (*Sweeper, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Recommender != nil {
		if _, err := cron.ParseStandard(cfg.RecommendSchedule); err != nil {
			return nil, fmt.Errorf("invalid recommend schedule %q: %w", cfg.RecommendSchedule, err)
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Sweeper{
		logger:            cfg.Logger,
		expirer:           cfg.Expirer,
		schedule:          cfg.Schedule,
		runOnStart:        cfg.RunOnStart,
		timeout:           timeout,
		now:               now,
		recommender:       cfg.Recommender,
		recommendSchedule: cfg.RecommendSchedule,
	}, nil
}

// Run schedules the sweep and blocks until ctx is canceled and the running sweep returns
func (s *Sweeper) Run(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	if s.recommender != nil {
		if _, err := c.AddFunc(s.recommendSchedule, func() { s.Recommend(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule recommendations: %w", err)
		}
	}

	s.logger.Info("Expiry sweeper started",
		slog.String("schedule", s.schedule),
		slog.String("recommend_schedule", s.recommendSchedule),
	)
	c.Start()

	if s.runOnStart {
		s.Sweep(ctx)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Expiry sweeper stopped")
	return nil
}

// Sweep runs one expiry pass
func (s *Sweeper) Sweep(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.expirer.ExpireJobs(sweepCtx, s.now().UTC())
	if err != nil {
		s.logger.Error("Expiry sweep failed",
			slog.Int("expired", n),
			slog.String("error", err.Error()),
		)
		return n
	}

	s.logger.Info("Expiry sweep finished",
		slog.Int("expired", n),
		slog.Duration("took", time.Since(start)),
	)
	return n
}

// Recommend runs one recommendation rebuild
func (s *Sweeper) Recommend(ctx context.Context) int {
	if s.recommender == nil || ctx.Err() != nil {
		return 0
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.recommender.RecommendJobs(runCtx, s.now().UTC())
	if err != nil {
		s.logger.Error("Recommendation rebuild failed",
			slog.Int("recommendations", n),
			slog.String("error", err.Error()),
		)
		return n
	}

	s.logger.Info("Recommendation rebuild finished",
		slog.Int("recommendations", n),
		slog.Duration("took", time.Since(start)),
	)
	return n
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
