package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Scheduler runs nightly housekeeping: dead reset tokens, expired sessions
// and month-old completed tickets are deleted rather than filtered forever.
type Scheduler struct {
	scheduler gocron.Scheduler
	pool      *pgxpool.Pool
	logger    *zap.Logger
}

func Start(pool *pgxpool.Pool, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	jobs := &Scheduler{scheduler: s, pool: pool, logger: logger}

	_, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(jobs.runHousekeeping),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	logger.Info("housekeeping scheduler started", zap.String("at", "03:00"))
	return jobs, nil
}

func (j *Scheduler) Stop() {
	_ = j.scheduler.Shutdown()
}

func (j *Scheduler) runHousekeeping() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tag, err := j.pool.Exec(ctx, `delete from password_reset_tokens where used_at is not null or expires_at < now()`)
	if err != nil {
		j.logger.Error("reset token purge failed", zap.Error(err))
	} else if tag.RowsAffected() > 0 {
		j.logger.Info("purged reset tokens", zap.Int64("count", tag.RowsAffected()))
	}

	tag, err = j.pool.Exec(ctx, `delete from user_sessions where expires_at < now() - interval '7 days'`)
	if err != nil {
		j.logger.Error("session purge failed", zap.Error(err))
	} else if tag.RowsAffected() > 0 {
		j.logger.Info("purged stale sessions", zap.Int64("count", tag.RowsAffected()))
	}

	// Completed tickets carry no history the orders table does not already
	// hold; keep a month for the kitchen report screens, then drop them.
	tag, err = j.pool.Exec(ctx, `delete from kitchen_tickets where status = 'COMPLETED' and completed_at < now() - interval '30 days'`)
	if err != nil {
		j.logger.Error("ticket archive failed", zap.Error(err))
	} else if tag.RowsAffected() > 0 {
		j.logger.Info("archived completed tickets", zap.Int64("count", tag.RowsAffected()))
	}
}
