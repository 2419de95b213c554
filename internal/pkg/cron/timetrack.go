package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

type TimeTrackJobs struct {
	timeTrackService timetrack.Service
	interval         time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

func NewTimeTrackJobs(timeTrackService timetrack.Service, interval time.Duration, logger *slog.Logger) *TimeTrackJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeTrackJobs{
		timeTrackService: timeTrackService,
		interval:         interval,
		now:              time.Now,
		logger:           logger,
	}
}

func (j *TimeTrackJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("finalize_stale_days", j.interval, j.FinalizeStaleDays)
}

// FinalizeStaleDays closes open days from before today whose shift ended long
// enough ago.
func (j *TimeTrackJobs) FinalizeStaleDays(ctx context.Context) error {
	j.logger.Info("Cron: Starting finalize stale days job")

	finalized, err := j.timeTrackService.FinalizeStaleDays(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to finalize stale days: %w", err)
	}

	j.logger.Info("Cron: Finalize stale days job completed", "finalized", finalized)
	return nil
}
