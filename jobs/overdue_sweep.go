package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hillstead/hillstead/internal/reporting"
)

// OverdueSweeper marks past-due open installments OVERDUE as of a cutoff.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// SweepJob runs the nightly OVERDUE transition and invalidates the
// dashboard snapshot afterwards so read paths pick up the new statuses.
type SweepJob struct {
	sweeper OverdueSweeper
	cache   *reporting.Cache
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewSweepJob constructs a SweepJob.
func NewSweepJob(sweeper OverdueSweeper, cache *reporting.Cache, logger *slog.Logger) *SweepJob {
	return &SweepJob{sweeper: sweeper, cache: cache, logger: logger, nowFn: time.Now}
}

// Handle processes TaskLedgerOverdueSweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.ScheduledFor
	if asOf.IsZero() {
		asOf = j.nowFn()
	}
	swept, err := j.sweeper.SweepOverdue(ctx, asOf)
	if err != nil {
		j.logger.Error("overdue sweep failed", slog.Any("error", err))
		return err
	}
	if swept > 0 {
		if err := j.cache.InvalidateDashboard(ctx, asOf); err != nil {
			j.logger.Warn("dashboard invalidation after sweep", slog.Any("error", err))
		}
	}
	j.logger.Info("overdue sweep completed",
		slog.Int64("swept", swept),
		slog.Time("as_of", asOf))
	return nil
}
