package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/refdesk/refdesk/internal/jobs"
)

// DashboardWarmer rebuilds the cached dashboard aggregates.
type DashboardWarmer interface {
	Warm(ctx context.Context) (int, error)
}

// StatsWarmupJob precomputes dashboard aggregates into the Redis cache
// so the common scopes never pay the cold-load cost.
type StatsWarmupJob struct {
	Warmer  DashboardWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(warmer DashboardWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{
		Warmer:  warmer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("stats warmup: dependencies not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting stats warmup")

	start := j.now()
	warmed, err := j.Warmer.Warm(ctx)
	if err != nil {
		resultErr = err
		logger.Error("warm dashboards", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskStatsWarmup, warmed)

	logger.Info("completed stats warmup",
		slog.Int("scopes", warmed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatsWarmup))
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
