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

// AuditPurger removes audit rows older than the cutoff.
type AuditPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeyCleaner removes idempotency keys older than the given age.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// AuditRetentionJob enforces the audit and idempotency retention windows.
type AuditRetentionJob struct {
	Audit   AuditPurger
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(audit AuditPurger, keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Audit:   audit,
		Keys:    keys,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes retention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil || j.Keys == nil {
		return errors.New("audit retention: dependencies not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.AuditDays <= 0 {
		payload.AuditDays = 90
	}
	if payload.KeyHours <= 0 {
		payload.KeyHours = 48
	}

	tracker := j.metrics().Track(TaskAuditRetention)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int("audit_days", payload.AuditDays),
		slog.Int("key_hours", payload.KeyHours),
	)
	logger.Info("starting retention purge")

	start := j.now()
	cutoff := start.AddDate(0, 0, -payload.AuditDays)
	purged, err := j.Audit.Purge(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("purge audit rows", slog.Any("error", err))
		return resultErr
	}
	if err := j.Keys.Cleanup(ctx, time.Duration(payload.KeyHours)*time.Hour); err != nil {
		resultErr = err
		logger.Error("cleanup idempotency keys", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskAuditRetention, int(purged))

	logger.Info("completed retention purge",
		slog.Int64("audit_rows", purged),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetention))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetention))
}

func (j *AuditRetentionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *AuditRetentionJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
