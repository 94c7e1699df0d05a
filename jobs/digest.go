package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/refdesk/refdesk/internal/jobs"
)

// ScheduleDigestJob emails every active official their accepted games
// for the coming days. Scheduled weekly, Monday mornings.
type ScheduleDigestJob struct {
	Source  ScheduleSource
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewScheduleDigestJob wires dependencies for the digest handler.
func NewScheduleDigestJob(source ScheduleSource, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ScheduleDigestJob {
	return &ScheduleDigestJob{
		Source:  source,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes digest tasks.
func (j *ScheduleDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Mailer == nil {
		return errors.New("schedule digest: dependencies not configured")
	}
	var payload ScheduleDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 7
	}

	tracker := j.metrics().Track(TaskScheduleDigest)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("days", payload.Days))
	logger.Info("starting schedule digest")

	start := j.now()
	from := start.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, payload.Days)

	entries, err := j.Source.UpcomingAccepted(ctx, from, to)
	if err != nil {
		resultErr = err
		logger.Error("load upcoming schedule", slog.Any("error", err))
		return resultErr
	}
	if len(entries) == 0 {
		logger.Info("no accepted games inside window")
		return resultErr
	}

	sent := 0
	skipped := 0
	for _, batch := range groupByOfficial(entries) {
		if batch.Email == "" {
			skipped++
			logger.Warn("official has no email on file", slog.Int64("official_id", batch.OfficialID))
			continue
		}
		if err := j.Mailer.Send(ctx, digestMessage(batch, payload.Days)); err != nil {
			resultErr = err
			logger.Error("send digest", slog.Int64("official_id", batch.OfficialID), slog.Any("error", err))
			return resultErr
		}
		sent++
	}
	j.metrics().AddItems(TaskScheduleDigest, sent)

	logger.Info("completed schedule digest",
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func digestMessage(batch officialBatch, days int) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", batch.Official)
	fmt.Fprintf(&body, "Your schedule for the next %d days:\n\n", days)
	for _, e := range batch.Entries {
		fmt.Fprintf(&body, "  - %s\n", formatEntry(e))
	}
	body.WriteString("\nSee RefDesk for full game details.\n")
	return Message{
		To:      batch.Email,
		Subject: "Your officiating schedule for the week",
		Body:    body.String(),
	}
}

func (j *ScheduleDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskScheduleDigest))
	}
	return slog.Default().With(slog.String("job", TaskScheduleDigest))
}

func (j *ScheduleDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ScheduleDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *ScheduleDigestJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
