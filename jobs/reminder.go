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

// AssignmentReminderJob emails officials who have not yet responded to
// assignments for games inside the look-ahead window.
type AssignmentReminderJob struct {
	Source  ScheduleSource
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAssignmentReminderJob wires dependencies for the reminder handler.
func NewAssignmentReminderJob(source ScheduleSource, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssignmentReminderJob {
	return &AssignmentReminderJob{
		Source:  source,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes reminder tasks.
func (j *AssignmentReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Mailer == nil {
		return errors.New("assignment reminder: dependencies not configured")
	}
	var payload AssignmentReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 48
	}

	tracker := j.metrics().Track(TaskAssignmentReminder)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_hours", payload.WindowHours))
	logger.Info("starting assignment reminders")

	start := j.now()
	from := start.Truncate(24 * time.Hour)
	to := start.Add(time.Duration(payload.WindowHours) * time.Hour)

	entries, err := j.Source.PendingAssignments(ctx, from, to)
	if err != nil {
		resultErr = err
		logger.Error("load pending assignments", slog.Any("error", err))
		return resultErr
	}
	if len(entries) == 0 {
		logger.Info("no pending assignments inside window")
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
		if err := j.Mailer.Send(ctx, reminderMessage(batch)); err != nil {
			resultErr = err
			logger.Error("send reminder", slog.Int64("official_id", batch.OfficialID), slog.Any("error", err))
			return resultErr
		}
		sent++
	}
	j.metrics().AddItems(TaskAssignmentReminder, sent)

	logger.Info("completed assignment reminders",
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func reminderMessage(batch officialBatch) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", batch.Official)
	fmt.Fprintf(&body, "You have %d assignment(s) waiting for a response:\n\n", len(batch.Entries))
	for _, e := range batch.Entries {
		fmt.Fprintf(&body, "  - %s\n", formatEntry(e))
	}
	body.WriteString("\nPlease accept or decline them in RefDesk.\n")
	return Message{
		To:      batch.Email,
		Subject: fmt.Sprintf("Reminder: %d assignment(s) need your response", len(batch.Entries)),
		Body:    body.String(),
	}
}

func (j *AssignmentReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAssignmentReminder))
	}
	return slog.Default().With(slog.String("job", TaskAssignmentReminder))
}

func (j *AssignmentReminderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AssignmentReminderJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *AssignmentReminderJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
