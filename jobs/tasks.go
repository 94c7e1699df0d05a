package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/refdesk/refdesk/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskAssignmentReminder emails officials who still have pending
	// assignments for games coming up inside the reminder window.
	TaskAssignmentReminder = "mail:assignment_reminder"
	// TaskScheduleDigest emails every active official their accepted
	// games for the coming week.
	TaskScheduleDigest = "mail:schedule_digest"
	// TaskStatsWarmup precomputes the dashboard aggregates into Redis.
	TaskStatsWarmup = "stats:warmup"
	// TaskAuditRetention prunes expired audit rows and idempotency keys.
	TaskAuditRetention = "audit:retention"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AssignmentReminderPayload bounds the look-ahead window for reminders.
type AssignmentReminderPayload struct {
	WindowHours int `json:"window_hours"`
}

// NewAssignmentReminderTask builds the reminder task. Zero hours falls
// back to the 48 hour default inside the handler.
func NewAssignmentReminderTask(windowHours int) (*asynq.Task, error) {
	body, err := json.Marshal(AssignmentReminderPayload{WindowHours: windowHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentReminder, body, asynq.Queue(QueueDefault)), nil
}

// ScheduleDigestPayload bounds the digest window in days.
type ScheduleDigestPayload struct {
	Days int `json:"days"`
}

// NewScheduleDigestTask builds the weekly digest task.
func NewScheduleDigestTask(days int) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduleDigestPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScheduleDigest, body, asynq.Queue(QueueDefault)), nil
}

// StatsWarmupPayload is reserved for future warmup options.
type StatsWarmupPayload struct{}

// NewStatsWarmupTask builds the dashboard warmup task.
func NewStatsWarmupTask() (*asynq.Task, error) {
	body, err := json.Marshal(StatsWarmupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, body, asynq.Queue(QueueDefault)), nil
}

// AuditRetentionPayload configures how far back the purge reaches.
type AuditRetentionPayload struct {
	AuditDays int `json:"audit_days"`
	KeyHours  int `json:"key_hours"`
}

// NewAuditRetentionTask builds the retention task. Non-positive values
// fall back to the handler defaults (90 days, 48 hours).
func NewAuditRetentionTask(auditDays, keyHours int) (*asynq.Task, error) {
	body, err := json.Marshal(AuditRetentionPayload{AuditDays: auditDays, KeyHours: keyHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}
