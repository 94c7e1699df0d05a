package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestDigestSendsWeeklySchedule(t *testing.T) {
	now := time.Date(2026, 9, 7, 6, 30, 0, 0, time.UTC)
	gameDay := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)

	source := &stubSource{accepted: []ScheduleEntry{
		entry(7, "Casey Brooks", "casey@example.com", gameDay, "Hawks", "Owls"),
		entry(8, "Jamie Fox", "jamie@example.com", gameDay, "Lions", "Bears"),
	}}
	mailer := &recordMailer{}

	job := NewScheduleDigestJob(source, mailer, testLogger(), nil)
	job.WithClock(fixedClock(now))

	task, err := NewScheduleDigestTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	messages := mailer.sent()
	require.Len(t, messages, 2)
	require.Equal(t, "Your officiating schedule for the week", messages[0].Subject)
	require.Contains(t, messages[0].Body, "Hi Casey Brooks")
	require.Contains(t, messages[0].Body, "next 7 days")
	require.Contains(t, messages[0].Body, "Wed Sep 9 18:00: Hawks vs Owls")

	from := now.Truncate(24 * time.Hour)
	require.Equal(t, from, source.lastFrom)
	require.Equal(t, from.AddDate(0, 0, 7), source.lastTo)
}

func TestDigestMalformedPayload(t *testing.T) {
	job := NewScheduleDigestJob(&stubSource{}, &recordMailer{}, testLogger(), nil)

	task := asynq.NewTask(TaskScheduleDigest, []byte("not-json"))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestDigestSkipsOfficialsWithoutEmail(t *testing.T) {
	gameDay := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	source := &stubSource{accepted: []ScheduleEntry{
		entry(9, "Riley Poe", "", gameDay, "Hawks", "Owls"),
	}}
	mailer := &recordMailer{}

	job := NewScheduleDigestJob(source, mailer, testLogger(), nil)

	task, err := NewScheduleDigestTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, mailer.sent())
}
