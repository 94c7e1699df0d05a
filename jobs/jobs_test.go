package jobs

import (
	"context"
	"sync"
	"time"
)

type stubSource struct {
	mu       sync.Mutex
	pending  []ScheduleEntry
	accepted []ScheduleEntry
	err      error
	lastFrom time.Time
	lastTo   time.Time
}

func (s *stubSource) PendingAssignments(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrom, s.lastTo = from, to
	if s.err != nil {
		return nil, s.err
	}
	return s.pending, nil
}

func (s *stubSource) UpcomingAccepted(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrom, s.lastTo = from, to
	if s.err != nil {
		return nil, s.err
	}
	return s.accepted, nil
}

type recordMailer struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (m *recordMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordMailer) sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func entry(officialID int64, official, email string, date time.Time, home, away string) ScheduleEntry {
	return ScheduleEntry{
		OfficialID: officialID,
		Official:   official,
		Email:      email,
		GameDate:   date,
		GameTime:   "18:00",
		HomeTeam:   home,
		AwayTeam:   away,
		Location:   "Central Park",
		Position:   "referee",
	}
}
