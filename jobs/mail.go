package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a plain-text email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. The mail jobs depend on this interface so
// tests can capture outgoing mail instead of speaking SMTP.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a plain SMTP relay. With DryRun set the
// message is logged and dropped, which is how the test and development
// environments run.
type SMTPMailer struct {
	Host   string
	Port   int
	From   string
	Logger *slog.Logger
	DryRun bool
}

// Send delivers a single message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return fmt.Errorf("mailer: not configured")
	}
	if m.DryRun {
		m.log().Info("email suppressed",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
		return nil
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	data := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, msg.To, msg.Subject, msg.Body)
	return smtp.SendMail(addr, nil, m.From, []string{msg.To}, []byte(data))
}

func (m *SMTPMailer) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// ScheduleEntry is one game row destined for an official's inbox.
type ScheduleEntry struct {
	OfficialID int64
	Official   string
	Email      string
	GameDate   time.Time
	GameTime   string
	HomeTeam   string
	AwayTeam   string
	Location   string
	Position   string
}

// ScheduleSource loads the assignment rows the mail jobs work from.
type ScheduleSource interface {
	PendingAssignments(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error)
	UpcomingAccepted(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error)
}

// MailSource is the Postgres-backed ScheduleSource.
type MailSource struct {
	pool *pgxpool.Pool
}

// NewMailSource constructs the source on top of a pgx pool.
func NewMailSource(pool *pgxpool.Pool) *MailSource {
	return &MailSource{pool: pool}
}

const scheduleSelect = `
SELECT u.id, u.full_name, COALESCE(u.email, ''), g.game_date, g.game_time,
       g.home_team, g.away_team, COALESCE(g.location, ''), a.position
FROM assignments a
JOIN users u ON u.id = a.official_id
JOIN games g ON g.id = a.game_id
WHERE u.is_active AND g.game_date >= $1 AND g.game_date < $2`

const scheduleTail = ` ORDER BY u.full_name ASC, g.game_date ASC, g.game_time ASC`

// PendingAssignments returns unanswered assignments for games inside the
// window, ordered so rows for the same official arrive together.
func (s *MailSource) PendingAssignments(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error) {
	return s.window(ctx, "pending", from, to)
}

// UpcomingAccepted returns confirmed assignments inside the window.
func (s *MailSource) UpcomingAccepted(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error) {
	return s.window(ctx, "accepted", from, to)
}

func (s *MailSource) window(ctx context.Context, status string, from, to time.Time) ([]ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, scheduleSelect+` AND a.status = $3`+scheduleTail, from, to, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]ScheduleEntry, 0)
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.OfficialID, &e.Official, &e.Email, &e.GameDate, &e.GameTime,
			&e.HomeTeam, &e.AwayTeam, &e.Location, &e.Position); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// officialBatch bundles one official's entries for a single email.
type officialBatch struct {
	OfficialID int64
	Official   string
	Email      string
	Entries    []ScheduleEntry
}

// groupByOfficial splits the flat entry list into per-official batches,
// preserving the order officials first appear in.
func groupByOfficial(entries []ScheduleEntry) []officialBatch {
	batches := make([]officialBatch, 0)
	index := make(map[int64]int)
	for _, e := range entries {
		i, ok := index[e.OfficialID]
		if !ok {
			i = len(batches)
			index[e.OfficialID] = i
			batches = append(batches, officialBatch{OfficialID: e.OfficialID, Official: e.Official, Email: e.Email})
		}
		batches[i].Entries = append(batches[i].Entries, e)
	}
	return batches
}

// formatEntry renders one game line for an email body.
func formatEntry(e ScheduleEntry) string {
	line := fmt.Sprintf("%s %s: %s vs %s", e.GameDate.Format("Mon Jan 2"), e.GameTime, e.HomeTeam, e.AwayTeam)
	if e.Location != "" {
		line += " at " + e.Location
	}
	if e.Position != "" {
		line += " (" + e.Position + ")"
	}
	return line
}
