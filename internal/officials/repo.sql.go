package officials

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/platform/db"
	"github.com/refdesk/refdesk/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// The sport columns were added to users after the fact and stay nullable;
// reads collapse them here.
const officialSelect = `
SELECT u.id, u.username, u.full_name, u.email, u.phone, u.is_active,
       COALESCE(u.certifications, '') AS certifications,
       COALESCE(u.sports, '') AS sports,
       COALESCE(u.experience_years, 0) AS experience_years,
       COALESCE(u.availability_notes, '') AS availability_notes,
       u.last_login, u.created_at,
       COALESCE(array_agg(lm.league_id) FILTER (WHERE lm.id IS NOT NULL), '{}') AS league_ids
FROM users u
LEFT JOIN league_memberships lm ON lm.user_id = u.id AND lm.is_active
WHERE u.role = 'official'`

// List returns every official ordered by name.
func (r *Repository) List(ctx context.Context) ([]Official, error) {
	rows, err := r.pool.Query(ctx, officialSelect+`
GROUP BY u.id
ORDER BY u.full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOfficials(rows)
}

// ListByLeagues returns officials holding an active membership in any of
// the given leagues, ordered by name.
func (r *Repository) ListByLeagues(ctx context.Context, leagueIDs []int64) ([]Official, error) {
	if len(leagueIDs) == 0 {
		return []Official{}, nil
	}
	rows, err := r.pool.Query(ctx, officialSelect+`
AND EXISTS (
	SELECT 1 FROM league_memberships m
	WHERE m.user_id = u.id AND m.is_active AND m.league_id = ANY($1)
)
GROUP BY u.id
ORDER BY u.full_name`, leagueIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOfficials(rows)
}

// FindByID fetches one official.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Official, error) {
	rows, err := r.pool.Query(ctx, officialSelect+`
AND u.id = $1
GROUP BY u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := collectOfficials(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

// Detail fetches one official with assignment totals and the ten most
// recent assignments.
func (r *Repository) Detail(ctx context.Context, id int64) (*Detail, error) {
	official, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &Detail{Official: *official, RecentAssignments: []RecentAssignment{}}

	var lastDate pgtype.Date
	err = r.pool.QueryRow(ctx, `
SELECT COUNT(a.id), MAX(g.game_date)
FROM assignments a
JOIN games g ON g.id = a.game_id
WHERE a.official_id = $1`, id).Scan(&detail.TotalAssignments, &lastDate)
	if err != nil {
		return nil, err
	}
	if lastDate.Valid {
		t := lastDate.Time
		detail.LastAssignmentDate = &t
	}

	rows, err := r.pool.Query(ctx, `
SELECT g.game_date, g.game_time, g.home_team, g.away_team, g.sport, a.position, a.status
FROM assignments a
JOIN games g ON g.id = a.game_id
WHERE a.official_id = $1
ORDER BY g.game_date DESC, g.game_time DESC
LIMIT 10`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ra RecentAssignment
		if err := rows.Scan(&ra.GameDate, &ra.GameTime, &ra.HomeTeam, &ra.AwayTeam, &ra.Sport, &ra.Position, &ra.Status); err != nil {
			return nil, err
		}
		detail.RecentAssignments = append(detail.RecentAssignments, ra)
	}
	return detail, rows.Err()
}

// UsernameExists reports whether any account holds the username.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// Insert stores a new official account and returns its id.
func (r *Repository) Insert(ctx context.Context, in CreateInput, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (username, password_hash, full_name, email, phone, role, is_active,
                   certifications, sports, experience_years, availability_notes, created_at)
VALUES ($1, $2, $3, $4, $5, 'official', TRUE, $6, $7, $8, $9, NOW())
RETURNING id`,
		in.Username, passwordHash, in.FullName,
		optionalText(in.Email), optionalText(in.Phone),
		optionalText(in.Certifications), optionalText(in.Sports),
		in.ExperienceYears, optionalText(in.AvailabilityNotes),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return id, nil
}

// Update rewrites an official's management fields.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET full_name = $2, email = $3, phone = $4,
    certifications = $5, sports = $6, experience_years = $7, availability_notes = $8
WHERE id = $1 AND role = 'official'`,
		id, in.FullName, optionalText(in.Email), optionalText(in.Phone),
		optionalText(in.Certifications), optionalText(in.Sports),
		in.ExperienceYears, optionalText(in.AvailabilityNotes))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ProfileByID fetches the self-service profile view of an account.
func (r *Repository) ProfileByID(ctx context.Context, userID int64) (*Profile, error) {
	var (
		p         Profile
		email     pgtype.Text
		phone     pgtype.Text
		address   pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, username, full_name, email, phone, address, is_active, last_login, created_at
FROM users
WHERE id = $1`, userID).Scan(&p.ID, &p.Username, &p.FullName, &email, &phone, &address, &p.IsActive, &lastLogin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	p.Email = email.String
	p.Phone = phone.String
	p.Address = address.String
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLogin = &t
	}
	return &p, nil
}

// UpdateProfile rewrites an account's own contact fields.
func (r *Repository) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET full_name = $2, email = $3, phone = $4, address = $5
WHERE id = $1`,
		userID, in.FullName, optionalText(in.Email), optionalText(in.Phone), optionalText(in.Address))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GamesFor returns the official's schedule rows, newest first.
func (r *Repository) GamesFor(ctx context.Context, officialID int64) ([]MyGame, error) {
	rows, err := r.pool.Query(ctx, `
SELECT g.id, g.game_date, g.game_time, g.home_team, g.away_team, g.location, g.sport,
       COALESCE(l.name, '') AS league_name, g.level, g.notes, a.position, a.status
FROM assignments a
JOIN games g ON g.id = a.game_id
LEFT JOIN leagues l ON l.id = g.league_id
WHERE a.official_id = $1
ORDER BY g.game_date DESC, g.game_time DESC`, officialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	games := []MyGame{}
	for rows.Next() {
		var (
			g     MyGame
			notes pgtype.Text
		)
		if err := rows.Scan(&g.GameID, &g.GameDate, &g.GameTime, &g.HomeTeam, &g.AwayTeam,
			&g.Location, &g.Sport, &g.LeagueName, &g.Level, &notes, &g.Position, &g.Status); err != nil {
			return nil, err
		}
		g.Notes = notes.String
		games = append(games, g)
	}
	return games, rows.Err()
}

// StatsFor counts the official's assignments by schedule bucket in one
// pass.
func (r *Repository) StatsFor(ctx context.Context, officialID int64) (*MyStats, error) {
	var st MyStats
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE g.game_date >= CURRENT_DATE),
       COUNT(*) FILTER (WHERE g.game_date < CURRENT_DATE),
       COUNT(*) FILTER (WHERE date_trunc('month', g.game_date) = date_trunc('month', CURRENT_DATE))
FROM assignments a
JOIN games g ON g.id = a.game_id
WHERE a.official_id = $1`, officialID).Scan(&st.Total, &st.Upcoming, &st.Completed, &st.ThisMonth)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// OwnAssignment finds the official's assignment on the game.
func (r *Repository) OwnAssignment(ctx context.Context, officialID, gameID int64) (*OwnAssignment, error) {
	var own OwnAssignment
	err := r.pool.QueryRow(ctx, `
SELECT id, status FROM assignments WHERE official_id = $1 AND game_id = $2`,
		officialID, gameID).Scan(&own.ID, &own.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &own, nil
}

// SaveResponse stores the response row and moves the assignment status in
// one transaction. A repeat response replaces the previous one.
func (r *Repository) SaveResponse(ctx context.Context, assignmentID, officialID int64, response, status, notes string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO assignment_responses (assignment_id, official_id, response, notes, responded_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (assignment_id, official_id)
DO UPDATE SET response = EXCLUDED.response, notes = EXCLUDED.notes, responded_at = NOW()`,
			assignmentID, officialID, response, optionalText(notes))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE assignments SET status = $2 WHERE id = $1`, assignmentID, status)
		return err
	})
}

const availabilitySelect = `
SELECT id, official_id, date, availability_type,
       COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(reason, ''), created_at
FROM official_availability`

// ListAvailability returns the official's availability records in
// calendar order.
func (r *Repository) ListAvailability(ctx context.Context, officialID int64) ([]Availability, error) {
	rows, err := r.pool.Query(ctx, availabilitySelect+`
WHERE official_id = $1
ORDER BY date, start_time`, officialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Availability{}
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *a)
	}
	return records, rows.Err()
}

// FindAvailability fetches one availability record.
func (r *Repository) FindAvailability(ctx context.Context, id int64) (*Availability, error) {
	rows, err := r.pool.Query(ctx, availabilitySelect+`
WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, shared.ErrNotFound
	}
	return scanAvailability(rows)
}

// InsertAvailability stores a new availability record and returns its id.
// Whole-day records keep empty window strings so the uniqueness constraint
// still catches repeats.
func (r *Repository) InsertAvailability(ctx context.Context, officialID int64, in AvailabilityInput) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO official_availability (official_id, date, availability_type, start_time, end_time, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id`,
		officialID, in.Date, in.Type,
		in.StartTime, in.EndTime, optionalText(in.Reason),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrAvailabilityExists
		}
		return 0, err
	}
	return id, nil
}

// DeleteAvailability removes an availability record.
func (r *Repository) DeleteAvailability(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM official_availability WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const rankingSelect = `
SELECT r.official_id, r.league_id, COALESCE(l.name, '') AS league_name,
       r.ranking, COALESCE(r.notes, ''), r.assigned_by, r.assigned_at
FROM official_rankings r
LEFT JOIN leagues l ON l.id = r.league_id`

// ListRankings returns every per-league ranking held by the official.
func (r *Repository) ListRankings(ctx context.Context, officialID int64) ([]Ranking, error) {
	rows, err := r.pool.Query(ctx, rankingSelect+`
WHERE r.official_id = $1
ORDER BY r.league_id`, officialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rankings := []Ranking{}
	for rows.Next() {
		var rk Ranking
		if err := rows.Scan(&rk.OfficialID, &rk.LeagueID, &rk.LeagueName, &rk.Ranking, &rk.Notes, &rk.AssignedBy, &rk.AssignedAt); err != nil {
			return nil, err
		}
		rankings = append(rankings, rk)
	}
	return rankings, rows.Err()
}

// UpsertRanking writes the official's ranking for one league, replacing
// any previous value.
func (r *Repository) UpsertRanking(ctx context.Context, officialID, leagueID int64, ranking int, notes string, assignedBy int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO official_rankings (official_id, league_id, ranking, assigned_by, assigned_at, notes)
VALUES ($1, $2, $3, $4, NOW(), $5)
ON CONFLICT (official_id, league_id)
DO UPDATE SET ranking = EXCLUDED.ranking, notes = EXCLUDED.notes,
              assigned_by = EXCLUDED.assigned_by, assigned_at = NOW()`,
		officialID, leagueID, ranking, assignedBy, optionalText(notes))
	return err
}

// RankingFor fetches the official's ranking in one league.
func (r *Repository) RankingFor(ctx context.Context, officialID, leagueID int64) (*Ranking, error) {
	var rk Ranking
	err := r.pool.QueryRow(ctx, rankingSelect+`
WHERE r.official_id = $1 AND r.league_id = $2`, officialID, leagueID).
		Scan(&rk.OfficialID, &rk.LeagueID, &rk.LeagueName, &rk.Ranking, &rk.Notes, &rk.AssignedBy, &rk.AssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rk, nil
}

func collectOfficials(rows pgx.Rows) ([]Official, error) {
	officials := []Official{}
	for rows.Next() {
		var (
			o         Official
			email     pgtype.Text
			phone     pgtype.Text
			lastLogin pgtype.Timestamptz
			leagueIDs []int64
		)
		if err := rows.Scan(&o.ID, &o.Username, &o.FullName, &email, &phone, &o.IsActive,
			&o.Certifications, &o.Sports, &o.ExperienceYears, &o.AvailabilityNotes,
			&lastLogin, &o.CreatedAt, &leagueIDs); err != nil {
			return nil, err
		}
		o.Email = email.String
		o.Phone = phone.String
		if lastLogin.Valid {
			t := lastLogin.Time
			o.LastLogin = &t
		}
		o.LeagueIDs = leagueIDs
		officials = append(officials, o)
	}
	return officials, rows.Err()
}

func scanAvailability(rows pgx.Rows) (*Availability, error) {
	var a Availability
	if err := rows.Scan(&a.ID, &a.OfficialID, &a.Date, &a.Type,
		&a.StartTime, &a.EndTime, &a.Reason, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func optionalText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
