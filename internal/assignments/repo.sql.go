package assignments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentSelect = `
SELECT a.id, a.game_id, a.official_id, COALESCE(u.full_name, ''), a.position, a.status, a.fee,
       a.assigned_by, a.assigned_at,
       g.league_id, g.game_date, g.game_time, g.home_team, g.away_team, g.sport, g.location
FROM assignments a
JOIN games g ON g.id = a.game_id
LEFT JOIN users u ON u.id = a.official_id`

const assignmentOrder = ` ORDER BY g.game_date DESC, g.game_time DESC`

// List returns assignments matching the filters, newest games first.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Assignment, error) {
	query := assignmentSelect + ` WHERE TRUE`
	query, args := appendFilters(query, nil, f)
	rows, err := r.pool.Query(ctx, query+assignmentOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// ListByLeagues returns assignments on games inside the given leagues.
func (r *Repository) ListByLeagues(ctx context.Context, leagueIDs []int64, f ListFilters) ([]Assignment, error) {
	if len(leagueIDs) == 0 {
		return []Assignment{}, nil
	}
	query := assignmentSelect + ` WHERE g.league_id = ANY($1)`
	query, args := appendFilters(query, []any{leagueIDs}, f)
	rows, err := r.pool.Query(ctx, query+assignmentOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// ListByOfficial returns one official's assignments.
func (r *Repository) ListByOfficial(ctx context.Context, officialID int64, f ListFilters) ([]Assignment, error) {
	query := assignmentSelect + ` WHERE a.official_id = $1`
	query, args := appendFilters(query, []any{officialID}, f)
	rows, err := r.pool.Query(ctx, query+assignmentOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func appendFilters(query string, args []any, f ListFilters) (string, []any) {
	n := len(args)
	if f.GameID != 0 {
		n++
		query += ` AND a.game_id = $` + strconv.Itoa(n)
		args = append(args, f.GameID)
	}
	if f.OfficialID != 0 {
		n++
		query += ` AND a.official_id = $` + strconv.Itoa(n)
		args = append(args, f.OfficialID)
	}
	if f.Status != "" {
		n++
		query += ` AND a.status = $` + strconv.Itoa(n)
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		n++
		query += ` AND g.game_date >= $` + strconv.Itoa(n)
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		n++
		query += ` AND g.game_date <= $` + strconv.Itoa(n)
		args = append(args, f.DateTo)
	}
	return query, args
}

// FindByID fetches one assignment with its game context.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Assignment, error) {
	row := r.pool.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`, id)
	assignment, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return assignment, nil
}

// GameByID loads the validation view of a game: schedule slot, crew size
// and the default fee. Declined assignments do not occupy crew slots.
func (r *Repository) GameByID(ctx context.Context, id int64) (*GameInfo, error) {
	var (
		info     GameInfo
		leagueID pgtype.Int8
		fee      pgtype.Float8
	)
	err := r.pool.QueryRow(ctx, `
SELECT g.id, g.league_id, g.game_date, g.game_time, g.status, g.officials_needed, g.assigned_fee,
       COUNT(a.id) FILTER (WHERE a.status <> 'declined')
FROM games g
LEFT JOIN assignments a ON a.game_id = g.id
WHERE g.id = $1
GROUP BY g.id`, id).Scan(&info.ID, &leagueID, &info.GameDate, &info.GameTime,
		&info.Status, &info.OfficialsNeeded, &fee, &info.AssignedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	info.LeagueID = leagueID.Int64
	if fee.Valid {
		value := fee.Float64
		info.AssignedFee = &value
	}
	return &info, nil
}

// OfficialActive reports whether the id belongs to a live official account.
func (r *Repository) OfficialActive(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = 'official' AND is_active)`, id).Scan(&exists)
	return exists, err
}

// Exists reports whether the official already holds an assignment on the
// game.
func (r *Repository) Exists(ctx context.Context, gameID, officialID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM assignments WHERE game_id = $1 AND official_id = $2)`,
		gameID, officialID).Scan(&exists)
	return exists, err
}

// HasTimeConflict reports whether the official is already booked in the
// same date and time slot on another live game. Declined assignments and
// cancelled games do not block.
func (r *Repository) HasTimeConflict(ctx context.Context, officialID int64, gameDate time.Time, gameTime string, excludeGameID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM assignments a
	JOIN games g ON g.id = a.game_id
	WHERE a.official_id = $1 AND g.game_date = $2 AND g.game_time = $3 AND g.id <> $4
	  AND a.status <> 'declined' AND g.status <> 'cancelled'
)`, officialID, gameDate, gameTime, excludeGameID).Scan(&exists)
	return exists, err
}

// Insert stores an assignment.
func (r *Repository) Insert(ctx context.Context, gameID, officialID int64, position string, fee float64, assignedBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO assignments (game_id, official_id, position, status, fee, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id`, gameID, officialID, position, StatusPending, fee, assignedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the provided fields only.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) error {
	set := ""
	args := []any{}
	add := func(column string, value any) {
		if set != "" {
			set += ", "
		}
		args = append(args, value)
		set += column + " = $" + strconv.Itoa(len(args))
	}
	if in.Position != nil {
		add("position", *in.Position)
	}
	if in.Status != nil {
		add("status", *in.Status)
	}
	if in.Fee != nil {
		add("fee", *in.Fee)
	}
	if set == "" {
		return ErrEmptyUpdate
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, `UPDATE assignments SET `+set+` WHERE id = $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an assignment.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClaimIdempotencyKey inserts the key; false means a previous submission
// already claimed it.
func (r *Repository) ClaimIdempotencyKey(ctx context.Context, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
INSERT INTO idempotency_keys (key, module, created_at)
VALUES ($1, 'assignments', NOW())
ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountByStatus groups assignment counts by status, optionally scoped to
// the given leagues.
func (r *Repository) CountByStatus(ctx context.Context, leagueIDs []int64) (map[string]int64, error) {
	return r.countBy(ctx, "a.status", leagueIDs)
}

// CountByPosition groups assignment counts by position, optionally scoped
// to the given leagues.
func (r *Repository) CountByPosition(ctx context.Context, leagueIDs []int64) (map[string]int64, error) {
	return r.countBy(ctx, "a.position", leagueIDs)
}

func (r *Repository) countBy(ctx context.Context, column string, leagueIDs []int64) (map[string]int64, error) {
	query := `
SELECT ` + column + `, COUNT(*)
FROM assignments a
JOIN games g ON g.id = a.game_id`
	args := []any{}
	if leagueIDs != nil {
		query += ` WHERE g.league_id = ANY($1)`
		args = append(args, leagueIDs)
	}
	rows, err := r.pool.Query(ctx, query+` GROUP BY `+column, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func collectAssignments(rows pgx.Rows) ([]Assignment, error) {
	assignments := []Assignment{}
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *assignment)
	}
	return assignments, rows.Err()
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var (
		a        Assignment
		leagueID pgtype.Int8
		location pgtype.Text
	)
	if err := row.Scan(&a.ID, &a.GameID, &a.OfficialID, &a.OfficialName, &a.Position, &a.Status, &a.Fee,
		&a.AssignedBy, &a.AssignedAt,
		&leagueID, &a.GameDate, &a.GameTime, &a.HomeTeam, &a.AwayTeam, &a.Sport, &location); err != nil {
		return nil, err
	}
	a.LeagueID = leagueID.Int64
	a.Location = location.String
	return &a, nil
}
