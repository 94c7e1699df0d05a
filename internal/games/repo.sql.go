package games

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/platform/db"
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

const gameSelect = `
SELECT g.id, g.league_id, COALESCE(l.name, ''), g.game_date, g.game_time,
       g.home_team, g.away_team, g.location, g.sport, g.level,
       g.officials_needed, g.status, g.link_group, g.assigned_fee,
       g.fee_override, g.notes, g.created_by, g.created_at,
       COALESCE(array_agg(a.official_id) FILTER (WHERE a.id IS NOT NULL), '{}') AS official_ids
FROM games g
LEFT JOIN leagues l ON l.id = g.league_id
LEFT JOIN assignments a ON a.game_id = g.id`

const gameTail = `
GROUP BY g.id, l.name
ORDER BY g.game_date DESC, g.game_time DESC`

// List returns all games, newest first.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Game, error) {
	query := gameSelect + ` WHERE TRUE`
	query, args := appendFilters(query, nil, f)
	rows, err := r.pool.Query(ctx, query+gameTail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGames(rows)
}

// ListByLeagues returns games scheduled inside the given leagues.
// Unleagued games never match, whatever the id set.
func (r *Repository) ListByLeagues(ctx context.Context, leagueIDs []int64, f ListFilters) ([]Game, error) {
	if len(leagueIDs) == 0 {
		return []Game{}, nil
	}
	query := gameSelect + ` WHERE g.league_id = ANY($1)`
	query, args := appendFilters(query, []any{leagueIDs}, f)
	rows, err := r.pool.Query(ctx, query+gameTail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGames(rows)
}

// ListByOfficial returns games the official holds an assignment on.
func (r *Repository) ListByOfficial(ctx context.Context, officialID int64, f ListFilters) ([]Game, error) {
	query := gameSelect + ` WHERE g.id IN (SELECT game_id FROM assignments WHERE official_id = $1)`
	query, args := appendFilters(query, []any{officialID}, f)
	rows, err := r.pool.Query(ctx, query+gameTail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGames(rows)
}

// ListByIDs fetches the given games, newest first.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]Game, error) {
	if len(ids) == 0 {
		return []Game{}, nil
	}
	rows, err := r.pool.Query(ctx, gameSelect+` WHERE g.id = ANY($1)`+gameTail, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGames(rows)
}

func appendFilters(query string, args []any, f ListFilters) (string, []any) {
	n := len(args)
	if f.Search != "" {
		n++
		p := "$" + strconv.Itoa(n)
		query += ` AND (g.home_team ILIKE ` + p + ` OR g.away_team ILIKE ` + p + ` OR g.location ILIKE ` + p + `)`
		args = append(args, "%"+f.Search+"%")
	}
	if f.Sport != "" {
		n++
		query += ` AND g.sport = $` + strconv.Itoa(n)
		args = append(args, f.Sport)
	}
	if f.Date != "" {
		n++
		query += ` AND g.game_date = $` + strconv.Itoa(n)
		args = append(args, f.Date)
	}
	if f.Status != "" {
		n++
		query += ` AND g.status = $` + strconv.Itoa(n)
		args = append(args, f.Status)
	}
	return query, args
}

// FindByID fetches one game with its crew.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Game, error) {
	row := r.pool.QueryRow(ctx, gameSelect+` WHERE g.id = $1
GROUP BY g.id, l.name`, id)
	game, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return game, nil
}

// LeagueExists reports whether an active league holds the id.
func (r *Repository) LeagueExists(ctx context.Context, leagueID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leagues WHERE id = $1 AND is_active)`, leagueID).Scan(&exists)
	return exists, err
}

// FeeForLeagueLevel resolves the scheduled fee for a league level; nil
// when the schedule has no matching row.
func (r *Repository) FeeForLeagueLevel(ctx context.Context, leagueID int64, level string) (*float64, error) {
	var fee float64
	err := r.pool.QueryRow(ctx, `
SELECT official_fee FROM league_fees
WHERE league_id = $1 AND lower(level_name) = lower($2) AND is_active`, leagueID, level).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

// Insert stores a game.
func (r *Repository) Insert(ctx context.Context, in CreateInput, fee *float64, feeOverride bool, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO games (league_id, game_date, game_time, home_team, away_team, location, sport, level,
                   officials_needed, status, assigned_fee, fee_override, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
RETURNING id`,
		nullableID(in.LeagueID), in.GameDate, in.GameTime, in.HomeTeam, in.AwayTeam,
		in.Location, in.Sport, in.Level, in.OfficialsNeeded, shared.GameStatusScheduled,
		nullableFee(fee), feeOverride, in.Notes, createdBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites game fields.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE games SET league_id = $1, game_date = $2, game_time = $3, home_team = $4, away_team = $5,
       location = $6, sport = $7, level = $8, officials_needed = $9, status = $10,
       link_group = $11, notes = $12
WHERE id = $13`,
		nullableID(in.LeagueID), in.GameDate, in.GameTime, in.HomeTeam, in.AwayTeam,
		in.Location, in.Sport, in.Level, in.OfficialsNeeded, in.Status,
		nullableText(in.LinkGroup), in.Notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteWithAssignments removes a game and its assignments together.
func (r *Repository) DeleteWithAssignments(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE game_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// SetLinkGroup writes the link group on every listed game; nil clears it.
func (r *Repository) SetLinkGroup(ctx context.Context, ids []int64, linkGroup *string) (int64, error) {
	group := pgtype.Text{}
	if linkGroup != nil {
		group = pgtype.Text{String: *linkGroup, Valid: true}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE games SET link_group = $1 WHERE id = ANY($2)`, group, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteManyWithAssignments removes the games and their assignments in
// one transaction and reports how many games went away.
func (r *Repository) DeleteManyWithAssignments(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE game_id = ANY($1)`, ids); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM games WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// LastLinkGroup returns the highest LINK-NNN in use, or "" when none
// exists. Zero padding keeps lexicographic order numeric.
func (r *Repository) LastLinkGroup(ctx context.Context) (string, error) {
	var group string
	err := r.pool.QueryRow(ctx, `
SELECT link_group FROM games
WHERE link_group LIKE 'LINK-%'
ORDER BY link_group DESC
LIMIT 1`).Scan(&group)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return group, nil
}

func nullableID(id int64) pgtype.Int8 {
	if id == 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id, Valid: true}
}

func nullableFee(fee *float64) pgtype.Float8 {
	if fee == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *fee, Valid: true}
}

func nullableText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func collectGames(rows pgx.Rows) ([]Game, error) {
	games := []Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *game)
	}
	return games, rows.Err()
}

func scanGame(row pgx.Row) (*Game, error) {
	var (
		g           Game
		leagueID    pgtype.Int8
		linkGroup   pgtype.Text
		assignedFee pgtype.Float8
		notes       pgtype.Text
	)
	if err := row.Scan(&g.ID, &leagueID, &g.LeagueName, &g.GameDate, &g.GameTime,
		&g.HomeTeam, &g.AwayTeam, &g.Location, &g.Sport, &g.Level,
		&g.OfficialsNeeded, &g.Status, &linkGroup, &assignedFee,
		&g.FeeOverride, &notes, &g.CreatedBy, &g.CreatedAt, &g.OfficialIDs); err != nil {
		return nil, err
	}
	g.LeagueID = leagueID.Int64
	g.LinkGroup = linkGroup.String
	if assignedFee.Valid {
		fee := assignedFee.Float64
		g.AssignedFee = &fee
	}
	g.Notes = notes.String
	return &g, nil
}
