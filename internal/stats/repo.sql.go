package stats

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed aggregation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpcomingGames counts games from today onward within the scope.
func (r *Repository) UpcomingGames(ctx context.Context, sc Scope) (int64, error) {
	var n int64
	var err error
	switch {
	case sc.Global:
		err = r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM games WHERE game_date >= CURRENT_DATE`).Scan(&n)
	case sc.OfficialID != 0:
		err = r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM games g
WHERE g.game_date >= CURRENT_DATE
  AND g.id IN (SELECT game_id FROM assignments WHERE official_id = $1)`, sc.OfficialID).Scan(&n)
	default:
		err = r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM games
WHERE game_date >= CURRENT_DATE AND league_id = ANY($1)`, sc.LeagueIDs).Scan(&n)
	}
	return n, err
}

// AssignmentTotal counts assignment rows within the scope.
func (r *Repository) AssignmentTotal(ctx context.Context, sc Scope) (int64, error) {
	var n int64
	var err error
	switch {
	case sc.Global:
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assignments`).Scan(&n)
	case sc.OfficialID != 0:
		err = r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM assignments WHERE official_id = $1`, sc.OfficialID).Scan(&n)
	default:
		err = r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM assignments a
JOIN games g ON g.id = a.game_id
WHERE g.league_id = ANY($1)`, sc.LeagueIDs).Scan(&n)
	}
	return n, err
}

// ActiveOfficials counts active official accounts across the whole
// organization. The count is global for every role.
func (r *Repository) ActiveOfficials(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM users WHERE role = 'official' AND is_active`).Scan(&n)
	return n, err
}

const recentSelect = `
SELECT g.id, g.game_date, g.game_time, g.home_team, g.away_team, g.location, g.sport
FROM games g
WHERE g.game_date >= CURRENT_DATE`

const recentTail = `
ORDER BY g.game_date ASC, g.game_time ASC`

// RecentGames returns the next games within the scope, soonest first.
func (r *Repository) RecentGames(ctx context.Context, sc Scope, limit int) ([]RecentGame, error) {
	var (
		query string
		args  []any
	)
	switch {
	case sc.Global:
		query = recentSelect + recentTail + ` LIMIT $1`
		args = []any{limit}
	case sc.OfficialID != 0:
		query = recentSelect + `
  AND g.id IN (SELECT game_id FROM assignments WHERE official_id = $1)` + recentTail + ` LIMIT $2`
		args = []any{sc.OfficialID, limit}
	default:
		query = recentSelect + `
  AND g.league_id = ANY($1)` + recentTail + ` LIMIT $2`
		args = []any{sc.LeagueIDs, limit}
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentGame{}
	for rows.Next() {
		var g RecentGame
		if err := rows.Scan(&g.ID, &g.GameDate, &g.GameTime, &g.HomeTeam, &g.AwayTeam, &g.Location, &g.Sport); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Totals gathers the organization-wide counts in one round trip.
func (r *Repository) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM users),
  (SELECT COUNT(*) FROM users WHERE role = 'official'),
  (SELECT COUNT(*) FROM games),
  (SELECT COUNT(*) FROM assignments),
  (SELECT COUNT(*) FROM leagues),
  (SELECT COUNT(*) FROM locations)`).Scan(
		&t.Users, &t.Officials, &t.Games, &t.Assignments, &t.Leagues, &t.Locations)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LeagueIDs lists active league ids for cache warmup.
func (r *Repository) LeagueIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM leagues WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
