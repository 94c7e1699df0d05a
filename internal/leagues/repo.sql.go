package leagues

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/authz"
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

const leagueColumns = "id, name, sport, season, description, is_active, created_by, created_at"

// List returns active leagues matching the filters, ordered by name.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]League, error) {
	query := `SELECT ` + leagueColumns + ` FROM leagues WHERE is_active`
	query, args := appendFilters(query, nil, f)
	rows, err := r.pool.Query(ctx, query+` ORDER BY name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeagues(rows)
}

// ListByIDs returns active leagues out of the given id set, filtered and
// ordered by name.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64, f ListFilters) ([]League, error) {
	if len(ids) == 0 {
		return []League{}, nil
	}
	query := `SELECT ` + leagueColumns + ` FROM leagues WHERE is_active AND id = ANY($1)`
	query, args := appendFilters(query, []any{ids}, f)
	rows, err := r.pool.Query(ctx, query+` ORDER BY name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeagues(rows)
}

func appendFilters(query string, args []any, f ListFilters) (string, []any) {
	n := len(args)
	if f.Search != "" {
		n++
		p := "$" + strconv.Itoa(n)
		query += ` AND (name ILIKE ` + p + ` OR sport ILIKE ` + p + ` OR season ILIKE ` + p + `)`
		args = append(args, "%"+f.Search+"%")
	}
	if f.Sport != "" {
		n++
		query += ` AND sport = $` + strconv.Itoa(n)
		args = append(args, f.Sport)
	}
	if f.Season != "" {
		n++
		query += ` AND season = $` + strconv.Itoa(n)
		args = append(args, f.Season)
	}
	return query, args
}

// FindByID fetches one active league.
func (r *Repository) FindByID(ctx context.Context, id int64) (*League, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leagueColumns+` FROM leagues WHERE id = $1 AND is_active`, id)
	league, err := scanLeague(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return league, nil
}

// NameExists reports whether another active league holds the name within
// the season.
func (r *Repository) NameExists(ctx context.Context, name, season string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM leagues
	WHERE lower(name) = lower($1) AND season = $2 AND id <> $3 AND is_active
)`, name, season, excludeID).Scan(&exists)
	return exists, err
}

// Insert stores a league and its level catalog in one transaction.
func (r *Repository) Insert(ctx context.Context, in CreateInput, createdBy int64) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO leagues (name, sport, season, description, is_active, created_by, created_at)
VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
RETURNING id`,
			in.Name, in.Sport, in.Season, in.Description, createdBy).Scan(&id)
		if err != nil {
			return err
		}
		return upsertLevels(ctx, tx, id, in.Levels)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites league fields; a non-nil level set replaces the
// catalog, deactivating levels no longer listed.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE leagues SET name = $1, sport = $2, season = $3, description = $4
WHERE id = $5 AND is_active`,
			in.Name, in.Sport, in.Season, in.Description, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if in.Levels == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `
UPDATE league_levels SET is_active = FALSE
WHERE league_id = $1 AND level_name <> ALL($2)`, id, in.Levels); err != nil {
			return err
		}
		return upsertLevels(ctx, tx, id, in.Levels)
	})
}

func upsertLevels(ctx context.Context, tx pgx.Tx, leagueID int64, levels []string) error {
	for _, name := range levels {
		if name == "" {
			continue
		}
		_, err := tx.Exec(ctx, `
INSERT INTO league_levels (league_id, level_name, is_active, created_at)
VALUES ($1, $2, TRUE, NOW())
ON CONFLICT (league_id, level_name) DO UPDATE SET is_active = TRUE`,
			leagueID, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// SoftDelete marks a league inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leagues SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Levels lists a league's levels with the league name attached.
func (r *Repository) Levels(ctx context.Context, leagueID int64) ([]Level, error) {
	rows, err := r.pool.Query(ctx, `
SELECT ll.id, ll.league_id, ll.level_name, ll.notes, ll.is_active, ll.created_at, l.name
FROM league_levels ll
JOIN leagues l ON l.id = ll.league_id
WHERE ll.league_id = $1 AND ll.is_active
ORDER BY ll.level_name`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := []Level{}
	for rows.Next() {
		var (
			lvl   Level
			notes pgtype.Text
		)
		if err := rows.Scan(&lvl.ID, &lvl.LeagueID, &lvl.LevelName, &notes, &lvl.IsActive, &lvl.CreatedAt, &lvl.LeagueName); err != nil {
			return nil, err
		}
		lvl.Notes = notes.String
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// UpsertMembership grants a user active membership in the league,
// reactivating a lapsed row.
func (r *Repository) UpsertMembership(ctx context.Context, leagueID, userID, assignedBy int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO league_memberships (user_id, league_id, assigned_by, assigned_at, is_active)
VALUES ($1, $2, $3, NOW(), TRUE)
ON CONFLICT (user_id, league_id)
DO UPDATE SET is_active = TRUE, assigned_by = EXCLUDED.assigned_by, assigned_at = NOW()`,
		userID, leagueID, assignedBy)
	return err
}

// FindUserRole returns the role of an active account.
func (r *Repository) FindUserRole(ctx context.Context, userID int64) (authz.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return authz.Role(role), nil
}

func collectLeagues(rows pgx.Rows) ([]League, error) {
	leagues := []League{}
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, *league)
	}
	return leagues, rows.Err()
}

func scanLeague(row pgx.Row) (*League, error) {
	var (
		l           League
		description pgtype.Text
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Sport, &l.Season, &description, &l.IsActive, &l.CreatedBy, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Description = description.String
	return &l, nil
}
