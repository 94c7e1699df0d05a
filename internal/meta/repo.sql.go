package meta

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Levels returns active predetermined levels matching the filters,
// ordered by sport, category, then display order.
func (r *Repository) Levels(ctx context.Context, f LevelFilters) ([]PredeterminedLevel, error) {
	query := `
SELECT id, sport, category, level_name, display_order, description
FROM predetermined_levels
WHERE is_active`
	args := []any{}
	if f.Sport != "" {
		args = append(args, f.Sport)
		query += ` AND sport = $` + strconv.Itoa(len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += ` AND category = $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY sport, category, display_order`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLevels(rows)
}

// AvailableSports returns the distinct sports with curated levels.
func (r *Repository) AvailableSports(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT sport FROM predetermined_levels WHERE is_active ORDER BY sport`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

// AvailableCategories returns the distinct categories, optionally within
// one sport.
func (r *Repository) AvailableCategories(ctx context.Context, sport string) ([]string, error) {
	query := `SELECT DISTINCT category FROM predetermined_levels WHERE is_active`
	args := []any{}
	if sport != "" {
		args = append(args, sport)
		query += ` AND sport = $1`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY category`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectLevels(rows pgx.Rows) ([]PredeterminedLevel, error) {
	levels := []PredeterminedLevel{}
	for rows.Next() {
		var (
			lvl         PredeterminedLevel
			description pgtype.Text
		)
		if err := rows.Scan(&lvl.ID, &lvl.Sport, &lvl.Category, &lvl.LevelName, &lvl.DisplayOrder, &description); err != nil {
			return nil, err
		}
		lvl.Description = description.String
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
