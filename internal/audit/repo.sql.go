package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed timeline reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const timelineSelect = `
SELECT a.id, a.at, a.actor_id, COALESCE(u.username, ''), a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id`

// Window returns one slice of the timeline, newest first. Filters are
// ANDed; To is widened to the end of its calendar day.
func (r *Repository) Window(ctx context.Context, f Filters, offset, limit int) ([]Row, error) {
	conds := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !f.From.IsZero() {
		conds = append(conds, "a.at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "a.at < "+arg(f.To.AddDate(0, 0, 1)))
	}
	if f.ActorID != 0 {
		conds = append(conds, "a.actor_id = "+arg(f.ActorID))
	}
	if f.Entity != "" {
		conds = append(conds, "a.entity = "+arg(f.Entity))
	}
	if f.Action != "" {
		conds = append(conds, "a.action = "+arg(f.Action))
	}

	query := timelineSelect
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += "\nORDER BY a.at DESC, a.id DESC\nOFFSET " + arg(offset) + " LIMIT " + arg(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var row Row
		var meta []byte
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PurgeBefore deletes entries recorded before the cutoff.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
