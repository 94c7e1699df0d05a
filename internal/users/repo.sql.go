package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/authz"
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

const userSelect = `
SELECT u.id, u.username, u.full_name, u.email, u.phone, u.address, u.role, u.is_active, u.last_login, u.created_at,
       COALESCE(array_agg(lm.league_id) FILTER (WHERE lm.id IS NOT NULL), '{}') AS league_ids
FROM users u
LEFT JOIN league_memberships lm ON lm.user_id = u.id AND lm.is_active`

// List returns every account, newest first.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+`
GROUP BY u.id
ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListByLeagues returns accounts holding an active membership in any of
// the given leagues, newest first.
func (r *Repository) ListByLeagues(ctx context.Context, leagueIDs []int64) ([]User, error) {
	if len(leagueIDs) == 0 {
		return []User{}, nil
	}
	rows, err := r.pool.Query(ctx, userSelect+`
WHERE EXISTS (
	SELECT 1 FROM league_memberships m
	WHERE m.user_id = u.id AND m.is_active AND m.league_id = ANY($1)
)
GROUP BY u.id
ORDER BY u.created_at DESC`, leagueIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// FindByID fetches one account with its membership set.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	rows, err := r.pool.Query(ctx, userSelect+`
WHERE u.id = $1
GROUP BY u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

// FindActiveByEmail looks up an active account by exact email.
func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	rows, err := r.pool.Query(ctx, userSelect+`
WHERE lower(u.email) = lower($1) AND u.is_active
GROUP BY u.id`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

// UsernameExists reports whether any account holds the username.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// EmailExists reports whether any account holds the email.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// Insert stores a new account and returns its id.
func (r *Repository) Insert(ctx context.Context, in CreateInput, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (username, password_hash, full_name, email, phone, address, role, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id`,
		in.Username, passwordHash, in.FullName,
		optionalText(in.Email), optionalText(in.Phone), optionalText(in.Address),
		string(in.Role), in.IsActive,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return 0, ErrEmailTaken
			}
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return id, nil
}

// HardDelete removes an account row entirely.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Deactivate soft deletes an account.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountAssignments counts game assignments referencing the account.
func (r *Repository) CountAssignments(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE official_id = $1`, userID).Scan(&n)
	return n, err
}

// CountMemberships counts active league memberships for the account.
func (r *Repository) CountMemberships(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM league_memberships WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

// AddMemberships grants the user an active membership in every listed
// league, reactivating rows that already exist.
func (r *Repository) AddMemberships(ctx context.Context, userID int64, leagueIDs []int64, assignedBy int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, leagueID := range leagueIDs {
			_, err := tx.Exec(ctx, `
INSERT INTO league_memberships (user_id, league_id, assigned_by, assigned_at, is_active)
VALUES ($1, $2, $3, NOW(), TRUE)
ON CONFLICT (user_id, league_id)
DO UPDATE SET is_active = TRUE, assigned_by = EXCLUDED.assigned_by, assigned_at = NOW()`,
				userID, leagueID, assignedBy)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveLeagueIDs lists leagues the user actively belongs to.
func (r *Repository) ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT league_id FROM league_memberships WHERE user_id = $1 AND is_active ORDER BY league_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AccountByID loads the minimal account view used for principal resolution.
func (r *Repository) AccountByID(ctx context.Context, id int64) (authz.Account, error) {
	var (
		acct authz.Account
		role string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, role, is_active FROM users WHERE id = $1`, id).Scan(&acct.ID, &role, &acct.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Account{}, shared.ErrNotFound
		}
		return authz.Account{}, err
	}
	acct.Role = authz.Role(role)
	return acct, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	users := []User{}
	for rows.Next() {
		var (
			u         User
			role      string
			email     pgtype.Text
			phone     pgtype.Text
			address   pgtype.Text
			lastLogin pgtype.Timestamptz
			leagueIDs []int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &email, &phone, &address, &role,
			&u.IsActive, &lastLogin, &u.CreatedAt, &leagueIDs); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.Phone = phone.String
		u.Address = address.String
		u.Role = authz.Role(role)
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		u.LeagueIDs = leagueIDs
		users = append(users, u)
	}
	return users, rows.Err()
}

func optionalText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
