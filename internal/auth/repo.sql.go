package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for sign-in.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, username, password_hash, full_name, email, phone, address, role, is_active, last_login, created_at`

// FindByUsername fetches an account by username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
	return scanAccount(row)
}

// FindByID fetches an account by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// UpdateLastLogin stamps the account's last successful sign-in.
func (r *Repository) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acct      Account
		role      string
		email     pgtype.Text
		phone     pgtype.Text
		address   pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.FullName,
		&email, &phone, &address, &role, &acct.IsActive, &lastLogin, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	acct.Email = email.String
	acct.Phone = phone.String
	acct.Address = address.String
	acct.Role = authz.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLogin = &t
	}
	return &acct, nil
}
