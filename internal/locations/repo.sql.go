package locations

import (
	"context"
	"errors"

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

const locationColumns = `id, name, address, city, state, zip_code, contact_person,
contact_phone, contact_email, capacity, notes, is_active, created_by, created_at`

// List returns active venues ordered by name.
func (r *Repository) List(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, *loc)
	}
	return locations, rows.Err()
}

// FindByID fetches one active venue.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Location, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1 AND is_active`, id)
	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return loc, nil
}

// NameExists reports whether another active venue holds the name.
func (r *Repository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM locations WHERE lower(name) = lower($1) AND id <> $2 AND is_active
)`, name, excludeID).Scan(&exists)
	return exists, err
}

// Insert stores a venue.
func (r *Repository) Insert(ctx context.Context, in Input, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO locations (name, address, city, state, zip_code, contact_person, contact_phone,
	contact_email, capacity, notes, is_active, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, NOW())
RETURNING id`,
		in.Name, in.Address, in.City, in.State, in.ZipCode, in.ContactPerson, in.ContactPhone,
		in.ContactEmail, in.Capacity, in.Notes, createdBy).Scan(&id)
	return id, err
}

// Update rewrites venue fields.
func (r *Repository) Update(ctx context.Context, id int64, in Input) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE locations SET name = $1, address = $2, city = $3, state = $4, zip_code = $5,
	contact_person = $6, contact_phone = $7, contact_email = $8, capacity = $9, notes = $10
WHERE id = $11 AND is_active`,
		in.Name, in.Address, in.City, in.State, in.ZipCode, in.ContactPerson, in.ContactPhone,
		in.ContactEmail, in.Capacity, in.Notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete marks a venue inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanLocation(row pgx.Row) (*Location, error) {
	var (
		loc                           Location
		address, city, state, zipCode pgtype.Text
		contactPerson, contactPhone   pgtype.Text
		contactEmail, notes           pgtype.Text
		capacity                      pgtype.Int4
	)
	if err := row.Scan(&loc.ID, &loc.Name, &address, &city, &state, &zipCode, &contactPerson,
		&contactPhone, &contactEmail, &capacity, &notes, &loc.IsActive, &loc.CreatedBy, &loc.CreatedAt); err != nil {
		return nil, err
	}
	loc.Address = address.String
	loc.City = city.String
	loc.State = state.String
	loc.ZipCode = zipCode.String
	loc.ContactPerson = contactPerson.String
	loc.ContactPhone = contactPhone.String
	loc.ContactEmail = contactEmail.String
	loc.Capacity = int(capacity.Int32)
	loc.Notes = notes.String
	return &loc, nil
}
