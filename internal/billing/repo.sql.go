package billing

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

const billToColumns = `id, name, contact_person, email, phone, address, city, state,
zip_code, tax_id, is_active, created_by, created_at`

// List returns active entities ordered by name.
func (r *Repository) List(ctx context.Context) ([]BillTo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billToColumns+` FROM bill_to_entities WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := []BillTo{}
	for rows.Next() {
		b, err := scanBillTo(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *b)
	}
	return entities, rows.Err()
}

// FindByID fetches one active entity.
func (r *Repository) FindByID(ctx context.Context, id int64) (*BillTo, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billToColumns+` FROM bill_to_entities WHERE id = $1 AND is_active`, id)
	b, err := scanBillTo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// NameExists reports whether another active entity holds the name.
func (r *Repository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM bill_to_entities WHERE lower(name) = lower($1) AND id <> $2 AND is_active
)`, name, excludeID).Scan(&exists)
	return exists, err
}

// Insert stores an entity.
func (r *Repository) Insert(ctx context.Context, in Input, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO bill_to_entities (name, contact_person, email, phone, address, city, state,
	zip_code, tax_id, is_active, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, NOW())
RETURNING id`,
		in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, in.City, in.State,
		in.ZipCode, in.TaxID, createdBy).Scan(&id)
	return id, err
}

// Update rewrites entity fields.
func (r *Repository) Update(ctx context.Context, id int64, in Input) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE bill_to_entities SET name = $1, contact_person = $2, email = $3, phone = $4,
	address = $5, city = $6, state = $7, zip_code = $8, tax_id = $9
WHERE id = $10 AND is_active`,
		in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, in.City, in.State,
		in.ZipCode, in.TaxID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete marks an entity inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bill_to_entities SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountBillingRules counts active billing rules referencing the entity.
func (r *Repository) CountBillingRules(ctx context.Context, billToID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM league_billing WHERE bill_to_id = $1 AND is_active`, billToID).Scan(&n)
	return n, err
}

func scanBillTo(row pgx.Row) (*BillTo, error) {
	var (
		b                             BillTo
		contactPerson, email, phone   pgtype.Text
		address, city, state, zipCode pgtype.Text
		taxID                         pgtype.Text
	)
	if err := row.Scan(&b.ID, &b.Name, &contactPerson, &email, &phone, &address, &city, &state,
		&zipCode, &taxID, &b.IsActive, &b.CreatedBy, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ContactPerson = contactPerson.String
	b.Email = email.String
	b.Phone = phone.String
	b.Address = address.String
	b.City = city.String
	b.State = state.String
	b.ZipCode = zipCode.String
	b.TaxID = taxID.String
	return &b, nil
}
