package leagues

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/refdesk/refdesk/internal/shared"
)

// ListFees returns active fee schedules for a league, ordered by level.
func (r *Repository) ListFees(ctx context.Context, leagueID int64) ([]Fee, error) {
	rows, err := r.pool.Query(ctx, `
SELECT lf.id, lf.league_id, lf.level_name, lf.official_fee, lf.notes, lf.is_active,
       lf.created_by, COALESCE(u.full_name, ''), lf.created_at, lf.updated_at
FROM league_fees lf
LEFT JOIN users u ON u.id = lf.created_by
WHERE lf.league_id = $1 AND lf.is_active
ORDER BY lf.level_name`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fees := []Fee{}
	for rows.Next() {
		var (
			f     Fee
			notes pgtype.Text
		)
		if err := rows.Scan(&f.ID, &f.LeagueID, &f.LevelName, &f.OfficialFee, &notes, &f.IsActive,
			&f.CreatedBy, &f.CreatedByName, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Notes = notes.String
		fees = append(fees, f)
	}
	return fees, rows.Err()
}

// FindFee fetches one active fee schedule scoped to its league.
func (r *Repository) FindFee(ctx context.Context, leagueID, feeID int64) (*Fee, error) {
	var (
		f     Fee
		notes pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, league_id, level_name, official_fee, notes, is_active, created_by, created_at, updated_at
FROM league_fees
WHERE id = $1 AND league_id = $2 AND is_active`, feeID, leagueID).
		Scan(&f.ID, &f.LeagueID, &f.LevelName, &f.OfficialFee, &notes, &f.IsActive, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	f.Notes = notes.String
	return &f, nil
}

// FeeExists reports whether another active fee row covers the level.
func (r *Repository) FeeExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM league_fees
	WHERE league_id = $1 AND lower(level_name) = lower($2) AND id <> $3 AND is_active
)`, leagueID, levelName, excludeID).Scan(&exists)
	return exists, err
}

// InsertFee stores a fee schedule row.
func (r *Repository) InsertFee(ctx context.Context, leagueID int64, in FeeInput, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO league_fees (league_id, level_name, official_fee, notes, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, $5, NOW(), NOW())
RETURNING id`,
		leagueID, in.LevelName, in.OfficialFee, in.Notes, createdBy).Scan(&id)
	return id, err
}

// UpdateFee rewrites a fee schedule row.
func (r *Repository) UpdateFee(ctx context.Context, feeID int64, in FeeInput) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE league_fees SET level_name = $1, official_fee = $2, notes = $3, updated_at = NOW()
WHERE id = $4 AND is_active`,
		in.LevelName, in.OfficialFee, in.Notes, feeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDeleteFee marks a fee schedule inactive.
func (r *Repository) SoftDeleteFee(ctx context.Context, feeID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE league_fees SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, feeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListBilling returns active billing rules with their bill-to names.
func (r *Repository) ListBilling(ctx context.Context, leagueID int64) ([]BillingRule, error) {
	rows, err := r.pool.Query(ctx, `
SELECT lb.id, lb.league_id, lb.level_name, lb.bill_amount, lb.bill_to_id, bte.name,
       lb.notes, lb.is_active, lb.created_by, lb.created_at, lb.updated_at
FROM league_billing lb
JOIN bill_to_entities bte ON bte.id = lb.bill_to_id
WHERE lb.league_id = $1 AND lb.is_active
ORDER BY lb.level_name`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []BillingRule{}
	for rows.Next() {
		var (
			b     BillingRule
			notes pgtype.Text
		)
		if err := rows.Scan(&b.ID, &b.LeagueID, &b.LevelName, &b.BillAmount, &b.BillToID, &b.BillToName,
			&notes, &b.IsActive, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Notes = notes.String
		rules = append(rules, b)
	}
	return rules, rows.Err()
}

// FindBilling fetches one active billing rule scoped to its league.
func (r *Repository) FindBilling(ctx context.Context, leagueID, billingID int64) (*BillingRule, error) {
	var (
		b     BillingRule
		notes pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, league_id, level_name, bill_amount, bill_to_id, notes, is_active, created_by, created_at, updated_at
FROM league_billing
WHERE id = $1 AND league_id = $2 AND is_active`, billingID, leagueID).
		Scan(&b.ID, &b.LeagueID, &b.LevelName, &b.BillAmount, &b.BillToID, &notes, &b.IsActive, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	b.Notes = notes.String
	return &b, nil
}

// BillingExists reports whether another active billing rule covers the level.
func (r *Repository) BillingExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM league_billing
	WHERE league_id = $1 AND lower(level_name) = lower($2) AND id <> $3 AND is_active
)`, leagueID, levelName, excludeID).Scan(&exists)
	return exists, err
}

// BillToExists reports whether an active bill-to entity exists.
func (r *Repository) BillToExists(ctx context.Context, billToID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bill_to_entities WHERE id = $1 AND is_active)`, billToID).Scan(&exists)
	return exists, err
}

// InsertBilling stores a billing rule row.
func (r *Repository) InsertBilling(ctx context.Context, leagueID int64, in BillingInput, createdBy int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO league_billing (league_id, level_name, bill_amount, bill_to_id, notes, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW(), NOW())
RETURNING id`,
		leagueID, in.LevelName, in.BillAmount, in.BillToID, in.Notes, createdBy).Scan(&id)
	return id, err
}

// UpdateBilling applies the provided billing rule changes.
func (r *Repository) UpdateBilling(ctx context.Context, billingID int64, in BillingUpdate) error {
	set := []string{}
	args := []any{}
	if in.BillAmount != nil {
		args = append(args, *in.BillAmount)
		set = append(set, "bill_amount = $"+strconv.Itoa(len(args)))
	}
	if in.BillToID != nil {
		args = append(args, *in.BillToID)
		set = append(set, "bill_to_id = $"+strconv.Itoa(len(args)))
	}
	if in.Notes != nil {
		args = append(args, *in.Notes)
		set = append(set, "notes = $"+strconv.Itoa(len(args)))
	}
	if len(set) == 0 {
		return ErrEmptyUpdate
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, billingID)
	query := "UPDATE league_billing SET " + strings.Join(set, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + " AND is_active"

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDeleteBilling marks a billing rule inactive.
func (r *Repository) SoftDeleteBilling(ctx context.Context, billingID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE league_billing SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, billingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
