package leagues

import (
	"context"
	"fmt"
	"strconv"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for leagues, levels and
// membership grants.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]League, error)
	ListByIDs(ctx context.Context, ids []int64, f ListFilters) ([]League, error)
	FindByID(ctx context.Context, id int64) (*League, error)
	NameExists(ctx context.Context, name, season string, excludeID int64) (bool, error)
	Insert(ctx context.Context, in CreateInput, createdBy int64) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	SoftDelete(ctx context.Context, id int64) error
	Levels(ctx context.Context, leagueID int64) ([]Level, error)
	UpsertMembership(ctx context.Context, leagueID, userID, assignedBy int64) error
	FindUserRole(ctx context.Context, userID int64) (authz.Role, error)
}

// BillingPort defines data access methods for fee schedules and billing
// rules hanging off a league.
type BillingPort interface {
	ListFees(ctx context.Context, leagueID int64) ([]Fee, error)
	FindFee(ctx context.Context, leagueID, feeID int64) (*Fee, error)
	FeeExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error)
	InsertFee(ctx context.Context, leagueID int64, in FeeInput, createdBy int64) (int64, error)
	UpdateFee(ctx context.Context, feeID int64, in FeeInput) error
	SoftDeleteFee(ctx context.Context, feeID int64) error
	ListBilling(ctx context.Context, leagueID int64) ([]BillingRule, error)
	FindBilling(ctx context.Context, leagueID, billingID int64) (*BillingRule, error)
	BillingExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error)
	BillToExists(ctx context.Context, billToID int64) (bool, error)
	InsertBilling(ctx context.Context, leagueID int64, in BillingInput, createdBy int64) (int64, error)
	UpdateBilling(ctx context.Context, billingID int64, in BillingUpdate) error
	SoftDeleteBilling(ctx context.Context, billingID int64) error
}

// Service handles league management logic.
type Service struct {
	repo    RepositoryPort
	billing BillingPort
	audit   *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, billing BillingPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, billing: billing, audit: audit}
}

// List returns leagues scoped at the data layer: superadmins see every
// league, scoped roles see the leagues they belong to.
func (s *Service) List(ctx context.Context, pr authz.Principal, f ListFilters) ([]League, error) {
	if pr.Role == authz.RoleSuperadmin {
		return s.repo.List(ctx, f)
	}
	return s.repo.ListByIDs(ctx, pr.Leagues(), f)
}

// Get fetches one league.
func (s *Service) Get(ctx context.Context, id int64) (*League, error) {
	return s.repo.FindByID(ctx, id)
}

// Create registers a league and its level catalog after a name check.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*League, error) {
	in.Name = shared.CanonicalName(in.Name)
	taken, err := s.repo.NameExists(ctx, in.Name, in.Season, 0)
	if err != nil {
		return nil, fmt.Errorf("leagues: check name: %w", err)
	}
	if taken {
		return nil, ErrNameTaken
	}
	id, err := s.repo.Insert(ctx, in, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", "league", id)
	return s.repo.FindByID(ctx, id)
}

// Update rewrites league fields and, when levels are given, replaces the
// level catalog.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (*League, error) {
	in.Name = shared.CanonicalName(in.Name)
	taken, err := s.repo.NameExists(ctx, in.Name, in.Season, id)
	if err != nil {
		return nil, fmt.Errorf("leagues: check name: %w", err)
	}
	if taken {
		return nil, ErrNameTaken
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", "league", id)
	return s.repo.FindByID(ctx, id)
}

// Delete soft deletes a league. Memberships, games and fee rows keep
// their foreign keys so history stays intact.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "league", id)
	return nil
}

// Levels lists a league's active levels.
func (s *Service) Levels(ctx context.Context, leagueID int64) ([]Level, error) {
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.repo.Levels(ctx, leagueID)
}

// AssignUser grants a user membership in the league. Only admin and
// assigner accounts hold memberships; officials are scoped through their
// assignments instead.
func (s *Service) AssignUser(ctx context.Context, actorID, leagueID, userID int64) error {
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return err
	}
	role, err := s.repo.FindUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role != authz.RoleAdmin && role != authz.RoleAssigner {
		return ErrNotAssignable
	}
	if err := s.repo.UpsertMembership(ctx, leagueID, userID, actorID); err != nil {
		return fmt.Errorf("leagues: upsert membership: %w", err)
	}
	s.record(ctx, actorID, "assign_user", "league", leagueID)
	return nil
}

// ListFees returns the league's fee schedule.
func (s *Service) ListFees(ctx context.Context, leagueID int64) ([]Fee, error) {
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.billing.ListFees(ctx, leagueID)
}

// CreateFee adds a fee schedule row after amount and duplicate checks.
func (s *Service) CreateFee(ctx context.Context, actorID, leagueID int64, in FeeInput) (*Fee, error) {
	if err := shared.ValidateFee(in.OfficialFee); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return nil, err
	}
	exists, err := s.billing.FeeExists(ctx, leagueID, in.LevelName, 0)
	if err != nil {
		return nil, fmt.Errorf("leagues: check fee: %w", err)
	}
	if exists {
		return nil, ErrFeeExists
	}
	id, err := s.billing.InsertFee(ctx, leagueID, in, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", "league_fee", id)
	return s.billing.FindFee(ctx, leagueID, id)
}

// UpdateFee rewrites a fee schedule row.
func (s *Service) UpdateFee(ctx context.Context, actorID, leagueID, feeID int64, in FeeInput) (*Fee, error) {
	if err := shared.ValidateFee(in.OfficialFee); err != nil {
		return nil, err
	}
	if _, err := s.billing.FindFee(ctx, leagueID, feeID); err != nil {
		return nil, err
	}
	exists, err := s.billing.FeeExists(ctx, leagueID, in.LevelName, feeID)
	if err != nil {
		return nil, fmt.Errorf("leagues: check fee: %w", err)
	}
	if exists {
		return nil, ErrFeeExists
	}
	if err := s.billing.UpdateFee(ctx, feeID, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", "league_fee", feeID)
	return s.billing.FindFee(ctx, leagueID, feeID)
}

// DeleteFee soft deletes a fee schedule row.
func (s *Service) DeleteFee(ctx context.Context, actorID, leagueID, feeID int64) error {
	if _, err := s.billing.FindFee(ctx, leagueID, feeID); err != nil {
		return err
	}
	if err := s.billing.SoftDeleteFee(ctx, feeID); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "league_fee", feeID)
	return nil
}

// ListBilling returns the league's billing rules.
func (s *Service) ListBilling(ctx context.Context, leagueID int64) ([]BillingRule, error) {
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.billing.ListBilling(ctx, leagueID)
}

// CreateBilling adds a billing rule after amount, duplicate and bill-to
// checks.
func (s *Service) CreateBilling(ctx context.Context, actorID, leagueID int64, in BillingInput) (*BillingRule, error) {
	if err := shared.ValidateBillAmount(in.BillAmount); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, leagueID); err != nil {
		return nil, err
	}
	exists, err := s.billing.BillingExists(ctx, leagueID, in.LevelName, 0)
	if err != nil {
		return nil, fmt.Errorf("leagues: check billing: %w", err)
	}
	if exists {
		return nil, ErrBillingExists
	}
	ok, err := s.billing.BillToExists(ctx, in.BillToID)
	if err != nil {
		return nil, fmt.Errorf("leagues: check bill-to: %w", err)
	}
	if !ok {
		return nil, ErrBillToMissing
	}
	id, err := s.billing.InsertBilling(ctx, leagueID, in, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", "league_billing", id)
	return s.billing.FindBilling(ctx, leagueID, id)
}

// UpdateBilling applies partial billing rule changes.
func (s *Service) UpdateBilling(ctx context.Context, actorID, leagueID, billingID int64, in BillingUpdate) (*BillingRule, error) {
	if in.BillAmount != nil {
		if err := shared.ValidateBillAmount(*in.BillAmount); err != nil {
			return nil, err
		}
	}
	if _, err := s.billing.FindBilling(ctx, leagueID, billingID); err != nil {
		return nil, err
	}
	if in.BillToID != nil {
		ok, err := s.billing.BillToExists(ctx, *in.BillToID)
		if err != nil {
			return nil, fmt.Errorf("leagues: check bill-to: %w", err)
		}
		if !ok {
			return nil, ErrBillToMissing
		}
	}
	if err := s.billing.UpdateBilling(ctx, billingID, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", "league_billing", billingID)
	return s.billing.FindBilling(ctx, leagueID, billingID)
}

// DeleteBilling soft deletes a billing rule.
func (s *Service) DeleteBilling(ctx context.Context, actorID, leagueID, billingID int64) error {
	if _, err := s.billing.FindBilling(ctx, leagueID, billingID); err != nil {
		return err
	}
	if err := s.billing.SoftDeleteBilling(ctx, billingID); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "league_billing", billingID)
	return nil
}

// record writes an audit entry; failures never surface to the caller.
func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
