package assignments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for assignments.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]Assignment, error)
	ListByLeagues(ctx context.Context, leagueIDs []int64, f ListFilters) ([]Assignment, error)
	ListByOfficial(ctx context.Context, officialID int64, f ListFilters) ([]Assignment, error)
	FindByID(ctx context.Context, id int64) (*Assignment, error)
	GameByID(ctx context.Context, id int64) (*GameInfo, error)
	OfficialActive(ctx context.Context, id int64) (bool, error)
	Exists(ctx context.Context, gameID, officialID int64) (bool, error)
	HasTimeConflict(ctx context.Context, officialID int64, gameDate time.Time, gameTime string, excludeGameID int64) (bool, error)
	Insert(ctx context.Context, gameID, officialID int64, position string, fee float64, assignedBy int64) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	Delete(ctx context.Context, id int64) error
	ClaimIdempotencyKey(ctx context.Context, key string) (bool, error)
	CountByStatus(ctx context.Context, leagueIDs []int64) (map[string]int64, error)
	CountByPosition(ctx context.Context, leagueIDs []int64) (map[string]int64, error)
}

// Service handles assignment logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns assignments scoped at the data layer: superadmins see all,
// admins and assigners see their leagues', officials see their own.
func (s *Service) List(ctx context.Context, pr authz.Principal, f ListFilters) ([]Assignment, error) {
	switch pr.Role {
	case authz.RoleSuperadmin:
		return s.repo.List(ctx, f)
	case authz.RoleOfficial:
		return s.repo.ListByOfficial(ctx, pr.ID, f)
	default:
		return s.repo.ListByLeagues(ctx, pr.Leagues(), f)
	}
}

// Get fetches one assignment.
func (s *Service) Get(ctx context.Context, id int64) (*Assignment, error) {
	return s.repo.FindByID(ctx, id)
}

// GameFor loads the game an assignment would attach to, so callers can
// authorize against its league before anything is written.
func (s *Service) GameFor(ctx context.Context, gameID int64) (*GameInfo, error) {
	game, err := s.repo.GameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrGameMissing
		}
		return nil, err
	}
	return game, nil
}

// Create assigns an official to a game after the full validation chain:
// live game, live official, no duplicate, no same-slot booking elsewhere,
// open crew slot. The fee falls back to the game's assigned fee.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*Assignment, error) {
	game, err := s.GameFor(ctx, in.GameID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.OfficialActive(ctx, in.OfficialID)
	if err != nil {
		return nil, fmt.Errorf("assignments: check official: %w", err)
	}
	if !ok {
		return nil, ErrOfficialMissing
	}
	taken, err := s.repo.Exists(ctx, in.GameID, in.OfficialID)
	if err != nil {
		return nil, fmt.Errorf("assignments: check duplicate: %w", err)
	}
	if taken {
		return nil, ErrDuplicate
	}
	booked, err := s.repo.HasTimeConflict(ctx, in.OfficialID, game.GameDate, game.GameTime, game.ID)
	if err != nil {
		return nil, fmt.Errorf("assignments: check conflict: %w", err)
	}
	if booked {
		return nil, ErrTimeConflict
	}
	if game.AssignedCount >= game.OfficialsNeeded {
		return nil, ErrGameFull
	}

	fee := 0.0
	switch {
	case in.Fee != nil:
		if err := shared.ValidateFee(*in.Fee); err != nil {
			return nil, err
		}
		fee = *in.Fee
	case game.AssignedFee != nil:
		fee = *game.AssignedFee
	}
	position := in.Position
	if position == "" {
		position = DefaultPosition
	}

	id, err := s.repo.Insert(ctx, in.GameID, in.OfficialID, position, fee, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", id)
	return s.repo.FindByID(ctx, id)
}

// Update rewrites the provided fields.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (*Assignment, error) {
	if in.Position == nil && in.Status == nil && in.Fee == nil {
		return nil, ErrEmptyUpdate
	}
	if in.Status != nil && !ValidStatus(*in.Status) {
		return nil, ErrBadStatus
	}
	if in.Fee != nil {
		if err := shared.ValidateFee(*in.Fee); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", id)
	return s.repo.FindByID(ctx, id)
}

// Delete removes an assignment.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", id)
	return nil
}

// ClaimKey marks an idempotency key as used. The second claim of the
// same key reports false, letting bulk submissions dedupe retries.
func (s *Service) ClaimKey(ctx context.Context, key string) (bool, error) {
	return s.repo.ClaimIdempotencyKey(ctx, key)
}

// StatsFor aggregates assignment counts within the principal's scope.
func (s *Service) StatsFor(ctx context.Context, pr authz.Principal) (Stats, error) {
	var leagueIDs []int64
	if pr.Role != authz.RoleSuperadmin {
		leagueIDs = pr.Leagues()
		if len(leagueIDs) == 0 {
			return Stats{ByStatus: map[string]int64{}, ByPosition: map[string]int64{}}, nil
		}
	}
	byStatus, err := s.repo.CountByStatus(ctx, leagueIDs)
	if err != nil {
		return Stats{}, err
	}
	byPosition, err := s.repo.CountByPosition(ctx, leagueIDs)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ByStatus: byStatus, ByPosition: byPosition}, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "assignment",
		EntityID: strconv.FormatInt(id, 10),
	})
}
