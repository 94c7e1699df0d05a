package games

import (
	"context"
	"fmt"
	"strconv"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for games.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]Game, error)
	ListByLeagues(ctx context.Context, leagueIDs []int64, f ListFilters) ([]Game, error)
	ListByOfficial(ctx context.Context, officialID int64, f ListFilters) ([]Game, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Game, error)
	FindByID(ctx context.Context, id int64) (*Game, error)
	LeagueExists(ctx context.Context, leagueID int64) (bool, error)
	FeeForLeagueLevel(ctx context.Context, leagueID int64, level string) (*float64, error)
	Insert(ctx context.Context, in CreateInput, fee *float64, feeOverride bool, createdBy int64) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	DeleteWithAssignments(ctx context.Context, id int64) error
	SetLinkGroup(ctx context.Context, ids []int64, linkGroup *string) (int64, error)
	DeleteManyWithAssignments(ctx context.Context, ids []int64) (int64, error)
	LastLinkGroup(ctx context.Context) (string, error)
}

// Service handles game scheduling logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns games scoped at the data layer: superadmins see all,
// admins and assigners see their leagues' games, officials see games
// they are assigned to.
func (s *Service) List(ctx context.Context, pr authz.Principal, f ListFilters) ([]Game, error) {
	switch pr.Role {
	case authz.RoleSuperadmin:
		return s.repo.List(ctx, f)
	case authz.RoleOfficial:
		return s.repo.ListByOfficial(ctx, pr.ID, f)
	default:
		return s.repo.ListByLeagues(ctx, pr.Leagues(), f)
	}
}

// Get fetches one game with its assigned officials.
func (s *Service) Get(ctx context.Context, id int64) (*Game, error) {
	return s.repo.FindByID(ctx, id)
}

// GetMany fetches the games behind a bulk operation, in input order.
// Missing ids are skipped; the repository returns what exists.
func (s *Service) GetMany(ctx context.Context, ids []int64) ([]Game, error) {
	return s.repo.ListByIDs(ctx, ids)
}

// Create schedules a game. A manual fee is validated and marked as an
// override; otherwise the fee resolves from the league fee schedule for
// the game's level, staying unset when no schedule row matches.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*Game, error) {
	fee := in.AssignedFee
	override := false
	if fee != nil {
		if err := shared.ValidateFee(*fee); err != nil {
			return nil, err
		}
		override = true
	}
	if in.LeagueID != 0 {
		ok, err := s.repo.LeagueExists(ctx, in.LeagueID)
		if err != nil {
			return nil, fmt.Errorf("games: check league: %w", err)
		}
		if !ok {
			return nil, ErrLeagueMissing
		}
		if fee == nil && in.Level != "" {
			auto, err := s.repo.FeeForLeagueLevel(ctx, in.LeagueID, in.Level)
			if err != nil {
				return nil, fmt.Errorf("games: resolve fee: %w", err)
			}
			fee = auto
		}
	}
	id, err := s.repo.Insert(ctx, in, fee, override, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", id)
	return s.repo.FindByID(ctx, id)
}

// Update rewrites game fields. Status changes go through the transition
// rules; reopening a completed game needs the override flag.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput, statusOverride bool) (*Game, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = current.Status
	}
	if err := shared.ValidateGameTransition(current.Status, in.Status, statusOverride); err != nil {
		return nil, err
	}
	if in.LeagueID != 0 && in.LeagueID != current.LeagueID {
		ok, err := s.repo.LeagueExists(ctx, in.LeagueID)
		if err != nil {
			return nil, fmt.Errorf("games: check league: %w", err)
		}
		if !ok {
			return nil, ErrLeagueMissing
		}
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", id)
	return s.repo.FindByID(ctx, id)
}

// Delete removes a game and its assignments in one transaction.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteWithAssignments(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", id)
	return nil
}

// BulkLink binds the games to one link group and returns how many rows
// changed.
func (s *Service) BulkLink(ctx context.Context, actorID int64, ids []int64, linkGroup string) (int64, error) {
	n, err := s.repo.SetLinkGroup(ctx, ids, &linkGroup)
	if err != nil {
		return 0, err
	}
	s.recordBulk(ctx, actorID, "bulk_link", ids)
	return n, nil
}

// BulkUnlink clears the link group on the games.
func (s *Service) BulkUnlink(ctx context.Context, actorID int64, ids []int64) (int64, error) {
	n, err := s.repo.SetLinkGroup(ctx, ids, nil)
	if err != nil {
		return 0, err
	}
	s.recordBulk(ctx, actorID, "bulk_unlink", ids)
	return n, nil
}

// BulkDelete removes the games and their assignments, assignments first.
func (s *Service) BulkDelete(ctx context.Context, actorID int64, ids []int64) (int64, error) {
	n, err := s.repo.DeleteManyWithAssignments(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.recordBulk(ctx, actorID, "bulk_delete", ids)
	return n, nil
}

// NextLinkGroup returns the next free LINK-NNN name.
func (s *Service) NextLinkGroup(ctx context.Context) (string, error) {
	last, err := s.repo.LastLinkGroup(ctx)
	if err != nil {
		return "", err
	}
	n := 0
	if last != "" {
		if _, err := fmt.Sscanf(last, "LINK-%d", &n); err != nil {
			n = 0
		}
	}
	return fmt.Sprintf("LINK-%03d", n+1), nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "game",
		EntityID: strconv.FormatInt(id, 10),
	})
}

func (s *Service) recordBulk(ctx context.Context, actorID int64, action string, ids []int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "game",
		EntityID: "batch",
		Meta:     map[string]any{"ids": ids},
	})
}
