package users

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for accounts and their
// league memberships.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	ListByLeagues(ctx context.Context, leagueIDs []int64) ([]User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, in CreateInput, passwordHash string) (int64, error)
	HardDelete(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, userID int64) (int, error)
	CountMemberships(ctx context.Context, userID int64) (int, error)
	AddMemberships(ctx context.Context, userID int64, leagueIDs []int64, assignedBy int64) error
	ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service handles account management logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns accounts scoped at the data layer: superadmins see every
// account, scoped roles see accounts sharing one of their leagues.
func (s *Service) List(ctx context.Context, pr authz.Principal) ([]User, error) {
	if pr.Role == authz.RoleSuperadmin {
		return s.repo.List(ctx)
	}
	return s.repo.ListByLeagues(ctx, pr.Leagues())
}

// Get fetches one account with its membership set.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// Create registers a new account after duplicate checks.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*User, error) {
	taken, err := s.repo.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("users: check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	if in.Email != "" {
		taken, err = s.repo.EmailExists(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("users: check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	id, err := s.repo.Insert(ctx, in, string(hash))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", id)
	return s.repo.FindByID(ctx, id)
}

// Delete removes an account. Accounts still referenced by game
// assignments or league memberships are deactivated instead of removed
// so history stays intact.
func (s *Service) Delete(ctx context.Context, actorID, id int64) (DeleteResult, error) {
	if actorID == id {
		return DeleteResult{}, ErrSelfDeletion
	}
	assignments, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("users: count assignments: %w", err)
	}
	memberships, err := s.repo.CountMemberships(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("users: count memberships: %w", err)
	}
	if assignments > 0 || memberships > 0 {
		if err := s.repo.Deactivate(ctx, id); err != nil {
			return DeleteResult{}, err
		}
		s.record(ctx, actorID, "deactivate", id)
		return DeleteResult{Deactivated: true}, nil
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return DeleteResult{}, err
	}
	s.record(ctx, actorID, "delete", id)
	return DeleteResult{Deleted: true}, nil
}

// SearchResult pairs a matched account with whether it already belongs
// to one of the searching actor's leagues.
type SearchResult struct {
	User            User
	AlreadyInLeague bool
}

// SearchByEmail finds an active account by exact email. The overlap flag
// tells admins whether the add-to-league step would be a no-op.
func (s *Service) SearchByEmail(ctx context.Context, pr authz.Principal, email string) (*SearchResult, error) {
	user, err := s.repo.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{User: *user}
	for _, leagueID := range user.LeagueIDs {
		if pr.MemberOf(leagueID) {
			res.AlreadyInLeague = true
			break
		}
	}
	return res, nil
}

// AddToLeague grants the target membership in every league the actor
// actively belongs to. Leagues the target already holds are skipped;
// lapsed memberships are reactivated. Returns the league ids granted.
func (s *Service) AddToLeague(ctx context.Context, actorID, targetID int64) ([]int64, error) {
	actorLeagues, err := s.repo.ActiveLeagueIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("users: load actor leagues: %w", err)
	}
	if len(actorLeagues) == 0 {
		return nil, ErrNoLeagues
	}
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	held := make(map[int64]struct{}, len(target.LeagueIDs))
	for _, id := range target.LeagueIDs {
		held[id] = struct{}{}
	}
	toAdd := make([]int64, 0, len(actorLeagues))
	for _, id := range actorLeagues {
		if _, ok := held[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	if len(toAdd) == 0 {
		return []int64{}, nil
	}
	if err := s.repo.AddMemberships(ctx, targetID, toAdd, actorID); err != nil {
		return nil, fmt.Errorf("users: add memberships: %w", err)
	}
	s.record(ctx, actorID, "add_to_league", targetID)
	return toAdd, nil
}

// record writes an audit entry; failures never surface to the caller.
func (s *Service) record(ctx context.Context, actorID int64, action string, targetID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(targetID, 10),
	})
}
