package officials

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/refdesk/refdesk/internal/assignments"
	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for officials, their
// schedules, availability records and rankings.
type RepositoryPort interface {
	List(ctx context.Context) ([]Official, error)
	ListByLeagues(ctx context.Context, leagueIDs []int64) ([]Official, error)
	FindByID(ctx context.Context, id int64) (*Official, error)
	Detail(ctx context.Context, id int64) (*Detail, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, in CreateInput, passwordHash string) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	ProfileByID(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, in ProfileInput) error
	GamesFor(ctx context.Context, officialID int64) ([]MyGame, error)
	StatsFor(ctx context.Context, officialID int64) (*MyStats, error)
	OwnAssignment(ctx context.Context, officialID, gameID int64) (*OwnAssignment, error)
	SaveResponse(ctx context.Context, assignmentID, officialID int64, response, status, notes string) error
	ListAvailability(ctx context.Context, officialID int64) ([]Availability, error)
	FindAvailability(ctx context.Context, id int64) (*Availability, error)
	InsertAvailability(ctx context.Context, officialID int64, in AvailabilityInput) (int64, error)
	DeleteAvailability(ctx context.Context, id int64) error
	ListRankings(ctx context.Context, officialID int64) ([]Ranking, error)
	UpsertRanking(ctx context.Context, officialID, leagueID int64, ranking int, notes string, assignedBy int64) error
	RankingFor(ctx context.Context, officialID, leagueID int64) (*Ranking, error)
}

// Service handles official management and self-service logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns officials scoped at the data layer: superadmins see all,
// admins and assigners see officials sharing one of their leagues, and
// officials see only their own record.
func (s *Service) List(ctx context.Context, pr authz.Principal) ([]Official, error) {
	switch pr.Role {
	case authz.RoleSuperadmin:
		return s.repo.List(ctx)
	case authz.RoleOfficial:
		own, err := s.repo.FindByID(ctx, pr.ID)
		if err != nil {
			return nil, err
		}
		return []Official{*own}, nil
	default:
		return s.repo.ListByLeagues(ctx, pr.Leagues())
	}
}

// Get fetches one official with assignment history.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	return s.repo.Detail(ctx, id)
}

// Create registers a new official account.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*Official, error) {
	taken, err := s.repo.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("officials: check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("officials: hash password: %w", err)
	}
	id, err := s.repo.Insert(ctx, in, string(hash))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", "official", id)
	return s.repo.FindByID(ctx, id)
}

// Update rewrites an official's management fields.
func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (*Official, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", "official", id)
	return s.repo.FindByID(ctx, id)
}

// Profile fetches the caller's own profile.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.ProfileByID(ctx, userID)
}

// UpdateProfile rewrites the caller's own contact fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*Profile, error) {
	if err := s.repo.UpdateProfile(ctx, userID, in); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "update", "profile", userID)
	return s.repo.ProfileByID(ctx, userID)
}

// MyGames returns the official's own schedule, newest first.
func (s *Service) MyGames(ctx context.Context, officialID int64) ([]MyGame, error) {
	return s.repo.GamesFor(ctx, officialID)
}

// MyStats returns the official's assignment counts by schedule bucket.
func (s *Service) MyStats(ctx context.Context, officialID int64) (*MyStats, error) {
	return s.repo.StatsFor(ctx, officialID)
}

// Respond records the official's answer to their assignment on the game
// and moves the assignment status accordingly. Responding again replaces
// the previous answer.
func (s *Service) Respond(ctx context.Context, officialID, gameID int64, response, notes string) (string, error) {
	var status string
	switch response {
	case ResponseAccept:
		status = assignments.StatusAccepted
	case ResponseDecline:
		status = assignments.StatusDeclined
	default:
		return "", ErrBadResponse
	}
	own, err := s.repo.OwnAssignment(ctx, officialID, gameID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveResponse(ctx, own.ID, officialID, response, status, notes); err != nil {
		return "", err
	}
	s.record(ctx, officialID, response, "assignment", own.ID)
	return status, nil
}

// Availability returns the official's own availability records.
func (s *Service) Availability(ctx context.Context, officialID int64) ([]Availability, error) {
	return s.repo.ListAvailability(ctx, officialID)
}

// AddAvailability stores a new availability record for the official. A
// partial-day window needs both ends.
func (s *Service) AddAvailability(ctx context.Context, officialID int64, in AvailabilityInput) (*Availability, error) {
	if (in.StartTime == "") != (in.EndTime == "") {
		return nil, ErrWindowIncomplete
	}
	id, err := s.repo.InsertAvailability(ctx, officialID, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, officialID, "create", "availability", id)
	return s.repo.FindAvailability(ctx, id)
}

// GetAvailability fetches one availability record.
func (s *Service) GetAvailability(ctx context.Context, id int64) (*Availability, error) {
	return s.repo.FindAvailability(ctx, id)
}

// RemoveAvailability deletes an availability record.
func (s *Service) RemoveAvailability(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteAvailability(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "availability", id)
	return nil
}

// Rankings returns every per-league ranking held by the official.
func (s *Service) Rankings(ctx context.Context, officialID int64) ([]Ranking, error) {
	return s.repo.ListRankings(ctx, officialID)
}

// SetRanking upserts the official's ranking for one league.
func (s *Service) SetRanking(ctx context.Context, actorID, officialID int64, in RankingInput) (*Ranking, error) {
	if in.Ranking < 1 || in.Ranking > 5 {
		return nil, ErrBadRanking
	}
	if err := s.repo.UpsertRanking(ctx, officialID, in.LeagueID, in.Ranking, in.Notes, actorID); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "rank", "official", officialID)
	return s.repo.RankingFor(ctx, officialID, in.LeagueID)
}

// record writes an audit entry; failures never surface to the caller.
func (s *Service) record(ctx context.Context, actorID int64, action, entity string, targetID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(targetID, 10),
	})
}
