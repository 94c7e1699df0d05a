package locations

import (
	"context"
	"fmt"
	"strconv"

	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for venues.
type RepositoryPort interface {
	List(ctx context.Context) ([]Location, error)
	FindByID(ctx context.Context, id int64) (*Location, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Insert(ctx context.Context, in Input, createdBy int64) (int64, error)
	Update(ctx context.Context, id int64, in Input) error
	SoftDelete(ctx context.Context, id int64) error
}

// Service handles venue management logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns every active venue ordered by name.
func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

// Get fetches one venue.
func (s *Service) Get(ctx context.Context, id int64) (*Location, error) {
	return s.repo.FindByID(ctx, id)
}

// Create registers a venue after a duplicate name check.
func (s *Service) Create(ctx context.Context, actorID int64, in Input) (*Location, error) {
	taken, err := s.repo.NameExists(ctx, in.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("locations: check name: %w", err)
	}
	if taken {
		return nil, ErrNameTaken
	}
	id, err := s.repo.Insert(ctx, in, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "create", id)
	return s.repo.FindByID(ctx, id)
}

// Update rewrites venue fields.
func (s *Service) Update(ctx context.Context, actorID, id int64, in Input) (*Location, error) {
	taken, err := s.repo.NameExists(ctx, in.Name, id)
	if err != nil {
		return nil, fmt.Errorf("locations: check name: %w", err)
	}
	if taken {
		return nil, ErrNameTaken
	}
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "update", id)
	return s.repo.FindByID(ctx, id)
}

// Delete soft deletes a venue; games keep their location reference.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "location",
		EntityID: strconv.FormatInt(id, 10),
	})
}
