package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access methods for bill-to entities.
type RepositoryPort interface {
	List(ctx context.Context) ([]BillTo, error)
	FindByID(ctx context.Context, id int64) (*BillTo, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Insert(ctx context.Context, in Input, createdBy int64) (int64, error)
	Update(ctx context.Context, id int64, in Input) error
	SoftDelete(ctx context.Context, id int64) error
	CountBillingRules(ctx context.Context, billToID int64) (int, error)
}

// Service handles bill-to entity logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns active entities ordered by name.
func (s *Service) List(ctx context.Context) ([]BillTo, error) {
	return s.repo.List(ctx)
}

// Get fetches one entity.
func (s *Service) Get(ctx context.Context, id int64) (*BillTo, error) {
	return s.repo.FindByID(ctx, id)
}

// Create registers an entity after a duplicate name check.
func (s *Service) Create(ctx context.Context, actorID int64, in Input) (*BillTo, error) {
	taken, err := s.repo.NameExists(ctx, in.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("billing: check name: %w", err)
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

// Update rewrites entity fields.
func (s *Service) Update(ctx context.Context, actorID, id int64, in Input) (*BillTo, error) {
	taken, err := s.repo.NameExists(ctx, in.Name, id)
	if err != nil {
		return nil, fmt.Errorf("billing: check name: %w", err)
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

// Delete soft deletes an entity. Entities still referenced by active
// billing rules stay; the rules must be repointed first.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	rules, err := s.repo.CountBillingRules(ctx, id)
	if err != nil {
		return fmt.Errorf("billing: count rules: %w", err)
	}
	if rules > 0 {
		return ErrInUse
	}
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
		Entity:   "bill_to_entity",
		EntityID: strconv.FormatInt(id, 10),
	})
}
