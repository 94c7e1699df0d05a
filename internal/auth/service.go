package auth

import (
	"context"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/refdesk/refdesk/internal/shared"
)

// RepositoryPort defines data access needed by the Service.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// Service wraps authentication business rules.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// Authenticate validates username/password credentials. Every failure
// collapses into ErrInvalidCredentials so responses never reveal whether
// the username exists.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acct, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acct.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acct, nil
}

// RecordLogin stamps last_login and writes the sign-in audit entry.
func (s *Service) RecordLogin(ctx context.Context, acct *Account) error {
	if err := s.repo.UpdateLastLogin(ctx, acct.ID); err != nil {
		return err
	}
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  acct.ID,
		Action:   "login",
		Entity:   "user",
		EntityID: strconv.FormatInt(acct.ID, 10),
	})
}

// RecordLogout writes the sign-out audit entry.
func (s *Service) RecordLogout(ctx context.Context, actorID int64) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "logout",
		Entity:   "user",
		EntityID: strconv.FormatInt(actorID, 10),
	})
}

// AccountByID loads an account for the session endpoints.
func (s *Service) AccountByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}
