package users

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// User represents a user account for management.
type User struct {
	ID        int64
	Username  string
	FullName  string
	Email     string
	Phone     string
	Address   string
	Role      authz.Role
	IsActive  bool
	LeagueIDs []int64
	LastLogin *time.Time
	CreatedAt time.Time
}

// Ref returns the authorization reference for this account.
func (u User) Ref() authz.AccountRef {
	return authz.AccountRef{ID: u.ID, Role: u.Role, Leagues: u.LeagueIDs}
}

// CreateInput carries the fields accepted when creating an account.
type CreateInput struct {
	Username string
	Password string
	FullName string
	Email    string
	Phone    string
	Address  string
	Role     authz.Role
	IsActive bool
}

// DeleteResult reports how a delete request was settled: accounts that
// still carry assignments or league memberships are deactivated rather
// than removed.
type DeleteResult struct {
	Deleted     bool
	Deactivated bool
}

var (
	// ErrUsernameTaken signals a duplicate username.
	ErrUsernameTaken = errors.New("users: username already exists")
	// ErrEmailTaken signals a duplicate email.
	ErrEmailTaken = errors.New("users: email already exists")
	// ErrSelfDeletion signals an attempt to delete one's own account.
	ErrSelfDeletion = errors.New("users: cannot delete your own account")
	// ErrNoLeagues signals an actor without any league to add users to.
	ErrNoLeagues = errors.New("users: no assigned leagues")
)
