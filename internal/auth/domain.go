package auth

import (
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Account represents a user account able to sign in.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	Email        string
	Phone        string
	Address      string
	Role         authz.Role
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}
