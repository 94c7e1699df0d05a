package authz

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/refdesk/refdesk/internal/shared"
)

// Account is the storage view of a user needed to build a Principal.
type Account struct {
	ID       int64
	Role     Role
	IsActive bool
}

// AccountSource loads accounts during principal resolution.
type AccountSource interface {
	AccountByID(ctx context.Context, id int64) (Account, error)
}

// MembershipSource lists the leagues a user actively belongs to.
type MembershipSource interface {
	ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Resolver turns an authenticated session into a Principal. Resolution
// failures that mean "not authenticated" come back as *AuthenticationError;
// anything else is an infrastructure error.
type Resolver struct {
	accounts    AccountSource
	memberships MembershipSource
}

// NewResolver constructs a Resolver.
func NewResolver(accounts AccountSource, memberships MembershipSource) *Resolver {
	return &Resolver{accounts: accounts, memberships: memberships}
}

// Resolve loads the Principal behind sess. Admins and assigners carry
// their active league memberships; superadmins and officials carry none,
// their scoping never consults memberships.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session) (Principal, error) {
	if sess == nil || sess.User() == "" {
		return Principal{}, &AuthenticationError{Code: CodeUnauthenticated}
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, &AuthenticationError{Code: CodeUnauthenticated}
	}

	acct, err := r.accounts.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Principal{}, &AuthenticationError{Code: CodeAccountNotFound}
		}
		return Principal{}, fmt.Errorf("authz: load account %d: %w", id, err)
	}
	if !acct.IsActive {
		return Principal{}, &AuthenticationError{Code: CodeAccountDisabled}
	}

	pr := Principal{ID: acct.ID, Role: acct.Role}
	if acct.Role == RoleAdmin || acct.Role == RoleAssigner {
		leagues, err := r.memberships.ActiveLeagueIDs(ctx, acct.ID)
		if err != nil {
			return Principal{}, fmt.Errorf("authz: load memberships for %d: %w", acct.ID, err)
		}
		pr.LeagueIDs = make(map[int64]struct{}, len(leagues))
		for _, league := range leagues {
			pr.LeagueIDs[league] = struct{}{}
		}
	}
	return pr, nil
}
