// Package authz implements the access-control core: the immutable
// role/action permission table, instance-level scoping rules, collection
// filtering and principal resolution.
package authz

import (
	"errors"
	"sort"
	"strings"
)

// Role is the coarse permission tier carried by every account.
type Role string

// Known roles.
const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleAssigner   Role = "assigner"
	RoleOfficial   Role = "official"
)

// ParseRole normalizes a stored role value. ok is false for unknown
// values; callers fail closed on those.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleAssigner, RoleOfficial:
		return true
	}
	return false
}

// Action enumerates the fixed permission vocabulary.
type Action string

// Known actions.
const (
	ActionView             Action = "view"
	ActionCreate           Action = "create"
	ActionEdit             Action = "edit"
	ActionDelete           Action = "delete"
	ActionManageUsers      Action = "manage_users"
	ActionAssignGames      Action = "assign_games"
	ActionManageOfficials  Action = "manage_officials"
	ActionManageBilling    Action = "manage_billing"
	ActionUpdateOwnProfile Action = "update_own_profile"
)

// ManagementAction returns the account-management action a role actually
// holds: assigners manage official accounts through manage_officials,
// admins and superadmins through manage_users.
func ManagementAction(role Role) Action {
	if role == RoleAssigner {
		return ActionManageOfficials
	}
	return ActionManageUsers
}

// DenyReason is the machine-readable code attached to a denial. Reasons
// are stable: they flow into audit logs and 403 response bodies.
type DenyReason string

// Denial reasons.
const (
	ReasonRoleForbidden          DenyReason = "role_forbidden"
	ReasonLeagueCreateRestricted DenyReason = "league_creation_restricted"
	ReasonNotYourResource        DenyReason = "not_your_resource"
	ReasonOutsideLeagues         DenyReason = "outside_assigned_leagues"
	ReasonInsufficientRole       DenyReason = "insufficient_role_to_manage_user"
)

// Decision is the outcome of an authorization check. Denial is a value,
// not an error; Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow builds an allowing decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a denying decision carrying the given reason.
func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Principal is the authenticated actor for the duration of one request.
// LeagueIDs is the membership set loaded at resolution time; it is only
// populated for admins and assigners.
type Principal struct {
	ID        int64
	Role      Role
	LeagueIDs map[int64]struct{}
}

// MemberOf reports whether the principal is scoped to the league.
func (p Principal) MemberOf(leagueID int64) bool {
	_, ok := p.LeagueIDs[leagueID]
	return ok
}

// Leagues returns the membership set as a sorted slice for query scoping.
func (p Principal) Leagues() []int64 {
	ids := make([]int64, 0, len(p.LeagueIDs))
	for id := range p.LeagueIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Authentication failure codes carried by AuthenticationError.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeAccountNotFound = "account_not_found"
	CodeAccountDisabled = "account_disabled"
)

// AuthenticationError reports that no valid principal could be resolved.
// It is distinct from a denial: it maps to 401, never 403.
type AuthenticationError struct {
	Code string
}

func (e *AuthenticationError) Error() string {
	return "authz: " + e.Code
}

// ErrMalformedPrincipal is returned when a check is attempted with a
// principal missing its identity or role. Endpoints convert it to a 500;
// it never produces a decision.
var ErrMalformedPrincipal = errors.New("authz: malformed principal")
