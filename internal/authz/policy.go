package authz

// Policy holds the role/action permission table and evaluates access
// decisions against it. Build one with NewPolicy at startup and share it;
// the table is never mutated after construction.
type Policy struct {
	table map[Role]map[Action]bool
}

// NewPolicy builds the canonical permission table.
func NewPolicy() *Policy {
	p := &Policy{table: make(map[Role]map[Action]bool, 4)}
	p.grant(RoleSuperadmin,
		ActionView, ActionCreate, ActionEdit, ActionDelete,
		ActionManageUsers, ActionAssignGames, ActionManageOfficials, ActionManageBilling)
	p.grant(RoleAdmin,
		ActionView, ActionCreate, ActionEdit, ActionDelete,
		ActionManageUsers, ActionAssignGames, ActionManageBilling)
	p.grant(RoleAssigner,
		ActionView, ActionAssignGames, ActionManageOfficials)
	p.grant(RoleOfficial,
		ActionView, ActionUpdateOwnProfile)
	return p
}

func (p *Policy) grant(role Role, actions ...Action) {
	set := make(map[Action]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	p.table[role] = set
}

// IsPermitted reports whether the role holds the action in the table.
// Unknown roles and unknown actions are both false.
func (p *Policy) IsPermitted(role Role, action Action) bool {
	return p.table[role][action]
}

// Authorize decides whether the principal may perform action on res.
// A nil res checks the action at class level, against the table alone.
// The only error condition is a malformed principal; every other outcome
// is a Decision, and a denial carries the reason that fired first.
func (p *Policy) Authorize(pr Principal, action Action, res Resource) (Decision, error) {
	if pr.ID == 0 || pr.Role == "" {
		return Decision{}, ErrMalformedPrincipal
	}
	if !p.IsPermitted(pr.Role, action) {
		return Deny(ReasonRoleForbidden), nil
	}
	if res != nil && res.Kind() == KindLeague && action == ActionCreate && pr.Role != RoleSuperadmin {
		return Deny(ReasonLeagueCreateRestricted), nil
	}
	if pr.Role == RoleSuperadmin {
		return Allow(), nil
	}
	if pr.Role == RoleOfficial {
		if res != nil && !ownedBy(res, pr.ID) {
			return Deny(ReasonNotYourResource), nil
		}
		return Allow(), nil
	}
	if res == nil {
		return Allow(), nil
	}
	switch target := res.(type) {
	case ProfileRef:
		if target.UserID != pr.ID {
			return Deny(ReasonNotYourResource), nil
		}
		return Allow(), nil
	case AccountRef:
		return p.authorizeAccount(pr, action, target), nil
	}
	if leagueScoped(res.Kind()) {
		league, ok := res.LeagueID()
		if !ok || !pr.MemberOf(league) {
			return Deny(ReasonOutsideLeagues), nil
		}
	}
	return Allow(), nil
}

// authorizeAccount applies the seniority guard before league scoping: a
// denial for managing a too-senior account must not be masked by a scope
// denial, and league overlap must never let an assigner touch an admin.
func (p *Policy) authorizeAccount(pr Principal, action Action, acct AccountRef) Decision {
	if mutatesAccount(action) {
		switch pr.Role {
		case RoleAssigner:
			if acct.Role != RoleOfficial {
				return Deny(ReasonInsufficientRole)
			}
		case RoleAdmin:
			// Applies to the admin's own account too: self edits go
			// through the profile path, not account management.
			if acct.Role == RoleAdmin || acct.Role == RoleSuperadmin {
				return Deny(ReasonInsufficientRole)
			}
		}
	}
	if acct.ID == pr.ID {
		return Allow()
	}
	if acct.ID == 0 {
		// A new account has no memberships yet; the role guard above
		// is the only constraint on creation.
		return Allow()
	}
	for _, league := range acct.Leagues {
		if pr.MemberOf(league) {
			return Allow()
		}
	}
	return Deny(ReasonOutsideLeagues)
}

// mutatesAccount reports whether the action changes an account rather
// than merely reading it.
func mutatesAccount(action Action) bool {
	switch action {
	case ActionCreate, ActionEdit, ActionDelete, ActionManageUsers, ActionManageOfficials:
		return true
	}
	return false
}

// FilterVisible returns the subset of resources the principal may view,
// in input order. The input slice is never modified; the result is always
// a fresh slice. Any element whose check cannot complete is excluded.
func FilterVisible[R Resource](p *Policy, pr Principal, resources []R) []R {
	visible := make([]R, 0, len(resources))
	for _, res := range resources {
		dec, err := p.Authorize(pr, ActionView, res)
		if err != nil || !dec.Allowed {
			continue
		}
		visible = append(visible, res)
	}
	return visible
}

// FilterVisibleFunc filters a domain slice by the visibility of the
// resource each element maps to. Exclusion semantics match FilterVisible.
func FilterVisibleFunc[T any](p *Policy, pr Principal, items []T, ref func(T) Resource) []T {
	visible := make([]T, 0, len(items))
	for _, item := range items {
		dec, err := p.Authorize(pr, ActionView, ref(item))
		if err != nil || !dec.Allowed {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}
