package authz

// Kind tags the resource variants subject to access control.
type Kind string

// Resource kinds.
const (
	KindLeague       Kind = "league"
	KindGame         Kind = "game"
	KindAssignment   Kind = "assignment"
	KindAccount      Kind = "account"
	KindProfile      Kind = "profile"
	KindFeeSchedule  Kind = "fee_schedule"
	KindBillingRule  Kind = "billing_rule"
	KindBillTo       Kind = "bill_to"
	KindLocation     Kind = "location"
	KindAvailability Kind = "availability"
	KindRanking      Kind = "ranking"
)

// Resource is implemented by every entity variant the policy decides on.
// LeagueID is total across variants: kinds without league scope report
// ok=false, and the policy fails closed on league-scoped kinds that
// cannot resolve one.
type Resource interface {
	Kind() Kind
	LeagueID() (int64, bool)
}

// LeagueRef identifies a league itself. The zero ID marks a league about
// to be created.
type LeagueRef struct {
	ID int64
}

func (LeagueRef) Kind() Kind { return KindLeague }

func (l LeagueRef) LeagueID() (int64, bool) { return l.ID, l.ID != 0 }

// GameRef identifies a game, the league it belongs to and the officials
// currently assigned to it.
type GameRef struct {
	ID          int64
	League      int64
	OfficialIDs []int64
}

func (GameRef) Kind() Kind { return KindGame }

func (g GameRef) LeagueID() (int64, bool) { return g.League, g.League != 0 }

// AssignmentRef identifies an assignment, scoped through its parent
// game's league and addressed to one official.
type AssignmentRef struct {
	ID         int64
	League     int64
	OfficialID int64
}

func (AssignmentRef) Kind() Kind { return KindAssignment }

func (a AssignmentRef) LeagueID() (int64, bool) { return a.League, a.League != 0 }

// AccountRef identifies a user account as the target of a check. Leagues
// carries the account's own scope: membership leagues for admins and
// assigners, assignment leagues for officials.
type AccountRef struct {
	ID      int64
	Role    Role
	Leagues []int64
}

func (AccountRef) Kind() Kind { return KindAccount }

func (AccountRef) LeagueID() (int64, bool) { return 0, false }

// ProfileRef identifies a user's own profile fields.
type ProfileRef struct {
	UserID int64
}

func (ProfileRef) Kind() Kind { return KindProfile }

func (ProfileRef) LeagueID() (int64, bool) { return 0, false }

// FeeScheduleRef identifies a league fee row.
type FeeScheduleRef struct {
	ID     int64
	League int64
}

func (FeeScheduleRef) Kind() Kind { return KindFeeSchedule }

func (f FeeScheduleRef) LeagueID() (int64, bool) { return f.League, f.League != 0 }

// BillingRuleRef identifies a league billing row.
type BillingRuleRef struct {
	ID     int64
	League int64
}

func (BillingRuleRef) Kind() Kind { return KindBillingRule }

func (b BillingRuleRef) LeagueID() (int64, bool) { return b.League, b.League != 0 }

// BillToRef identifies a billing contact. Bill-to entities are shared
// across leagues and carry no league scope of their own.
type BillToRef struct {
	ID int64
}

func (BillToRef) Kind() Kind { return KindBillTo }

func (BillToRef) LeagueID() (int64, bool) { return 0, false }

// LocationRef identifies a venue. Locations are shared reference data.
type LocationRef struct {
	ID int64
}

func (LocationRef) Kind() Kind { return KindLocation }

func (LocationRef) LeagueID() (int64, bool) { return 0, false }

// AvailabilityRef identifies an official's availability record.
type AvailabilityRef struct {
	ID         int64
	OfficialID int64
}

func (AvailabilityRef) Kind() Kind { return KindAvailability }

func (AvailabilityRef) LeagueID() (int64, bool) { return 0, false }

// RankingRef identifies an official's per-league ranking.
type RankingRef struct {
	OfficialID int64
	League     int64
}

func (RankingRef) Kind() Kind { return KindRanking }

func (r RankingRef) LeagueID() (int64, bool) { return r.League, r.League != 0 }

// leagueScoped reports whether a kind is subject to league membership
// scoping for admins and assigners.
func leagueScoped(kind Kind) bool {
	switch kind {
	case KindLeague, KindGame, KindAssignment, KindFeeSchedule, KindBillingRule, KindRanking:
		return true
	}
	return false
}

// ownedBy reports whether the resource belongs to the given official:
// their profile, their account, a record addressed to them, or a game
// one of their assignments references.
func ownedBy(res Resource, userID int64) bool {
	switch v := res.(type) {
	case ProfileRef:
		return v.UserID == userID
	case AccountRef:
		return v.ID == userID
	case AssignmentRef:
		return v.OfficialID == userID
	case AvailabilityRef:
		return v.OfficialID == userID
	case GameRef:
		for _, id := range v.OfficialIDs {
			if id == userID {
				return true
			}
		}
		return false
	case RankingRef:
		return v.OfficialID == userID
	}
	return false
}
