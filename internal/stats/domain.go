package stats

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Dashboard aggregates the landing-page counters for one scope.
type Dashboard struct {
	UpcomingGames    int64
	TotalAssignments int64
	ActiveOfficials  int64
	RecentGames      []RecentGame
}

// RecentGame is one row of the upcoming-games strip.
type RecentGame struct {
	ID       int64
	GameDate time.Time
	GameTime string
	HomeTeam string
	AwayTeam string
	Location string
	Sport    string
}

// Totals holds the organization-wide counts shown to administrators.
type Totals struct {
	Users       int64
	Officials   int64
	Games       int64
	Assignments int64
	Leagues     int64
	Locations   int64
}

// Scope narrows dashboard aggregation to what a principal may see:
// everything, a set of leagues, or a single official's own records.
type Scope struct {
	Global     bool
	OfficialID int64
	LeagueIDs  []int64
}

// ScopeFor derives the aggregation scope from a resolved principal.
func ScopeFor(pr authz.Principal) Scope {
	switch pr.Role {
	case authz.RoleSuperadmin:
		return Scope{Global: true}
	case authz.RoleOfficial:
		return Scope{OfficialID: pr.ID}
	default:
		ids := pr.Leagues()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return Scope{LeagueIDs: ids}
	}
}

// token renders the scope as a stable cache key fragment. League sets
// are sorted by ScopeFor so equal scopes share an entry.
func (sc Scope) token() string {
	switch {
	case sc.Global:
		return "all"
	case sc.OfficialID != 0:
		return "official:" + strconv.FormatInt(sc.OfficialID, 10)
	default:
		parts := make([]string, 0, len(sc.LeagueIDs))
		for _, id := range sc.LeagueIDs {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		return "leagues:" + strings.Join(parts, "-")
	}
}
