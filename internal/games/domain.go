// Package games manages the game schedule: CRUD, link groups for
// multi-game sets, bulk operations and automatic fee resolution.
package games

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Game is one scheduled contest. LeagueID is zero when the game is not
// bound to a league; such games resolve no scope and stay visible to
// superadmins only.
type Game struct {
	ID              int64
	LeagueID        int64
	LeagueName      string
	GameDate        time.Time
	GameTime        string
	HomeTeam        string
	AwayTeam        string
	Location        string
	Sport           string
	Level           string
	OfficialsNeeded int
	Status          string
	LinkGroup       string
	AssignedFee     *float64
	FeeOverride     bool
	Notes           string
	CreatedBy       int64
	CreatedAt       time.Time
	OfficialIDs     []int64
}

// Ref maps the game onto its authorization resource.
func (g Game) Ref() authz.GameRef {
	return authz.GameRef{ID: g.ID, League: g.LeagueID, OfficialIDs: g.OfficialIDs}
}

// AssignedCount is the number of officials currently assigned.
func (g Game) AssignedCount() int {
	return len(g.OfficialIDs)
}

// ListFilters narrow the game list.
type ListFilters struct {
	Search string
	Sport  string
	Date   string
	Status string
}

// CreateInput carries a new game. A non-nil AssignedFee is a manual
// override; otherwise the fee resolves from the league's fee schedule.
type CreateInput struct {
	LeagueID        int64
	GameDate        time.Time
	GameTime        string
	HomeTeam        string
	AwayTeam        string
	Location        string
	Sport           string
	Level           string
	OfficialsNeeded int
	Notes           string
	AssignedFee     *float64
}

// UpdateInput carries game field changes.
type UpdateInput struct {
	LeagueID        int64
	GameDate        time.Time
	GameTime        string
	HomeTeam        string
	AwayTeam        string
	Location        string
	Sport           string
	Level           string
	OfficialsNeeded int
	Notes           string
	Status          string
	LinkGroup       string
}

// ErrLeagueMissing indicates the referenced league does not exist.
var ErrLeagueMissing = errors.New("games: league not found")
