package assignments

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Assignment binds an official to a game in a named position. The game's
// league rides along because every scoping decision resolves through it.
type Assignment struct {
	ID           int64
	GameID       int64
	OfficialID   int64
	OfficialName string
	Position     string
	Status       string
	Fee          float64
	AssignedBy   int64
	AssignedAt   time.Time

	LeagueID int64
	GameDate time.Time
	GameTime string
	HomeTeam string
	AwayTeam string
	Sport    string
	Location string
}

// Ref maps the assignment to its access-control resource.
func (a Assignment) Ref() authz.AssignmentRef {
	return authz.AssignmentRef{ID: a.ID, League: a.LeagueID, OfficialID: a.OfficialID}
}

// GameInfo is the projection of a game needed to validate an assignment
// against it.
type GameInfo struct {
	ID              int64
	LeagueID        int64
	GameDate        time.Time
	GameTime        string
	Status          string
	OfficialsNeeded int
	AssignedCount   int
	AssignedFee     *float64
}

// ListFilters narrows assignment listings.
type ListFilters struct {
	GameID     int64
	OfficialID int64
	Status     string
	DateFrom   string
	DateTo     string
}

// CreateInput carries one assignment to create. A nil Fee falls back to
// the game's assigned fee.
type CreateInput struct {
	GameID     int64
	OfficialID int64
	Position   string
	Fee        *float64
}

// UpdateInput rewrites assignment fields; nil fields stay untouched.
type UpdateInput struct {
	Position *string
	Status   *string
	Fee      *float64
}

// Stats aggregates assignment counts for the dashboard widgets.
type Stats struct {
	ByStatus   map[string]int64
	ByPosition map[string]int64
}

// BulkRow is the per-item outcome of a bulk submission.
type BulkRow struct {
	GameID     int64
	OfficialID int64
	ID         int64
	Err        string
}

// Assignment statuses. Officials move their own rows between these
// through the respond flow; schedulers may set any of them.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// ValidStatus reports whether s is in the status vocabulary.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Default position when none is named.
const DefaultPosition = "Official"

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrGameMissing     = errors.New("assignments: game not found")
	ErrOfficialMissing = errors.New("assignments: official not found")
	ErrDuplicate       = errors.New("assignments: official already assigned to this game")
	ErrTimeConflict    = errors.New("assignments: official already booked at that date and time")
	ErrGameFull        = errors.New("assignments: game already fully crewed")
	ErrBadStatus       = errors.New("assignments: unknown assignment status")
	ErrEmptyUpdate     = errors.New("assignments: no fields to update")
)
