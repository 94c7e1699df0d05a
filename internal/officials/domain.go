package officials

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Official is the sport-facing view of a user account: contact fields
// plus the certification and experience data carried only for officials.
type Official struct {
	ID                int64
	Username          string
	FullName          string
	Email             string
	Phone             string
	IsActive          bool
	Certifications    string
	Sports            string
	ExperienceYears   int
	AvailabilityNotes string
	LeagueIDs         []int64
	LastLogin         *time.Time
	CreatedAt         time.Time
}

// Ref returns the authorization reference for this official's account.
func (o Official) Ref() authz.AccountRef {
	return authz.AccountRef{ID: o.ID, Role: authz.RoleOfficial, Leagues: o.LeagueIDs}
}

// Detail extends the base record with assignment history for the
// management view.
type Detail struct {
	Official
	TotalAssignments   int64
	LastAssignmentDate *time.Time
	RecentAssignments  []RecentAssignment
}

// RecentAssignment is one row of an official's recent work history.
type RecentAssignment struct {
	GameDate time.Time
	GameTime string
	HomeTeam string
	AwayTeam string
	Sport    string
	Position string
	Status   string
}

// CreateInput carries the fields accepted when registering an official.
type CreateInput struct {
	Username          string
	Password          string
	FullName          string
	Email             string
	Phone             string
	Certifications    string
	Sports            string
	ExperienceYears   int
	AvailabilityNotes string
}

// UpdateInput carries the fields a manager may change on an official.
type UpdateInput struct {
	FullName          string
	Email             string
	Phone             string
	Certifications    string
	Sports            string
	ExperienceYears   int
	AvailabilityNotes string
}

// Profile is the slice of the account an official edits themselves.
type Profile struct {
	ID        int64
	Username  string
	FullName  string
	Email     string
	Phone     string
	Address   string
	IsActive  bool
	LastLogin *time.Time
	CreatedAt time.Time
}

// ProfileInput carries the self-service profile fields.
type ProfileInput struct {
	FullName string
	Email    string
	Phone    string
	Address  string
}

// MyGame is one row of an official's own schedule.
type MyGame struct {
	GameID     int64
	GameDate   time.Time
	GameTime   string
	HomeTeam   string
	AwayTeam   string
	Location   string
	Sport      string
	LeagueName string
	Level      string
	Notes      string
	Position   string
	Status     string
}

// MyStats buckets an official's assignments by schedule position.
type MyStats struct {
	Total     int64
	Upcoming  int64
	Completed int64
	ThisMonth int64
}

// OwnAssignment is the minimal view of the official's assignment on one
// game, loaded when they respond to it.
type OwnAssignment struct {
	ID     int64
	Status string
}

// Response verbs an official may send for an assignment.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

// Availability is one calendar record an official keeps about their own
// schedule. StartTime and EndTime bound a partial-day window; a record
// without them covers the whole date.
type Availability struct {
	ID         int64
	OfficialID int64
	Date       time.Time
	Type       string
	StartTime  string
	EndTime    string
	Reason     string
	CreatedAt  time.Time
}

// Ref returns the authorization reference for this availability record.
func (a Availability) Ref() authz.AvailabilityRef {
	return authz.AvailabilityRef{ID: a.ID, OfficialID: a.OfficialID}
}

// Availability types.
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
)

// AvailabilityInput carries a new availability record.
type AvailabilityInput struct {
	Date      time.Time
	Type      string
	StartTime string
	EndTime   string
	Reason    string
}

// Ranking is an admin-assigned per-league rating of an official.
type Ranking struct {
	OfficialID int64
	LeagueID   int64
	LeagueName string
	Ranking    int
	Notes      string
	AssignedBy int64
	AssignedAt time.Time
}

// Ref returns the authorization reference for this ranking.
func (r Ranking) Ref() authz.RankingRef {
	return authz.RankingRef{OfficialID: r.OfficialID, League: r.LeagueID}
}

// RankingInput carries a ranking upsert.
type RankingInput struct {
	LeagueID int64
	Ranking  int
	Notes    string
}

var (
	// ErrUsernameTaken signals a duplicate username.
	ErrUsernameTaken = errors.New("officials: username already exists")
	// ErrBadResponse signals an unknown response verb.
	ErrBadResponse = errors.New("officials: response must be accept or decline")
	// ErrWindowIncomplete signals an availability window missing one end.
	ErrWindowIncomplete = errors.New("officials: start and end times go together")
	// ErrAvailabilityExists signals a duplicate availability window.
	ErrAvailabilityExists = errors.New("officials: availability window already recorded")
	// ErrBadRanking signals a ranking outside the 1..5 scale.
	ErrBadRanking = errors.New("officials: ranking must be between 1 and 5")
)
