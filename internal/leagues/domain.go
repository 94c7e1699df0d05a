// Package leagues manages leagues, their level catalogs, membership
// grants, fee schedules and billing structures.
package leagues

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// League is the scoping unit every other resource hangs off.
type League struct {
	ID          int64
	Name        string
	Sport       string
	Season      string
	Description string
	IsActive    bool
	CreatedBy   int64
	CreatedAt   time.Time
}

// Ref maps the league onto its authorization resource.
func (l League) Ref() authz.LeagueRef {
	return authz.LeagueRef{ID: l.ID}
}

// Level is one competition level within a league.
type Level struct {
	ID         int64
	LeagueID   int64
	LevelName  string
	Notes      string
	IsActive   bool
	CreatedAt  time.Time
	LeagueName string
}

// Fee is the official fee schedule for one league level.
type Fee struct {
	ID            int64
	LeagueID      int64
	LevelName     string
	OfficialFee   float64
	Notes         string
	IsActive      bool
	CreatedBy     int64
	CreatedByName string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ref maps the fee schedule onto its authorization resource.
func (f Fee) Ref() authz.FeeScheduleRef {
	return authz.FeeScheduleRef{ID: f.ID, League: f.LeagueID}
}

// BillingRule binds a league level to a bill-to entity and charge.
type BillingRule struct {
	ID         int64
	LeagueID   int64
	LevelName  string
	BillAmount float64
	BillToID   int64
	BillToName string
	Notes      string
	IsActive   bool
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ref maps the billing rule onto its authorization resource.
func (b BillingRule) Ref() authz.BillingRuleRef {
	return authz.BillingRuleRef{ID: b.ID, League: b.LeagueID}
}

// ListFilters narrow the league list.
type ListFilters struct {
	Search string
	Sport  string
	Season string
}

// CreateInput carries a new league and its optional level catalog.
type CreateInput struct {
	Name        string
	Sport       string
	Season      string
	Description string
	Levels      []string
}

// UpdateInput carries league field changes; a non-nil Levels replaces
// the level catalog.
type UpdateInput struct {
	Name        string
	Sport       string
	Season      string
	Description string
	Levels      []string
}

// FeeInput carries a fee schedule row.
type FeeInput struct {
	LevelName   string
	OfficialFee float64
	Notes       string
}

// BillingInput carries a billing rule row.
type BillingInput struct {
	LevelName  string
	BillAmount float64
	BillToID   int64
	Notes      string
}

// BillingUpdate carries partial billing rule changes.
type BillingUpdate struct {
	BillAmount *float64
	BillToID   *int64
	Notes      *string
}

// Sentinel errors.
var (
	ErrNameTaken     = errors.New("leagues: name already exists for this season")
	ErrFeeExists     = errors.New("leagues: fee schedule already exists for this level")
	ErrBillingExists = errors.New("leagues: billing structure already exists for this level")
	ErrBillToMissing = errors.New("leagues: bill-to entity not found")
	ErrEmptyUpdate   = errors.New("leagues: no fields to update")
	ErrNotAssignable = errors.New("leagues: only admin and assigner accounts hold memberships")
)
