// Package billing manages bill-to entities, the invoicing contacts
// league billing rules point at.
package billing

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// BillTo is an invoicing contact shared across leagues.
type BillTo struct {
	ID            int64
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	City          string
	State         string
	ZipCode       string
	TaxID         string
	IsActive      bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// Ref maps the entity onto its authorization resource.
func (b BillTo) Ref() authz.BillToRef {
	return authz.BillToRef{ID: b.ID}
}

// Input carries bill-to fields for create and update.
type Input struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	City          string
	State         string
	ZipCode       string
	TaxID         string
}

// Sentinel errors.
var (
	ErrNameTaken = errors.New("billing: entity name already exists")
	ErrInUse     = errors.New("billing: entity referenced by billing rules")
)
