// Package locations manages the venue catalog games are played at.
package locations

import (
	"errors"
	"time"

	"github.com/refdesk/refdesk/internal/authz"
)

// Location is a venue. Venues are shared reference data without league
// scope; visibility is organization wide.
type Location struct {
	ID            int64
	Name          string
	Address       string
	City          string
	State         string
	ZipCode       string
	ContactPerson string
	ContactPhone  string
	ContactEmail  string
	Capacity      int
	Notes         string
	IsActive      bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// Ref maps the location onto its authorization resource.
func (l Location) Ref() authz.LocationRef {
	return authz.LocationRef{ID: l.ID}
}

// Input carries location fields for create and update.
type Input struct {
	Name          string
	Address       string
	City          string
	State         string
	ZipCode       string
	ContactPerson string
	ContactPhone  string
	ContactEmail  string
	Capacity      int
	Notes         string
}

// ErrNameTaken indicates another active venue holds the name.
var ErrNameTaken = errors.New("locations: name already exists")
