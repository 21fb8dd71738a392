// Package user defines the user identity entity and its repository
// interface. The matching core only ever holds immutable Identity
// snapshots; account state is owned by the persistence layer.
package user

import (
	"slices"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
)

// Role enumerates the account roles.
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleAgronomist Role = "agronomist"
	RoleAdmin      Role = "admin"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleFarmer, RoleAgronomist, RoleAdmin:
		return true
	}
	return false
}

// Identity is an immutable snapshot of one account as seen by the
// matching and realtime layers.
type Identity struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            Role       `json:"role"`
	IsApproved      bool       `json:"isApproved"`
	SubscribedCrops []string   `json:"subscribedCrops"`
	Location        *geo.Point `json:"location,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// DisplayName returns the user-facing name used in alert payloads.
func (i Identity) DisplayName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// SubscribesTo reports whether the identity subscribes to cropType.
// Matching is exact and case-sensitive.
func (i Identity) SubscribesTo(cropType string) bool {
	return slices.Contains(i.SubscribedCrops, cropType)
}

// Account is the persisted form of a user, including credentials.
type Account struct {
	Identity
	PasswordHash string `json:"-"` // Never serialize password hash
}

// RoleFilter narrows a spatial candidate query.
type RoleFilter struct {
	Role         Role
	ApprovedOnly bool
}

// Repository defines the operations for persisting accounts and running
// the bounding-radius spatial primitive the notification core depends on.
type Repository interface {
	FindByID(id string) (*Account, error)
	FindByEmail(email string) (*Account, error)
	Store(account *Account) error
	UpdateProfile(id string, crops []string, location *geo.Point) error
	SetApproval(id string, approved bool) error
	FindPending(role Role) ([]Identity, error)
	FindWithinRadius(center geo.Point, radiusMeters float64, filter RoleFilter) ([]Identity, error)
}
