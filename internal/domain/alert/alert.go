// Package alert defines the crop alert entity and its repository
// interface. An alert is immutable from the matching core's perspective;
// its lifecycle is owned by the CRUD layer.
package alert

import (
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
)

// Severity enumerates alert severities.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidSeverity reports whether s names a known severity.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Type enumerates alert categories.
type Type string

const (
	TypePest    Type = "pest"
	TypeDisease Type = "disease"
	TypeWeather Type = "weather"
)

// ValidType reports whether s names a known alert type.
func ValidType(s string) bool {
	switch Type(s) {
	case TypePest, TypeDisease, TypeWeather:
		return true
	}
	return false
}

// Alert is a time-bounded geolocated advisory.
type Alert struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	AlertType   Type       `json:"alertType"`
	CropType    string     `json:"cropType"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Location    geo.Point  `json:"location"`
	CreatorID   string     `json:"creatorId"`
	CreatorName string     `json:"creatorName,omitempty"`
}

// IsActive is the single authoritative expiration predicate: an alert is
// active iff ExpiresAt is absent or strictly in the future at now.
// Expiration is evaluated lazily, never swept in the background.
func (a Alert) IsActive(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Repository defines the operations for persisting alerts.
type Repository interface {
	FindByID(id string) (*Alert, error)
	FindAll() ([]Alert, error)
	FindByCreator(creatorID string) ([]Alert, error)
	FindWithinRadius(center geo.Point, radiusMeters float64, cropType string) ([]Alert, error)
	Store(a *Alert) error
	Update(a *Alert) error
	Delete(id string) error
}
