package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/match"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/security"
)

var (
	// ErrNotAuthor reports an alert write by a user who may not author
	// alerts (not an approved agronomist).
	ErrNotAuthor = errors.New("only approved agronomists can author alerts")

	// ErrNotOwner reports an alert mutation by a user who is neither the
	// alert's creator nor an admin.
	ErrNotOwner = errors.New("alert can only be modified by its creator or an admin")

	// ErrAlertNotFound reports an operation against a missing alert.
	ErrAlertNotFound = errors.New("alert not found")
)

// CreateAlertRequest carries a new alert authored by an agronomist.
type CreateAlertRequest struct {
	Title       string
	Description string
	Severity    alert.Severity
	AlertType   alert.Type
	CropType    string
	Location    geo.Point
	ExpiresAt   *time.Time
}

// UpdateAlertRequest carries a partial alert mutation. Nil fields keep
// their stored value.
type UpdateAlertRequest struct {
	Title       *string
	Description *string
	Severity    *alert.Severity
	AlertType   *alert.Type
	CropType    *string
	Location    *geo.Point
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// AlertService orchestrates the alert lifecycle. Every committed write
// triggers a synchronous post-commit fan-out through the dispatcher; a
// dispatch that reaches nobody is still a successful write.
type AlertService struct {
	alerts     alert.Repository
	dispatcher *NotificationDispatcher
	logger     *logging.ChanneledLogger
	now        func() time.Time
}

// NewAlertService creates the alert service.
func NewAlertService(alerts alert.Repository, dispatcher *NotificationDispatcher, logger *logging.ChanneledLogger) *AlertService {
	return &AlertService{
		alerts:     alerts,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create persists a new alert and fans it out. The author must be an
// approved agronomist; the persisted creator is always the caller.
func (s *AlertService) Create(author user.Identity, req CreateAlertRequest) (*alert.Alert, int, error) {
	if !match.CanAuthor(author) {
		return nil, 0, ErrNotAuthor
	}

	a := &alert.Alert{
		ID:          security.GenerateULID(),
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		AlertType:   req.AlertType,
		CropType:    req.CropType,
		CreatedAt:   s.now().UTC(),
		ExpiresAt:   req.ExpiresAt,
		Location:    req.Location,
		CreatorID:   author.ID,
		CreatorName: author.DisplayName(),
	}

	if err := s.alerts.Store(a); err != nil {
		return nil, 0, fmt.Errorf("failed to store alert: %w", err)
	}

	s.logger.Alert().Info("Alert created",
		"alertId", a.ID, "cropType", a.CropType, "severity", string(a.Severity), "creatorId", author.ID)

	notified := s.dispatcher.NotifyCreated(a)
	return a, notified, nil
}

// Update applies a partial mutation to an existing alert and fans out an
// update notification. Only the creator or an admin may mutate.
func (s *AlertService) Update(actor user.Identity, alertID string, req UpdateAlertRequest) (*alert.Alert, int, error) {
	a, err := s.alerts.FindByID(alertID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load alert: %w", err)
	}
	if a == nil {
		return nil, 0, ErrAlertNotFound
	}
	if a.CreatorID != actor.ID && actor.Role != user.RoleAdmin {
		return nil, 0, ErrNotOwner
	}

	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Severity != nil {
		a.Severity = *req.Severity
	}
	if req.AlertType != nil {
		a.AlertType = *req.AlertType
	}
	if req.CropType != nil {
		a.CropType = *req.CropType
	}
	if req.Location != nil {
		a.Location = *req.Location
	}
	if req.ClearExpiry {
		a.ExpiresAt = nil
	} else if req.ExpiresAt != nil {
		a.ExpiresAt = req.ExpiresAt
	}

	if err := s.alerts.Update(a); err != nil {
		return nil, 0, fmt.Errorf("failed to update alert: %w", err)
	}

	s.logger.Alert().Info("Alert updated", "alertId", a.ID, "actorId", actor.ID)

	notified := s.dispatcher.NotifyMutated(a, MutationUpdated)
	return a, notified, nil
}

// Delete removes an alert and fans out a deletion notification built
// from the alert's last committed state.
func (s *AlertService) Delete(actor user.Identity, alertID string) (int, error) {
	a, err := s.alerts.FindByID(alertID)
	if err != nil {
		return 0, fmt.Errorf("failed to load alert: %w", err)
	}
	if a == nil {
		return 0, ErrAlertNotFound
	}
	if a.CreatorID != actor.ID && actor.Role != user.RoleAdmin {
		return 0, ErrNotOwner
	}

	if err := s.alerts.Delete(alertID); err != nil {
		return 0, fmt.Errorf("failed to delete alert: %w", err)
	}

	s.logger.Alert().Info("Alert deleted", "alertId", alertID, "actorId", actor.ID)

	return s.dispatcher.NotifyMutated(a, MutationDeleted), nil
}

// Get returns one alert by id.
func (s *AlertService) Get(alertID string) (*alert.Alert, error) {
	a, err := s.alerts.FindByID(alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert: %w", err)
	}
	if a == nil {
		return nil, ErrAlertNotFound
	}
	return a, nil
}

// List returns all alerts, optionally restricted to currently active
// ones. Expiry is evaluated against the wall clock at call time.
func (s *AlertService) List(activeOnly bool) ([]alert.Alert, error) {
	all, err := s.alerts.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	if !activeOnly {
		return all, nil
	}

	now := s.now()
	active := make([]alert.Alert, 0, len(all))
	for _, a := range all {
		if a.IsActive(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

// ListByCreator returns the alerts authored by one user.
func (s *AlertService) ListByCreator(creatorID string) ([]alert.Alert, error) {
	alerts, err := s.alerts.FindByCreator(creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts by creator: %w", err)
	}
	return alerts, nil
}

// Search returns active alerts within radiusMeters of center, optionally
// filtered by crop type.
func (s *AlertService) Search(center geo.Point, radiusMeters float64, cropType string) ([]alert.Alert, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("malformed search center [%f, %f]", center.Longitude, center.Latitude)
	}
	found, err := s.alerts.FindWithinRadius(center, radiusMeters, cropType)
	if err != nil {
		return nil, fmt.Errorf("failed to search alerts: %w", err)
	}

	now := s.now()
	active := make([]alert.Alert, 0, len(found))
	for _, a := range found {
		if a.IsActive(now) {
			active = append(active, a)
		}
	}
	return active, nil
}
