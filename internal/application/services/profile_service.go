package services

import (
	"fmt"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
)

// ProfileService handles the self-service profile surface: crop
// subscriptions and the farm location used for spatial matching.
type ProfileService struct {
	users  user.Repository
	logger *logging.ChanneledLogger
}

// NewProfileService creates the profile service.
func NewProfileService(users user.Repository, logger *logging.ChanneledLogger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// Get returns the caller's current identity snapshot.
func (s *ProfileService) Get(userID string) (*user.Identity, error) {
	account, err := s.users.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if account == nil {
		return nil, ErrUserNotFound
	}
	ident := account.Identity
	return &ident, nil
}

// Update replaces the caller's crop subscriptions and location. A nil
// location clears it, which silently removes the user from all future
// spatial matches until a location is set again.
func (s *ProfileService) Update(userID string, crops []string, location *geo.Point) (*user.Identity, error) {
	if location != nil && !location.Valid() {
		return nil, fmt.Errorf("malformed location [%f, %f]", location.Longitude, location.Latitude)
	}
	if crops == nil {
		crops = []string{}
	}

	if err := s.users.UpdateProfile(userID, crops, location); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Auth().Info("Profile updated",
		"userId", userID, "crops", len(crops), "hasLocation", location != nil)

	return s.Get(userID)
}
