// Package services provides application-level orchestration services
package services

import (
	"errors"
	"fmt"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
)

// ErrSpatialQuery wraps any failure of the store's radius primitive.
// Callers treat it as "zero candidates": log, abort the current
// notification attempt, never crash or retry.
var ErrSpatialQuery = errors.New("spatial query failed")

// SpatialIndex is the query façade over the user store's bounding-radius
// primitive. Its only job is translating an alert's point and the fixed
// notification radius into a store query returning identity snapshots.
type SpatialIndex struct {
	users  user.Repository
	logger *logging.ChanneledLogger
}

// NewSpatialIndex creates a spatial index over the user repository.
func NewSpatialIndex(users user.Repository, logger *logging.ChanneledLogger) *SpatialIndex {
	return &SpatialIndex{
		users:  users,
		logger: logger,
	}
}

// CandidatesNear returns approved farmers with a known location within
// radiusMeters of center. Candidates are unfiltered with respect to crop
// subscription and alert expiry; that is MatchEngine's job.
func (s *SpatialIndex) CandidatesNear(center geo.Point, radiusMeters float64) ([]user.Identity, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("%w: malformed center point [%f, %f]", ErrSpatialQuery, center.Longitude, center.Latitude)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: non-positive radius %f", ErrSpatialQuery, radiusMeters)
	}

	candidates, err := s.users.FindWithinRadius(center, radiusMeters, user.RoleFilter{
		Role:         user.RoleFarmer,
		ApprovedOnly: true,
	})
	if err != nil {
		s.logger.Dispatch().Error("Radius query against user store failed",
			"error", err.Error(), "lat", center.Latitude, "lng", center.Longitude)
		return nil, fmt.Errorf("%w: %v", ErrSpatialQuery, err)
	}

	return candidates, nil
}
