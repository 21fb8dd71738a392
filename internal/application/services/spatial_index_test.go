package services

import (
	"errors"
	"testing"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesNearFiltersToApprovedFarmers(t *testing.T) {
	users := newFakeUserRepo()
	index := NewSpatialIndex(users, newTestLogger(t))

	near := geo.NewPoint(2.36, 48.86)

	approved := testFarmer("u-approved", []string{"wheat"}, near)
	users.add(approved)

	pending := testFarmer("u-pending", []string{"wheat"}, near)
	pending.IsApproved = false
	users.add(pending)

	agronomist := testFarmer("u-agro", []string{"wheat"}, near)
	agronomist.Role = user.RoleAgronomist
	users.add(agronomist)

	candidates, err := index.CandidatesNear(paris, 10000)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "u-approved", candidates[0].ID)
}

func TestCandidatesNearWrapsStoreFailure(t *testing.T) {
	users := newFakeUserRepo()
	users.radiusErr = errors.New("database is locked")
	index := NewSpatialIndex(users, newTestLogger(t))

	candidates, err := index.CandidatesNear(paris, 10000)
	assert.Nil(t, candidates)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpatialQuery)
}

func TestCandidatesNearRejectsMalformedInput(t *testing.T) {
	index := NewSpatialIndex(newFakeUserRepo(), newTestLogger(t))

	_, err := index.CandidatesNear(geo.Point{Longitude: 200, Latitude: 0}, 10000)
	assert.ErrorIs(t, err, ErrSpatialQuery)

	_, err = index.CandidatesNear(paris, 0)
	assert.ErrorIs(t, err, ErrSpatialQuery)
}
