package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	open := Alert{}
	assert.True(t, open.IsActive(now), "no expiry means never expires")

	future := now.Add(time.Minute)
	assert.True(t, Alert{ExpiresAt: &future}.IsActive(now))

	past := now.Add(-time.Minute)
	assert.False(t, Alert{ExpiresAt: &past}.IsActive(now))

	// The boundary instant is already expired.
	boundary := now
	assert.False(t, Alert{ExpiresAt: &boundary}.IsActive(now))
}

func TestValidSeverity(t *testing.T) {
	assert.True(t, ValidSeverity("low"))
	assert.True(t, ValidSeverity("medium"))
	assert.True(t, ValidSeverity("high"))
	assert.False(t, ValidSeverity("critical"))
	assert.False(t, ValidSeverity(""))
	assert.False(t, ValidSeverity("High"))
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType("pest"))
	assert.True(t, ValidType("disease"))
	assert.True(t, ValidType("weather"))
	assert.False(t, ValidType("flood"))
	assert.False(t, ValidType(""))
}
