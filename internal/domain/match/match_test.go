package match

import (
	"testing"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func wheatAlert(expiresAt *time.Time) alert.Alert {
	return alert.Alert{
		ID:        "alert-1",
		Title:     "Aphid outbreak",
		Severity:  alert.SeverityHigh,
		AlertType: alert.TypePest,
		CropType:  "wheat",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: expiresAt,
		Location:  geo.NewPoint(2.3522, 48.8566),
		CreatorID: "agro-1",
	}
}

func farmer(id string, crops ...string) user.Identity {
	location := geo.NewPoint(2.36, 48.86)
	return user.Identity{
		ID:              id,
		Role:            user.RoleFarmer,
		IsApproved:      true,
		SubscribedCrops: crops,
		Location:        &location,
	}
}

func ids(recipients []user.Identity) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r.ID)
	}
	return out
}

func TestSelectRecipientsFiltersBySubscription(t *testing.T) {
	candidates := []user.Identity{
		farmer("u-wheat", "wheat"),
		farmer("u-corn", "corn"),
		farmer("u-both", "corn", "wheat"),
		farmer("u-none"),
	}

	recipients := SelectRecipients(wheatAlert(nil), candidates, now)
	assert.ElementsMatch(t, []string{"u-wheat", "u-both"}, ids(recipients))
}

func TestSelectRecipientsCropMatchIsExact(t *testing.T) {
	candidates := []user.Identity{
		farmer("u-upper", "Wheat"),
		farmer("u-padded", " wheat"),
		farmer("u-exact", "wheat"),
	}

	recipients := SelectRecipients(wheatAlert(nil), candidates, now)
	assert.Equal(t, []string{"u-exact"}, ids(recipients))
}

func TestSelectRecipientsSkipsDisqualifiedCandidates(t *testing.T) {
	unapproved := farmer("u-unapproved", "wheat")
	unapproved.IsApproved = false

	located := farmer("u-no-location", "wheat")
	located.Location = nil

	agronomist := farmer("u-agro", "wheat")
	agronomist.Role = user.RoleAgronomist

	admin := farmer("u-admin", "wheat")
	admin.Role = user.RoleAdmin

	candidates := []user.Identity{unapproved, located, agronomist, admin, farmer("u-ok", "wheat")}

	recipients := SelectRecipients(wheatAlert(nil), candidates, now)
	assert.Equal(t, []string{"u-ok"}, ids(recipients))
}

func TestSelectRecipientsExpiry(t *testing.T) {
	candidates := []user.Identity{farmer("u-1", "wheat")}

	past := now.Add(-time.Second)
	assert.Empty(t, SelectRecipients(wheatAlert(&past), candidates, now))

	// Expiring exactly at now is already expired; After is strict.
	boundary := now
	assert.Empty(t, SelectRecipients(wheatAlert(&boundary), candidates, now))

	future := now.Add(time.Second)
	assert.Len(t, SelectRecipients(wheatAlert(&future), candidates, now), 1)

	assert.Len(t, SelectRecipients(wheatAlert(nil), candidates, now), 1)
}

func TestSelectRecipientsDeduplicatesByUser(t *testing.T) {
	duplicate := farmer("u-1", "wheat")
	candidates := []user.Identity{duplicate, duplicate, farmer("u-2", "wheat")}

	recipients := SelectRecipients(wheatAlert(nil), candidates, now)
	assert.ElementsMatch(t, []string{"u-1", "u-2"}, ids(recipients))
}

func TestSelectRecipientsIsDeterministic(t *testing.T) {
	candidates := []user.Identity{
		farmer("u-1", "wheat"),
		farmer("u-2", "corn"),
		farmer("u-3", "wheat"),
	}

	first := SelectRecipients(wheatAlert(nil), candidates, now)
	second := SelectRecipients(wheatAlert(nil), candidates, now)
	require.Equal(t, first, second, "same inputs and clock produce the same recipients")
}

func TestSelectRecipientsEmptyPool(t *testing.T) {
	assert.Empty(t, SelectRecipients(wheatAlert(nil), nil, now))
	assert.Empty(t, SelectRecipients(wheatAlert(nil), []user.Identity{}, now))
}

func TestCanAuthor(t *testing.T) {
	approved := user.Identity{Role: user.RoleAgronomist, IsApproved: true}
	assert.True(t, CanAuthor(approved))

	pending := user.Identity{Role: user.RoleAgronomist}
	assert.False(t, CanAuthor(pending))

	assert.False(t, CanAuthor(user.Identity{Role: user.RoleFarmer, IsApproved: true}))
	assert.False(t, CanAuthor(user.Identity{Role: user.RoleAdmin, IsApproved: true}))
}
