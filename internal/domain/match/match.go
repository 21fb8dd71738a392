// Package match holds the pure recipient-selection predicates for alert
// notifications. Nothing in this package performs I/O or reads the wall
// clock; the evaluation time is always passed in by the caller.
package match

import (
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/user"
)

// SelectRecipients filters a candidate pool down to the exact recipient
// set for an alert. A candidate qualifies iff it is an approved farmer
// with a known location, subscribed to the alert's crop, and the alert
// is still active at now. Candidates sharing a user ID are deduplicated;
// the returned order carries no guarantee.
func SelectRecipients(a alert.Alert, candidates []user.Identity, now time.Time) []user.Identity {
	if !a.IsActive(now) {
		return nil
	}

	recipients := make([]user.Identity, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		if !Qualifies(a, c) {
			continue
		}
		seen[c.ID] = struct{}{}
		recipients = append(recipients, c)
	}

	return recipients
}

// Qualifies reports whether a single candidate passes every non-temporal
// filter for the alert. The spatial query already guarantees role,
// approval, and location; they are re-checked here so the predicate is
// total over any candidate pool.
func Qualifies(a alert.Alert, c user.Identity) bool {
	if c.Role != user.RoleFarmer {
		return false
	}
	if !c.IsApproved {
		return false
	}
	if c.Location == nil {
		return false
	}
	return c.SubscribesTo(a.CropType)
}

// CanAuthor reports whether u is allowed to create alerts: an approved
// agronomist. Colocated with the recipient predicates so there is one
// home for alert policy checks.
func CanAuthor(u user.Identity) bool {
	return u.Role == user.RoleAgronomist && u.IsApproved
}
