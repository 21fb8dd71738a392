package realtime

// Room naming follows the wire convention: a personal room per user and
// opt-in location grouping rooms.

const (
	userRoomPrefix     = "user_"
	locationRoomPrefix = "location_"

	// DefaultLocationGroup is used when a client joins a location room
	// without naming a group.
	DefaultLocationGroup = "default"
)

// UserRoom returns the personal room name for a user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// LocationRoom returns the room name for a location grouping. An empty
// groupKey maps to the default group.
func LocationRoom(groupKey string) string {
	if groupKey == "" {
		groupKey = DefaultLocationGroup
	}
	return locationRoomPrefix + groupKey
}
