// Package realtime defines the connection registry and the websocket
// transport used for alert fan-out.
package realtime

// Transport is the push boundary the dispatcher depends on. Emits are
// fire-and-forget: a slow or vanished session never blocks the caller.
type Transport interface {
	// Emit serializes payload once and pushes it to every session that
	// is currently a member of room. An empty room is a successful no-op.
	Emit(event string, payload any, room string) error
}

// Event names pushed to clients.
const (
	EventConnectionStatus = "connection_status"
	EventNewAlert         = "new_alert_notification"
	EventAlertUpdate      = "alert_update_notification"
	EventJoinedLocation   = "joined_location_room"
	EventLeftLocation     = "left_location_room"
)
