package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gorilla/websocket"
)

// Envelope is the wire frame exchanged with clients.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// joinLocationPayload is the body of join/leave_location_room frames.
type joinLocationPayload struct {
	GroupKey string `json:"locationId"`
}

// Client is one websocket connection owned by the hub.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub owns the live websocket connections and implements Transport.
// Room membership lives in the registry; the hub only maps sessions to
// connections and moves bytes.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client // sessionID -> client
	registry *Registry
	logger   *logging.ChanneledLogger
	metrics  *metrics.Collector
}

// NewHub creates a websocket hub bound to the registry.
func NewHub(registry *Registry, logger *logging.ChanneledLogger, collector *metrics.Collector) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		logger:   logger,
		metrics:  collector,
	}
}

// Attach registers an upgraded connection under its session and starts
// its pumps. The caller has already authenticated the user and called
// Registry.Connect.
func (h *Hub) Attach(sessionID string, conn *websocket.Conn) *Client {
	client := &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, config.WSSendBufferSize),
	}

	h.mu.Lock()
	h.clients[sessionID] = client
	h.mu.Unlock()

	h.metrics.RecordConnect()

	go h.writePump(client)
	go h.readPump(client)

	return client
}

// Detach tears down a client: registry disconnect first so no fan-out
// snapshot taken afterwards includes the session, then the connection.
// Idempotent.
func (h *Hub) Detach(sessionID string) {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if ok {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.Disconnect(sessionID)
	close(client.Send)
	client.Conn.Close()
	h.metrics.RecordDisconnect()
}

// Emit serializes the payload once and pushes the frame to every session
// currently in the room. Sends never block: a full client buffer drops
// the frame for that session. An empty room is a successful no-op.
func (h *Hub) Emit(event string, payload any, room string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", event, err)
	}

	members := h.registry.MembersOf(room)
	if len(members) == 0 {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sessionID := range members {
		client, ok := h.clients[sessionID]
		if !ok {
			// Session disconnected between snapshot and emit; tolerated.
			continue
		}
		select {
		case client.Send <- frame:
		default:
			h.metrics.RecordDroppedFrame()
			h.logger.Realtime().Warn("Client buffer full, frame dropped",
				"sessionId", sessionID, "event", event, "room", room)
		}
	}
	return nil
}

// EmitToSession pushes a frame to a single session, bypassing rooms.
// Used for connection handshake traffic.
func (h *Hub) EmitToSession(event string, payload any, sessionID string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", event, err)
	}

	// The read lock stays held across the send so a concurrent Detach
	// cannot close the channel between the lookup and the select. Detach
	// only closes after releasing the lock, so this cannot deadlock.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[sessionID]
	if !ok {
		return ErrUnknownSession
	}

	select {
	case client.Send <- frame:
	default:
		h.metrics.RecordDroppedFrame()
	}
	return nil
}

// Shutdown drains the registry and closes every connection.
func (h *Hub) Shutdown() {
	for _, sessionID := range h.registry.Drain() {
		h.mu.Lock()
		client, ok := h.clients[sessionID]
		if ok {
			delete(h.clients, sessionID)
		}
		h.mu.Unlock()

		if ok {
			close(client.Send)
			client.Conn.Close()
			h.metrics.RecordDisconnect()
		}
	}
}

// writePump moves frames from the send buffer onto the wire.
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(config.WSPongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Realtime().Debug("Write failed", "sessionId", client.SessionID, "error", err.Error())
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames (room join/leave requests) until the
// connection drops, then detaches the session.
func (h *Hub) readPump(client *Client) {
	defer h.Detach(client.SessionID)

	client.Conn.SetReadLimit(config.WSMaxMessageBytes)
	client.Conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Realtime().Debug("Unexpected close", "sessionId", client.SessionID, "error", err.Error())
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.logger.Realtime().Debug("Malformed client frame", "sessionId", client.SessionID)
			continue
		}

		h.handleClientEvent(client, envelope)
	}
}

// handleClientEvent routes inbound frames. Unknown events are ignored.
func (h *Hub) handleClientEvent(client *Client, envelope Envelope) {
	switch envelope.Event {
	case "join_location_room":
		var payload joinLocationPayload
		if len(envelope.Data) > 0 {
			json.Unmarshal(envelope.Data, &payload)
		}
		room := LocationRoom(payload.GroupKey)
		if err := h.registry.JoinGroup(client.SessionID, room); err != nil {
			h.logger.Realtime().Warn("Join room failed", "sessionId", client.SessionID, "room", room, "error", err.Error())
			return
		}
		h.EmitToSession(EventJoinedLocation, map[string]string{"room": room}, client.SessionID)

	case "leave_location_room":
		var payload joinLocationPayload
		if len(envelope.Data) > 0 {
			json.Unmarshal(envelope.Data, &payload)
		}
		room := LocationRoom(payload.GroupKey)
		h.registry.LeaveGroup(client.SessionID, room)
		h.EmitToSession(EventLeftLocation, map[string]string{"room": room}, client.SessionID)
	}
}
