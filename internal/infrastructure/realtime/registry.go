package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
)

var (
	// ErrUnapproved refuses realtime access to identities that have not
	// been cleared by an admin.
	ErrUnapproved = errors.New("user is not approved for realtime access")

	// ErrUnknownSession reports an operation against a session that is
	// not currently connected.
	ErrUnknownSession = errors.New("unknown session")
)

// Session is one live transport connection belonging to one user. A
// user may hold several concurrent sessions (multi-device).
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Role        user.Role `json:"role"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Registry is the process-wide, concurrency-safe mapping of users to
// live sessions and of rooms to member sessions. Exactly one instance
// exists for the process lifetime. Every exported operation is a single
// critical section; cross-call consistency is intentionally not
// provided — fan-out snapshots may race benignly with disconnects.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session            // sessionID -> session
	userSessions map[string]map[string]struct{} // userID -> set of sessionIDs
	rooms        map[string]map[string]struct{} // room -> set of sessionIDs
	sessionRooms map[string]map[string]struct{} // sessionID -> set of rooms
	logger       *logging.ChanneledLogger
}

// NewRegistry creates the connection registry.
func NewRegistry(logger *logging.ChanneledLogger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		userSessions: make(map[string]map[string]struct{}),
		rooms:        make(map[string]map[string]struct{}),
		sessionRooms: make(map[string]map[string]struct{}),
		logger:       logger,
	}
}

// Connect registers a session for a pre-verified identity and auto-joins
// its personal room. Token verification happens upstream; the registry
// only enforces the approval gate.
func (r *Registry) Connect(sessionID string, ident user.Identity) error {
	if !ident.IsApproved {
		r.logger.Realtime().Warn("Connection refused for unapproved user", "userId", ident.ID)
		return ErrUnapproved
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session := &Session{
		ID:          sessionID,
		UserID:      ident.ID,
		DisplayName: ident.DisplayName(),
		Role:        ident.Role,
		ConnectedAt: time.Now().UTC(),
	}
	r.sessions[sessionID] = session

	if r.userSessions[ident.ID] == nil {
		r.userSessions[ident.ID] = make(map[string]struct{})
	}
	r.userSessions[ident.ID][sessionID] = struct{}{}

	r.joinLocked(sessionID, UserRoom(ident.ID))

	r.logger.Realtime().Info("Session connected",
		"sessionId", sessionID, "userId", ident.ID, "role", string(ident.Role))
	return nil
}

// Disconnect removes a session and its every room membership. It is
// idempotent: disconnecting an unknown or already-disconnected session
// is a no-op.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	for room := range r.sessionRooms[sessionID] {
		if members, exists := r.rooms[room]; exists {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.sessionRooms, sessionID)

	if sessions, exists := r.userSessions[session.UserID]; exists {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.userSessions, session.UserID)
		}
	}
	delete(r.sessions, sessionID)

	r.logger.Realtime().Info("Session disconnected", "sessionId", sessionID, "userId", session.UserID)
}

// JoinGroup adds a connected session to a room. Joining a room the
// session is already a member of is a no-op. The registry does not
// enforce role policy here; that belongs to the caller.
func (r *Registry) JoinGroup(sessionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}

	r.joinLocked(sessionID, room)
	r.logger.Realtime().Debug("Session joined room", "sessionId", sessionID, "room", room)
	return nil
}

// LeaveGroup removes a session from a room. Idempotent.
func (r *Registry) LeaveGroup(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, exists := r.rooms[room]; exists {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, exists := r.sessionRooms[sessionID]; exists {
		delete(rooms, room)
	}
}

// MembersOf returns a point-in-time snapshot of the sessions in a room.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	snapshot := make([]string, 0, len(members))
	for sessionID := range members {
		snapshot = append(snapshot, sessionID)
	}
	return snapshot
}

// SessionsOf returns a point-in-time snapshot of a user's sessions.
func (r *Registry) SessionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.userSessions[userID]
	snapshot := make([]string, 0, len(sessions))
	for sessionID := range sessions {
		snapshot = append(snapshot, sessionID)
	}
	return snapshot
}

// SessionByID returns the session record for sessionID, or nil.
func (r *Registry) SessionByID(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

// SessionCount returns the number of currently connected sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Drain force-disconnects every session. Used on shutdown; no delivery
// guarantees are made for fan-outs racing with a drain.
func (r *Registry) Drain() []string {
	r.mu.Lock()
	sessionIDs := make([]string, 0, len(r.sessions))
	for sessionID := range r.sessions {
		sessionIDs = append(sessionIDs, sessionID)
	}
	r.mu.Unlock()

	for _, sessionID := range sessionIDs {
		r.Disconnect(sessionID)
	}

	r.logger.Shutdown().Info("Registry drained", "sessions", len(sessionIDs))
	return sessionIDs
}

// joinLocked records membership both ways. Caller holds r.mu.
func (r *Registry) joinLocked(sessionID, room string) {
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][sessionID] = struct{}{}

	if r.sessionRooms[sessionID] == nil {
		r.sessionRooms[sessionID] = make(map[string]struct{})
	}
	r.sessionRooms[sessionID][room] = struct{}{}
}
