package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *Registry) {
	t.Helper()
	registry := newTestRegistry(t)
	hub := NewHub(registry, registry.logger, metrics.NewCollector(prometheus.NewRegistry()))
	return hub, registry
}

// attachFake inserts a client without a live connection; only the send
// buffer is exercised.
func attachFake(hub *Hub, sessionID string, buffer int) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, buffer),
	}
	hub.mu.Lock()
	hub.clients[sessionID] = client
	hub.mu.Unlock()
	return client
}

func TestEmitToEmptyRoomIsNoOp(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.NoError(t, hub.Emit(EventNewAlert, map[string]string{"k": "v"}, UserRoom("nobody")))
}

func TestEmitDeliversToEveryRoomMember(t *testing.T) {
	hub, registry := newTestHub(t)

	require.NoError(t, registry.Connect("s1", approvedIdentity("u-1")))
	require.NoError(t, registry.Connect("s2", approvedIdentity("u-1")))
	c1 := attachFake(hub, "s1", 4)
	c2 := attachFake(hub, "s2", 4)

	require.NoError(t, hub.Emit(EventNewAlert, map[string]string{"alertId": "a-1"}, UserRoom("u-1")))

	for _, client := range []*Client{c1, c2} {
		select {
		case raw := <-client.Send:
			var envelope Envelope
			require.NoError(t, json.Unmarshal(raw, &envelope))
			assert.Equal(t, EventNewAlert, envelope.Event)
			assert.JSONEq(t, `{"alertId":"a-1"}`, string(envelope.Data))
		default:
			t.Fatalf("client %s received no frame", client.SessionID)
		}
	}
}

func TestEmitDropsFrameWhenBufferFull(t *testing.T) {
	hub, registry := newTestHub(t)

	require.NoError(t, registry.Connect("s1", approvedIdentity("u-1")))
	client := attachFake(hub, "s1", 1)

	require.NoError(t, hub.Emit(EventNewAlert, map[string]string{"n": "1"}, UserRoom("u-1")))
	// Second frame exceeds the buffer and is dropped, not blocked on.
	require.NoError(t, hub.Emit(EventNewAlert, map[string]string{"n": "2"}, UserRoom("u-1")))

	assert.Len(t, client.Send, 1)
}

func TestEmitToleratesSessionWithoutClient(t *testing.T) {
	hub, registry := newTestHub(t)

	// Session registered but no client attached yet.
	require.NoError(t, registry.Connect("s1", approvedIdentity("u-1")))

	assert.NoError(t, hub.Emit(EventNewAlert, map[string]string{"k": "v"}, UserRoom("u-1")))
}

func TestEmitRejectsUnencodablePayload(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.Error(t, hub.Emit(EventNewAlert, func() {}, UserRoom("u-1")))
}

func TestEmitToSessionUnknown(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.ErrorIs(t, hub.EmitToSession(EventConnectionStatus, map[string]string{}, "ghost"), ErrUnknownSession)
}

// TestEmitToSessionSurvivesConcurrentDetach races handshake traffic
// against teardown of the same session. Every send must either deliver
// or report ErrUnknownSession; closing the buffer mid-send must never
// panic the process.
func TestEmitToSessionSurvivesConcurrentDetach(t *testing.T) {
	hub, registry := newTestHub(t)

	upgrader := websocket.Upgrader{}
	attached := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessionID := r.URL.Query().Get("session")
		if err := registry.Connect(sessionID, approvedIdentity("u-1")); err != nil {
			conn.Close()
			return
		}
		hub.Attach(sessionID, conn)
		attached <- struct{}{}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	for i := 0; i < 50; i++ {
		sessionID := fmt.Sprintf("s-%d", i)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?session="+sessionID, nil)
		require.NoError(t, err)

		<-attached

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.EmitToSession(EventConnectionStatus, map[string]string{"status": "connected"}, sessionID)
			}
		}()
		go func() {
			defer wg.Done()
			hub.Detach(sessionID)
		}()
		wg.Wait()

		assert.ErrorIs(t, hub.EmitToSession(EventConnectionStatus, nil, sessionID), ErrUnknownSession)
		conn.Close()
	}

	assert.Equal(t, 0, registry.SessionCount())
}

// TestHubEndToEnd runs a real websocket client against the hub: connect,
// receive a fan-out frame, join a location room, receive a frame there.
func TestHubEndToEnd(t *testing.T) {
	hub, registry := newTestHub(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := registry.Connect("s1", approvedIdentity("u-1")); err != nil {
			conn.Close()
			return
		}
		hub.Attach("s1", conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, 2*time.Second, 10*time.Millisecond, "client attaches after upgrade")

	readEnvelope := func() Envelope {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var envelope Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		return envelope
	}

	// Personal room fan-out reaches the wire.
	require.NoError(t, hub.Emit(EventNewAlert, map[string]string{"alertId": "a-1"}, UserRoom("u-1")))
	envelope := readEnvelope()
	assert.Equal(t, EventNewAlert, envelope.Event)

	// Join a location room and get the acknowledgement.
	require.NoError(t, conn.WriteJSON(Envelope{
		Event: "join_location_room",
		Data:  json.RawMessage(`{"locationId":"valley"}`),
	}))
	envelope = readEnvelope()
	assert.Equal(t, EventJoinedLocation, envelope.Event)
	assert.JSONEq(t, `{"room":"location_valley"}`, string(envelope.Data))

	// The location room now receives fan-outs too.
	require.NoError(t, hub.Emit(EventAlertUpdate, map[string]string{"alertId": "a-1"}, LocationRoom("valley")))
	envelope = readEnvelope()
	assert.Equal(t, EventAlertUpdate, envelope.Event)

	// Closing the client detaches the session.
	conn.Close()
	require.Eventually(t, func() bool {
		return registry.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect drains the registry")
}
