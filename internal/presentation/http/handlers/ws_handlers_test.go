package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agropulse/cropalert-go/internal/infrastructure/realtime"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandshakeDeliversConnectionStatus(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "marie@farm.example", "farmer")
	token := f.login(t, "marie@farm.example")

	server := httptest.NewServer(f.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope realtime.Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, realtime.EventConnectionStatus, envelope.Event)

	var status map[string]string
	require.NoError(t, json.Unmarshal(envelope.Data, &status))
	assert.Equal(t, "connected", status["status"])
	assert.NotEmpty(t, status["sessionId"])

	require.Eventually(t, func() bool {
		return f.registry.SessionCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsMissingAndInvalidTokens(t *testing.T) {
	f := newHandlerFixture(t)

	server := httptest.NewServer(f.router)
	defer server.Close()

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRefusesUnapprovedAfterUpgrade(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "ada@agro.example", "agronomist") // pending
	token := f.login(t, "ada@agro.example")

	server := httptest.NewServer(f.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "the upgrade itself succeeds")
	defer conn.Close()

	// The server closes immediately with a policy violation.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy violation close, got %v", err)

	assert.Zero(t, f.registry.SessionCount())
}
