package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/agropulse/cropalert-go/internal/infrastructure/realtime"
	"github.com/agropulse/cropalert-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandlers owns the websocket handshake: authenticate, upgrade,
// register the session, hand the connection to the hub.
type WSHandlers struct {
	authService *services.AuthService
	registry    *realtime.Registry
	hub         *realtime.Hub
	logger      *logging.ChanneledLogger
	metrics     *metrics.Collector
	upgrader    websocket.Upgrader
}

// NewWSHandlers creates websocket handlers with injected dependencies
func NewWSHandlers(
	authService *services.AuthService,
	registry *realtime.Registry,
	hub *realtime.Hub,
	logger *logging.ChanneledLogger,
	collector *metrics.Collector,
) *WSHandlers {
	return &WSHandlers{
		authService: authService,
		registry:    registry,
		hub:         hub,
		logger:      logger,
		metrics:     collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser websocket clients cannot set Origin-independent
			// headers; CORS policy is enforced on the REST surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetWebSocket handles GET /ws. The token is carried either as a bearer
// header or, for browser clients, a token query parameter.
func (h *WSHandlers) GetWebSocket(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		h.metrics.RecordRefusedConnect("missing_token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}

	ident, err := h.authService.VerifyToken(token)
	if err != nil {
		h.metrics.RecordRefusedConnect("invalid_token")
		h.logger.Realtime().Debug("Websocket token verification failed", "error", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Realtime().Warn("Websocket upgrade failed", "userId", ident.ID, "error", err.Error())
		return
	}

	sessionID := security.GenerateULID()
	if err := h.registry.Connect(sessionID, *ident); err != nil {
		if errors.Is(err, realtime.ErrUnapproved) {
			h.metrics.RecordRefusedConnect("unapproved")
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "account not approved"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	h.hub.Attach(sessionID, conn)

	h.hub.EmitToSession(realtime.EventConnectionStatus, gin.H{
		"status":    "connected",
		"sessionId": sessionID,
		"userId":    ident.ID,
	}, sessionID)

	h.logger.Realtime().Info("Websocket session established",
		"sessionId", sessionID, "userId", ident.ID, "role", string(ident.Role))
}
