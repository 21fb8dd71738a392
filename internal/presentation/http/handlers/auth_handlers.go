// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// currentUserKey is the gin context key holding the authenticated identity.
const currentUserKey = "currentUser"

// CurrentUser returns the authenticated identity set by AuthMiddleware.
func CurrentUser(c *gin.Context) (user.Identity, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return user.Identity{}, false
	}
	ident, ok := value.(user.Identity)
	return ident, ok
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

// locationBody is the request shape for an optional point.
type locationBody struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

func (l *locationBody) toPoint() *geo.Point {
	if l == nil {
		return nil
	}
	p := geo.NewPoint(l.Longitude, l.Latitude)
	return &p
}

// AuthHandlers contains all authentication-related HTTP handlers
type AuthHandlers struct {
	authService *services.AuthService
	logger      *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// PostRegister handles POST /api/v1/auth/register
func (h *AuthHandlers) PostRegister(c *gin.Context) {
	start := time.Now()
	h.logger.Auth().Debug("Received register request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req struct {
		Email           string        `json:"email" binding:"required,email"`
		Password        string        `json:"password" binding:"required,min=8"`
		FirstName       string        `json:"firstName" binding:"required"`
		LastName        string        `json:"lastName"`
		Role            string        `json:"role" binding:"required"`
		SubscribedCrops []string      `json:"subscribedCrops"`
		Location        *locationBody `json:"location"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Auth().Error("Register request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if req.Role != string(user.RoleFarmer) && req.Role != string(user.RoleAgronomist) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be farmer or agronomist"})
		return
	}

	ident, err := h.authService.Register(services.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            user.Role(req.Role),
		SubscribedCrops: req.SubscribedCrops,
		Location:        req.Location.toPoint(),
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
			return
		}
		h.logger.Auth().Error("Registration failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	h.logger.Auth().Info("Registration successful",
		"userId", ident.ID, "role", string(ident.Role), "duration", time.Since(start))

	c.JSON(http.StatusCreated, gin.H{
		"user":            ident,
		"pendingApproval": !ident.IsApproved,
	})
}

// PostLogin handles POST /api/v1/auth/login
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()
	h.logger.Auth().Debug("Received login request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Auth().Error("Login request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	token, ident, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.logger.Auth().Error("Login failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	h.logger.Auth().Info("Login successful", "userId", ident.ID, "duration", time.Since(start))

	c.SetCookie(
		"access_token",
		token,
		int(config.TokenExpiry.Seconds()),
		"/",
		"",    // domain (empty for current domain)
		false, // secure (set to true in production)
		true,  // httpOnly
	)

	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"user":        ident,
	})
}

// GetAuthStatus handles GET /api/v1/auth/status
func (h *AuthHandlers) GetAuthStatus(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": ident})
}

// AuthMiddleware verifies the bearer token and loads the current
// identity fresh from the store, so approval revocations take effect on
// the next request.
func (h *AuthHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		ident, err := h.authService.VerifyToken(token)
		if err != nil {
			h.logger.Auth().Debug("Token verification failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(currentUserKey, *ident)
		c.Next()
	}
}

// AdminOnlyMiddleware restricts a route to admin accounts. Must run
// after AuthMiddleware.
func (h *AuthHandlers) AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentUser(c)
		if !ok || ident.Role != user.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
