package handlers

import (
	"errors"
	"net/http"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// ProfileHandlers contains the self-service profile HTTP handlers
type ProfileHandlers struct {
	profileService *services.ProfileService
	logger         *logging.ChanneledLogger
}

// NewProfileHandlers creates profile handlers with injected dependencies
func NewProfileHandlers(profileService *services.ProfileService, logger *logging.ChanneledLogger) *ProfileHandlers {
	return &ProfileHandlers{
		profileService: profileService,
		logger:         logger,
	}
}

// GetProfile handles GET /api/v1/profile
func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	profile, err := h.profileService.Get(ident.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		h.logger.Auth().Error("Profile lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": profile})
}

// PutProfile handles PUT /api/v1/profile - crop subscriptions and farm
// location.
func (h *ProfileHandlers) PutProfile(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req struct {
		SubscribedCrops []string      `json:"subscribedCrops"`
		Location        *locationBody `json:"location"`
		ClearLocation   bool          `json:"clearLocation"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Auth().Error("Profile update JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	location := req.Location.toPoint()
	if req.ClearLocation {
		location = nil
	} else if location == nil {
		// No location in the body keeps the stored one.
		current, err := h.profileService.Get(ident.ID)
		if err != nil {
			h.logger.Auth().Error("Profile lookup failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
			return
		}
		location = current.Location
	}

	updated, err := h.profileService.Update(ident.ID, req.SubscribedCrops, location)
	if err != nil {
		h.logger.Auth().Error("Profile update failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Profile update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}
