package handlers

import (
	"errors"
	"net/http"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// AdminHandlers contains the account approval HTTP handlers
type AdminHandlers struct {
	adminService *services.AdminService
	logger       *logging.ChanneledLogger
}

// NewAdminHandlers creates admin handlers with injected dependencies
func NewAdminHandlers(adminService *services.AdminService, logger *logging.ChanneledLogger) *AdminHandlers {
	return &AdminHandlers{
		adminService: adminService,
		logger:       logger,
	}
}

// GetPendingAgronomists handles GET /api/v1/admin/pending
func (h *AdminHandlers) GetPendingAgronomists(c *gin.Context) {
	pending, err := h.adminService.PendingAgronomists()
	if err != nil {
		h.logger.Admin().Error("Pending agronomist listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending accounts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending, "count": len(pending)})
}

// PostApprove handles POST /api/v1/admin/users/:id/approve
func (h *AdminHandlers) PostApprove(c *gin.Context) {
	userID := c.Param("id")

	if err := h.adminService.Approve(userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Admin().Error("Approval failed", "userId", userID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Approval failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"approved": true, "userId": userID})
}

// PostRevoke handles POST /api/v1/admin/users/:id/revoke
func (h *AdminHandlers) PostRevoke(c *gin.Context) {
	userID := c.Param("id")

	if err := h.adminService.Revoke(userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Admin().Error("Revocation failed", "userId", userID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Revocation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"approved": false, "userId": userID})
}
