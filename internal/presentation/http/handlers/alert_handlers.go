package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// AlertHandlers contains all alert lifecycle HTTP handlers
type AlertHandlers struct {
	alertService *services.AlertService
	logger       *logging.ChanneledLogger
}

// NewAlertHandlers creates alert handlers with injected dependencies
func NewAlertHandlers(alertService *services.AlertService, logger *logging.ChanneledLogger) *AlertHandlers {
	return &AlertHandlers{
		alertService: alertService,
		logger:       logger,
	}
}

// PostAlert handles POST /api/v1/alerts
func (h *AlertHandlers) PostAlert(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	start := time.Now()
	h.logger.Alert().Debug("Received create alert request", "userId", ident.ID)

	var req struct {
		Title       string       `json:"title" binding:"required"`
		Description string       `json:"description"`
		Severity    string       `json:"severity" binding:"required"`
		AlertType   string       `json:"alertType" binding:"required"`
		CropType    string       `json:"cropType" binding:"required"`
		Location    locationBody `json:"location" binding:"required"`
		ExpiresAt   *time.Time   `json:"expiresAt"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Alert().Error("Create alert JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if !alert.ValidSeverity(req.Severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Severity must be low, medium or high"})
		return
	}
	if !alert.ValidType(req.AlertType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Alert type must be pest, disease or weather"})
		return
	}

	created, notified, err := h.alertService.Create(ident, services.CreateAlertRequest{
		Title:       req.Title,
		Description: req.Description,
		Severity:    alert.Severity(req.Severity),
		AlertType:   alert.Type(req.AlertType),
		CropType:    req.CropType,
		Location:    geo.NewPoint(req.Location.Longitude, req.Location.Latitude),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotAuthor) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only approved agronomists can create alerts"})
			return
		}
		h.logger.Alert().Error("Alert creation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Alert creation failed"})
		return
	}

	h.logger.Alert().Info("Alert created",
		"alertId", created.ID, "notified", notified, "duration", time.Since(start))

	c.JSON(http.StatusCreated, gin.H{
		"alert":         created,
		"notifiedUsers": notified,
	})
}

// GetAlerts handles GET /api/v1/alerts. By default only active alerts
// are returned; ?all=true includes expired ones.
func (h *AlertHandlers) GetAlerts(c *gin.Context) {
	includeAll := c.Query("all") == "true"

	alerts, err := h.alertService.List(!includeAll)
	if err != nil {
		h.logger.Alert().Error("Alert listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetAlert handles GET /api/v1/alerts/:id. Expired alerts answer 410:
// the record still exists but is no longer actionable.
func (h *AlertHandlers) GetAlert(c *gin.Context) {
	found, err := h.alertService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Alert().Error("Alert lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load alert"})
		return
	}

	if !found.IsActive(time.Now()) {
		c.JSON(http.StatusGone, gin.H{"error": "Alert has expired", "alert": found})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alert": found})
}

// GetMyAlerts handles GET /api/v1/alerts/mine
func (h *AlertHandlers) GetMyAlerts(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	alerts, err := h.alertService.ListByCreator(ident.ID)
	if err != nil {
		h.logger.Alert().Error("Creator alert listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetAlertsSearch handles GET /api/v1/alerts/search?lat=&lng=&radius=&cropType=
func (h *AlertHandlers) GetAlertsSearch(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}

	radius := config.NotifyRadiusMeters
	if raw := c.Query("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a positive number of meters"})
			return
		}
		radius = parsed
	}

	center := geo.NewPoint(lng, lat)
	alerts, err := h.alertService.Search(center, radius, c.Query("cropType"))
	if err != nil {
		h.logger.Alert().Error("Alert search failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Alert search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// PutAlert handles PUT /api/v1/alerts/:id
func (h *AlertHandlers) PutAlert(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	start := time.Now()

	var req struct {
		Title       *string       `json:"title"`
		Description *string       `json:"description"`
		Severity    *string       `json:"severity"`
		AlertType   *string       `json:"alertType"`
		CropType    *string       `json:"cropType"`
		Location    *locationBody `json:"location"`
		ExpiresAt   *time.Time    `json:"expiresAt"`
		ClearExpiry bool          `json:"clearExpiry"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Alert().Error("Update alert JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	update := services.UpdateAlertRequest{
		Title:       req.Title,
		Description: req.Description,
		CropType:    req.CropType,
		Location:    req.Location.toPoint(),
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	}
	if req.Severity != nil {
		if !alert.ValidSeverity(*req.Severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Severity must be low, medium or high"})
			return
		}
		severity := alert.Severity(*req.Severity)
		update.Severity = &severity
	}
	if req.AlertType != nil {
		if !alert.ValidType(*req.AlertType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Alert type must be pest, disease or weather"})
			return
		}
		alertType := alert.Type(*req.AlertType)
		update.AlertType = &alertType
	}

	updated, notified, err := h.alertService.Update(ident, c.Param("id"), update)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator or an admin can modify this alert"})
		default:
			h.logger.Alert().Error("Alert update failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Alert update failed"})
		}
		return
	}

	h.logger.Alert().Info("Alert updated",
		"alertId", updated.ID, "notified", notified, "duration", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"alert":         updated,
		"notifiedUsers": notified,
	})
}

// DeleteAlert handles DELETE /api/v1/alerts/:id
func (h *AlertHandlers) DeleteAlert(c *gin.Context) {
	ident, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	notified, err := h.alertService.Delete(ident, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		case errors.Is(err, services.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator or an admin can delete this alert"})
		default:
			h.logger.Alert().Error("Alert deletion failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Alert deletion failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "notifiedUsers": notified})
}
