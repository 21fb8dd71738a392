// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/agropulse/cropalert-go/internal/application/container"
	"github.com/agropulse/cropalert-go/internal/presentation/http/handlers"
	"github.com/agropulse/cropalert-go/internal/presentation/http/middleware"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger)
	alertHandlers := handlers.NewAlertHandlers(container.AlertService, container.Logger)
	profileHandlers := handlers.NewProfileHandlers(container.ProfileService, container.Logger)
	adminHandlers := handlers.NewAdminHandlers(container.AdminService, container.Logger)
	wsHandlers := handlers.NewWSHandlers(
		container.AuthService,
		container.Registry,
		container.Hub,
		container.Logger,
		container.Metrics,
	)

	loginLimiter := middleware.NewRateLimiter(
		config.LoginRatePerMin,
		config.LoginRateBurst,
		config.RateLimitCleanup,
	)

	// Operational endpoints
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": container.Registry.SessionCount(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Realtime endpoint
	r.GET("/ws", wsHandlers.GetWebSocket)

	api := r.Group("/api/v1")
	{
		// Authentication routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", loginLimiter.Middleware(), authHandlers.PostRegister)
			auth.POST("/login", loginLimiter.Middleware(), authHandlers.PostLogin)
			auth.GET("/status", authHandlers.AuthMiddleware(), authHandlers.GetAuthStatus)
		}

		// Alert routes: reads are public, writes require an account
		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertHandlers.GetAlerts)
			alerts.GET("/search", alertHandlers.GetAlertsSearch)
			alerts.GET("/mine", authHandlers.AuthMiddleware(), alertHandlers.GetMyAlerts)
			alerts.GET("/:id", alertHandlers.GetAlert)

			alerts.POST("", authHandlers.AuthMiddleware(), alertHandlers.PostAlert)
			alerts.PUT("/:id", authHandlers.AuthMiddleware(), alertHandlers.PutAlert)
			alerts.DELETE("/:id", authHandlers.AuthMiddleware(), alertHandlers.DeleteAlert)
		}

		// Profile routes
		profile := api.Group("/profile")
		profile.Use(authHandlers.AuthMiddleware())
		{
			profile.GET("", profileHandlers.GetProfile)
			profile.PUT("", profileHandlers.PutProfile)
		}

		// Admin approval routes
		admin := api.Group("/admin")
		admin.Use(authHandlers.AuthMiddleware(), authHandlers.AdminOnlyMiddleware())
		{
			admin.GET("/pending", adminHandlers.GetPendingAgronomists)
			admin.POST("/users/:id/approve", adminHandlers.PostApprove)
			admin.POST("/users/:id/revoke", adminHandlers.PostRevoke)
		}
	}

	return r
}
