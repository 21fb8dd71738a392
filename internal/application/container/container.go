// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/infrastructure/email"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	alertrepo "github.com/agropulse/cropalert-go/internal/infrastructure/persistence/alert"
	"github.com/agropulse/cropalert-go/internal/infrastructure/persistence/database"
	userrepo "github.com/agropulse/cropalert-go/internal/infrastructure/persistence/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/realtime"
	"github.com/agropulse/cropalert-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services (stateless singletons)
	AuthService    *services.AuthService
	AlertService   *services.AlertService
	ProfileService *services.ProfileService
	AdminService   *services.AdminService
	Dispatcher     *services.NotificationDispatcher
	SpatialIndex   *services.SpatialIndex

	// Realtime infrastructure
	Registry *realtime.Registry
	Hub      *realtime.Hub

	// Infrastructure dependencies
	DB      *database.DB
	Logger  *logging.ChanneledLogger
	Metrics *metrics.Collector
}

// NewContainer opens the database, runs schema creation, and wires all
// singleton services. The email service is optional: without a RESEND
// API key, approval emails are skipped and everything else works.
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	collector := metrics.NewDefaultCollector()

	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tableCreator := database.NewTableCreator()
	if err := tableCreator.CreateSchema(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	users := userrepo.NewSQLUserRepository(db, logger)
	alerts := alertrepo.NewSQLAlertRepository(db, logger)

	var emailService email.Service
	if config.ResendAPIKey != "" {
		emailService, err = email.NewService()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
	} else {
		logger.Startup().Warn("No RESEND_API_KEY configured, approval emails disabled")
	}

	registry := realtime.NewRegistry(logger)
	hub := realtime.NewHub(registry, logger, collector)

	spatialIndex := services.NewSpatialIndex(users, logger)
	dispatcher := services.NewNotificationDispatcher(spatialIndex, registry, hub, logger, collector)

	return &Container{
		AuthService:    services.NewAuthService(users, logger),
		AlertService:   services.NewAlertService(alerts, dispatcher, logger),
		ProfileService: services.NewProfileService(users, logger),
		AdminService:   services.NewAdminService(users, emailService, logger),
		Dispatcher:     dispatcher,
		SpatialIndex:   spatialIndex,
		Registry:       registry,
		Hub:            hub,
		DB:             db,
		Logger:         logger,
		Metrics:        collector,
	}, nil
}

// Close releases the container's long-lived resources.
func (c *Container) Close() error {
	c.Hub.Shutdown()
	c.Logger.Close()
	return c.DB.Close()
}
