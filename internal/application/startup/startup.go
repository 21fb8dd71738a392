// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agropulse/cropalert-go/internal/application/container"
	"github.com/agropulse/cropalert-go/internal/presentation/http/server"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until
// shutdown completes.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	log.Println("CropAlert starting...")

	// Step 1: Create dependency injection container. This opens the
	// database, creates the schema, and wires every singleton service.
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 2: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	startServerTime := time.Now()

	httpServer := server.New(config.Port, appContainer)

	logger.Startup().Info("HTTP server initialized", "port", config.Port, "duration", time.Since(startServerTime))

	// Step 3: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop accepting new requests, then drain in-flight ones.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// Drain realtime sessions and close infrastructure.
	logger.Shutdown().Info("Draining realtime sessions...")
	sessionCount := appContainer.Registry.SessionCount()
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing container", "error", err.Error())
	} else {
		logger.Shutdown().Info("Container closed successfully", "drainedSessions", sessionCount)
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
