// Package config provides centralized default values for CropAlert
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%f (default: %f)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Configuration
	DBDriver                 string
	DBPath                   string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Auth Configuration
	JWTSecret        string
	TokenExpiry      time.Duration
	BcryptCost       int
	LoginRatePerMin  int
	LoginRateBurst   int
	RateLimitCleanup time.Duration

	// Notification Configuration
	NotifyRadiusMeters float64

	// WebSocket Configuration
	WSSendBufferSize  int
	WSWriteWait       time.Duration
	WSPongWait        time.Duration
	WSMaxMessageBytes int64

	// Email Configuration
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBPath = getEnvString("DB_PATH", "cropalert.db")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET_KEY", "default_jwt_secret_key")
	TokenExpiry = getEnvDuration("TOKEN_EXPIRY", 1*time.Hour)
	BcryptCost = getEnvInt("BCRYPT_COST", 10)
	LoginRatePerMin = getEnvInt("LOGIN_RATE_PER_MINUTE", 20)
	LoginRateBurst = getEnvInt("LOGIN_RATE_BURST", 10)
	RateLimitCleanup = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)

	// Notification fan-out
	NotifyRadiusMeters = getEnvFloat("NOTIFY_RADIUS_METERS", 10000)

	// WebSocket
	WSSendBufferSize = getEnvInt("WS_SEND_BUFFER_SIZE", 16)
	WSWriteWait = getEnvDuration("WS_WRITE_WAIT", 10*time.Second)
	WSPongWait = getEnvDuration("WS_PONG_WAIT", 60*time.Second)
	WSMaxMessageBytes = int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 4096))

	// Email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "noreply@cropalert.app")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "CropAlert")
}
