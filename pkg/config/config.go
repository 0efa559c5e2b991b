package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Queue        QueueConfig
	Notification NotificationConfig
	OTEL         OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds waiting-line configuration
type QueueConfig struct {
	// WaitPerPositionMinutes is the fixed per-position wait used by the
	// estimator: wait = (position-1) * WaitPerPositionMinutes.
	WaitPerPositionMinutes int

	// GetReadyThreshold is the position at or below which a patient receives
	// a get-ready notification after a recalculation.
	GetReadyThreshold int

	// AllocateRetries bounds how many times a check-in re-attempts allocation
	// after losing the active-position unique constraint to a concurrent writer.
	AllocateRetries int

	// StatsWindow is the rolling window over which completed visits feed the
	// stats aggregates.
	StatsWindow time.Duration
}

// NotificationConfig holds SMS delivery configuration
type NotificationConfig struct {
	GatewayURL       string
	APIKey           string
	SenderID         string
	MaxMessageLength int

	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// DedupWindow suppresses a second get-ready message to the same patient
	// within this window.
	DedupWindow time.Duration

	DispatchInterval   time.Duration
	StatusPollInterval time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "waitline"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			WaitPerPositionMinutes: getEnvAsInt("QUEUE_WAIT_PER_POSITION_MINUTES", 15),
			GetReadyThreshold:      getEnvAsInt("QUEUE_GET_READY_THRESHOLD", 2),
			AllocateRetries:        getEnvAsInt("QUEUE_ALLOCATE_RETRIES", 3),
			StatsWindow:            getEnvAsDuration("QUEUE_STATS_WINDOW", 24*time.Hour),
		},
		Notification: NotificationConfig{
			GatewayURL:         getEnv("SMS_GATEWAY_URL", "https://api.smsgateway.example.com/v1"),
			APIKey:             getEnv("SMS_API_KEY", ""),
			SenderID:           getEnv("SMS_SENDER_ID", "WAITLINE"),
			MaxMessageLength:   getEnvAsInt("SMS_MAX_MESSAGE_LENGTH", 480),
			MaxAttempts:        getEnvAsInt("SMS_MAX_ATTEMPTS", 5),
			BaseDelay:          getEnvAsDuration("SMS_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:           getEnvAsDuration("SMS_MAX_DELAY", 30*time.Second),
			BackoffFactor:      getEnvAsFloat("SMS_BACKOFF_FACTOR", 2.0),
			DedupWindow:        getEnvAsDuration("SMS_DEDUP_WINDOW", 5*time.Minute),
			DispatchInterval:   getEnvAsDuration("SMS_DISPATCH_INTERVAL", 5*time.Second),
			StatusPollInterval: getEnvAsDuration("SMS_STATUS_POLL_INTERVAL", 30*time.Second),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "waitline"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
