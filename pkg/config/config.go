package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stream   StreamConfig
	App      AppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StreamConfig holds activity-stream behavior configuration
type StreamConfig struct {
	// SearchField is the primary-table column the contains-search runs against.
	SearchField string
	// DefaultPerPage is the page size applied when a query supplies none.
	DefaultPerPage int
	// LogCronEvents controls whether events attributed to the scheduled-task
	// agent are recorded at all.
	LogCronEvents bool
	// RuleCacheTTL bounds how stale a cached exclusion rule set may be.
	RuleCacheTTL time.Duration
	// Timezone is the location used to interpret calendar-day date filters
	// before converting the bounds to UTC.
	Timezone string
	// NotifyChannel is the Redis channel inserted-record notifications are
	// published on. Empty disables publishing.
	NotifyChannel string
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Environment string
	LogLevel    string
	Name        string
	Version     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "streamlog"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Stream: StreamConfig{
			SearchField:    getEnv("STREAM_SEARCH_FIELD", "summary"),
			DefaultPerPage: getEnvAsInt("STREAM_RECORDS_PER_PAGE", 20),
			LogCronEvents:  getEnvAsBool("STREAM_LOG_CRON_EVENTS", true),
			RuleCacheTTL:   getEnvAsDuration("STREAM_RULE_CACHE_TTL", 30*time.Second),
			Timezone:       getEnv("STREAM_TIMEZONE", "UTC"),
			NotifyChannel:  getEnv("STREAM_NOTIFY_CHANNEL", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Name:        getEnv("APP_NAME", "streamlog"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if _, err := time.LoadLocation(cfg.Stream.Timezone); err != nil {
		return nil, fmt.Errorf("invalid STREAM_TIMEZONE %q: %w", cfg.Stream.Timezone, err)
	}

	return cfg, nil
}

// Location returns the parsed query timezone. Load validates the name, so a
// parse failure here falls back to UTC.
func (c *StreamConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerAddr returns the server address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
