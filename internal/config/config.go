package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Jobs      JobsConfig
	Vendors   VendorConfig
	Alerts    AlertConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// JobsConfig holds sync-job configuration.
// CronSecret guards the job-trigger endpoints. FailedAlertThreshold is the
// number of per-item failures (or deactivations) at which a warning alert
// fires even though the job itself completed.
type JobsConfig struct {
	CronSecret           string
	FailedAlertThreshold int
}

// VendorConfig holds external data vendor configuration.
// API keys may be empty; a missing key disables that pricing tier.
// FernetKey enables encrypted at-rest storage of keys set via the admin API.
type VendorConfig struct {
	TwelveDataAPIKey   string
	AlphaVantageAPIKey string
	FernetKey          string
}

// AlertConfig holds the alerting sink configuration. Channels with empty
// destinations are skipped.
type AlertConfig struct {
	SlackWebhookURL string
	EmailTo         string
}

// SMTPConfig holds outbound mail configuration. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// RedisConfig holds the optional shared progress-store backing.
// When URL is empty the in-process store is used.
type RedisConfig struct {
	URL string
}

// SchedulerConfig controls the in-process cron scheduler.
type SchedulerConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/investoscope.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Jobs: JobsConfig{
			CronSecret:           getEnv("CRON_SECRET", ""),
			FailedAlertThreshold: getEnvInt("SYNC_FAILED_ALERT_THRESHOLD", 10),
		},
		Vendors: VendorConfig{
			TwelveDataAPIKey:   getEnv("TWELVEDATA_API_KEY", ""),
			AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
			FernetKey:          getEnv("FERNET_KEY", ""),
		},
		Alerts: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK_URL", ""),
			EmailTo:         getEnv("ALERT_EMAIL_TO", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "alerts@investoscope.local"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled: getEnvBool("SCHEDULER_ENABLED", false),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
