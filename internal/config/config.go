package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")

// Config holds everything both binaries read from the environment.
type Config struct {
	DatabaseURL string
	Port        string

	// AMQP is optional; an empty URL disables signal publishing and the
	// results worker.
	AMQPURL string

	MailHost   string
	MailPort   int
	MailUser   string
	MailPass   string
	AlertEmail string

	DashboardUserID string
	LogLevel        string
	ResyncSchedule  string

	CORSAllowedOrigins []string
}

// Load reads .env when present, then the process environment. defaultPort
// differs per binary.
func Load(defaultPort string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", defaultPort),
		AMQPURL:            getEnv("AMQP_URL", ""),
		MailHost:           getEnv("MAIL_HOST", ""),
		MailPort:           getEnvAsInt("MAIL_PORT", 587),
		MailUser:           getEnv("MAIL_USER", ""),
		MailPass:           getEnv("MAIL_PASS", ""),
		AlertEmail:         getEnv("ALERT_EMAIL", ""),
		DashboardUserID:    getEnv("DASHBOARD_USER_ID", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ResyncSchedule:     getEnv("RESYNC_SCHEDULE", "@every 1m"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return cfg, nil
}

func (c *Config) QueueEnabled() bool { return c.AMQPURL != "" }

func (c *Config) AlertsEnabled() bool { return c.AlertEmail != "" && c.MailHost != "" }

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
