package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Telegram MTProto credentials
	TelegramAPIID   int
	TelegramAPIHash string
	SessionFile     string

	// Scraper configuration
	Channels        []string
	FetchLimit      int
	ChannelCooldown time.Duration

	// Data layout
	StagingDir   string
	MediaDir     string
	ProcessedDir string
	DatabasePath string

	// Schedule configuration ("daily" or "weekly")
	PipelineSchedule string

	// Notification configuration
	WebhookURL        string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		TelegramAPIID:   getIntEnv("TELEGRAM_API_ID", 0),
		TelegramAPIHash: getEnv("TELEGRAM_API_HASH", ""),
		SessionFile:     getEnv("TELEGRAM_SESSION_FILE", "scraper_session.json"),

		Channels: getSliceEnv("CHANNELS", []string{
			"lobelia4cosmetics",
			"tikvahpharma",
			"CheMed123",
			"ethiopharma",
			"pharmacyaddis",
			"addispharmacy",
		}),
		FetchLimit:      getIntEnv("FETCH_LIMIT", 10),
		ChannelCooldown: time.Duration(getIntEnv("CHANNEL_COOLDOWN_SECONDS", 2)) * time.Second,

		StagingDir:   getEnv("STAGING_DIR", "data/raw/telegram_messages"),
		MediaDir:     getEnv("MEDIA_DIR", "data/raw/images"),
		ProcessedDir: getEnv("PROCESSED_DIR", "data/processed"),
		DatabasePath: getEnv("DATABASE_PATH", "medical_warehouse.db"),

		PipelineSchedule: getEnv("PIPELINE_SCHEDULE", "daily"),

		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramAPIID == 0 || c.TelegramAPIHash == "" {
		return fmt.Errorf("TELEGRAM_API_ID and TELEGRAM_API_HASH are required")
	}

	if c.FetchLimit <= 0 {
		return fmt.Errorf("FETCH_LIMIT must be a positive integer")
	}

	if c.PipelineSchedule != "daily" && c.PipelineSchedule != "weekly" {
		return fmt.Errorf("PIPELINE_SCHEDULE must be 'daily' or 'weekly'")
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
