package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // BILLING_TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	TelegramToken   string // Empty disables the admin bot
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	CronSpecDunning string
	BillingLocation *time.Location

	ResendAPIKey string // Empty disables the email notifier
	EmailFrom    string

	ReminderInterval        time.Duration
	NotifierTimeout         time.Duration
	SuspensionThresholdDays int
	CadenceThresholds       []int

	MetricsAddr string // Empty disables the /metrics endpoint
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables already set in the environment.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if cfg.TelegramToken != "" && adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	if adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	cfg.CronSpecDunning = getEnv("CRON_SPEC_DUNNING", "0 9 * * *") // 09:00 daily
	if _, err := cron.ParseStandard(cfg.CronSpecDunning); err != nil {
		return nil, fmt.Errorf("invalid CRON_SPEC_DUNNING: %w", err)
	}

	cfg.BillingLocation, err = time.LoadLocation(getEnv("BILLING_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_TIMEZONE: %w", err)
	}

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.EmailFrom = getEnv("EMAIL_FROM", "Cooperativa <cobranca@example.com>")

	if cfg.ReminderInterval, err = parseDuration("REMINDER_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.NotifierTimeout, err = parseDuration("NOTIFIER_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.NotifierTimeout <= 0 {
		return nil, fmt.Errorf("invalid NOTIFIER_TIMEOUT: must be positive")
	}

	cfg.SuspensionThresholdDays, err = strconv.Atoi(getEnv("SUSPENSION_THRESHOLD_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUSPENSION_THRESHOLD_DAYS: %w", err)
	}
	if cfg.SuspensionThresholdDays < 1 {
		return nil, fmt.Errorf("invalid SUSPENSION_THRESHOLD_DAYS: must be at least 1")
	}

	cfg.CadenceThresholds, err = parseInts(getEnv("CADENCE_THRESHOLDS", "0,3,7,15"))
	if err != nil {
		return nil, fmt.Errorf("invalid CADENCE_THRESHOLDS: %w", err)
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	return cfg, nil
}

// getEnv treats a set-but-empty variable like an unset one, except METRICS_ADDR which
// callers may blank out to disable the endpoint.
func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || (v == "" && key != "METRICS_ADDR") {
		return fallback
	}
	return v
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// LoadEnvFile loads an explicit .env file. Like Load, it never overrides variables already set.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load env file %s: %w", path, err)
	}
	return nil
}
