package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"contest_lifecycle/internal/domain/lifecycle"

	"github.com/joho/godotenv"
)

// CronDisabled turns the in-process batch timer off when used as CRON_SPEC_BATCH.
const CronDisabled = "off"

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	HTTPAddr        string
	BatchSecret     string // empty means the HTTP trigger is not provisioned
	LogLevel        string
	Environment     string
	CronSpecBatch   string
	EnabledSweeps   []lifecycle.Kind
	TxTimeout       time.Duration
	DBMaxOpenConns  int // 0 keeps the database package default
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	SystemAuthorID  int64  // author of stage notification messages
	TelegramToken   string // optional operator bot
	AdminTelegramID int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.BatchSecret = strings.TrimSpace(os.Getenv("BATCH_SECRET"))

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecBatch = strings.TrimSpace(os.Getenv("CRON_SPEC_BATCH"))
	if cfg.CronSpecBatch == "" {
		cfg.CronSpecBatch = "*/5 * * * *" // Default: every 5 minutes
	}

	sweeps := os.Getenv("ENABLED_SWEEPS")
	if sweeps == "" {
		sweeps = "notification,terms,event"
	}
	cfg.EnabledSweeps, err = lifecycle.ParseKinds(sweeps)
	if err != nil {
		return nil, fmt.Errorf("invalid ENABLED_SWEEPS: %w", err)
	}

	cfg.TxTimeout = 10 * time.Second
	if v := os.Getenv("TX_TIMEOUT"); v != "" {
		cfg.TxTimeout, err = time.ParseDuration(v)
		if err != nil || cfg.TxTimeout <= 0 {
			return nil, fmt.Errorf("invalid TX_TIMEOUT %q", v)
		}
	}

	if cfg.DBMaxOpenConns, err = optionalInt("DB_MAX_OPEN_CONNS"); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = optionalInt("DB_MAX_IDLE_CONNS"); err != nil {
		return nil, err
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		cfg.DBConnLifetime, err = time.ParseDuration(v)
		if err != nil || cfg.DBConnLifetime <= 0 {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q", v)
		}
	}

	cfg.SystemAuthorID = 1
	if v := os.Getenv("SYSTEM_AUTHOR_ID"); v != "" {
		cfg.SystemAuthorID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SYSTEM_AUTHOR_ID: %w", err)
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func optionalInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// CronEnabled reports whether the in-process batch timer should run.
func (c *AppConfig) CronEnabled() bool {
	return !strings.EqualFold(c.CronSpecBatch, CronDisabled)
}
