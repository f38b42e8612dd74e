package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contest_lifecycle/internal/domain/lifecycle"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BATCH_SECRET", "HTTP_ADDR", "LOG_LEVEL", "ENVIRONMENT", "CRON_SPEC_BATCH",
		"ENABLED_SWEEPS", "TX_TIMEOUT", "SYSTEM_AUTHOR_ID", "TELEGRAM_TOKEN", "ADMIN_TELEGRAM_ID",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME"} {
		t.Setenv(k, "")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/contest?sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecBatch)
	assert.True(t, cfg.CronEnabled())
	assert.Equal(t, lifecycle.SweepOrder, cfg.EnabledSweeps)
	assert.Equal(t, 10*time.Second, cfg.TxTimeout)
	assert.Equal(t, int64(1), cfg.SystemAuthorID)
	assert.Empty(t, cfg.BatchSecret)
	assert.Zero(t, cfg.DBMaxOpenConns)
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BATCH_SECRET", " s3cret ")
	t.Setenv("CRON_SPEC_BATCH", "OFF")
	t.Setenv("ENABLED_SWEEPS", "terms,notification")
	t.Setenv("TX_TIMEOUT", "3s")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_ID", "42")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("DB_MAX_IDLE_CONNS", "2")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.BatchSecret)
	assert.False(t, cfg.CronEnabled())
	assert.Equal(t, []lifecycle.Kind{lifecycle.KindTerms, lifecycle.KindNotification}, cfg.EnabledSweeps)
	assert.Equal(t, 3*time.Second, cfg.TxTimeout)
	assert.Equal(t, int64(42), cfg.AdminTelegramID)
	assert.Equal(t, 4, cfg.DBMaxOpenConns)
	assert.Equal(t, 2, cfg.DBMaxIdleConns)
	assert.Equal(t, 90*time.Second, cfg.DBConnLifetime)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]map[string]string{
		"missing database":   {"DATABASE_URL": ""},
		"bad sweep":          {"ENABLED_SWEEPS": "event,reviews"},
		"bad timeout":        {"TX_TIMEOUT": "-1s"},
		"token without chat": {"TELEGRAM_TOKEN": "token"},
		"bad pool size":      {"DB_MAX_OPEN_CONNS": "many"},
		"negative idle":      {"DB_MAX_IDLE_CONNS": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
