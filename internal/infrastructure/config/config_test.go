package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"MARKETSYNC_APP_NAME",
	"MARKETSYNC_APP_ENV",
	"MARKETSYNC_DATABASE_HOST",
	"MARKETSYNC_DATABASE_PORT",
	"MARKETSYNC_DATABASE_PASSWORD",
	"MARKETSYNC_DATABASE_MAX_OPEN_CONNS",
	"MARKETSYNC_DATABASE_MAX_IDLE_CONNS",
	"MARKETSYNC_JWT_SECRET",
	"MARKETSYNC_SECRETS_MASTER_KEY",
	"MARKETSYNC_STOREFRONT_WEBHOOK_SECRET",
	"MARKETSYNC_MARKETPLACE_CALL_TIMEOUT",
	"MARKETSYNC_EXPORT_PAGE_SIZE",
	"MARKETSYNC_EXPORT_ARCHIVE_TO_STORAGE",
	"MARKETSYNC_STORAGE_BUCKET",
	"MARKETSYNC_SCHEDULER_ORDER_IMPORT_CRON",
	"MARKETSYNC_REDIS_HOST",
	"MARKETSYNC_PROFILING_ENABLED",
	"MARKETSYNC_PROFILING_SERVER_ADDRESS",
}

// clearConfigEnv unsets the config variables for the duration of the test
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearConfigEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "marketsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "marketsync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 300*time.Second, cfg.Marketplace.CallTimeout)
		assert.Equal(t, 50, cfg.Export.PageSize)
		assert.Equal(t, 50, cfg.Export.ShipmentQueueSize)
		assert.Equal(t, 72*time.Hour, cfg.Export.ArtifactRetention)
		assert.False(t, cfg.Redis.Enabled())
		assert.Empty(t, cfg.Scheduler.OrderImportCron)
		assert.False(t, cfg.Profiling.Enabled)
		assert.Equal(t, "marketsync", cfg.Profiling.ApplicationName)
		assert.Equal(t, []string{"cpu", "alloc_space", "inuse_space"}, cfg.Profiling.ProfileTypes)
	})

	t.Run("loads values from environment variables with MARKETSYNC prefix", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_APP_NAME", "sync-test")
		t.Setenv("MARKETSYNC_DATABASE_HOST", "db.local")
		t.Setenv("MARKETSYNC_DATABASE_PORT", "5433")
		t.Setenv("MARKETSYNC_MARKETPLACE_CALL_TIMEOUT", "45s")
		t.Setenv("MARKETSYNC_SCHEDULER_ORDER_IMPORT_CRON", "*/15 * * * *")
		t.Setenv("MARKETSYNC_REDIS_HOST", "cache.local")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sync-test", cfg.App.Name)
		assert.Equal(t, "db.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 45*time.Second, cfg.Marketplace.CallTimeout)
		assert.Equal(t, "*/15 * * * *", cfg.Scheduler.OrderImportCron)
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("MARKETSYNC_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects a call timeout below one second", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_MARKETPLACE_CALL_TIMEOUT", "10ms")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marketplace.call_timeout")
	})

	t.Run("profiling needs a server address", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_PROFILING_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profiling.server_address")

		t.Setenv("MARKETSYNC_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Profiling.Enabled)
	})

	t.Run("archiving needs a bucket", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_EXPORT_ARCHIVE_TO_STORAGE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MARKETSYNC_APP_ENV", "production")
		t.Setenv("MARKETSYNC_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("MARKETSYNC_DATABASE_PASSWORD", "secure-password")
		t.Setenv("MARKETSYNC_SECRETS_MASTER_KEY", "master")
		t.Setenv("MARKETSYNC_STOREFRONT_WEBHOOK_SECRET", "hook")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	tests := []struct {
		name    string
		unset   string
		value   string
		wantErr string
	}{
		{"requires jwt.secret", "MARKETSYNC_JWT_SECRET", "", "jwt.secret is required in production"},
		{"requires long jwt.secret", "MARKETSYNC_JWT_SECRET", "short", "jwt.secret must be at least 32 characters"},
		{"requires database.password", "MARKETSYNC_DATABASE_PASSWORD", "", "database.password is required in production"},
		{"requires secrets.master_key", "MARKETSYNC_SECRETS_MASTER_KEY", "", "secrets.master_key is required in production"},
		{"requires webhook secret", "MARKETSYNC_STOREFRONT_WEBHOOK_SECRET", "", "storefront.webhook_secret is required in production"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			if tt.value == "" {
				os.Unsetenv(tt.unset)
			} else {
				t.Setenv(tt.unset, tt.value)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
