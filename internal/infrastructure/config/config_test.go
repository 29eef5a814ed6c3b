package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	t.Run("fills every empty field", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)

		assert.Equal(t, "metering-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "metering", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
		assert.Equal(t, int64(10), cfg.Metering.PageUnitPrice)
		assert.Equal(t, int64(5), cfg.Metering.TranslationUnitPrice)
		assert.Equal(t, int64(3), cfg.Metering.DailyFreeTranslations)
		assert.Equal(t, int64(100), cfg.Metering.SignupBonus)
		assert.Equal(t, 24*time.Hour, cfg.Metering.IdempotencyTTL)
		assert.Equal(t, 5, cfg.Metering.ChargeMaxAttempts)
	})

	t.Run("does not override configured values", func(t *testing.T) {
		cfg := &Config{}
		cfg.Metering.PageUnitPrice = 25
		cfg.Database.MaxOpenConns = 50
		applyDefaults(cfg)

		assert.Equal(t, int64(25), cfg.Metering.PageUnitPrice)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	})
}

func TestValidate(t *testing.T) {
	validConfig := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("accepts defaults in development", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	t.Run("rejects negative unit prices", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metering.PageUnitPrice = -1
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects idle conns exceeding open conns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.MaxIdleConns = 100
		assert.Error(t, cfg.validate())
	})

	t.Run("requires database password in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "production"
		cfg.Database.SSLMode = "require"
		cfg.Redis.Enabled = true
		assert.Error(t, cfg.validate())

		cfg.Database.Password = "secret"
		assert.NoError(t, cfg.validate())
	})

	t.Run("requires redis in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects wildcard CORS origin in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.Redis.Enabled = true
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
		assert.Error(t, cfg.validate())
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "metering",
		Password: "p@ss/word",
		DBName:   "metering",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters in the password must be escaped.
	assert.NotContains(t, dsn, "p@ss/word")
}
