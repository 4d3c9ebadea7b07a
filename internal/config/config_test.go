package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	m, err := NewManager()
	require.NoError(t, err)
	if mutate != nil {
		mutate(m.config)
	}
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := newTestManager(t, nil)
	cfg := m.GetConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// Standalone mode out of the box: sqlite audit, in-memory dedup.
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
	assert.Equal(t, "data/audit.db", cfg.Audit.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.Audit.Timeout)
	assert.Equal(t, "memory", cfg.Dedup.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Dedup.TTL)
	assert.Equal(t, 4096, cfg.Dedup.MemorySize)

	assert.Empty(t, cfg.Calculators.DefinitionsDir)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestNewManager_EnvironmentOverride(t *testing.T) {
	t.Setenv("CDSS_AUDIT_BACKEND", "postgres")
	t.Setenv("CDSS_DATABASE_HOST", "db.internal")
	t.Setenv("CDSS_LOGGING_LEVEL", "debug")

	m := newTestManager(t, nil)
	cfg := m.GetConfig()

	assert.Equal(t, "postgres", cfg.Audit.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	m := newTestManager(t, nil)

	assert.NoError(t, m.Validate())
}

func TestValidate_RejectsInvalidPort(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Server.Port = 0
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server port")
}

func TestValidate_RejectsUnknownAuditBackend(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Audit.Backend = "mongodb"
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit backend")
}

func TestValidate_PostgresRequiresDatabaseSettings(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Audit.Backend = "postgres"
		cfg.Database.Host = ""
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database host")
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Audit.Backend = "sqlite"
		cfg.Audit.SQLitePath = ""
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite path")
}

func TestValidate_RedisDedupRequiresURL(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Dedup.Backend = "redis"
		cfg.Dedup.RedisURL = ""
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL")
}

func TestValidate_RejectsUnknownDedupBackend(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Dedup.Backend = "hazelcast"
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup backend")
}

func TestValidate_RejectsInvalidLogLevel(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Logging.Level = "verbose"
	})

	err := m.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestValidate_AcceptsDisabledDedup(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Dedup.Backend = "disabled"
	})

	assert.NoError(t, m.Validate())
}
