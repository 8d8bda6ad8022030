package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ENABLED", "")
	t.Setenv("WORKFLOW_SWEEP_INTERVAL_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "permit-lifecycle-service", cfg.App.Name)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "lifecycle:events", cfg.Redis.EventStream)
	assert.Equal(t, time.Minute, cfg.Workflow.SweepInterval())
	assert.True(t, cfg.Notification.AuditLog)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_EVENT_STREAM_MAXLEN", "50")
	t.Setenv("WORKFLOW_SWEEP_INTERVAL_SECONDS", "-1")
	t.Setenv("WORKFLOW_EXPIRE_RENEWALS", "false")
	t.Setenv("NOTIFY_RELAY_MIN_PRIORITY", "HIGH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(50), cfg.Redis.StreamMaxLen)
	assert.Zero(t, cfg.Workflow.SweepInterval())
	assert.False(t, cfg.Workflow.ExpireRenewals)
	assert.Equal(t, "HIGH", cfg.Notification.RelayMinPriority)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadPostgresPool(t *testing.T) {
	t.Setenv("APP_NAME", "permits-test")
	t.Setenv("POSTGRES_MAX_CONNS", "")
	t.Setenv("POSTGRES_HEALTH_CHECK_SECONDS", "15")
	t.Setenv("POSTGRES_CONNECT_TIMEOUT_SECONDS", "")
	t.Setenv("POSTGRES_STATEMENT_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "permits-test", cfg.Postgres.ApplicationName)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, int32(15), cfg.Postgres.HealthCheckSec)
	assert.Equal(t, int32(5), cfg.Postgres.ConnectTimeoutSec)
	assert.Equal(t, int32(250), cfg.Postgres.StatementTimeoutMs)
}
