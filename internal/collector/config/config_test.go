package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "collector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "kafka:\n  brokers: [\"localhost:9092\"]\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "websee-events", cfg.Kafka.Topics["events"])
	assert.Equal(t, "websee-replay", cfg.Kafka.Topics["replay"])
	assert.Equal(t, 1000, cfg.Batch.Size)
	assert.Equal(t, 5*time.Second, cfg.Batch.FlushInterval)
	assert.Equal(t, 10, cfg.ClickHouse.MaxOpenConns)
	assert.Empty(t, cfg.ClickHouse.Addr)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("COLLECTOR_PG_DSN", "postgres://websee@db/websee")
	cfg, err := Load(writeConfig(t, `
server:
  http_port: 9000
postgres:
  dsn: ${COLLECTOR_PG_DSN}
kafka:
  topics:
    events: custom-events
batch:
  size: 50
  flush_interval: 250ms
rate_limit:
  requests_per_second: 20
  burst: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "postgres://websee@db/websee", cfg.Postgres.DSN)
	assert.Equal(t, "custom-events", cfg.Kafka.Topics["events"])
	assert.Equal(t, "websee-replay", cfg.Kafka.Topics["replay"])
	assert.Equal(t, 50, cfg.Batch.Size)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.FlushInterval)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
