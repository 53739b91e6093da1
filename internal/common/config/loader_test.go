package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
app:
  name: analytics-orchestrator
  environment: test

database:
  postgres:
    host: localhost
    port: 5432
    database: analytics
    user: app
    password: secret
  redis:
    address: localhost:6379

apis:
  oracle:
    base_url: http://localhost:9000
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "analytics-orchestrator", cfg.App.Name)
	assert.Equal(t, "localhost", cfg.Database.Postgres.Host)
	assert.Equal(t, "http://localhost:9000", cfg.APIs.Oracle.BaseURL)

	// Defaults fill in everything the file omits.
	assert.Equal(t, 10, cfg.Orchestrator.MaxLoops)
	assert.Equal(t, 3600, cfg.Orchestrator.SessionResultTTL)
	assert.Equal(t, 0.3, cfg.Resolver.Threshold)
	assert.Equal(t, 0.10, cfg.Resolver.CrossTypeDiscount)
	assert.Equal(t, "events", cfg.Database.Elasticsearch.EventIndex)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/metrics", cfg.Server.MetricsPath)
}

func TestLoadFromFileMissingOracle(t *testing.T) {
	content := `
database:
  postgres:
    host: localhost
    database: analytics
    user: app
  redis:
    address: localhost:6379
`
	_, err := LoadFromFile(writeTestConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apis.oracle.base_url")
}

func TestLoadFromFileMissingPostgres(t *testing.T) {
	content := `
database:
  redis:
    address: localhost:6379
apis:
  oracle:
    base_url: http://localhost:9000
`
	_, err := LoadFromFile(writeTestConfig(t, content))
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Database: "analytics",
		User: "app", Password: "secret", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=analytics sslmode=disable", p.GetDSN())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
