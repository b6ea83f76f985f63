package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5000, cfg.Poller.RateMs)
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	require.Len(t, cfg.Source.Tables, 1)
	assert.Equal(t, "events", cfg.Source.Active)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
source:
  base_url: https://example.supabase.co
  api_key: file-key
  timeout: 3s
  tables:
    - name: orders
      timestamp_column: inserted_at
    - name: audit_log
      label: Audit
      id_column: uid
poller:
  rate_ms: 2000
  limit: 5
auth:
  mock_key: from-file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("STREAMGATE_SOURCE_API_KEY", "env-key")
	t.Setenv("STREAMGATE_STORAGE_DRIVER", "postgres")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co", cfg.Source.BaseURL)
	assert.Equal(t, "env-key", cfg.Source.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Source.Timeout)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 2000, cfg.Poller.RateMs)
	assert.Equal(t, 5, cfg.Poller.Limit)
	assert.Equal(t, "from-file", cfg.Auth.MockKey)

	require.Len(t, cfg.Source.Tables, 2)
	assert.Equal(t, "orders", cfg.Source.Active)
	assert.Equal(t, "inserted_at", cfg.Source.Tables[0].TimestampColumn)
	assert.Equal(t, "id", cfg.Source.Tables[0].IDColumn)
	assert.Equal(t, "orders", cfg.Source.Tables[0].Label)
	assert.Equal(t, "uid", cfg.Source.Tables[1].IDColumn)
	assert.Equal(t, "created_at", cfg.Source.Tables[1].TimestampColumn)
	assert.Equal(t, "Audit", cfg.Source.Tables[1].Label)
}

func TestValidateRejectsUnknownActiveTable(t *testing.T) {
	cfg := Default()
	cfg.Source.Active = "missing"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateTables(t *testing.T) {
	cfg := Default()
	cfg.Source.Tables = append(cfg.Source.Tables, cfg.Source.Tables[0])
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "redis"
	assert.Error(t, cfg.Validate())
}
