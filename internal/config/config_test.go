package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "metering-dashboard/internal/billing/domain"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("EXPORT_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.Minute, cfg.Engine.Tick)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrentRuns)
	assert.Equal(t, 8, cfg.Engine.DispatchConcurrency)
	assert.Equal(t, billing.DefaultRates(), cfg.Rates)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  tick: 30s
  max_concurrent_runs: 2
tariff:
  on_peak_rate: 5.5
  tax_rate: 0.1
`), 0o600))
	t.Setenv("EXPORT_CONFIG", path)
	t.Setenv("SCHEDULER_MAX_CONCURRENT_RUNS", "6")
	t.Setenv("SCHEDULER_TIMEZONE", "Asia/Bangkok")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Engine.Tick)
	assert.Equal(t, 6, cfg.Engine.MaxConcurrentRuns)
	assert.Equal(t, 10*time.Minute, cfg.Engine.RunTimeout)
	assert.Equal(t, 5.5, cfg.Rates.OnPeakRate)
	assert.Equal(t, 0.1, cfg.Rates.TaxRate)
	assert.Equal(t, billing.DefaultRates().OffPeakRate, cfg.Rates.OffPeakRate)
	assert.Equal(t, "Asia/Bangkok", cfg.Location().String())
}

func TestLoadRejectsMissingSettings(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("PG_DSN", "postgres://localhost/exports")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")

	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("ARCHIVE_S3_BUCKET", "reports")
	_, err = Load()
	assert.ErrorContains(t, err, "ARCHIVE_S3_REGION")
}

func TestLoadRejectsNegativeTariff(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tariff:\n  demand_rate: -1\n"), 0o600))
	t.Setenv("EXPORT_CONFIG", path)

	_, err := Load()
	assert.ErrorIs(t, err, billing.ErrNegativeRate)
}
