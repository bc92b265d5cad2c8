package pricewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MonitorSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[monitor]
interval = 300
products_per_cycle = 100
concurrent_requests = 10
batch_delay = 2
default_country = "US"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	sc := cfg.Monitor.SchedulerConfig()
	assert.Equal(t, 5*time.Minute, sc.Interval)
	assert.Equal(t, 100, sc.ProductsPerRun)
	assert.Equal(t, 10, sc.BatchSize)
	// The pause between request batches has to survive the trip from TOML
	// into the scheduler, otherwise cycles hammer the API back to back.
	assert.Equal(t, 2*time.Second, sc.InterBatchDelay)
	assert.Equal(t, "US", cfg.Monitor.DefaultCountry)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
