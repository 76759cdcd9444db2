package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 0.05, c.Pipeline.Contamination)
	assert.Equal(t, int64(42), c.Pipeline.Seed)
	assert.Equal(t, []string{"Close", "Volume", "Daily_Return", "Volatility_7", "Volatility_30"}, c.Pipeline.Features)
	assert.Equal(t, "iforest", c.Model.Algorithm)
	assert.Equal(t, 100, c.Model.Trees)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL)
	assert.Equal(t, 10, c.Cache.Redis.PoolSize)
	assert.Equal(t, 2, c.Cache.Redis.MinIdle)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, rune(0), c.Delimiter())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
pipeline:
  contamination: 0.1
  seed: 7
  features: [Close]
  delimiter: ";"
model:
  algorithm: zscore
cache:
  redis:
    pool_size: 64
    min_idle: 4
`))
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 0.1, c.Pipeline.Contamination)
	assert.Equal(t, int64(7), c.Pipeline.Seed)
	assert.Equal(t, []string{"Close"}, c.Pipeline.Features)
	assert.Equal(t, ';', c.Delimiter())
	assert.Equal(t, "zscore", c.Model.Algorithm)
	assert.Equal(t, 64, c.Cache.Redis.PoolSize)
	assert.Equal(t, 4, c.Cache.Redis.MinIdle)
	assert.Equal(t, "data/reports", c.Storage.ReportsDir)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"contamination too high": "pipeline:\n  contamination: 1.5\n",
		"unknown algorithm":      "model:\n  algorithm: autoencoder\n",
		"remote without url":     "model:\n  algorithm: remote\n",
		"kafka without brokers":  "kafka:\n  enabled: true\n",
		"redis without cache":    "cache:\n  redis:\n    enabled: true\n",
		"bad yaml":               "pipeline: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o644))

	t.Setenv("FINSCAN_CONTAMINATION", "0.2")
	t.Setenv("FINSCAN_SEED", "9")
	t.Setenv("FINSCAN_FEATURES", "Close, Volume")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 0.2, c.Pipeline.Contamination)
	assert.Equal(t, int64(9), c.Pipeline.Seed)
	assert.Equal(t, []string{"Close", "Volume"}, c.Pipeline.Features)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
}

func TestLoadWithEnvRevalidates(t *testing.T) {
	t.Setenv("FINSCAN_CONTAMINATION", "3")
	_, err := LoadWithEnv("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)
	assert.True(t, c.Cache.Enabled)
	assert.Equal(t, "samples/sample_stock.csv", c.Storage.SampleFile)
	assert.Equal(t, 10.0, c.RateLimit.Capacity)
}
