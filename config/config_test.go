package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewConfigFromFile(t *testing.T) {
	cfg, err := NewConfig("config.yml")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Directory.Address)
	assert.Equal(t, StoreMemory, cfg.Directory.Store.Driver)
	assert.Equal(t, 4000, cfg.BaseRelayPort)
	assert.Equal(t, 3000, cfg.BaseUserPort)
	assert.Equal(t, 10, cfg.NumRelays)
	assert.Equal(t, 2*time.Second, cfg.DirectoryCacheTTL)
	assert.Equal(t, "http://localhost:4003", cfg.RelayAddress(3))
	assert.Equal(t, "http://localhost:3001", cfg.UserAddress(1))

	address, err := cfg.Ports().RelayAddress(3)
	require.NoError(t, err)
	assert.Equal(t, "0000004003", address)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, "num_users: 5\n"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Directory.Port)
	assert.Equal(t, 5, cfg.NumUsers)
	assert.Equal(t, 30*time.Second, cfg.SendTimeout)
	assert.Equal(t, 0, cfg.RelayPrometheusPort(1))
}

func TestNewConfigEnvOverride(t *testing.T) {
	t.Setenv("ONION_DIRECTORY_PORT", "9090")
	t.Setenv("ONION_LOG_LEVEL", "debug")

	cfg, err := NewConfig(writeConfig(t, "directory:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Directory.Port)
	assert.Equal(t, "http://localhost:9090", cfg.Directory.Address)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfigEnvOverridePorts(t *testing.T) {
	t.Setenv("ONION_BASE_RELAY_PORT", "5000")
	t.Setenv("ONION_BASE_USER_PORT", "6000")
	t.Setenv("ONION_NUM_RELAYS", "4")
	t.Setenv("ONION_NUM_USERS", "3")
	t.Setenv("ONION_DIRECTORY_PROMETHEUS_PORT", "9000")
	t.Setenv("ONION_METRICS_BASE_RELAY_PORT", "9100")
	t.Setenv("ONION_METRICS_BASE_USER_PORT", "9200")
	t.Setenv("ONION_DIRECTORY_CACHE_TTL", "5s")
	t.Setenv("ONION_SEND_TIMEOUT", "1s")

	cfg, err := NewConfig(writeConfig(t, "base_relay_port: 4000\nnum_relays: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.BaseRelayPort)
	assert.Equal(t, 6000, cfg.BaseUserPort)
	assert.Equal(t, 4, cfg.NumRelays)
	assert.Equal(t, 3, cfg.NumUsers)
	assert.Equal(t, 9000, cfg.Directory.PrometheusPort)
	assert.Equal(t, 9102, cfg.RelayPrometheusPort(2))
	assert.Equal(t, 9201, cfg.UserPrometheusPort(1))
	assert.Equal(t, 5*time.Second, cfg.DirectoryCacheTTL)
	assert.Equal(t, time.Second, cfg.SendTimeout)
}

func TestNewConfigValidation(t *testing.T) {
	for name, content := range map[string]string{
		"too few relays":   "num_relays: 2\n",
		"unknown store":    "directory:\n  store:\n    driver: mongo\n",
		"postgres w/o dsn": "directory:\n  store:\n    driver: postgres\n",
		"negative users":   "num_users: -1\n",
		"users in relays":  "base_user_port: 4005\n",
		"relays in users":  "base_relay_port: 2995\n",
	} {
		_, err := NewConfig(writeConfig(t, content))
		assert.Error(t, err, name)
	}

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	// adjacent ranges are fine
	cfg, err := NewConfig(writeConfig(t, "base_user_port: 4010\n"))
	require.NoError(t, err)
	party, err := cfg.Ports().Resolve("0000004010")
	require.NoError(t, err)
	assert.Equal(t, onion.UserParty, party.Kind)
}

func TestPrometheusConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, "num_relays: 3\nnum_users: 1\nmetrics:\n  base_relay_port: 9100\n"))
	require.NoError(t, err)

	promCfg := cfg.PrometheusConfig()
	require.Len(t, promCfg.ScrapeConfigs, 3)
	assert.Equal(t, "relay-0", promCfg.ScrapeConfigs[0].JobName)
	assert.Equal(t, []string{"localhost:9102"}, promCfg.ScrapeConfigs[2].StaticConfigs[0].Targets)

	path := filepath.Join(t.TempDir(), "prometheus.yml")
	require.NoError(t, cfg.WritePrometheusConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded PromConfig
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, promCfg, decoded)
}
