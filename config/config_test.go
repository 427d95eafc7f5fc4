package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultRPCAddress, cfg.RPCAddress)
	require.EqualValues(t, DefaultChainID, cfg.ChainID)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/escrow"
RPCAddress = "0.0.0.0:9000"
ChainID = 42
Environment = " prod "
LogFile = "/var/log/escrowd.log"
LogLevel = "DEBUG"
HistoryDB = "audit.db"
PausedModules = ["escrow"]
RPCTrustedProxies = ["10.0.0.1"]

[RateLimit]
RequestsPerMinute = 30
Burst = 5

[Telemetry]
Endpoint = "collector:4318"
Insecure = true
Headers = "api-key=abc"
Traces = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/escrow", cfg.DataDir)
	require.EqualValues(t, 42, cfg.ChainID)
	require.Equal(t, "prod", cfg.Environment)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"escrow"}, cfg.PausedModules)
	require.Equal(t, []string{"10.0.0.1"}, cfg.RPCTrustedProxies)
	require.Equal(t, RateLimit{RequestsPerMinute: 30, Burst: 5}, cfg.RateLimit)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	require.Equal(t, filepath.Join("/var/lib/escrow", "audit.db"), cfg.HistoryPath())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = \":6001\"\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"zero chain", func(c *Config) { c.ChainID = 0 }},
		{"bad rpc address", func(c *Config) { c.RPCAddress = "localhost" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"unknown module", func(c *Config) { c.PausedModules = []string{"lending"} }},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }},
		{"missing burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"bad trusted proxy", func(c *Config) { c.RPCTrustedProxies = []string{"proxy.internal"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}
	require.NoError(t, Validate(Default()))
	require.Error(t, Validate(nil))
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.HistoryDB = ""
	require.Empty(t, cfg.HistoryPath())
	cfg.HistoryDB = ":memory:"
	require.Equal(t, ":memory:", cfg.HistoryPath())
	cfg.HistoryDB = "/abs/h.db"
	require.Equal(t, "/abs/h.db", cfg.HistoryPath())
}
