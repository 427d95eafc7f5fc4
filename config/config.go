package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRPCAddress = "127.0.0.1:8545"
	DefaultChainID    = 7331
)

type Config struct {
	DataDir       string    `toml:"DataDir"`
	RPCAddress    string    `toml:"RPCAddress"`
	ChainID       uint64    `toml:"ChainID"`
	Environment   string    `toml:"Environment"`
	LogFile       string    `toml:"LogFile"`
	LogLevel      string    `toml:"LogLevel"`
	HistoryDB     string    `toml:"HistoryDB"`
	PausedModules []string  `toml:"PausedModules"`
	RateLimit     RateLimit `toml:"RateLimit"`
	Telemetry     Telemetry `toml:"Telemetry"`

	// RPCTrustedProxies lists proxy IPs whose X-Forwarded-For header is
	// honoured when rate limiting.
	RPCTrustedProxies []string `toml:"RPCTrustedProxies"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:           "./escrow-data",
		RPCAddress:        DefaultRPCAddress,
		ChainID:           DefaultChainID,
		Environment:       "local",
		LogLevel:          "info",
		HistoryDB:         "history.db",
		PausedModules:     []string{},
		RPCTrustedProxies: []string{},
		RateLimit:         RateLimit{RequestsPerMinute: 120, Burst: 20},
	}
}

// Load loads the configuration from the given path, writing the defaults there
// first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HistoryPath resolves HistoryDB relative to DataDir. An empty HistoryDB
// disables the history indexer.
func (c *Config) HistoryPath() string {
	if c.HistoryDB == "" || c.HistoryDB == ":memory:" || filepath.IsAbs(c.HistoryDB) {
		return c.HistoryDB
	}
	return filepath.Join(c.DataDir, c.HistoryDB)
}

func (c *Config) normalize() {
	c.Environment = strings.TrimSpace(c.Environment)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if c.RPCTrustedProxies == nil {
		c.RPCTrustedProxies = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
