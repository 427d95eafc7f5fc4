package config

import (
	"fmt"
	"net"
	"strings"
)

var knownModules = map[string]struct{}{
	"escrow": {},
	"token":  {},
}

var knownLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate rejects configurations the node cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be non-zero")
	}
	if _, _, err := net.SplitHostPort(cfg.RPCAddress); err != nil {
		return fmt.Errorf("config: RPCAddress %q: %w", cfg.RPCAddress, err)
	}
	if _, ok := knownLevels[cfg.LogLevel]; !ok {
		return fmt.Errorf("config: unknown LogLevel %q", cfg.LogLevel)
	}
	for _, m := range cfg.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(m))]; !ok {
			return fmt.Errorf("config: unknown module %q in PausedModules", m)
		}
	}
	for _, proxy := range cfg.RPCTrustedProxies {
		if net.ParseIP(strings.TrimSpace(proxy)) == nil {
			return fmt.Errorf("config: RPCTrustedProxies entry %q is not an IP address", proxy)
		}
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("config: RateLimit values must not be negative")
	}
	if cfg.RateLimit.RequestsPerMinute > 0 && cfg.RateLimit.Burst == 0 {
		return fmt.Errorf("config: RateLimit.Burst required when RequestsPerMinute is set")
	}
	return nil
}
