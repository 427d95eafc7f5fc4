package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"swapescrow/config"
)

func TestRunStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.RPCAddress = "127.0.0.1:0"
	cfg.PausedModules = []string{"escrow"}

	path := filepath.Join(dir, "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	require.NoError(t, f.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, path))

	_, err = os.Stat(filepath.Join(cfg.DataDir, "state"))
	require.NoError(t, err, "state database should be created")
	_, err = os.Stat(cfg.HistoryPath())
	require.NoError(t, err, "history database should be created")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ChainID = 0\nDataDir = \"x\"\n"), 0o644))
	require.Error(t, run(context.Background(), path))
}
