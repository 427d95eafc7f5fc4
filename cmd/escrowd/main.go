package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"swapescrow/config"
	"swapescrow/core"
	"swapescrow/core/events"
	"swapescrow/indexer"
	"swapescrow/native/common"
	"swapescrow/observability"
	"swapescrow/observability/logging"
	telemetry "swapescrow/observability/otel"
	"swapescrow/rpc"
	"swapescrow/storage"
)

const envVar = "ESCROW_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		slog.Error("escrowd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv(envVar)); override != "" {
		env = override
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logOpts := []logging.Option{logging.WithLevel(level)}
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.LogFile, 100))
	}
	logger := logging.Setup("escrowd", env, logOpts...)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "escrowd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ledger := core.NewLedger(db, cfg.ChainID)
	ledger.SetLogger(logger)
	if err := ledger.SetMetrics(observability.Ledger()); err != nil {
		return fmt.Errorf("seed ledger metrics: %w", err)
	}
	ledger.SetPauses(common.NewPauseSet(cfg.PausedModules...))

	fanout := events.NewFanout()
	srvCfg := rpc.ServerConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		TrustedProxies:    append([]string{}, cfg.RPCTrustedProxies...),
		Logger:            logger,
	}
	if path := cfg.HistoryPath(); path != "" {
		history, err := indexer.Open(path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer history.Close()
		history.SetLogger(logger)
		fanout.Subscribe(history)
		srvCfg.History = history
	}
	ledger.SetEmitter(fanout)

	logger.Info("escrowd ready",
		slog.Uint64("chain_id", cfg.ChainID),
		slog.String("data_dir", cfg.DataDir),
		slog.Any("paused_modules", cfg.PausedModules))
	return rpc.NewServer(ledger, srvCfg).Serve(ctx, cfg.RPCAddress)
}
