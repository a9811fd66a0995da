// Command snmpsubagent is the AgentX sub-agent binary.
//
// It connects to a local AgentX master agent, registers its
// MIB sub-trees, answers Get/GetNext/GetBulk requests against the MIB
// dispatch tree, and watches Redis-compatible keyspace notifications to
// emit SNMP traps. It runs until interrupted (SIGINT/SIGTERM).
//
// Usage:
//
//	snmpsubagent [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/app"
	"github.com/sonic-net/snmp-subagent/internal/runtimeconfig"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpsubagent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		updateFrequency int
		daemonConfig    string
		storeConfig     string
		runtimeConfig   string
	)

	flag.IntVar(&updateFrequency, "update-frequency", 5, "Default MIB updater frequency, in seconds")
	flag.StringVar(&daemonConfig, "agentx-daemon-config", "/etc/snmp/snmpd.conf", "Path to the daemon config file scanned for agentxsocket")
	flag.StringVar(&storeConfig, "store-config", "", "Path to the Redis topology config file (default: $DB_CONFIG_FILE or built-in default)")
	flag.StringVar(&runtimeConfig, "config", "", "Path to the optional operator runtime config file (default: $SNMP_SUBAGENT_CONFIG or built-in default)")
	flag.Parse()

	// ── Runtime config (optional, tolerates a missing file) ─────────────
	rcPath := runtimeConfig
	if rcPath == "" {
		rcPath = runtimeconfig.PathFromEnv()
	}
	rc, err := runtimeconfig.Load(rcPath)
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}

	logger, err := buildLogger(rc.LogLevel, rc.LogFormat)
	if err != nil {
		return err
	}

	// ── Build App ────────────────────────────────────────────────────────
	cfg := app.Config{
		DaemonConfigPath: daemonConfig,
		StoreConfigPath:  storeConfig,
		UpdateFrequency:  secondsToDuration(updateFrequency),
		UpdaterOverrides: rc.UpdaterOverrides,
	}
	// Fallback chain: --store-config flag, then the runtime config file's
	// override; app.Config.withDefaults fills anything still empty from
	// $DB_CONFIG_FILE, then the built-in default.
	if cfg.StoreConfigPath == "" {
		cfg.StoreConfigPath = rc.StoreConfigPath
	}

	application := app.New(cfg, logger)

	// ── Start ────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("snmpsubagent: running — press Ctrl-C to stop")

	<-ctx.Done()
	logger.Info("snmpsubagent: received shutdown signal")

	application.Stop()
	return nil
}

func buildLogger(level, format string) (*slog.Logger, error) {
	lvl := slog.LevelInfo
	switch level {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text|json)", format)
	}

	return slog.New(handler), nil
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
