// Helioscope Agent - host-local metrics probe runner
//
// Takes one snapshot of the host, runs every enabled probe against it and
// writes the resulting records as JSON log lines (and optionally to Redis).
//
// Usage:
//
//	helioscope -config /etc/helioscope/helioscope.toml
//
// Or keep collecting every collection_interval_secs:
//
//	helioscope -watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/gravito-framework/helioscope-go/internal/redis"
	"github.com/gravito-framework/helioscope-go/pkg/agent"
	"github.com/gravito-framework/helioscope-go/pkg/config"
	"github.com/gravito-framework/helioscope-go/pkg/probes"
	"github.com/gravito-framework/helioscope-go/pkg/sink"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the TOML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before environment overrides")
	watch := flag.Bool("watch", false, "keep collecting every collection_interval_secs")
	sample := flag.Duration("sample", probes.DefaultCPUSampleInterval, "window over which CPU usage is measured")
	showVersion := flag.Bool("version", false, "show version information")
	quiet := flag.Bool("quiet", false, "do not print the banner")
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("helioscope %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}

	// Banner goes to stderr; stdout carries the record stream.
	if !*quiet {
		fmt.Fprintf(os.Stderr, `
  ☀️  Helioscope Agent %s (%s)
  Every probe, one snapshot.

`, version, commit[:min(7, len(commit))])
	}

	cfg, cfgErr := loadConfig(*envFile, *configPath)

	level := "info"
	if cfgErr == nil {
		level = cfg.LogLevel
	}
	logger, err := sink.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "helioscope: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if cfgErr != nil {
		logger.Error("Configuration error", zap.Error(cfgErr))
		fmt.Fprintln(os.Stderr, "\nRun 'helioscope -help' for usage information.")
		return 1
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := []sink.Sink{sink.NewZapSink(logger)}
	if cfg.RedisURL != "" {
		client, err := redis.NewClientLazy(cfg.RedisURL)
		if err != nil {
			logger.Error("Configuration error", zap.Error(err))
			return 1
		}
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("⚠️ Failed to connect to Redis, records will only be logged until it is reachable", zap.Error(err))
		}
		pingCancel()

		rs := sink.NewRedisSink(client, cfg.NodeID, sink.WithTTL(cfg.RedisTTL()))
		sinks = append(sinks, rs)
		logger.Info("Publishing records to Redis", zap.String("key", rs.Key()))
	}

	source := probes.NewGopsutilSource(logger)
	source.CPUSampleInterval = *sample

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithSource(source),
		agent.WithSink(sink.NewMulti(sinks...)),
	}
	if !*watch {
		opts = append(opts, agent.WithInterval(0))
	}

	runner, err := agent.New(cfg, opts...)
	if err != nil {
		logger.Error("Failed to create runner", zap.Error(err))
		return 1
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := runner.Run(ctx); err != nil {
		var snapErr *probes.SnapshotError
		if errors.As(err, &snapErr) {
			logger.Error("Snapshot failed", zap.Error(err))
		} else {
			logger.Error("Collection failed", zap.Error(err))
		}
		return 1
	}
	return 0
}

func loadConfig(envFile, path string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: helioscope [options]

Helioscope is a host-local metrics agent. Each cycle takes one snapshot of
the machine and runs the enabled probes (static_info, cpu, memory, disk,
network, temperature, forks) against it. Records are written to stdout as
JSON lines and, when redis_url is set, appended to a capped Redis list.

Options:
  -config PATH     TOML config file (default: helioscope.toml)
  -env-file PATH   dotenv file read before environment overrides (default: .env)
  -watch           Repeat every collection_interval_secs instead of exiting
  -sample DUR      CPU usage sampling window (default: 200ms)
  -quiet           Do not print the banner
  -version         Show version information
  -help            Show this help message

Environment Variables:
  HELIOSCOPE_NODE_ID           Node identifier (passed through)
  HELIOSCOPE_COLLECTOR_ADDR    Collector host:port (passed through)
  HELIOSCOPE_INTERVAL          Watch-mode period in seconds (default: 60)
  HELIOSCOPE_LOG_LEVEL         debug, info, warn or error (default: info)
  HELIOSCOPE_REDIS_URL         Redis URL for record publishing (fallback: REDIS_URL)
  HELIOSCOPE_METRICS_TEXTFILE  Write agent self-metrics to this Prometheus textfile

Examples:
  # One cycle with the default config
  helioscope

  # Watch mode, publishing to Redis
  HELIOSCOPE_REDIS_URL=redis://localhost:6379 helioscope -watch`)
}
