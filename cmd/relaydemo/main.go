// Package main runs a fan-out/fan-in relay with two worker pools:
//
//	prod (N) → prep (M) → post (K) → cons (1)
//
// Producers send messages, both worker pools relay them with a delay and a
// single consumer writes them to a file. Every actor reports handled messages
// to a side queue which the progress handler consumes in the coordinator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxsml/gorelay/config"
	"github.com/fxsml/gorelay/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const envStage = "relaydemo"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relaydemo",
		Short: "Run a relay pipeline with two worker pools",
		Long: `Runs producers, two worker pools and a consumer connected by a relay.

Configuration is read from the defaults, an optional YAML file (--config),
GORELAY_RELAYDEMO_* environment variables and finally the flags given on the
command line.

Example:
  relaydemo --producers 3 --amount 100 --max-size 50 --output out/results.txt`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "Path to configuration file (YAML)")
	f.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	f.String("log-file", "", "Write relay logs as JSON to this file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.Int("max-size", 0, "Maximum number of messages per queue, 0 is unbounded")
	f.Int("producers", 0, "Number of producers")
	f.Int("amount", 0, "Messages sent by every producer")
	f.Int("prep", 0, "Number of workers in the prep group")
	f.Int("post", 0, "Number of workers in the post group")
	f.Duration("prod-delay", 0, "Delay between two messages of a producer")
	f.Duration("prep-delay", 0, "Processing time of prep workers")
	f.Duration("post-delay", 0, "Processing time of post workers")
	f.Duration("cons-delay", 0, "Processing time of the consumer")
	f.StringP("output", "o", "", "File the consumer writes to")
	f.Duration("report", 0, "Progress report interval, 0 only reports at the end")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	relay.SetDefaultLogger(logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error("Failed to build configuration", "error", err)
		return err
	}
	cfg.Relay.Logger = logger

	addr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("failed to get metrics-addr flag: %w", err)
	}
	if addr != "" {
		stop := serveMetrics(addr, logger)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting relaydemo", "max_size", cfg.Relay.MaxSize, "output", cfg.Cons.Output)
	if err := runDemo(ctx, cfg, cmd.OutOrStdout()); err != nil {
		logger.Error("Relay failed", "error", err)
		return err
	}
	logger.Info("Relay finished")
	return nil
}

// loadConfig applies defaults, the YAML file, the environment and the flags
// that were set explicitly, in this order.
func loadConfig(cmd *cobra.Command) (demoConfig, error) {
	cfg := defaultConfig()

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return cfg, fmt.Errorf("failed to get config flag: %w", err)
	}
	if err := (config.Loader{}).LoadAll(path, envStage, &cfg); err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	ints := map[string]*int{
		"max-size":  &cfg.Relay.MaxSize,
		"producers": &cfg.Prod.Count,
		"amount":    &cfg.Prod.Amount,
		"prep":      &cfg.Prep.Count,
		"post":      &cfg.Post.Count,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			if *dst, err = f.GetInt(name); err != nil {
				return cfg, err
			}
		}
	}
	durations := map[string]*time.Duration{
		"prod-delay": &cfg.Prod.Delay,
		"prep-delay": &cfg.Prep.Delay,
		"post-delay": &cfg.Post.Delay,
		"cons-delay": &cfg.Cons.Delay,
		"report":     &cfg.Report,
	}
	for name, dst := range durations {
		if f.Changed(name) {
			if *dst, err = f.GetDuration(name); err != nil {
				return cfg, err
			}
		}
	}
	strs := map[string]*string{
		"output":   &cfg.Cons.Output,
		"log-file": &cfg.Relay.LogFile,
	}
	for name, dst := range strs {
		if f.Changed(name) {
			if *dst, err = f.GetString(name); err != nil {
				return cfg, err
			}
		}
	}
	return cfg, nil
}

// serveMetrics exposes the relay metrics on addr until the returned function
// is called.
func serveMetrics(addr string, logger *slog.Logger) func() {
	registry := prometheus.NewRegistry()
	relay.InitMetrics(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during metrics shutdown", "error", err)
		}
	}
}
