package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quilmon/quilmon/agent/internal/auth"
	"github.com/quilmon/quilmon/agent/internal/config"
	"github.com/quilmon/quilmon/agent/internal/exporter"
	"github.com/quilmon/quilmon/agent/internal/metrics"
	"github.com/quilmon/quilmon/agent/internal/runtime"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and QUILMON_* env")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("quilmon starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Exporter.SlogLevel())
	slog.Info("config loaded",
		"container", cfg.Exporter.Container,
		"listen_addr", cfg.Exporter.ListenAddr,
		"log_window", cfg.Exporter.LogWindow,
		"command_timeout", cfg.Exporter.CommandTimeout,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	target, opts := build(cfg.Exporter)
	exp := exporter.New(target, opts)

	// Hot-reload swaps the scrape target; listen address and auth need a restart.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
				level.Set(updated.Exporter.SlogLevel())
				t, o := build(updated.Exporter)
				exp.Reconfigure(t, o)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	a := cfg.Exporter.Auth
	httpSrv := &http.Server{
		Addr:              cfg.Exporter.ListenAddr,
		Handler:           auth.APIKey(a.Mode, a.Header, a.Key(), exp),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Exporter.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	// The exporter's own runtime metrics stay on a separate listener so the
	// node endpoint only ever carries node gauges.
	var selfSrv *http.Server
	if addr := cfg.Exporter.SelfMetricsAddr; addr != "" {
		selfSrv = &http.Server{
			Addr:              addr,
			Handler:           metrics.SelfHandler(metrics.NewSelfRegistry()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("self metrics listening", "addr", addr)
			if err := selfSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("self metrics server stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("quilmon shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	if selfSrv != nil {
		selfSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
}

// build turns exporter settings into a docker target and pipeline options.
func build(c config.ExporterConfig) (*runtime.Docker, exporter.Options) {
	d := runtime.NewDocker(runtime.ExecRunner{}, runtime.Options{
		Bin:           c.DockerPath,
		StatusCommand: c.StatusCommand,
		LogStream:     c.LogStream,
		Timeout:       c.CommandTimeout,
	})
	return d, exporter.Options{
		Container: c.Container,
		Hostname:  c.Hostname,
		LogWindow: c.LogWindow,
	}
}
