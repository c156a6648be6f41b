package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benaskins/gpuprobe/internal/api"
	"github.com/benaskins/gpuprobe/internal/audit"
	"github.com/benaskins/gpuprobe/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the GPU stats API",
	Long:  "Serve GPU probes over a Unix socket and optionally TCP. Config changes are picked up without a restart.",
	RunE:  runServe,
}

var apiAddr string

func init() {
	serveCmd.Flags().StringVar(&apiAddr, "api-addr", "", "Optional TCP address for API (e.g. 127.0.0.1:9090)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := configFile()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiAddr == "" {
		apiAddr = cfg.APIAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("gpuprobe starting", "config", cfgPath, "host", hostSummary(ctx))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	opts := []api.Option{api.WithRateLimit(cfg.Rate(), cfg.ProbeBurst)}
	if cfg.AuditLog != "" {
		auditLog, err := audit.NewLogger(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer auditLog.Close()
		slog.Info("recording probe history", "path", auditLog.Path())
		opts = append(opts, api.WithAudit(auditLog))
	}
	srv := api.NewServer(newProbe(cfg), opts...)

	socketPath := defaultSocketPath()
	// Remove stale socket
	os.Remove(socketPath)
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket dir: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenUnix(socketPath)
	}()

	if apiAddr != "" {
		go func() {
			if err := srv.ListenTCP(apiAddr); err != nil {
				slog.Error("TCP API error", "error", err)
			}
		}()
	}

	if cfgPath != "" {
		go func() {
			err := watchConfig(ctx, cfgPath, func() {
				reloadConfig(srv, cfgPath, cfg)
			})
			if err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	slog.Info("gpuprobe ready")

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			slog.Error("API server error", "error", err)
		}
	}

	cancel()
	srv.Shutdown(context.Background())
	os.Remove(socketPath)

	slog.Info("gpuprobe stopped")
	return nil
}

// reloadConfig rebuilds the probe and rate limit from the config file. A
// config that fails to load leaves the running probe untouched.
func reloadConfig(srv *api.Server, path string, started *config.Config) {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}
	srv.Update(newProbe(cfg), cfg.Rate(), cfg.ProbeBurst)
	slog.Info("config reloaded",
		"python", cfg.Python,
		"system_profiler", cfg.SystemProfiler,
		"probe_timeout", cfg.ProbeTimeout.Duration,
		"probe_rate", cfg.Rate())

	if cfg.APIAddr != started.APIAddr || cfg.AuditLog != started.AuditLog {
		slog.Warn("api_addr and audit_log changes take effect after restart")
	}
}
