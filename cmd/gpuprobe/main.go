package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/gpuprobe/internal/config"
	"github.com/benaskins/gpuprobe/internal/gpu"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "gpuprobe",
	Short:         "Apple Silicon GPU (MPS) telemetry probe",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.gpuprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log probe steps to stderr")
}

// exitCode ends the process with the given status without printing an error.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	path := configFile()
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newProbe(cfg *config.Config) *gpu.Probe {
	return gpu.New(gpu.Options{
		Python:         cfg.Python,
		SystemProfiler: cfg.SystemProfiler,
		Timeout:        cfg.ProbeTimeout.Duration,
	})
}
