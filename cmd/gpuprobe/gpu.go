package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/gpuprobe/internal/audit"
	"github.com/benaskins/gpuprobe/internal/gpu"
)

var gpuCmd = &cobra.Command{
	Use:   "gpu",
	Short: "Probe the local GPU",
	Long:  "Detect MPS support and list the GPUs reported by system_profiler.",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newProbe(cfg)

		start := time.Now()
		var resp gpu.Response
		if showSpinner(jsonOut, term.IsTerminal) {
			resp, err = probeWithSpinner(ctx, p)
		} else {
			resp, err = p.Run(ctx)
		}
		recordCLIProbe(cfg.AuditLog, resp, time.Since(start))

		if jsonOut {
			if perr := printJSON(resp); perr != nil {
				return perr
			}
			return err
		}
		if err != nil {
			return fmt.Errorf("probing GPU: %w", err)
		}

		if h := hostSummary(ctx); h != "" {
			fmt.Println(dimStyle.Render("Host: " + h))
		}
		renderResponse(os.Stdout, resp)
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Check whether MPS is available",
	Long:  "Run only the capability checks. Exits with status 1 when MPS is not available.",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		res := newProbe(cfg).Capability(cmd.Context())
		if jsonOut {
			if err := printJSON(res); err != nil {
				return err
			}
		} else if res.Available {
			fmt.Println(okStyle.Render("MPS available"))
		} else {
			fmt.Println(warnStyle.Render(res.Diagnostic))
		}

		if !res.Available {
			return exitCode(1)
		}
		return nil
	},
}

// showSpinner reports whether the probe spinner should be drawn. It renders
// on stderr, so both streams must be terminals.
func showSpinner(jsonOut bool, isTerminal func(fd int) bool) bool {
	if jsonOut {
		return false
	}
	return isTerminal(int(os.Stdout.Fd())) && isTerminal(int(os.Stderr.Fd()))
}

func recordCLIProbe(path string, resp gpu.Response, d time.Duration) {
	if path == "" {
		return
	}
	l, err := audit.NewLogger(path)
	if err != nil {
		slog.Warn("opening probe history", "error", err)
		return
	}
	defer l.Close()

	err = l.Log(audit.Entry{
		Source:     audit.SourceCLI,
		HasMPS:     resp.HasMPS,
		GPUs:       len(resp.GPUs),
		DurationMS: d.Milliseconds(),
		Error:      resp.Error,
	})
	if err != nil {
		slog.Warn("writing probe history", "error", err)
	}
}

func init() {
	gpuCmd.Flags().Bool("json", false, "print the probe response as JSON")
	detectCmd.Flags().Bool("json", false, "print the capability result as JSON")
	rootCmd.AddCommand(gpuCmd)
	rootCmd.AddCommand(detectCmd)
}
