package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/benaskins/gpuprobe/internal/gpu"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// hostSummary describes the machine a probe ran on, e.g. "darwin 15.3 (arm64)".
// It returns "" when the host facts are unavailable.
func hostSummary(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return ""
	}
	s := info.Platform
	if s == "" {
		s = info.OS
	}
	if info.PlatformVersion != "" {
		s += " " + info.PlatformVersion
	}
	if info.KernelArch != "" {
		s += " (" + info.KernelArch + ")"
	}
	return strings.TrimSpace(s)
}

// renderResponse writes the human form of a probe response.
func renderResponse(w io.Writer, resp gpu.Response) {
	if !resp.HasMPS {
		msg := resp.Error
		if msg == "" {
			msg = "MPS not available"
		}
		fmt.Fprintln(w, warnStyle.Render(msg))
		return
	}
	fmt.Fprintln(w, okStyle.Render("MPS available"))
	fmt.Fprintln(w)
	fmt.Fprint(w, renderTable(resp.GPUs))
}

func renderTable(gpus []gpu.Record) string {
	rows := [][]string{{"INDEX", "NAME", "DRIVER", "MEMORY TOTAL", "FREE", "USED"}}
	for _, g := range gpus {
		rows = append(rows, []string{
			fmt.Sprintf("%d", g.Index),
			g.Name,
			g.DriverVersion,
			formatMB(g.Memory.Total),
			formatMB(g.Memory.Free),
			formatMB(g.Memory.Used),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for r, row := range rows {
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(headerStyle)
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatMB(mb int64) string {
	switch {
	case mb <= 0:
		return dimStyle.Render("-")
	case mb >= 1024 && mb%1024 == 0:
		return fmt.Sprintf("%d GB", mb/1024)
	default:
		return fmt.Sprintf("%d MB", mb)
	}
}
