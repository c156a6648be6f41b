package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/benaskins/gpuprobe/internal/gpu"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]gpu.Record{
		{Index: 0, Name: "Apple M2 Max", DriverVersion: "MPS", Memory: gpu.Memory{Total: 32768, Free: 32768}},
		{Index: 1, Name: "Radeon Pro", DriverVersion: "MPS", Memory: gpu.Memory{Total: 1536, Free: 1536}},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	for _, want := range []string{"INDEX", "NAME", "MEMORY TOTAL"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("header missing %q: %s", want, lines[0])
		}
	}
	if !strings.Contains(lines[1], "Apple M2 Max") || !strings.Contains(lines[1], "32 GB") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.Contains(lines[2], "1536 MB") {
		t.Errorf("unexpected second row: %s", lines[2])
	}
}

func TestFormatMB(t *testing.T) {
	tests := map[int64]string{
		8192: "8 GB",
		1536: "1536 MB",
		512:  "512 MB",
	}
	for in, want := range tests {
		if got := formatMB(in); got != want {
			t.Errorf("formatMB(%d) = %q, want %q", in, got, want)
		}
	}
	if got := formatMB(0); !strings.Contains(got, "-") {
		t.Errorf("formatMB(0) = %q, want a dash", got)
	}
}

func TestRenderResponseUnavailable(t *testing.T) {
	var buf bytes.Buffer
	renderResponse(&buf, gpu.Response{GPUs: []gpu.Record{}, Error: "MPS not available on this system"})
	if !strings.Contains(buf.String(), "MPS not available on this system") {
		t.Errorf("expected diagnostic in output, got %q", buf.String())
	}
}

func TestRenderResponseAvailable(t *testing.T) {
	var buf bytes.Buffer
	renderResponse(&buf, gpu.Response{HasMPS: true, GPUs: []gpu.Record{gpu.SyntheticRecord()}})
	out := buf.String()
	if !strings.Contains(out, "MPS available") || !strings.Contains(out, "Apple GPU (MPS)") {
		t.Errorf("unexpected output %q", out)
	}
}
