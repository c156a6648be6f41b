package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benaskins/gpuprobe/internal/runner"
)

// Options configure a Probe. Zero values select the defaults.
type Options struct {
	Python         string        // interpreter for the framework check, default "python3"
	SystemProfiler string        // default "system_profiler"
	Timeout        time.Duration // per subprocess, default runner.DefaultTimeout
	Runner         runner.Runner // overrides subprocess execution, mainly for tests
}

// Probe answers GPU stats requests. It holds no state between runs and is
// safe for concurrent use.
type Probe struct {
	detector   *Detector
	enumerator *Enumerator
	logger     *slog.Logger
}

// New creates a probe with the default check chain: the PyTorch framework
// check, then the system_profiler existence check.
func New(opts Options) *Probe {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.SystemProfiler == "" {
		opts.SystemProfiler = "system_profiler"
	}
	r := opts.Runner
	if r == nil {
		r = runner.New(opts.Timeout)
	}

	return &Probe{
		detector: NewDetector(
			FrameworkCheck{Runner: r, Python: opts.Python},
			DisplaysCheck{Runner: r, Profiler: opts.SystemProfiler},
		),
		enumerator: NewEnumerator(r, opts.SystemProfiler),
		logger:     slog.With("component", "probe"),
	}
}

// Capability runs only the detector.
func (p *Probe) Capability(ctx context.Context) CapabilityResult {
	return p.detector.Detect(ctx)
}

// Run takes a snapshot. The returned Response is always well formed. A
// non-nil error means an unexpected internal fault; the Response then carries
// the message and no devices.
func (p *Probe) Run(ctx context.Context) (resp Response, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
			p.logger.Error("fetching GPU stats", "error", err)
			resp = Response{
				GPUs:  []Record{},
				Error: "Failed to fetch GPU stats: " + err.Error(),
			}
		}
	}()

	capability := p.detector.Detect(ctx)
	if !capability.Available {
		p.logger.Debug("MPS unavailable", "duration", time.Since(start))
		return Response{HasMPS: false, GPUs: []Record{}, Error: capability.Diagnostic}, nil
	}

	gpus := p.enumerator.Enumerate(ctx)
	if len(gpus) == 0 {
		gpus = []Record{SyntheticRecord()}
	}
	p.logger.Debug("probe complete", "gpus", len(gpus), "duration", time.Since(start))
	return Response{HasMPS: true, GPUs: gpus}, nil
}
