package gpu

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/benaskins/gpuprobe/internal/runner"
)

// unavailableDiagnostic is reported when no check could confirm MPS.
const unavailableDiagnostic = "MPS not available on this system"

// frameworkScript asks PyTorch whether its MPS backend is usable.
const frameworkScript = "import torch; print(torch.backends.mps.is_available())"

// Verdict is the outcome of a single capability check.
type Verdict int

const (
	// VerdictInconclusive passes the decision to the next check.
	VerdictInconclusive Verdict = iota
	// VerdictAvailable confirms the accelerator.
	VerdictAvailable
)

func (v Verdict) String() string {
	if v == VerdictAvailable {
		return "available"
	}
	return "inconclusive"
}

// Check is one step of the capability probe chain.
type Check interface {
	Name() string
	Check(ctx context.Context) (Verdict, error)
}

// FrameworkCheck runs the PyTorch MPS availability check in a Python
// interpreter. Only a clean exit printing exactly "True" confirms.
type FrameworkCheck struct {
	Runner runner.Runner
	Python string
}

func (c FrameworkCheck) Name() string { return "framework" }

func (c FrameworkCheck) Check(ctx context.Context) (Verdict, error) {
	out, err := c.Runner.Run(ctx, c.Python, "-c", frameworkScript)
	if err != nil {
		return VerdictInconclusive, err
	}
	if strings.TrimSpace(string(out)) != "True" {
		return VerdictInconclusive, nil
	}
	return VerdictAvailable, nil
}

// DisplaysCheck confirms the accelerator if system_profiler can report the
// display subsystem at all. It is a coarse existence check: hosts with a
// display but no usable compute backend also pass.
type DisplaysCheck struct {
	Runner   runner.Runner
	Profiler string
}

func (c DisplaysCheck) Name() string { return "displays" }

func (c DisplaysCheck) Check(ctx context.Context) (Verdict, error) {
	if _, err := c.Runner.Run(ctx, c.Profiler, displaysDataType); err != nil {
		return VerdictInconclusive, err
	}
	return VerdictAvailable, nil
}

// Detector runs its checks in order until one is definitive.
type Detector struct {
	checks []Check
	logger *slog.Logger
}

// NewDetector creates a detector over the given ordered checks.
func NewDetector(checks ...Check) *Detector {
	return &Detector{
		checks: checks,
		logger: slog.With("component", "detector"),
	}
}

// Detect reports whether MPS is available. Check failures are never fatal;
// they only move the chain to the next check.
func (d *Detector) Detect(ctx context.Context) CapabilityResult {
	for _, c := range d.checks {
		verdict, err := c.Check(ctx)
		if err != nil {
			d.logCheckError(c.Name(), err)
		}
		if verdict == VerdictAvailable {
			d.logger.Debug("capability confirmed", "check", c.Name())
			return CapabilityResult{Available: true}
		}
		d.logger.Debug("capability check inconclusive", "check", c.Name())
	}
	return CapabilityResult{Available: false, Diagnostic: unavailableDiagnostic}
}

func (d *Detector) logCheckError(check string, err error) {
	attrs := []any{"check", check, "kind", errorKind(err), "error", err}
	if res, ok := runner.ResultOf(err); ok && len(res.Stderr) > 0 {
		attrs = append(attrs, "stderr", strings.Join(res.Stderr, " | "))
	}
	d.logger.Debug("capability check failed", attrs...)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, runner.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, runner.ErrFailed):
		return "failed"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNoDevices):
		return "no_devices"
	default:
		return "internal"
	}
}
