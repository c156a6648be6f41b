// Package gpu probes Apple Silicon hosts for a usable MPS accelerator.
//
// A probe is a point-in-time snapshot: a Detector decides whether the Metal
// Performance Shaders backend is usable, an Enumerator turns the display
// inventory reported by system_profiler into normalized Records. Nothing is
// cached between probes.
package gpu

// Fixed values for fields this platform cannot report.
const (
	DriverVersion = "MPS"
	UnknownName   = "Unknown GPU"
	SyntheticName = "Apple GPU (MPS)"
)

// Utilization is GPU and memory utilization in percent.
type Utilization struct {
	GPU    float64 `json:"gpu"`
	Memory float64 `json:"memory"`
}

// Memory is device memory in megabytes.
type Memory struct {
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
	Used  int64 `json:"used"`
}

// Power is power draw and limit in watts.
type Power struct {
	Draw  float64 `json:"draw"`
	Limit float64 `json:"limit"`
}

// Clocks are graphics and memory clocks in MHz.
type Clocks struct {
	Graphics float64 `json:"graphics"`
	Memory   float64 `json:"memory"`
}

// Fan is fan speed in percent.
type Fan struct {
	Speed float64 `json:"speed"`
}

// Record is the normalized per-device GPU statistics record. Every field is
// always serialized; telemetry the platform does not expose is 0.
type Record struct {
	Index         int         `json:"index"`
	Name          string      `json:"name"`
	DriverVersion string      `json:"driverVersion"`
	Temperature   float64     `json:"temperature"`
	Utilization   Utilization `json:"utilization"`
	Memory        Memory      `json:"memory"`
	Power         Power       `json:"power"`
	Clocks        Clocks      `json:"clocks"`
	Fan           Fan         `json:"fan"`
}

// newRecord builds a record for a device with the given capacity in MB.
// No live usage exists on this platform, so free mirrors total.
func newRecord(index int, name string, capacityMB int64) Record {
	if name == "" {
		name = UnknownName
	}
	return Record{
		Index:         index,
		Name:          name,
		DriverVersion: DriverVersion,
		Memory: Memory{
			Total: capacityMB,
			Free:  capacityMB,
			Used:  usedMB(capacityMB, capacityMB),
		},
	}
}

// SyntheticRecord is the single placeholder device reported when capability
// is confirmed but the inventory yields nothing usable.
func SyntheticRecord() Record {
	return newRecord(0, SyntheticName, 0)
}

func usedMB(total, free int64) int64 {
	if total <= 0 || free < 0 || free > total {
		return 0
	}
	return total - free
}

// Response is the probe result as served to clients.
type Response struct {
	HasMPS bool     `json:"hasMps"`
	GPUs   []Record `json:"gpus"`
	Error  string   `json:"error,omitempty"`
}

// CapabilityResult answers whether the accelerator is usable.
type CapabilityResult struct {
	Available  bool   `json:"available"`
	Diagnostic string `json:"diagnostic,omitempty"`
}
