package gpu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benaskins/gpuprobe/internal/runner"
)

// displaysDataType is the system_profiler data type holding GPUs and displays.
const displaysDataType = "SPDisplaysDataType"

var (
	// ErrParse is returned when the inventory output is not the expected JSON.
	ErrParse = errors.New("unparseable display inventory")

	// ErrNoDevices is returned when the inventory parsed but listed no adapters.
	ErrNoDevices = errors.New("no display adapters found")
)

// Inventory keys, in lookup order.
var (
	nameKeys     = []string{"_name", "sppci_model"}
	capacityKeys = []string{"sppci_vram", "_spdisplays_vram"}
)

// adapter is one entry of the SPDisplaysDataType array.
type adapter map[string]any

func (a adapter) firstString(keys ...string) string {
	for _, k := range keys {
		if s, ok := a[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Enumerator lists display adapters from the hardware inventory.
type Enumerator struct {
	runner   runner.Runner
	profiler string
	logger   *slog.Logger
}

// NewEnumerator creates an enumerator that runs the given system_profiler binary.
func NewEnumerator(r runner.Runner, profiler string) *Enumerator {
	return &Enumerator{
		runner:   r,
		profiler: profiler,
		logger:   slog.With("component", "enumerator"),
	}
}

// Enumerate returns one record per adapter, indexed in inventory order.
// It never fails: any inventory problem yields a single synthetic record.
func (e *Enumerator) Enumerate(ctx context.Context) []Record {
	adapters, err := e.inventory(ctx)
	if err != nil {
		e.logger.Warn("using synthetic GPU record", "kind", errorKind(err), "error", err)
		return []Record{SyntheticRecord()}
	}

	records := make([]Record, 0, len(adapters))
	for i, a := range adapters {
		records = append(records, newRecord(i,
			a.firstString(nameKeys...),
			ParseCapacityMB(a.firstString(capacityKeys...)),
		))
	}
	return records
}

func (e *Enumerator) inventory(ctx context.Context) ([]adapter, error) {
	out, err := e.runner.Run(ctx, e.profiler, displaysDataType, "-json")
	if err != nil {
		return nil, err
	}
	return parseInventory(out)
}

// parseInventory decodes `system_profiler SPDisplaysDataType -json` output.
// Entries that are not JSON objects are kept as empty adapters so they still
// produce a record.
func parseInventory(data []byte) ([]adapter, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	raw, ok := doc[displaysDataType]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNoDevices, displaysDataType)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s is not an array", ErrNoDevices, displaysDataType)
	}
	if len(entries) == 0 {
		return nil, ErrNoDevices
	}

	adapters := make([]adapter, 0, len(entries))
	for _, entry := range entries {
		var a adapter
		if err := json.Unmarshal(entry, &a); err != nil || a == nil {
			a = adapter{}
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
