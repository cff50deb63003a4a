/*
PURPOSE:
  Expands the configured run matrix into the ordered sequence of concrete
  invocation specs.

REQUIREMENTS:
  User-specified:
  - Iteration order is a contract: devices (outer) × models × threads ×
    streams × precisions × batches, with repeats innermost.
  - Deterministic: two expansions of the same config are identical.

  Implementation-discovered:
  - A lazy generator keeps very large matrices cheap and lets dispatch stop
    mid-expansion on cancellation.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli/expand.go
  - Uses: internal/config, internal/model

ERROR HANDLING:
  - Validate() fails ErrInvalidMatrix before any device work starts; empty
    parameter lists and unknown device/model references are fatal.

IMPLEMENTATION RULES:
  - Expand assumes a validated config; call Validate first.
  - Index is assigned in emission order and never reused.

USAGE:
  if err := matrix.Validate(cfg); err != nil { ... }
  for spec := range matrix.Expand(cfg) { ... }

SELF-HEALING INSTRUCTIONS:
  - New matrix axes slot in as another nested loop; keep repeats innermost.

RELATED FILES:
  - internal/config/config.go
  - internal/engine/driver.go

MAINTENANCE:
  - The ordering above is relied on by run-to-run diffing; never reorder.
*/

package matrix

import (
	"errors"
	"fmt"
	"iter"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/model"
)

// ErrInvalidMatrix means the configured matrix cannot expand. It is fatal to
// the whole run and raised before any device is touched.
var ErrInvalidMatrix = errors.New("invalid matrix")

// Validate checks that every parameter list is non-empty, every matrix
// device/model reference resolves to a top-level definition, and no device
// or model is listed twice. A duplicate id would dispatch two workers onto
// one physical device and emit duplicate records for every spec.
func Validate(cfg *config.Config) error {
	m := cfg.Matrix
	if len(deviceIDs(cfg)) == 0 {
		return fmt.Errorf("%w: no devices", ErrInvalidMatrix)
	}
	if len(modelRefs(cfg)) == 0 {
		return fmt.Errorf("%w: no models", ErrInvalidMatrix)
	}
	if dup := firstDuplicate(deviceIDs(cfg)); dup != "" {
		return fmt.Errorf("%w: device %q listed more than once", ErrInvalidMatrix, dup)
	}
	if dup := firstDuplicate(ModelNames(cfg)); dup != "" {
		return fmt.Errorf("%w: model %q listed more than once", ErrInvalidMatrix, dup)
	}
	for _, id := range m.Devices {
		if _, ok := cfg.Device(id); !ok {
			return fmt.Errorf("%w: unknown device %q", ErrInvalidMatrix, id)
		}
	}
	for _, name := range m.Models {
		if _, ok := cfg.Model(name); !ok {
			return fmt.Errorf("%w: unknown model %q", ErrInvalidMatrix, name)
		}
	}
	if len(m.Threads) == 0 {
		return fmt.Errorf("%w: no thread counts", ErrInvalidMatrix)
	}
	if len(m.Streams) == 0 {
		return fmt.Errorf("%w: no stream counts", ErrInvalidMatrix)
	}
	if len(m.Precisions) == 0 {
		return fmt.Errorf("%w: no precisions", ErrInvalidMatrix)
	}
	if len(m.Batches) == 0 {
		return fmt.Errorf("%w: no batch sizes", ErrInvalidMatrix)
	}
	if m.Repeats < 1 {
		return fmt.Errorf("%w: repeats must be >= 1", ErrInvalidMatrix)
	}
	return nil
}

// Count returns the number of specs Expand will emit.
func Count(cfg *config.Config) int {
	m := cfg.Matrix
	return len(deviceIDs(cfg)) * len(modelRefs(cfg)) * len(m.Threads) *
		len(m.Streams) * len(m.Precisions) * len(m.Batches) * m.Repeats
}

// Expand lazily emits the invocation specs in contract order.
func Expand(cfg *config.Config) iter.Seq[model.InvocationSpec] {
	m := cfg.Matrix
	devices := deviceIDs(cfg)
	models := modelRefs(cfg)

	return func(yield func(model.InvocationSpec) bool) {
		index := 0
		for _, dev := range devices {
			for _, mod := range models {
				for _, threads := range m.Threads {
					for _, streams := range m.Streams {
						for _, prec := range m.Precisions {
							for _, batch := range m.Batches {
								for rep := 0; rep < m.Repeats; rep++ {
									spec := model.InvocationSpec{
										Index:       index,
										DeviceID:    dev,
										Model:       mod,
										Threads:     threads,
										Streams:     streams,
										Precision:   prec,
										Batch:       batch,
										RepeatIndex: rep,
									}
									index++
									if !yield(spec) {
										return
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

// ExpandAll materializes the full expansion.
func ExpandAll(cfg *config.Config) []model.InvocationSpec {
	specs := make([]model.InvocationSpec, 0, Count(cfg))
	for spec := range Expand(cfg) {
		specs = append(specs, spec)
	}
	return specs
}

// Devices returns the device ids the matrix runs on, in expansion order.
func Devices(cfg *config.Config) []string {
	return deviceIDs(cfg)
}

// ModelNames returns the model names the matrix runs, in expansion order.
func ModelNames(cfg *config.Config) []string {
	refs := modelRefs(cfg)
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

// deviceIDs returns the matrix device selection, or all configured devices
// in configuration order when the matrix does not narrow it.
func deviceIDs(cfg *config.Config) []string {
	if len(cfg.Matrix.Devices) > 0 {
		return cfg.Matrix.Devices
	}
	ids := make([]string, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// firstDuplicate returns the first name that appears twice, or "".
func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}

func modelRefs(cfg *config.Config) []model.ModelRef {
	if len(cfg.Matrix.Models) == 0 {
		return cfg.Models
	}
	refs := make([]model.ModelRef, 0, len(cfg.Matrix.Models))
	for _, name := range cfg.Matrix.Models {
		if ref, ok := cfg.Model(name); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}
