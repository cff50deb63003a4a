/*
PURPOSE:
  Builds the benchmark tool command line for one invocation spec.

REQUIREMENTS:
  User-specified:
  - Flag names and value formatting match the tool's documented CLI
    exactly; spec fields map 1:1 to flags. This is a compatibility
    contract, not an implementation detail.

  Implementation-discovered:
  - The tool resolves relative model paths against its cwd, so the command
    runs from the deploy root with LD_LIBRARY_PATH pointing at the bundled
    libs.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/driver.go
  - Produces: internal/device.Command

ERROR HANDLING:
  - None; construction is total for any valid spec.

IMPLEMENTATION RULES:
  - Deterministic: the same spec always yields the same Command.
  - Remote paths use path (forward slash), never filepath.

USAGE:
  cmd := benchmarkCommand(deployRoot, spec)

SELF-HEALING INSTRUCTIONS:
  - New tool flags are appended here and nowhere else.

RELATED FILES:
  - internal/device/device.go
  - internal/matrix/matrix.go

MAINTENANCE:
  - Update flag names only together with a benchmark tool upgrade.
*/

package engine

import (
	"path"
	"strconv"

	"github.com/edge-bench/edge-runner/internal/device"
	"github.com/edge-bench/edge-runner/internal/model"
)

// benchmarkBin is the tool executable inside the deployed bundle.
const benchmarkBin = "benchmark_app"

// remoteModelPath is where a model lives on the device once pushed.
func remoteModelPath(deployRoot string, ref model.ModelRef) string {
	return path.Join(deployRoot, "models", path.Base(ref.Path))
}

// benchmarkCommand maps an invocation spec onto the tool's CLI.
func benchmarkCommand(deployRoot string, spec model.InvocationSpec) device.Command {
	return device.Command{
		Argv: []string{
			"./" + benchmarkBin,
			"-m", remoteModelPath(deployRoot, spec.Model),
			"-nthreads", strconv.Itoa(spec.Threads),
			"-nstreams", strconv.Itoa(spec.Streams),
			"-b", strconv.Itoa(spec.Batch),
			"-infer_precision", spec.Precision,
		},
		Dir: deployRoot,
		Env: map[string]string{
			"LD_LIBRARY_PATH": path.Join(deployRoot, "lib"),
		},
	}
}

// tuneCommands are the best-effort device tuning steps issued before the
// first invocation on a bridge device. Failures are logged, never escalated.
func tuneCommands() []device.Command {
	return []device.Command{
		{Argv: []string{"settings", "put", "global", "window_animation_scale", "0"}},
		{Argv: []string{"settings", "put", "global", "transition_animation_scale", "0"}},
		{Argv: []string{"settings", "put", "global", "animator_duration_scale", "0"}},
		{Argv: []string{"input", "keyevent", "KEYCODE_SLEEP"}},
	}
}
