/*
PURPOSE:
  Defines the core data structures used throughout Edge Runner.
  These models represent devices, invocation specs, execution outcomes and
  parsed benchmark metrics.

REQUIREMENTS:
  User-specified:
  - One record per (invocation, device) pair, failures included.
  - Absent metric fields must stay absent, never default to zero.

  Implementation-discovered:
  - Need JSON tags for the JSONL sink.
  - Pointer fields for metrics so "missing" and "0.0" stay distinguishable.

ARCHITECTURE INTEGRATION:
  - Used by: internal/config, internal/device, internal/matrix,
    internal/engine, internal/parse, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.
  - InvocationSpec and ResultRecord are immutable once produced.

USAGE:
  rec := model.ResultRecord{...}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add a pointer field, extend the parser, and
    update the CSV/JSONL writers.

RELATED FILES:
  - internal/parse/parse.go
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"time"
)

// DeviceKind selects the transport used to reach a target.
type DeviceKind string

const (
	KindADB DeviceKind = "adb" // USB debug bridge
	KindSSH DeviceKind = "ssh" // remote shell
)

// DeviceTarget describes one configured physical target. Immutable once the
// configuration is loaded; connection parameters only apply to the ssh kind.
type DeviceTarget struct {
	ID       string     `yaml:"id" json:"id"` // serial (adb) or host:port (ssh)
	Kind     DeviceKind `yaml:"kind" json:"kind"`
	User     string     `yaml:"user,omitempty" json:"user,omitempty"`
	KeyFile  string     `yaml:"key_file,omitempty" json:"-"`
	Password string     `yaml:"password,omitempty" json:"-"`
}

// DeviceInfo is a point-in-time identity snapshot of a reachable target.
type DeviceInfo struct {
	ID        string `json:"id"`
	Model     string `json:"model,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
	ABI       string `json:"abi,omitempty"`
}

// ModelRef names one benchmarkable model and its path inside the bundle.
type ModelRef struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// InvocationSpec is one concrete point of the run matrix. Index is the
// position in the deterministic expansion order and doubles as the sort key
// for the final record sequence.
type InvocationSpec struct {
	Index       int      `json:"index"`
	DeviceID    string   `json:"device_id"`
	Model       ModelRef `json:"model"`
	Threads     int      `json:"threads"`
	Streams     int      `json:"streams"`
	Precision   string   `json:"precision"`
	Batch       int      `json:"batch"`
	RepeatIndex int      `json:"repeat_index"` // zero-based
}

// RunStatus classifies how an invocation (or one attempt of it) ended.
type RunStatus string

const (
	StatusSucceeded   RunStatus = "succeeded"
	StatusTimedOut    RunStatus = "timeout"
	StatusProcessErr  RunStatus = "process-error"
	StatusUnreachable RunStatus = "device-unreachable"
)

// Retryable reports whether the driver's retry policy applies to a status.
// Process errors are deterministic tool failures and are never retried.
func (s RunStatus) Retryable() bool {
	return s == StatusTimedOut || s == StatusUnreachable
}

// Attempt is one entry of the per-invocation attempt log, kept for
// diagnostics alongside the final outcome.
type Attempt struct {
	Status   RunStatus     `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionOutcome is the terminal outcome of an invocation: the final
// attempt's status and captured output, plus the log of prior attempts.
type ExecutionOutcome struct {
	Status     RunStatus     `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	AttemptLog []Attempt     `json:"attempt_log,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ParseStatus classifies how completely the tool's output was understood.
type ParseStatus string

const (
	ParseOK      ParseStatus = "ok"
	ParsePartial ParseStatus = "partial"
	ParseFailed  ParseStatus = "failed"
)

// MetricsRecord holds the metrics parsed from benchmark tool output. Fields
// are pointers: nil means the value was not present in the output, which is
// a different result from a measured zero.
type MetricsRecord struct {
	Throughput  *float64    `json:"throughput_fps,omitempty"`
	LatencyAvg  *float64    `json:"latency_avg_ms,omitempty"`
	LatencyMed  *float64    `json:"latency_median_ms,omitempty"`
	LatencyMin  *float64    `json:"latency_min_ms,omitempty"`
	LatencyMax  *float64    `json:"latency_max_ms,omitempty"`
	DeviceUtil  *float64    `json:"device_utilization_pct,omitempty"`
	DeviceMemMB *float64    `json:"device_memory_mb,omitempty"`
	ParseStatus ParseStatus `json:"parse_status"`
}

// ResultRecord is the canonical per-invocation artifact handed to the report
// sinks. Exactly one exists per InvocationSpec, failures included.
type ResultRecord struct {
	Spec       InvocationSpec   `json:"spec"`
	Outcome    ExecutionOutcome `json:"outcome"`
	Metrics    MetricsRecord    `json:"metrics"`
	Device     DeviceInfo       `json:"device"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// RunManifest records provenance for one whole pipeline run.
type RunManifest struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ConfigFile string    `json:"config_file,omitempty"`
	Devices    []string  `json:"devices"`
	Models     []string  `json:"models"`
	Expected   int       `json:"expected_records"`
	Recorded   int       `json:"recorded_records"`
}
