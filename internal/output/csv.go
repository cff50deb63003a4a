/*
PURPOSE:
  Writes benchmark result records to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV, one row per (invocation, device) record.
  - Absent metrics stay absent: empty cell, never "0".

  Implementation-discovered:
  - Needs to create file if not exists, or truncate for a new run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Consumes: internal/model.ResultRecord

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex if concurrent writes are expected.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write(rec)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when ResultRecord changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/edge-bench/edge-runner/internal/model"
)

// CSVWriter handles writing results to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	// Write Header
	header := []string{
		"index", "device", "device_model", "model", "threads", "streams",
		"precision", "batch", "repeat",
		"status", "attempts", "exit_code", "duration_s",
		"parse_status", "throughput_fps",
		"latency_avg_ms", "latency_median_ms", "latency_min_ms", "latency_max_ms",
		"device_utilization_pct", "device_memory_mb",
		"started_at", "error",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single result to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r model.ResultRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		fmt.Sprintf("%d", r.Spec.Index),
		r.Spec.DeviceID,
		r.Device.Model,
		r.Spec.Model.Name,
		fmt.Sprintf("%d", r.Spec.Threads),
		fmt.Sprintf("%d", r.Spec.Streams),
		r.Spec.Precision,
		fmt.Sprintf("%d", r.Spec.Batch),
		fmt.Sprintf("%d", r.Spec.RepeatIndex),
		string(r.Outcome.Status),
		fmt.Sprintf("%d", r.Outcome.Attempts),
		fmt.Sprintf("%d", r.Outcome.ExitCode),
		fmt.Sprintf("%.4f", r.Outcome.Duration.Seconds()),
		string(r.Metrics.ParseStatus),
		cell(r.Metrics.Throughput, "%.2f"),
		cell(r.Metrics.LatencyAvg, "%.2f"),
		cell(r.Metrics.LatencyMed, "%.2f"),
		cell(r.Metrics.LatencyMin, "%.2f"),
		cell(r.Metrics.LatencyMax, "%.2f"),
		cell(r.Metrics.DeviceUtil, "%.1f"),
		cell(r.Metrics.DeviceMemMB, "%.1f"),
		r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		r.Outcome.Error,
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// cell renders an optional metric; nil stays an empty cell.
func cell(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
