package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edge-bench/edge-runner/internal/model"
)

func TestCSVWriterAbsentMetricsStayEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	tp := 12.34
	rec := model.ResultRecord{
		Spec: model.InvocationSpec{
			Index:    7,
			DeviceID: "dev-a",
			Model:    model.ModelRef{Name: "resnet50", Path: "models/resnet50.xml"},
			Threads:  4, Streams: 1, Precision: "FP16", Batch: 1,
		},
		Outcome: model.ExecutionOutcome{
			Status:   model.StatusSucceeded,
			Attempts: 1,
			Duration: 1500 * time.Millisecond,
		},
		Metrics: model.MetricsRecord{
			Throughput:  &tp,
			ParseStatus: model.ParsePartial,
		},
		Device:    model.DeviceInfo{ID: "dev-a", Model: "Pixel 6"},
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	header, row := rows[0], rows[1]
	get := func(col string) string {
		for i, name := range header {
			if name == col {
				return row[i]
			}
		}
		t.Fatalf("column %q missing", col)
		return ""
	}

	if got := get("throughput_fps"); got != "12.34" {
		t.Fatalf("throughput cell = %q", got)
	}
	if got := get("latency_avg_ms"); got != "" {
		t.Fatalf("absent latency rendered as %q, want empty cell", got)
	}
	if got := get("parse_status"); got != "partial" {
		t.Fatalf("parse_status cell = %q", got)
	}
	if got := get("status"); got != "succeeded" {
		t.Fatalf("status cell = %q", got)
	}
	if got := get("duration_s"); got != "1.5000" {
		t.Fatalf("duration cell = %q", got)
	}
}
