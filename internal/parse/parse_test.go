package parse

import (
	"testing"

	"github.com/edge-bench/edge-runner/internal/model"
)

const fullOutput = `[Step 1/3] Loading model files
[ INFO ] Device: CPU
[ WARNING ] Performance hint was not explicitly specified
[Step 3/3] Dumping statistics report
[ INFO ] Count:      1200 iterations
[ INFO ] Latency:
[ INFO ]    Median:     80.70 ms
[ INFO ]    Average:    81.20 ms
[ INFO ]    Min:        77.90 ms
[ INFO ]    Max:        95.00 ms
[ INFO ] Throughput: 12.34 FPS
`

func TestMetricsFullOutput(t *testing.T) {
	rec := Metrics(fullOutput)

	if rec.ParseStatus != model.ParseOK {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParseOK)
	}
	if rec.Throughput == nil || *rec.Throughput != 12.34 {
		t.Fatalf("throughput = %v, want 12.34", rec.Throughput)
	}
	if rec.LatencyMed == nil || *rec.LatencyMed != 80.70 {
		t.Fatalf("median latency = %v, want 80.70", rec.LatencyMed)
	}
	if rec.LatencyAvg == nil || *rec.LatencyAvg != 81.20 {
		t.Fatalf("average latency = %v, want 81.20", rec.LatencyAvg)
	}
	if rec.LatencyMin == nil || *rec.LatencyMin != 77.90 {
		t.Fatalf("min latency = %v, want 77.90", rec.LatencyMin)
	}
	if rec.LatencyMax == nil || *rec.LatencyMax != 95.00 {
		t.Fatalf("max latency = %v, want 95.00", rec.LatencyMax)
	}
}

func TestMetricsThroughputOnlyIsPartial(t *testing.T) {
	rec := Metrics("some device noise\nThroughput: 12.34 FPS\nmore noise\n")

	if rec.ParseStatus != model.ParsePartial {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParsePartial)
	}
	if rec.Throughput == nil || *rec.Throughput != 12.34 {
		t.Fatalf("throughput = %v, want 12.34", rec.Throughput)
	}
	if rec.LatencyAvg != nil || rec.LatencyMed != nil || rec.LatencyMin != nil || rec.LatencyMax != nil {
		t.Fatalf("latency fields should be unset, got %+v", rec)
	}
}

func TestMetricsNoPatternsIsFailed(t *testing.T) {
	rec := Metrics("W/adb: logcat noise\nnothing recognizable here\n")

	if rec.ParseStatus != model.ParseFailed {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParseFailed)
	}
	if rec.Throughput != nil || rec.LatencyAvg != nil || rec.LatencyMed != nil ||
		rec.LatencyMin != nil || rec.LatencyMax != nil ||
		rec.DeviceUtil != nil || rec.DeviceMemMB != nil {
		t.Fatalf("all fields should be unset, got %+v", rec)
	}
}

func TestMetricsZeroThroughputIsNotMissing(t *testing.T) {
	rec := Metrics("Throughput: 0 FPS\n")

	if rec.ParseStatus != model.ParsePartial {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParsePartial)
	}
	if rec.Throughput == nil || *rec.Throughput != 0 {
		t.Fatalf("throughput = %v, want explicit 0", rec.Throughput)
	}
}

func TestMetricsIgnoresValuesWithoutUnits(t *testing.T) {
	// A latency-looking number without its unit must not be picked up.
	rec := Metrics("Throughput: 5.5 FPS\nAverage: 123 requests\n")

	if rec.LatencyAvg != nil {
		t.Fatalf("average latency = %v, want unset", rec.LatencyAvg)
	}
	if rec.ParseStatus != model.ParsePartial {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParsePartial)
	}
}

func TestMetricsOptionalDeviceFields(t *testing.T) {
	out := fullOutput + "[ INFO ] Device memory: 412.5 MB\n[ INFO ] Device utilization: 87.5 %\n"
	rec := Metrics(out)

	if rec.ParseStatus != model.ParseOK {
		t.Fatalf("parse status = %q, want %q", rec.ParseStatus, model.ParseOK)
	}
	if rec.DeviceMemMB == nil || *rec.DeviceMemMB != 412.5 {
		t.Fatalf("device memory = %v, want 412.5", rec.DeviceMemMB)
	}
	if rec.DeviceUtil == nil || *rec.DeviceUtil != 87.5 {
		t.Fatalf("device utilization = %v, want 87.5", rec.DeviceUtil)
	}
}

func TestToolReportedError(t *testing.T) {
	if !ToolReportedError("[ ERROR ] Model file not found\n", "") {
		t.Fatal("bracketed error marker not detected")
	}
	if !ToolReportedError("", "ERROR: cannot map device memory\n") {
		t.Fatal("stderr error marker not detected")
	}
	if ToolReportedError("no errors here, 0 ERRORS reported\n", "") {
		t.Fatal("mid-line text misdetected as error marker")
	}

	if got := ErrorLine("[ ERROR ] Model file not found", ""); got != "[ ERROR ] Model file not found" {
		t.Fatalf("error line = %q", got)
	}
	if got := ErrorLine("clean", "clean"); got != "" {
		t.Fatalf("error line = %q, want empty", got)
	}
}
