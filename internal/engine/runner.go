/*
PURPOSE:
  High-level runner that orchestrates the benchmarking process.
  Validates the matrix, drives the device workers, and streams records to
  the report sinks.

REQUIREMENTS:
  User-specified:
  - Run the full matrix against all configured devices.
  - Log results to CSV/JSONL plus a run manifest.

  Implementation-discovered:
  - Matrix validation must happen before any device is touched; an invalid
    matrix is fatal to the whole run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/device, internal/matrix, internal/output

ERROR HANDLING:
  - Sink write failures are logged but do not abort the run; device-layer
    failures never surface here, they arrive as classified records.

IMPLEMENTATION RULES:
  - Validate -> dispatch -> aggregate -> write, in that order.
  - Record count is checked against the expansion count on the way out.

USAGE:
  err := engine.Run(ctx, cfg, cfgPath)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/driver.go
  - internal/output/csv.go

MAINTENANCE:
  - Update when adding new sink formats.
*/

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/device"
	"github.com/edge-bench/edge-runner/internal/matrix"
	"github.com/edge-bench/edge-runner/internal/model"
	"github.com/edge-bench/edge-runner/internal/output"
)

// Run executes the full benchmark suite.
func Run(ctx context.Context, cfg *config.Config, cfgPath string) error {
	log := output.Logger

	if err := matrix.Validate(cfg); err != nil {
		return err
	}
	expected := matrix.Count(cfg)
	log.Info("matrix expanded",
		"invocations", expected,
		"devices", len(matrix.Devices(cfg)),
		"models", len(matrix.ModelNames(cfg)),
	)

	// Ensure output directory exists
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	// Setup Outputs
	csvPath := filepath.Join(cfg.OutputDir, cfg.OutputFile)
	csvWriter, err := output.NewCSVWriter(csvPath)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
	}
	defer csvWriter.Close()

	jsonPath := filepath.Join(cfg.OutputDir, "bench_results.jsonl")
	jsonWriter, err := output.NewJSONWriter(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
	}
	defer jsonWriter.Close()

	manifest := model.RunManifest{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		ConfigFile: cfgPath,
		Devices:    matrix.Devices(cfg),
		Models:     matrix.ModelNames(cfg),
		Expected:   expected,
	}
	log.Info("run starting", "run_id", manifest.RunID)

	pool := device.NewPool(cfg.Devices, log)
	defer pool.Close()
	driver := NewDriver(cfg, pool, log)
	records := driver.Run(ctx)

	for _, rec := range records {
		if err := csvWriter.Write(rec); err != nil {
			log.Error("failed to write result to CSV", "error", err)
		}
		if err := jsonWriter.Write(rec); err != nil {
			log.Error("failed to write result to JSON", "error", err)
		}
	}

	manifest.FinishedAt = time.Now()
	manifest.Recorded = len(records)
	manifestPath := filepath.Join(cfg.OutputDir, "run_manifest.json")
	if err := output.WriteManifest(manifestPath, manifest); err != nil {
		log.Error("failed to write run manifest", "path", manifestPath, "error", err)
	}

	if len(records) < expected {
		log.Warn("run ended early", "recorded", len(records), "expected", expected)
	}
	log.Info("run complete",
		"run_id", manifest.RunID,
		"recorded", len(records),
		"duration", manifest.FinishedAt.Sub(manifest.StartedAt),
	)

	// A cancelled run that got this far still wrote a well-formed partial
	// result set; report it, but exit clean.
	if err := ctx.Err(); err != nil {
		log.Info("run interrupted", "run_id", manifest.RunID, "reason", err)
	}
	return nil
}
