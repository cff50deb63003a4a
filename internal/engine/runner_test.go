package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/edge-bench/edge-runner/internal/matrix"
	"github.com/edge-bench/edge-runner/internal/model"
)

func TestRunRejectsDuplicateDeviceSelection(t *testing.T) {
	cfg := testConfig("dev-a")
	cfg.OutputDir = t.TempDir()
	cfg.Matrix.Devices = []string{"dev-a", "dev-a"}

	err := Run(context.Background(), cfg, "runner.yaml")
	if !errors.Is(err, matrix.ErrInvalidMatrix) {
		t.Fatalf("Run = %v, want ErrInvalidMatrix", err)
	}
}

func TestRunCancelledExitsClean(t *testing.T) {
	cfg := testConfig("dev-a")
	cfg.OutputDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, cfg, "runner.yaml"); err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}

	// The shortened run still leaves a complete manifest behind.
	raw, err := os.ReadFile(filepath.Join(cfg.OutputDir, "run_manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest model.RunManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Expected != 1 {
		t.Fatalf("manifest expected %d invocations, want 1", manifest.Expected)
	}
	if manifest.Recorded != 0 {
		t.Fatalf("manifest recorded %d invocations, want 0", manifest.Recorded)
	}
	if manifest.RunID == "" {
		t.Fatal("manifest has empty run id")
	}
}
