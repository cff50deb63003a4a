package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edge-bench/edge-runner/internal/model"
)

const sampleYAML = `
devices:
  - id: RF8M33XYZ
    kind: adb
  - id: pi4.lab:22
    kind: ssh
    user: bench
    key_file: /home/bench/.ssh/id_ed25519
models:
  - name: resnet50
    path: models/resnet50.xml
matrix:
  threads: [2, 4]
  streams: [1, 2]
  precisions: [FP16]
  batches: [1]
  repeats: 3
deploy_root: /data/local/tmp/edge-runner
bundle_dir: ./out/bundle
run_timeout: 120s
max_attempts: 5
retry_backoff: 2s
cooldown: 45s
tune_devices: false
output_dir: ./results
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edge_runner.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSample(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Kind != model.KindADB || cfg.Devices[1].Kind != model.KindSSH {
		t.Fatalf("device kinds = %q, %q", cfg.Devices[0].Kind, cfg.Devices[1].Kind)
	}
	if cfg.Devices[1].User != "bench" {
		t.Fatalf("ssh user = %q", cfg.Devices[1].User)
	}
	if cfg.RunTimeout.D() != 120*time.Second {
		t.Fatalf("run_timeout = %v, want 120s", cfg.RunTimeout.D())
	}
	if cfg.RetryBackoff.D() != 2*time.Second || cfg.Cooldown.D() != 45*time.Second {
		t.Fatalf("retry_backoff = %v, cooldown = %v", cfg.RetryBackoff.D(), cfg.Cooldown.D())
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("max_attempts = %d", cfg.MaxAttempts)
	}
	if cfg.TuneDevices {
		t.Fatal("tune_devices should be off")
	}
	if cfg.Matrix.Repeats != 3 || len(cfg.Matrix.Threads) != 2 {
		t.Fatalf("matrix = %+v", cfg.Matrix)
	}

	ref, ok := cfg.Model("resnet50")
	if !ok || ref.Path != "models/resnet50.xml" {
		t.Fatalf("Model lookup = %+v, %v", ref, ok)
	}
	if _, ok := cfg.Device("pi4.lab:22"); !ok {
		t.Fatal("Device lookup failed")
	}
	if _, ok := cfg.Device("ghost"); ok {
		t.Fatal("Device lookup found unconfigured id")
	}
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, "devices:\n  - id: a\n    kind: adb\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultConfig()
	if cfg.RunTimeout != def.RunTimeout || cfg.MaxAttempts != def.MaxAttempts {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
	if cfg.DeployRoot != def.DeployRoot {
		t.Fatalf("deploy_root = %q", cfg.DeployRoot)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "run_timeout: fast\n"))
	if err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}
