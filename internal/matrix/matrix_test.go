package matrix

import (
	"errors"
	"reflect"
	"testing"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Devices = []model.DeviceTarget{
		{ID: "serial-a", Kind: model.KindADB},
		{ID: "host-b:22", Kind: model.KindSSH, User: "bench"},
	}
	cfg.Models = []model.ModelRef{
		{Name: "resnet50", Path: "models/resnet50.xml"},
		{Name: "yolov8n", Path: "models/yolov8n.xml"},
	}
	cfg.Matrix = config.Matrix{
		Threads:    []int{2, 4},
		Streams:    []int{1},
		Precisions: []string{"FP16", "FP32"},
		Batches:    []int{1},
		Repeats:    3,
	}
	return cfg
}

func TestExpandCount(t *testing.T) {
	cfg := testConfig()
	specs := ExpandAll(cfg)

	want := 2 * 2 * 2 * 1 * 2 * 1 * 3 // devices*models*threads*streams*precisions*batches*repeats
	if len(specs) != want {
		t.Fatalf("expansion produced %d specs, want %d", len(specs), want)
	}
	if Count(cfg) != want {
		t.Fatalf("Count = %d, want %d", Count(cfg), want)
	}
}

func TestExpandIndexAndOrder(t *testing.T) {
	cfg := testConfig()
	specs := ExpandAll(cfg)

	for i, spec := range specs {
		if spec.Index != i {
			t.Fatalf("spec at position %d has index %d", i, spec.Index)
		}
	}

	// Devices are the outermost loop: the first half belongs to device A.
	half := len(specs) / 2
	for _, spec := range specs[:half] {
		if spec.DeviceID != "serial-a" {
			t.Fatalf("spec %d on %q, want serial-a in first half", spec.Index, spec.DeviceID)
		}
	}
	for _, spec := range specs[half:] {
		if spec.DeviceID != "host-b:22" {
			t.Fatalf("spec %d on %q, want host-b:22 in second half", spec.Index, spec.DeviceID)
		}
	}

	// Repeats are innermost: consecutive specs differ only in repeat index.
	for i := 0; i+2 < len(specs); i += 3 {
		for r := 0; r < 3; r++ {
			if specs[i+r].RepeatIndex != r {
				t.Fatalf("spec %d repeat index = %d, want %d", i+r, specs[i+r].RepeatIndex, r)
			}
		}
		a, b := specs[i], specs[i+1]
		a.RepeatIndex, b.RepeatIndex = 0, 0
		a.Index, b.Index = 0, 0
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("repeat copies differ beyond index: %+v vs %+v", a, b)
		}
	}
}

func TestExpandDeterministic(t *testing.T) {
	cfg := testConfig()
	first := ExpandAll(cfg)
	second := ExpandAll(cfg)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("two expansions of the same config differ")
	}
}

func TestExpandLazyStop(t *testing.T) {
	cfg := testConfig()

	seen := 0
	for range Expand(cfg) {
		seen++
		if seen == 5 {
			break
		}
	}
	if seen != 5 {
		t.Fatalf("consumed %d specs, want 5", seen)
	}
}

func TestExpandMatrixSubset(t *testing.T) {
	cfg := testConfig()
	cfg.Matrix.Devices = []string{"host-b:22"}
	cfg.Matrix.Models = []string{"yolov8n"}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, spec := range ExpandAll(cfg) {
		if spec.DeviceID != "host-b:22" || spec.Model.Name != "yolov8n" {
			t.Fatalf("subset expansion leaked %+v", spec)
		}
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no devices", func(c *config.Config) { c.Devices = nil }},
		{"no models", func(c *config.Config) { c.Models = nil }},
		{"no threads", func(c *config.Config) { c.Matrix.Threads = nil }},
		{"no streams", func(c *config.Config) { c.Matrix.Streams = nil }},
		{"no precisions", func(c *config.Config) { c.Matrix.Precisions = nil }},
		{"no batches", func(c *config.Config) { c.Matrix.Batches = nil }},
		{"zero repeats", func(c *config.Config) { c.Matrix.Repeats = 0 }},
		{"unknown device ref", func(c *config.Config) { c.Matrix.Devices = []string{"ghost"} }},
		{"unknown model ref", func(c *config.Config) { c.Matrix.Models = []string{"ghost"} }},
		{"duplicate device ref", func(c *config.Config) { c.Matrix.Devices = []string{"serial-a", "serial-a"} }},
		{"duplicate model ref", func(c *config.Config) { c.Matrix.Models = []string{"resnet50", "resnet50"} }},
		{"duplicate device definition", func(c *config.Config) {
			c.Devices = append(c.Devices, c.Devices[0])
		}},
		{"duplicate model definition", func(c *config.Config) {
			c.Models = append(c.Models, c.Models[0])
		}},
	}

	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(cfg)
		err := Validate(cfg)
		if !errors.Is(err, ErrInvalidMatrix) {
			t.Fatalf("%s: Validate = %v, want ErrInvalidMatrix", tc.name, err)
		}
	}

	if err := Validate(testConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
