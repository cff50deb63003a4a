/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark matrix.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks.
  - Specific flags for overrides.
  - Ctrl-C stops dispatching new invocations; in-flight ones finish.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or the matrix is invalid.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> signal context -> Engine.Run.

USAGE:
  edge-runner run --devices RF8M33XYZ -o ./results

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/engine"
)

var (
	devicesOverride []string
	modelsOverride  []string
	outputOverride  string
	bundleOverride  string
	repeatsOverride int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark matrix",
	Long: `Expands the configured run matrix into concrete invocations and drives
them against the configured devices. The process follows a strict protocol:
1. Expansion: the matrix is validated and expanded in deterministic order.
2. Deployment: the bundle (runtime, libraries, models) is pushed to each
   device under the deploy root, skipping files already resident.
3. Execution: each invocation runs with a timeout; timeouts and unreachable
   devices retry with exponential backoff, tool failures are recorded as-is.

Every invocation produces exactly one result record, failures included.
Results are saved as CSV and JSONL next to a run manifest.`,
	Example: `  # Run with defaults (uses edge_runner.yaml)
  edge-runner run

  # Run on a subset of configured devices
  edge-runner run --devices RF8M33XYZ,pi4:22

  # Run only specific models, three repeats each
  edge-runner run --models resnet50,yolov8n --repeats 3

  # Override output and bundle locations
  edge-runner run -o ./results --bundle-dir ./out/bundle`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if len(devicesOverride) > 0 {
			cfg.Matrix.Devices = devicesOverride
		}
		if len(modelsOverride) > 0 {
			cfg.Matrix.Models = modelsOverride
		}
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if bundleOverride != "" {
			cfg.BundleDir = bundleOverride
		}
		if repeatsOverride > 0 {
			cfg.Matrix.Repeats = repeatsOverride
		}

		// 3. Execution
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return engine.Run(ctx, cfg, cfgFile)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&devicesOverride, "devices", nil, "Comma-separated list of configured device ids to run on")
	runCmd.Flags().StringSliceVar(&modelsOverride, "models", nil, "Comma-separated list of configured model names to run")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSONL/manifest)")
	runCmd.Flags().StringVar(&bundleOverride, "bundle-dir", "", "Local bundle directory to deploy")
	runCmd.Flags().IntVar(&repeatsOverride, "repeats", 0, "Repeat count per matrix point (overrides config)")
}
