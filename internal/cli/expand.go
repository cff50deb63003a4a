/*
PURPOSE:
  Defines the 'expand' subcommand: a dry run that prints the deterministic
  invocation table without touching any device.

REQUIREMENTS:
  User-specified:
  - Expansion order must be diffable between two runs of the same config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/matrix

ERROR HANDLING:
  - Invalid matrices fail exactly as they would at the start of 'run'.

IMPLEMENTATION RULES:
  - Output is plain text, one line per invocation, stable field order.

USAGE:
  edge-runner expand | diff - previous.txt

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/matrix/matrix.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/matrix"
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Print the expanded invocation matrix without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := matrix.Validate(cfg); err != nil {
			return err
		}
		for spec := range matrix.Expand(cfg) {
			fmt.Printf("%4d  %-20s %-16s threads=%d streams=%d precision=%s batch=%d repeat=%d\n",
				spec.Index, spec.DeviceID, spec.Model.Name,
				spec.Threads, spec.Streams, spec.Precision, spec.Batch, spec.RepeatIndex)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
}
