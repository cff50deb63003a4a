/*
PURPOSE:
  Defines the 'list-devices' subcommand.
  Helps debug connectivity before a full run.

REQUIREMENTS:
  User-specified:
  - Probe each configured device and print reachability plus identity.

  Implementation-discovered:
  - Useful validation step before full run.

ARCHITECTURE INTEGRATION:
  - Calls: internal/device.Pool.Resolve()

ERROR HANDLING:
  - Prints per-device errors; unreachable devices do not abort the listing.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  edge-runner list-devices

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/device/pool.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/device"
	"github.com/edge-bench/edge-runner/internal/output"
)

var listDevicesCmd = &cobra.Command{
	Use:   "list-devices",
	Short: "Probe configured devices and print their identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if len(cfg.Devices) == 0 {
			fmt.Println("no devices configured")
			return nil
		}

		pool := device.NewPool(cfg.Devices, output.Logger)
		defer pool.Close()
		for _, id := range pool.IDs() {
			_, info, err := pool.Resolve(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "- %s: %v\n", id, err)
				continue
			}
			fmt.Printf("- %s: %s (%s, %s)\n", id, info.Model, info.OSVersion, info.ABI)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listDevicesCmd)
}
