package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"water-telemetry/internal/app"
)

var (
	simulateCount  int
	simulateTarget string
	simulateSeed   uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a mock sensor that posts packets to a collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCount < 0 {
			return errors.New("--count cannot be negative")
		}

		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Count:     simulateCount,
			TargetURL: simulateTarget,
			Seed:      simulateSeed,
		})
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateCount, "count", 0, "Packets to send before exiting (0 runs until interrupted)")
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "", "Collector URL (defaults to simulator.target_url)")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "Random seed for reproducible readings")
}
