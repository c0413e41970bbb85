package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"water-telemetry/internal/app"
)

var (
	backfillFile   string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay a capture of raw packets into storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFile == "" {
			return fmt.Errorf("--file must be provided")
		}

		opts := app.BackfillOptions{
			Path:   backfillFile,
			DryRun: backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFile, "file", "", "Capture of concatenated 40-byte packets")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Validate packets without writing to storage")
}
