package cli

import (
	"github.com/spf13/cobra"

	"water-telemetry/internal/app"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/window"
)

var (
	exportUnit        string
	exportMetric      string
	exportPNGPath     string
	exportCSVPath     string
	exportParquetPath string
	exportMaxPoints   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one metric over a time window as CSV, PNG and/or parquet",
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := window.ParseUnit(exportUnit)
		if err != nil {
			return err
		}

		metric, err := reading.ParseMetric(exportMetric)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			Unit:        unit,
			Metric:      metric,
			PNGPath:     exportPNGPath,
			CSVPath:     exportCSVPath,
			ParquetPath: exportParquetPath,
			MaxPoints:   exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportUnit, "unit", "day", "Window ending now: hour, day, month or year")
	exportCmd.Flags().StringVar(&exportMetric, "metric", "ph", "Metric to export: ph or tds")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportParquetPath, "parquet", "", "Path to write parquet data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
