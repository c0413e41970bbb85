package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"water-telemetry/internal/chart"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/service"
)

// pointRow is the parquet layout of one exported point. Timestamp is when
// the metric itself was measured, not when the packet was sent.
type pointRow struct {
	Timestamp int64   `parquet:"timestamp"`
	Metric    string  `parquet:"metric,dict"`
	Value     float64 `parquet:"value"`
}

// Export writes one metric over a window as CSV, PNG and/or parquet.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.ParquetPath == "" {
		return errors.New("at least one of --csv, --png or --parquet must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := service.New(a.Config, store, nil, nil, a.Logger)
	if err != nil {
		return err
	}

	points, err := svc.Series(ctx, opts.Metric, opts.Unit)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Str("metric", opts.Metric.String()).Str("unit", opts.Unit.String()).Msg("no readings found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting readings")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, opts.Metric, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s over the last %s", opts.Metric.Label(), opts.Unit)
		if err := writePointsPNG(opts.PNGPath, opts.Metric, downsampled, chart.Options{
			Width:  a.Config.Export.ChartWidth,
			Height: a.Config.Export.ChartHeight,
			Title:  title,
		}); err != nil {
			return err
		}
	}

	if opts.ParquetPath != "" {
		if err := writePointsParquet(opts.ParquetPath, opts.Metric, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points []reading.Point, max int) []reading.Point {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]reading.Point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, metric reading.Metric, points []reading.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time", "timestamp", metric.String()}); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.Time.Format(time.RFC3339),
			strconv.FormatInt(p.Time.Unix(), 10),
			strconv.FormatFloat(p.Value, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(path string, metric reading.Metric, points []reading.Point, opts chart.Options) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return chart.Render(file, points, metric, chart.PNG, opts)
}

func writePointsParquet(path string, metric reading.Metric, points []reading.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	rows := make([]pointRow, len(points))
	for i, p := range points {
		rows[i] = pointRow{
			Timestamp: p.Time.Unix(),
			Metric:    metric.String(),
			Value:     p.Value,
		}
	}

	writer := parquet.NewGenericWriter[pointRow](file, parquet.Compression(&parquet.Zstd))
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
