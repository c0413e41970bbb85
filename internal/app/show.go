package app

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"water-telemetry/internal/service"
)

// Show prints the most recent readings, newest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := service.New(a.Config, store, nil, nil, a.Logger)
	if err != nil {
		return err
	}

	readings, err := svc.Recent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		fmt.Fprintln(a.Out, "no readings found")
		return nil
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Sent (%s)\tpH\tpH at\tTDS (ppm)\tTDS at\n", store.Location())

	for _, r := range readings {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			r.SentTime.Format(time.RFC3339),
			formatValue(r.PH, 3),
			r.PHTime.Format(time.TimeOnly),
			formatValue(r.TDS, 1),
			r.TDSTime.Format(time.TimeOnly),
		)
	}

	writer.Flush()
	fmt.Fprintf(a.Out, "showing %d of %d readings\n", len(readings), total)
	return nil
}

func formatValue(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
