package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"water-telemetry/internal/packet"
	"water-telemetry/internal/service"
)

// Backfill replays a capture of back-to-back packets through ingestion.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return errors.New("capture file is empty")
	}

	var svc *service.Service
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
		svc, err = service.New(a.Config, nil, nil, nil, a.Logger)
		if err != nil {
			return err
		}
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err = service.New(a.Config, store, nil, nil, a.Logger)
		if err != nil {
			return err
		}
	}

	processed := 0
	failed := 0
	for offset := 0; offset < len(data); offset += packet.Size {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := min(offset+packet.Size, len(data))
		chunk := data[offset:end]

		if opts.DryRun {
			_, err = svc.Decode(chunk)
		} else {
			_, err = svc.Ingest(ctx, chunk)
		}
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Int("offset", offset).Msg("backfill packet failed")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Bool("dry_run", opts.DryRun).Msg("backfill complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d packets failed to backfill; see log", failed, processed+failed)
	}
	return nil
}
