package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"water-telemetry/internal/scheduler"
	"water-telemetry/internal/simulator"
	"water-telemetry/internal/version"
)

// Simulate runs the mock sensor against a collector until interrupted or
// opts.Count packets have been attempted.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.Config.Simulator
	simOpts := simulator.Options{
		TargetURL: cfg.TargetURL,
		Timeout:   cfg.Timeout,
		UserAgent: version.UserAgent(),
		PHBase:    cfg.PHBase,
		PHJitter:  cfg.PHJitter,
		TDSBase:   cfg.TDSBase,
		TDSJitter: cfg.TDSJitter,
	}
	if opts.TargetURL != "" {
		simOpts.TargetURL = opts.TargetURL
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	sim := simulator.New(simulator.NewSensor(simOpts, seed), simOpts, a.Logger)
	sched := scheduler.New(scheduler.Options{
		Interval: cfg.Interval,
		MaxTicks: opts.Count,
	}, a.Logger)

	a.Logger.Info().Str("target", simOpts.TargetURL).Dur("interval", cfg.Interval).Int("count", opts.Count).Msg("starting sensor simulator")
	err := sched.Run(ctx, sim.Tick)

	sent, failed := sim.Counts()
	a.Logger.Info().Int64("sent", sent).Int64("failed", failed).Msg("sensor simulator stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
