package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"water-telemetry/internal/alerting"
	"water-telemetry/internal/config"
	"water-telemetry/internal/logging"
	"water-telemetry/internal/metrics"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/server"
	"water-telemetry/internal/service"
	"water-telemetry/internal/storage"
	"water-telemetry/internal/window"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// ConfigPath is watched for log level changes while serving.
	ConfigPath string
	// Out receives human-readable command output.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.OpenDB(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(db, loc)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close store")
		}
	}
	return store, closer, nil
}

// Serve runs the HTTP ingestion service until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		m   *metrics.Metrics
		reg *prometheus.Registry
	)
	if a.Config.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if m, err = metrics.New(reg); err != nil {
			return err
		}
	}

	svc, err := service.New(a.Config, store, a.newNotifier(), m, a.Logger)
	if err != nil {
		return err
	}

	opts := server.Options{
		ListenAddr:      a.Config.Server.ListenAddr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		MaxBodyBytes:    a.Config.Server.MaxBodyBytes,
		ChartWidth:      a.Config.Export.ChartWidth,
		ChartHeight:     a.Config.Export.ChartHeight,
	}
	if reg != nil {
		opts.MetricsPath = a.Config.Metrics.Path
		opts.Gatherer = reg
	}
	srv := server.New(svc, store, opts, a.Logger)

	if a.ConfigPath != "" {
		err := config.Watch(a.ConfigPath, func(cfg *config.Config) {
			level := logging.ApplyLevel(cfg.Logging.Level)
			a.Logger.Info().Str("level", level.String()).Msg("configuration reloaded")
		}, func(err error) {
			a.Logger.Warn().Err(err).Msg("ignoring invalid configuration change")
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("config watch disabled")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	a.Logger.Info().
		Str("addr", opts.ListenAddr).
		Str("driver", a.Config.Database.Driver).
		Str("timezone", svc.Location().String()).
		Msg("starting telemetry service")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Dur("uptime", store.Uptime()).Msg("telemetry service stopped")
	return nil
}

// ExportOptions hold parameters for exporting one metric over a window.
type ExportOptions struct {
	Unit        window.Unit
	Metric      reading.Metric
	PNGPath     string
	CSVPath     string
	ParquetPath string
	MaxPoints   int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Path   string
	DryRun bool
}

// SimulateOptions configure the mock sensor.
type SimulateOptions struct {
	Count     int
	TargetURL string
	Seed      uint64
}
