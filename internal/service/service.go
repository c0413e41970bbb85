package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"water-telemetry/internal/alerting"
	"water-telemetry/internal/config"
	"water-telemetry/internal/metrics"
	"water-telemetry/internal/packet"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/storage"
	"water-telemetry/internal/window"
)

// ErrRejected marks a packet that failed decoding or validation. Nothing was
// stored for it.
var ErrRejected = errors.New("packet rejected")

// Service runs the ingestion and retrieval pipelines over one store.
type Service struct {
	store    storage.ReadingStore
	loc      *time.Location
	policy   string
	notifier alerting.Notifier
	band     alerting.Band
	cooldown *alerting.Cooldown
	alertsOn bool
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	now   func() time.Time
	fatal func(err error)
}

// New constructs the pipeline service. notifier and m may be nil.
func New(cfg *config.Config, store storage.ReadingStore, notifier alerting.Notifier, m *metrics.Metrics, logger zerolog.Logger) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:    store,
		loc:      loc,
		policy:   cfg.Telemetry.CorruptionPolicy,
		notifier: notifier,
		band: alerting.Band{
			PHMin:  cfg.Alerting.PHMin,
			PHMax:  cfg.Alerting.PHMax,
			TDSMax: cfg.Alerting.TDSMax,
		},
		cooldown: alerting.NewCooldown(cfg.Alerting.Cooldown),
		alertsOn: cfg.Alerting.Enabled,
		metrics:  m,
		logger:   logger.With().Str("component", "service").Logger(),
		now:      time.Now,
	}
	s.fatal = func(err error) {
		s.logger.Fatal().Err(err).Msg("stored telemetry failed re-validation; refusing to continue")
	}
	return s, nil
}

// Location is the zone readings are resolved in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Decode turns a wire payload into a validated reading without storing it.
func (s *Service) Decode(payload []byte) (reading.Reading, error) {
	raw, err := packet.Decode(payload)
	if err != nil {
		s.metrics.Packet(metrics.OutcomeBadLength)
		return reading.Reading{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	r, err := reading.Validate(raw, s.loc)
	if err != nil {
		s.metrics.Packet(metrics.OutcomeBadTimestamp)
		return reading.Reading{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return r, nil
}

// Ingest decodes, validates and persists one packet.
func (s *Service) Ingest(ctx context.Context, payload []byte) (reading.Reading, error) {
	r, err := s.Decode(payload)
	if err != nil {
		return reading.Reading{}, err
	}

	if s.store == nil {
		return reading.Reading{}, storage.ErrNotConfigured
	}

	start := time.Now()
	err = s.store.Insert(ctx, r)
	s.metrics.ObserveInsert(time.Since(start))
	if err != nil {
		s.metrics.Packet(metrics.OutcomeStorageError)
		return reading.Reading{}, err
	}
	s.metrics.Packet(metrics.OutcomeAccepted)

	s.logger.Debug().Time("sent", r.SentTime).
		Float64("ph", r.PH).
		Float64("tds", r.TDS).
		Msg("reading stored")

	s.maybeAlert(ctx, r)
	return r, nil
}

// Readings returns every reading sent within the window ending now.
func (s *Service) Readings(ctx context.Context, unit window.Unit) ([]reading.Reading, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}

	cutoff := unit.Cutoff(s.now().In(s.loc))
	readings, err := s.store.QueryRange(ctx, cutoff)
	if err != nil {
		if storage.IsCorruption(err) {
			return nil, s.handleCorruption(err)
		}
		return nil, err
	}
	return readings, nil
}

// Series returns one metric over the window ending now, oldest first.
func (s *Service) Series(ctx context.Context, metric reading.Metric, unit window.Unit) ([]reading.Point, error) {
	readings, err := s.Readings(ctx, unit)
	if err != nil {
		return nil, err
	}

	points := reading.Project(readings, metric)
	s.metrics.Retrieval(metric.String(), unit.String(), len(points))
	return points, nil
}

// Stats summarises one metric over the window ending now.
func (s *Service) Stats(ctx context.Context, metric reading.Metric, unit window.Unit) (reading.Summary, error) {
	points, err := s.Series(ctx, metric, unit)
	if err != nil {
		return reading.Summary{}, err
	}
	return reading.Summarize(points)
}

// Recent returns the newest readings, newest first. Corrupt rows go through
// the same policy as windowed retrieval.
func (s *Service) Recent(ctx context.Context, limit int) ([]reading.Reading, error) {
	browser, ok := s.store.(storage.ReadingBrowser)
	if !ok {
		return nil, storage.ErrNotConfigured
	}

	readings, err := browser.ListRecent(ctx, limit)
	if err != nil {
		if storage.IsCorruption(err) {
			return nil, s.handleCorruption(err)
		}
		return nil, err
	}
	return readings, nil
}

// handleCorruption never skips the row. Under the abort policy the process
// exits; otherwise the caller's request fails.
func (s *Service) handleCorruption(err error) error {
	s.metrics.Corruption()
	if s.policy == config.CorruptionFailRequest {
		s.logger.Error().Err(err).Msg("stored telemetry failed re-validation")
		return err
	}
	s.fatal(err)
	return err
}

func (s *Service) maybeAlert(ctx context.Context, r reading.Reading) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	violations := s.band.Check(r)
	if len(violations) == 0 {
		return
	}
	if !s.cooldown.Allow() {
		s.logger.Debug().Time("sent", r.SentTime).Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.Notification{
		SentTime:   r.SentTime,
		PH:         r.PH,
		TDS:        r.TDS,
		Violations: violations,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("sent", r.SentTime).Msg("failed to dispatch alert")
		return
	}
	s.metrics.Alert()
}
