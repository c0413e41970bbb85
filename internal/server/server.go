package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"water-telemetry/internal/chart"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/service"
	"water-telemetry/internal/storage"
	"water-telemetry/internal/window"
)

// Pipeline is the ingestion and retrieval surface the handlers call.
type Pipeline interface {
	Ingest(ctx context.Context, payload []byte) (reading.Reading, error)
	Series(ctx context.Context, metric reading.Metric, unit window.Unit) ([]reading.Point, error)
	Stats(ctx context.Context, metric reading.Metric, unit window.Unit) (reading.Summary, error)
}

// Health reports on the backing store.
type Health interface {
	Ping(ctx context.Context) error
	Uptime() time.Duration
}

// Options configure the HTTP listener.
type Options struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// MetricsPath is left unrouted when empty or when Gatherer is nil.
	MetricsPath string
	Gatherer    prometheus.Gatherer

	ChartWidth  int
	ChartHeight int
}

// Server exposes the telemetry pipeline over HTTP.
type Server struct {
	pipeline Pipeline
	health   Health
	opts     Options
	logger   zerolog.Logger
	handler  http.Handler

	renderPage func(w io.Writer, points []reading.Point, metric reading.Metric, opts chart.Options) error
}

// New wires the routes. health may be nil.
func New(pipeline Pipeline, health Health, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		health:   health,
		opts:     opts,
		logger:   logger.With().Str("component", "server").Logger(),

		renderPage: chart.RenderPage,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /water", s.handleIngest)
	for _, m := range []reading.Metric{reading.PH, reading.TDS} {
		mux.HandleFunc("GET /"+m.String()+"/{unit}", s.handleChart(m))
		mux.HandleFunc("GET /"+m.String()+"/{unit}/stats", s.handleStats(m))
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.MetricsPath != "" && opts.Gatherer != nil {
		mux.Handle("GET "+opts.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = s.withRequestID(mux)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn().Int64("limit", tooLarge.Limit).Msg("packet body too large")
			http.Error(w, "packet too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn().Err(err).Msg("failed to read packet body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	rd, err := s.pipeline.Ingest(r.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrRejected):
		logger.Warn().Err(err).Int("bytes", len(payload)).Msg("packet rejected")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	default:
		logger.Error().Err(err).Msg("failed to store reading")
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	logger.Debug().Time("sent", rd.SentTime).Msg("packet accepted")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleChart(metric reading.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unit, ok := parseUnit(w, r)
		if !ok {
			return
		}

		points, err := s.pipeline.Series(r.Context(), metric, unit)
		if err != nil {
			s.retrievalFailed(w, r, err)
			return
		}

		opts := chart.Options{
			Width:  s.opts.ChartWidth,
			Height: s.opts.ChartHeight,
			Title:  fmt.Sprintf("%s over the last %s", metric.Label(), unit),
		}
		var page bytes.Buffer
		if err := s.renderPage(&page, points, metric, opts); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to render chart")
			http.Error(w, "failed to render chart", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = page.WriteTo(w)
	}
}

func (s *Server) handleStats(metric reading.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unit, ok := parseUnit(w, r)
		if !ok {
			return
		}

		summary, err := s.pipeline.Stats(r.Context(), metric, unit)
		if err != nil {
			s.retrievalFailed(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Metric string `json:"metric"`
			Unit   string `json:"unit"`
			reading.Summary
		}{metric.String(), unit.String(), summary})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		http.Error(w, storage.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := s.health.Ping(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.health.Uptime().Round(time.Second).String(),
	})
}

func (s *Server) retrievalFailed(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load readings")
	http.Error(w, "failed to load readings", http.StatusInternalServerError)
}

// parseUnit rejects unknown window tokens before the store is touched.
func parseUnit(w http.ResponseWriter, r *http.Request) (window.Unit, bool) {
	unit, err := window.ParseUnit(r.PathValue("unit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return unit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
