package simulator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"water-telemetry/internal/packet"
)

// Options describe the mock sensor and where it reports to.
type Options struct {
	TargetURL string
	Timeout   time.Duration
	UserAgent string

	PHBase    float64
	PHJitter  float64
	TDSBase   float64
	TDSJitter float64
}

// StatusError is returned when the collector answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector responded %d: %s", e.Code, e.Body)
}

// Sensor produces plausible readings around configured baselines.
type Sensor struct {
	opts Options
	now  func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSensor seeds a sensor. Equal seeds yield equal value sequences.
func NewSensor(opts Options, seed uint64) *Sensor {
	return &Sensor{
		opts: opts,
		now:  time.Now,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Sample draws one packet stamped with the current second.
func (s *Sensor) Sample() packet.Raw {
	s.mu.Lock()
	ph := s.opts.PHBase + s.jitter(s.opts.PHJitter)
	tds := s.opts.TDSBase + s.jitter(s.opts.TDSJitter)
	s.mu.Unlock()

	ts := s.now().Unix()
	return packet.Raw{
		PH:            ph,
		PHTimestamp:   ts,
		TDS:           tds,
		TDSTimestamp:  ts,
		SentTimestamp: ts,
	}
}

func (s *Sensor) jitter(width float64) float64 {
	return (s.rng.Float64()*2 - 1) * width
}

// Simulator posts sensor packets to a collector.
type Simulator struct {
	sensor *Sensor
	url    string
	ua     string
	client *http.Client
	logger zerolog.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

// New constructs a simulator posting to opts.TargetURL.
func New(sensor *Sensor, opts Options, logger zerolog.Logger) *Simulator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "watertel-simulator/1.0"
	}

	return &Simulator{
		sensor: sensor,
		url:    opts.TargetURL,
		ua:     ua,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "simulator").Logger(),
	}
}

// Tick sends one sampled packet. It matches scheduler.TickFunc.
func (s *Simulator) Tick(ctx context.Context, at time.Time) error {
	raw := s.sensor.Sample()
	if err := s.Send(ctx, packet.Encode(raw)); err != nil {
		s.failed.Add(1)
		return err
	}
	s.sent.Add(1)

	s.logger.Info().
		Float64("ph", raw.PH).
		Float64("tds", raw.TDS).
		Int64("sent", raw.SentTimestamp).
		Msg("packet sent successfully")
	return nil
}

// Send posts an already encoded payload.
func (s *Simulator) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", s.ua)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// Counts reports delivered and failed packets so far.
func (s *Simulator) Counts() (sent, failed int64) {
	return s.sent.Load(), s.failed.Load()
}
