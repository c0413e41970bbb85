package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingest outcomes recorded on the packets counter.
const (
	OutcomeAccepted     = "accepted"
	OutcomeBadLength    = "bad_length"
	OutcomeBadTimestamp = "bad_timestamp"
	OutcomeStorageError = "storage_error"
)

// Metrics collects pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	packets     *prometheus.CounterVec
	insertLat   prometheus.Histogram
	retrievals  *prometheus.CounterVec
	returned    prometheus.Histogram
	corruptions prometheus.Counter
	alerts      prometheus.Counter
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watertel_packets_total",
			Help: "Telemetry packets received, by ingest outcome.",
		}, []string{"outcome"}),
		insertLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watertel_store_insert_seconds",
			Help:    "Time spent persisting one reading, lock wait included.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watertel_retrievals_total",
			Help: "Series retrievals, by metric and window unit.",
		}, []string{"metric", "unit"}),
		returned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watertel_retrieval_points",
			Help:    "Number of points returned per retrieval.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		corruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watertel_store_corruptions_total",
			Help: "Persisted rows that failed re-validation on retrieval.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watertel_alerts_total",
			Help: "Out-of-range alerts dispatched.",
		}),
	}

	for _, c := range []prometheus.Collector{m.packets, m.insertLat, m.retrievals, m.returned, m.corruptions, m.alerts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Packet counts one ingest attempt.
func (m *Metrics) Packet(outcome string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(outcome).Inc()
}

// ObserveInsert records how long a store insert took.
func (m *Metrics) ObserveInsert(d time.Duration) {
	if m == nil {
		return
	}
	m.insertLat.Observe(d.Seconds())
}

// Retrieval counts one series request and its size.
func (m *Metrics) Retrieval(metric, unit string, points int) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(metric, unit).Inc()
	m.returned.Observe(float64(points))
}

// Corruption counts a row that failed re-validation.
func (m *Metrics) Corruption() {
	if m == nil {
		return
	}
	m.corruptions.Inc()
}

// Alert counts a dispatched alert.
func (m *Metrics) Alert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}
