package alerting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"water-telemetry/internal/reading"
)

// Violation is one metric outside its configured limit.
type Violation struct {
	Metric reading.Metric
	Value  float64
	Limit  float64
	Above  bool
}

func (v Violation) String() string {
	dir := "below minimum"
	if v.Above {
		dir = "above maximum"
	}
	return fmt.Sprintf("%s %.2f %s %.2f", v.Metric.Label(), v.Value, dir, v.Limit)
}

// Band is the acceptable range for a reading. A zero TDSMax disables the
// TDS check.
type Band struct {
	PHMin  float64
	PHMax  float64
	TDSMax float64
}

// Check lists every limit r breaks. NaN values always violate.
func (b Band) Check(r reading.Reading) []Violation {
	var out []Violation
	if r.PH < b.PHMin || math.IsNaN(r.PH) {
		out = append(out, Violation{Metric: reading.PH, Value: r.PH, Limit: b.PHMin})
	} else if r.PH > b.PHMax {
		out = append(out, Violation{Metric: reading.PH, Value: r.PH, Limit: b.PHMax, Above: true})
	}
	if b.TDSMax > 0 && (r.TDS > b.TDSMax || math.IsNaN(r.TDS)) {
		out = append(out, Violation{Metric: reading.TDS, Value: r.TDS, Limit: b.TDSMax, Above: true})
	}
	return out
}

// Cooldown lets one alert through per interval.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewCooldown builds a gate; a non-positive interval never suppresses.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{interval: interval, now: time.Now}
}

// Allow reports whether an alert may fire now and, if so, starts a new interval.
func (c *Cooldown) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.interval > 0 && !c.last.IsZero() && now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	return true
}
