package reading

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownMetric is returned by ParseMetric for anything but ph or tds.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric selects one of the two scalar series carried by a reading.
type Metric int

const (
	PH Metric = iota
	TDS
)

// ParseMetric maps "ph" or "tds" (case-insensitive) to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ph":
		return PH, nil
	case "tds":
		return TDS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) String() string {
	switch m {
	case PH:
		return "ph"
	case TDS:
		return "tds"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Label is the human-readable axis name.
func (m Metric) Label() string {
	switch m {
	case PH:
		return "pH"
	case TDS:
		return "TDS (ppm)"
	default:
		return m.String()
	}
}

// Point is one value of a single metric at the time it was measured.
type Point struct {
	Value float64
	Time  time.Time
}

// Project extracts the series for m, preserving input order.
func Project(readings []Reading, m Metric) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		switch m {
		case PH:
			points = append(points, Point{Value: r.PH, Time: r.PHTime})
		case TDS:
			points = append(points, Point{Value: r.TDS, Time: r.TDSTime})
		}
	}
	return points
}
