package reading

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// summaryAccuracy is the relative accuracy of reported quantiles.
const summaryAccuracy = 0.01

// Summary describes a series without shipping every point.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Summarize computes count, extrema, mean and approximate quantiles over
// points. NaN and infinite values are skipped.
func Summarize(points []Point) (Summary, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(summaryAccuracy)
	if err != nil {
		return Summary{}, fmt.Errorf("create sketch: %w", err)
	}

	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		if err := sketch.Add(p.Value); err != nil {
			return Summary{}, fmt.Errorf("add value: %w", err)
		}
		s.Count++
		sum += p.Value
		s.Min = math.Min(s.Min, p.Value)
		s.Max = math.Max(s.Max, p.Value)
	}

	if s.Count == 0 {
		return Summary{}, nil
	}
	s.Mean = sum / float64(s.Count)

	qs, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.95})
	if err != nil {
		return Summary{}, fmt.Errorf("quantiles: %w", err)
	}
	s.P50, s.P95 = qs[0], qs[1]
	return s, nil
}
