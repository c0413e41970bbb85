package reading

import (
	"errors"
	"testing"
	"time"
)

func sampleReadings() []Reading {
	base := time.Unix(1700000000, 0).UTC()
	return []Reading{
		{PH: 7.1, PHTime: base, TDS: 500, TDSTime: base.Add(time.Second), SentTime: base.Add(2 * time.Second)},
		{PH: 6.9, PHTime: base.Add(time.Minute), TDS: 510, TDSTime: base.Add(time.Minute + time.Second), SentTime: base.Add(time.Minute + 2*time.Second)},
		{PH: 7.4, PHTime: base.Add(2 * time.Minute), TDS: 490, TDSTime: base.Add(2*time.Minute + time.Second), SentTime: base.Add(2*time.Minute + 2*time.Second)},
	}
}

func TestProjectPH(t *testing.T) {
	readings := sampleReadings()
	points := Project(readings, PH)
	if len(points) != len(readings) {
		t.Fatalf("got %d points, want %d", len(points), len(readings))
	}
	for i, p := range points {
		if p.Value != readings[i].PH || !p.Time.Equal(readings[i].PHTime) {
			t.Fatalf("point %d = %+v, want ph pair of %+v", i, p, readings[i])
		}
	}
}

func TestProjectTDS(t *testing.T) {
	readings := sampleReadings()
	points := Project(readings, TDS)
	for i, p := range points {
		if p.Value != readings[i].TDS || !p.Time.Equal(readings[i].TDSTime) {
			t.Fatalf("point %d = %+v, want tds pair of %+v", i, p, readings[i])
		}
	}
}

func TestProjectEmpty(t *testing.T) {
	points := Project(nil, TDS)
	if points == nil || len(points) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", points)
	}
}

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]Metric{"ph": PH, "PH": PH, " tds ": TDS, "TDS": TDS} {
		got, err := ParseMetric(in)
		if err != nil || got != want {
			t.Fatalf("ParseMetric(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMetric("orp"); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	points := make([]Point, 0, 100)
	for i := 1; i <= 100; i++ {
		points = append(points, Point{Value: float64(i)})
	}

	s, err := Summarize(points)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Count != 100 || s.Min != 1 || s.Max != 100 || s.Mean != 50.5 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.P50 < 49 || s.P50 > 52 {
		t.Fatalf("p50 out of tolerance: %f", s.P50)
	}
	if s.P95 < 93 || s.P95 > 97 {
		t.Fatalf("p95 out of tolerance: %f", s.P95)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s, err := Summarize(nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}
