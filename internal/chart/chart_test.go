package chart

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"water-telemetry/internal/reading"
)

func series(n int) []reading.Point {
	base := time.Unix(1700000000, 0).UTC()
	points := make([]reading.Point, n)
	for i := range points {
		points[i] = reading.Point{Value: 7 + float64(i%5)/10, Time: base.Add(time.Duration(i) * time.Minute)}
	}
	return points
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, series(30), reading.PH, SVG, Options{Width: 640, Height: 360}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Fatalf("expected svg output, got %q", buf.String()[:min(80, buf.Len())])
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, series(10), reading.TDS, PNG, Options{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("expected PNG signature")
	}
}

func TestRenderNeedsTwoDistinctTimes(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	cases := map[string][]reading.Point{
		"empty":      nil,
		"single":     {{Value: 7, Time: ts}},
		"same time":  {{Value: 7, Time: ts}, {Value: 8, Time: ts}},
		"nan filler": {{Value: 7, Time: ts}, {Value: math.NaN(), Time: ts.Add(time.Minute)}},
	}
	for name, points := range cases {
		t.Run(name, func(t *testing.T) {
			err := Render(&bytes.Buffer{}, points, reading.PH, SVG, Options{})
			if !errors.Is(err, ErrNotEnoughData) {
				t.Fatalf("expected ErrNotEnoughData, got %v", err)
			}
		})
	}
}

func TestRenderPage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPage(&buf, series(5), reading.PH, Options{Title: "pH <last hour>"}); err != nil {
		t.Fatalf("render page: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "5 readings") {
		t.Fatalf("page missing chart or count: %s", out)
	}
	if !strings.Contains(out, "pH &lt;last hour&gt;") {
		t.Fatal("title should be escaped")
	}
}

func TestRenderPageWithoutData(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPage(&buf, nil, reading.TDS, Options{Title: "TDS"}); err != nil {
		t.Fatalf("render page: %v", err)
	}
	if !strings.Contains(buf.String(), "No readings in this window.") {
		t.Fatalf("expected empty notice, got %s", buf.String())
	}
}

func TestRenderFlatSeries(t *testing.T) {
	base := time.Unix(1700000000, 0)
	points := []reading.Point{{Value: 500, Time: base}, {Value: 500, Time: base.Add(time.Hour)}}
	if err := Render(&bytes.Buffer{}, points, reading.TDS, SVG, Options{}); err != nil {
		t.Fatalf("flat series should render: %v", err)
	}
}
