package chart

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"water-telemetry/internal/reading"
)

// ErrNotEnoughData means the series cannot span a time axis.
var ErrNotEnoughData = errors.New("chart: need at least two points at distinct times")

// Format selects the rendered image encoding.
type Format int

const (
	SVG Format = iota
	PNG
)

// Options size and label a chart.
type Options struct {
	Width  int
	Height int
	Title  string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	return o
}

// Render draws the metric series as a time-series line chart. Non-finite
// values are left out.
func Render(w io.Writer, points []reading.Point, metric reading.Metric, format Format, opts Options) error {
	opts = opts.withDefaults()

	x := make([]time.Time, 0, len(points))
	y := make([]float64, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		x = append(x, p.Time)
		y = append(y, p.Value)
	}
	if !spansTime(x) {
		return ErrNotEnoughData
	}

	valueFormatter := func(v interface{}) string {
		return gochart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	yAxis := gochart.YAxis{
		Name:           metric.Label(),
		ValueFormatter: valueFormatter,
	}
	if lo, hi := bounds(y); lo == hi {
		yAxis.Range = &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	graph := gochart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: gochart.XAxis{
			ValueFormatter: timeFormatter(x),
		},
		YAxis: yAxis,
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    metric.Label(),
				XValues: x,
				YValues: y,
			},
		},
	}

	provider := gochart.SVG
	if format == PNG {
		provider = gochart.PNG
	}
	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("render %s chart: %w", metric, err)
	}
	return nil
}

func spansTime(x []time.Time) bool {
	for i := 1; i < len(x); i++ {
		if !x[i].Equal(x[0]) {
			return true
		}
	}
	return false
}

func bounds(y []float64) (lo, hi float64) {
	lo, hi = y[0], y[0]
	for _, v := range y[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// timeFormatter picks tick labels that fit the span of the series.
func timeFormatter(x []time.Time) gochart.ValueFormatter {
	lo, hi := x[0], x[0]
	for _, t := range x[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	switch span := hi.Sub(lo); {
	case span <= 2*time.Hour:
		return gochart.TimeValueFormatterWithFormat("15:04:05")
	case span <= 48*time.Hour:
		return gochart.TimeValueFormatterWithFormat("Jan 02 15:04")
	default:
		return gochart.TimeDateValueFormatter
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Chart}}{{.Chart}}{{else}}<p>No readings in this window.</p>{{end}}
<p>{{.Count}} readings</p>
</body>
</html>
`))

// RenderPage writes an HTML page embedding the SVG chart. A series too short
// to plot still yields a page that says so.
func RenderPage(w io.Writer, points []reading.Point, metric reading.Metric, opts Options) error {
	var svg bytes.Buffer
	err := Render(&svg, points, metric, SVG, opts)
	if err != nil && !errors.Is(err, ErrNotEnoughData) {
		return err
	}

	data := struct {
		Title string
		Chart template.HTML
		Count int
	}{
		Title: opts.Title,
		Count: len(points),
	}
	if err == nil {
		data.Chart = template.HTML(svg.String())
	}
	return pageTemplate.Execute(w, data)
}
