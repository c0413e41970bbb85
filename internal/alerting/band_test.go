package alerting

import (
	"math"
	"testing"
	"time"

	"water-telemetry/internal/reading"
)

func TestBandCheck(t *testing.T) {
	band := Band{PHMin: 6.5, PHMax: 8.5, TDSMax: 1000}

	cases := []struct {
		name    string
		ph, tds float64
		want    int
	}{
		{"inside", 7.0, 500, 0},
		{"edges inclusive", 6.5, 1000, 0},
		{"ph low", 6.0, 500, 1},
		{"ph high", 9.0, 500, 1},
		{"tds high", 7.0, 1200, 1},
		{"both", 5.0, 1500, 2},
		{"nan ph", math.NaN(), 500, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := band.Check(reading.Reading{PH: tc.ph, TDS: tc.tds})
			if len(got) != tc.want {
				t.Fatalf("got %d violations (%v), want %d", len(got), got, tc.want)
			}
		})
	}
}

func TestBandZeroTDSMaxDisablesTDS(t *testing.T) {
	band := Band{PHMin: 0, PHMax: 14}
	if got := band.Check(reading.Reading{PH: 7, TDS: 1e9}); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestCooldown(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCooldown(time.Minute)
	c.now = func() time.Time { return now }

	if !c.Allow() {
		t.Fatal("first alert should pass")
	}
	now = now.Add(30 * time.Second)
	if c.Allow() {
		t.Fatal("alert inside cooldown should be suppressed")
	}
	now = now.Add(31 * time.Second)
	if !c.Allow() {
		t.Fatal("alert after cooldown should pass")
	}
}
