package simulator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"water-telemetry/internal/packet"
)

func testOptions(url string) Options {
	return Options{
		TargetURL: url,
		Timeout:   time.Second,
		PHBase:    7.0,
		PHJitter:  0.6,
		TDSBase:   500,
		TDSJitter: 60,
	}
}

func TestSensorStaysWithinJitter(t *testing.T) {
	sensor := NewSensor(testOptions(""), 42)
	fixed := time.Unix(1700000000, 0)
	sensor.now = func() time.Time { return fixed }

	for i := 0; i < 1000; i++ {
		raw := sensor.Sample()
		if raw.PH < 6.4 || raw.PH > 7.6 {
			t.Fatalf("ph %v outside band", raw.PH)
		}
		if raw.TDS < 440 || raw.TDS > 560 {
			t.Fatalf("tds %v outside band", raw.TDS)
		}
		if raw.PHTimestamp != fixed.Unix() || raw.TDSTimestamp != fixed.Unix() || raw.SentTimestamp != fixed.Unix() {
			t.Fatalf("unexpected timestamps %+v", raw)
		}
	}
}

func TestSensorSeedIsDeterministic(t *testing.T) {
	a := NewSensor(testOptions(""), 7)
	b := NewSensor(testOptions(""), 7)
	for i := 0; i < 10; i++ {
		if x, y := a.Sample(), b.Sample(); x.PH != y.PH || x.TDS != y.TDS {
			t.Fatalf("sample %d differs: %+v vs %+v", i, x, y)
		}
	}
}

func TestTickPostsDecodablePacket(t *testing.T) {
	var (
		mu       sync.Mutex
		received [][]byte
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/water" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
	}))
	defer collector.Close()

	sim := New(NewSensor(testOptions(""), 1), testOptions(collector.URL+"/water"), zerolog.Nop())
	for i := 0; i < 3; i++ {
		if err := sim.Tick(context.Background(), time.Now()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(received))
	}
	for _, body := range received {
		if _, err := packet.Decode(body); err != nil {
			t.Fatalf("collector got undecodable packet: %v", err)
		}
	}
	if sent, failed := sim.Counts(); sent != 3 || failed != 0 {
		t.Fatalf("counts = %d/%d", sent, failed)
	}
}

func TestTickReportsRejection(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "packet rejected", http.StatusUnprocessableEntity)
	}))
	defer collector.Close()

	sim := New(NewSensor(testOptions(""), 1), testOptions(collector.URL), zerolog.Nop())
	err := sim.Tick(context.Background(), time.Now())

	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusUnprocessableEntity || status.Body != "packet rejected" {
		t.Fatalf("expected 422 status error, got %v", err)
	}
	if _, failed := sim.Counts(); failed != 1 {
		t.Fatalf("expected one failure, got %d", failed)
	}
}
