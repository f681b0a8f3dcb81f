package entity

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		ts      float64
		quantum time.Duration
		want    EventKey
	}{
		{100.0, time.Second, 100},
		{100.99, time.Second, 100},
		{101.0, time.Second, 101},
		{7.3, 500 * time.Millisecond, 14},
		{-0.5, time.Second, -1},
	}
	for _, tt := range tests {
		if got := KeyFor(tt.ts, tt.quantum); got != tt.want {
			t.Errorf("KeyFor(%v, %v) = %v, want %v", tt.ts, tt.quantum, got, tt.want)
		}
	}
}

func TestParseEventKey(t *testing.T) {
	k, err := ParseEventKey(EventKey(1700000000).String())
	if err != nil || k != 1700000000 {
		t.Errorf("round trip failed: %v %v", k, err)
	}
	if _, err := ParseEventKey("abc"); err == nil {
		t.Error("expected an error")
	}
}

func TestSensorReadingCheck(t *testing.T) {
	conf := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		reading SensorReading
		wantErr bool
	}{
		{"valid", SensorReading{SensorID: "a", Timestamp: 1}, false},
		{"valid with confidence", SensorReading{SensorID: "a", Timestamp: 1, Confidence: conf(0.9)}, false},
		{"no sensor", SensorReading{Timestamp: 1}, true},
		{"no timestamp", SensorReading{SensorID: "a"}, true},
		{"infinite timestamp", SensorReading{SensorID: "a", Timestamp: math.Inf(1)}, true},
		{"nan position", SensorReading{SensorID: "a", Timestamp: 1, Position: GeoPoint{Latitude: math.NaN()}}, true},
		{"confidence above one", SensorReading{SensorID: "a", Timestamp: 1, Confidence: conf(1.5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reading.Check()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedReading) {
				t.Errorf("expected ErrMalformedReading, got %v", err)
			}
		})
	}
}

func TestTimeOffsets(t *testing.T) {
	rs := []SensorReading{{Timestamp: 10.3}, {Timestamp: 10.1}, {Timestamp: 10.6}}
	got := TimeOffsets(rs)
	want := []float64{0.2, 0, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("offset %d = %v, want %v", i, got[i], want[i])
		}
	}
	if TimeOffsets(nil) != nil {
		t.Error("expected nil offsets for no readings")
	}
}

func TestCandidateEvent(t *testing.T) {
	ev := NewCandidateEvent(5, time.Unix(0, 0))
	if ev.State != StateCollecting || !ev.Open() {
		t.Fatalf("new event should be collecting, got %s", ev.State)
	}
	if ev.SpreadWith(5.5) != 0 {
		t.Error("empty event has no spread")
	}

	ev.Append(SensorReading{SensorID: "a", Timestamp: 5.2})
	ev.Append(SensorReading{SensorID: "b", Timestamp: 5.6})
	if !ev.HasSensor("a") || ev.HasSensor("c") {
		t.Error("HasSensor mismatch")
	}
	if got := ev.SpreadWith(4.9); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("SpreadWith(4.9) = %v, want 0.7", got)
	}

	snap := ev.Snapshot()
	snap[0].SensorID = "changed"
	if ev.Readings[0].SensorID != "a" {
		t.Error("snapshot must not alias the event readings")
	}

	ev.State = StateProcessing
	if ev.Open() {
		t.Error("processing event must be closed")
	}
}
