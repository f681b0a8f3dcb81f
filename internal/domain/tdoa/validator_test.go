package tdoa

import (
	"errors"
	"math"
	"testing"

	"shotlocator/internal/domain/entity"
)

func TestValidator(t *testing.T) {
	v := NewValidator(DefaultTimeTolerance)
	good := func() []entity.SensorReading {
		return readingsFrom(origin, 1000,
			offset(origin, 0, 100), offset(origin, 120, 100), offset(origin, 240, 100))
	}

	t.Run("accepts a consistent set", func(t *testing.T) {
		if err := v.Validate(good()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("does not modify the readings", func(t *testing.T) {
		rs := good()
		before := append([]entity.SensorReading(nil), rs...)
		_ = v.Validate(rs)
		for i := range rs {
			if rs[i] != before[i] {
				t.Fatalf("reading %d changed", i)
			}
		}
	})

	coords := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude above range", 90.0001, 10},
		{"latitude below range", -91, 10},
		{"longitude above range", 10, 180.5},
		{"longitude below range", 10, -200},
		{"latitude NaN", math.NaN(), 10},
	}
	for _, tt := range coords {
		t.Run(tt.name, func(t *testing.T) {
			for idx := 0; idx < 3; idx++ {
				rs := good()
				rs[idx].Position = entity.GeoPoint{Latitude: tt.lat, Longitude: tt.lon}
				if err := v.Validate(rs); !errors.Is(err, ErrInvalidCoordinate) {
					t.Errorf("index %d: expected ErrInvalidCoordinate, got %v", idx, err)
				}
			}
		})
	}

	t.Run("bad coordinate wins over bad spread", func(t *testing.T) {
		rs := good()
		rs[0].Timestamp += 5
		rs[2].Position.Latitude = 95
		if err := v.Validate(rs); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("expected ErrInvalidCoordinate, got %v", err)
		}
	})

	t.Run("accepts the boundary values", func(t *testing.T) {
		rs := []entity.SensorReading{
			{SensorID: "a", Position: entity.GeoPoint{Latitude: 90, Longitude: 180}, Timestamp: 10},
			{SensorID: "b", Position: entity.GeoPoint{Latitude: -90, Longitude: -180}, Timestamp: 11},
		}
		if err := v.Validate(rs); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("two seconds apart exceeds the spread", func(t *testing.T) {
		rs := []entity.SensorReading{
			{SensorID: "a", Position: origin, Timestamp: 100},
			{SensorID: "b", Position: offset(origin, 90, 50), Timestamp: 102},
		}
		if err := v.Validate(rs); !errors.Is(err, ErrTimeSpreadExceeded) {
			t.Errorf("expected ErrTimeSpreadExceeded, got %v", err)
		}
	})
}
