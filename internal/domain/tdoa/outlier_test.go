package tdoa

import (
	"errors"
	"testing"

	"shotlocator/internal/domain/entity"
)

func TestOutlierFilter(t *testing.T) {
	f := NewOutlierFilter(DefaultSettings(), nil)
	source := offset(origin, 30, 40)
	sensors := []entity.GeoPoint{
		offset(origin, 0, 100), offset(origin, 90, 100),
		offset(origin, 180, 100), offset(origin, 270, 100),
	}

	t.Run("keeps a consistent set intact", func(t *testing.T) {
		rs := readingsFrom(source, 500, sensors...)
		got, err := f.Filter(rs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != len(rs) {
			t.Fatalf("expected %d readings, got %d", len(rs), len(got))
		}
	})

	t.Run("drops a reading that outruns sound", func(t *testing.T) {
		rs := readingsFrom(source, 500, sensors...)
		rogue := entity.SensorReading{
			SensorID:  "rogue",
			Position:  offset(sensors[1], 0, 20),
			Timestamp: rs[1].Timestamp + 0.8,
		}
		rs = append(rs[:2], append([]entity.SensorReading{rogue}, rs[2:]...)...)

		got, err := f.Filter(rs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 readings, got %d", len(got))
		}
		for i, r := range got {
			if r.SensorID == "rogue" {
				t.Fatalf("rogue reading kept at %d", i)
			}
		}
		// order is preserved
		if got[0].SensorID != "sensor-1" || got[2].SensorID != "sensor-3" {
			t.Errorf("unexpected order: %v, %v", got[0].SensorID, got[2].SensorID)
		}
	})

	t.Run("two readings never reach quorum", func(t *testing.T) {
		rs := readingsFrom(source, 500, sensors[:2]...)
		if _, err := f.Filter(rs); !errors.Is(err, ErrInsufficientQuorum) {
			t.Errorf("expected ErrInsufficientQuorum, got %v", err)
		}
	})

	t.Run("fails when outliers leave less than quorum", func(t *testing.T) {
		rs := readingsFrom(source, 500, sensors[:3]...)
		rs[2].Timestamp += 0.9
		if _, err := f.Filter(rs); !errors.Is(err, ErrInsufficientQuorum) {
			t.Errorf("expected ErrInsufficientQuorum, got %v", err)
		}
	})
}
