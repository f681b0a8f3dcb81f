package tdoa

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"shotlocator/internal/domain/entity"
)

func locate(t *testing.T, l *Localizer, rs []entity.SensorReading) (entity.LocalizationResult, error) {
	t.Helper()
	return l.Locate(context.Background(), entity.Positions(rs), entity.TimeOffsets(rs))
}

func TestLocalizer(t *testing.T) {
	l := NewLocalizer(DefaultSettings(), nil)

	t.Run("source at the centroid of four sensors", func(t *testing.T) {
		rs := readingsFrom(origin, 1700000000,
			offset(origin, 0, 100), offset(origin, 90, 100),
			offset(origin, 180, 100), offset(origin, 270, 100))

		res, err := locate(t, l, rs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Converged {
			t.Fatal("expected convergence")
		}
		if d := GeodesicDistance(res.Position, origin); d > 2 {
			t.Errorf("estimate is %.3fm from the source", d)
		}
	})

	t.Run("off-center source", func(t *testing.T) {
		source := offset(origin, 50, 35)
		rs := readingsFrom(source, 1700000000,
			offset(origin, 10, 120), offset(origin, 100, 90),
			offset(origin, 200, 140), offset(origin, 290, 110))

		res, err := locate(t, l, rs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d := GeodesicDistance(res.Position, source); d > 2 {
			t.Errorf("estimate is %.3fm from the source", d)
		}
		if res.Residual > 1e-4 {
			t.Errorf("expected a near zero residual, got %g", res.Residual)
		}
	})

	t.Run("equidistant sensors placed asymmetrically", func(t *testing.T) {
		source := offset(origin, 135, 20)
		rs := readingsFrom(source, 1700000000,
			offset(source, 0, 150), offset(source, 80, 150),
			offset(source, 170, 150), offset(source, 250, 150))
		for i := range rs {
			rs[i].Timestamp = 1700000000.5
		}

		res, err := locate(t, l, rs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d := GeodesicDistance(res.Position, source); d > 5 {
			t.Errorf("estimate is %.3fm from the source", d)
		}
		if res.Residual > 1e-4 {
			t.Errorf("expected a near zero residual, got %g", res.Residual)
		}
	})

	t.Run("sensors on one spot", func(t *testing.T) {
		positions := []entity.GeoPoint{origin, origin, origin}
		_, err := l.Locate(context.Background(), positions, []float64{0, 0, 0})
		if !errors.Is(err, ErrConvergence) {
			t.Errorf("expected ErrConvergence, got %v", err)
		}
	})

	t.Run("expired deadline counts as non-convergence", func(t *testing.T) {
		rs := readingsFrom(origin, 1700000000,
			offset(origin, 0, 100), offset(origin, 120, 100), offset(origin, 240, 100))
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := l.Locate(ctx, entity.Positions(rs), entity.TimeOffsets(rs))
		if !errors.Is(err, ErrConvergence) {
			t.Errorf("expected ErrConvergence, got %v", err)
		}
	})

	t.Run("mismatched inputs", func(t *testing.T) {
		_, err := l.Locate(context.Background(), []entity.GeoPoint{origin}, []float64{0, 1})
		if err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("estimate stays inside the search box", func(t *testing.T) {
		rs := readingsFrom(origin, 1700000000,
			offset(origin, 0, 100), offset(origin, 120, 100), offset(origin, 240, 100))
		// offsets no real source within the box could produce
		offsets := []float64{0, 0.9, 0.45}
		res, err := l.Locate(context.Background(), entity.Positions(rs), offsets)
		if err != nil {
			return
		}
		c := centroid(entity.Positions(rs))
		if math.Abs(res.Position.Latitude-c.Latitude) > DefaultSearchRadius+1e-12 ||
			math.Abs(res.Position.Longitude-c.Longitude) > DefaultSearchRadius+1e-12 {
			t.Errorf("estimate %+v left the search box around %+v", res.Position, c)
		}
	})
}
