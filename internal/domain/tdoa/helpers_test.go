package tdoa

import (
	"fmt"

	"shotlocator/internal/domain/entity"
	"shotlocator/pkg/geodesy"
)

var origin = entity.GeoPoint{Latitude: 41.015137, Longitude: 28.979530}

func offset(p entity.GeoPoint, bearing, dist float64) entity.GeoPoint {
	lat, lon := geodesy.Destination(p.Latitude, p.Longitude, bearing, dist)
	return entity.GeoPoint{Latitude: lat, Longitude: lon}
}

// readingsFrom simulates a shot at source heard by sensors at the given
// positions, with the shot fired at t0.
func readingsFrom(source entity.GeoPoint, t0 float64, sensors ...entity.GeoPoint) []entity.SensorReading {
	out := make([]entity.SensorReading, len(sensors))
	for i, p := range sensors {
		out[i] = entity.SensorReading{
			SensorID:  fmt.Sprintf("sensor-%d", i+1),
			Position:  p,
			Timestamp: t0 + GeodesicDistance(source, p)/DefaultSpeedOfSound,
		}
	}
	return out
}
