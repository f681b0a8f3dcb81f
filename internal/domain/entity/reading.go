package entity

import (
	"errors"
	"fmt"
	"math"
)

var ErrMalformedReading = errors.New("malformed reading")

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorReading is a single detection reported by a sensor node. Timestamp is
// in seconds from the node's synchronized clock.
type SensorReading struct {
	SensorID   string   `json:"sensor_id"`
	Position   GeoPoint `json:"position"`
	Timestamp  float64  `json:"timestamp"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Check rejects readings that are missing required fields. Range checks on the
// coordinates are left to the validator.
func (r SensorReading) Check() error {
	if r.SensorID == "" {
		return fmt.Errorf("%w: sensor_id is empty", ErrMalformedReading)
	}
	if math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0) || r.Timestamp <= 0 {
		return fmt.Errorf("%w: invalid timestamp %v", ErrMalformedReading, r.Timestamp)
	}
	if math.IsNaN(r.Position.Latitude) || math.IsNaN(r.Position.Longitude) {
		return fmt.Errorf("%w: position is not a number", ErrMalformedReading)
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 1) {
		return fmt.Errorf("%w: confidence %v out of [0,1]", ErrMalformedReading, *r.Confidence)
	}
	return nil
}

func Positions(readings []SensorReading) []GeoPoint {
	points := make([]GeoPoint, len(readings))
	for i, r := range readings {
		points[i] = r.Position
	}
	return points
}

// TimeOffsets returns timestamp[i] - min(timestamp) in the order of readings.
func TimeOffsets(readings []SensorReading) []float64 {
	if len(readings) == 0 {
		return nil
	}
	base := readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp < base {
			base = r.Timestamp
		}
	}
	offsets := make([]float64, len(readings))
	for i, r := range readings {
		offsets[i] = r.Timestamp - base
	}
	return offsets
}
