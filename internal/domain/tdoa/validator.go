package tdoa

import (
	"fmt"
	"time"

	"shotlocator/internal/domain/entity"
)

type Validator struct {
	maxSpread time.Duration
}

func NewValidator(maxSpread time.Duration) *Validator {
	return &Validator{maxSpread: maxSpread}
}

// Validate checks coordinate bounds and that all timestamps fall within the
// allowed spread. The readings are not modified.
func (v *Validator) Validate(readings []entity.SensorReading) error {
	for _, r := range readings {
		lat, lon := r.Position.Latitude, r.Position.Longitude
		if !(lat >= -90 && lat <= 90) || !(lon >= -180 && lon <= 180) {
			return fmt.Errorf("%w: sensor %s at (%v, %v)", ErrInvalidCoordinate, r.SensorID, lat, lon)
		}
	}
	if len(readings) == 0 {
		return nil
	}

	lo, hi := readings[0].Timestamp, readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp < lo {
			lo = r.Timestamp
		}
		if r.Timestamp > hi {
			hi = r.Timestamp
		}
	}
	if spread := hi - lo; spread > v.maxSpread.Seconds() {
		return fmt.Errorf("%w: %.3fs > %v", ErrTimeSpreadExceeded, spread, v.maxSpread)
	}
	return nil
}
