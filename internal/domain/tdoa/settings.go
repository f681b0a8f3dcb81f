// Package tdoa turns a set of sensor readings into a source position: it checks
// the readings, drops the ones that break causality and fits the source with
// time differences of arrival.
package tdoa

import (
	"time"

	"shotlocator/internal/domain/entity"
	"shotlocator/pkg/geodesy"
)

const (
	DefaultQuorum        = 3
	DefaultTimeTolerance = time.Second
	DefaultSpeedOfSound  = 343.2 // m/s at 20°C
	DefaultSearchRadius  = 0.1   // degrees around the sensor centroid
	DefaultClockSkew     = 50 * time.Millisecond
	DefaultMinBaseline   = 1.0 // meters
)

type Settings struct {
	Quorum        int
	TimeTolerance time.Duration
	SpeedOfSound  float64
	SearchRadius  float64
	ClockSkew     time.Duration
	MinBaseline   float64
	Timeout       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Quorum:        DefaultQuorum,
		TimeTolerance: DefaultTimeTolerance,
		SpeedOfSound:  DefaultSpeedOfSound,
		SearchRadius:  DefaultSearchRadius,
		ClockSkew:     DefaultClockSkew,
		MinBaseline:   DefaultMinBaseline,
	}
}

// DistanceFunc measures the surface distance in meters between two points.
type DistanceFunc func(a, b entity.GeoPoint) float64

func GeodesicDistance(a, b entity.GeoPoint) float64 {
	return geodesy.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
