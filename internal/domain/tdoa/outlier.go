package tdoa

import (
	"fmt"
	"math"

	"shotlocator/internal/domain/entity"
)

// OutlierFilter drops readings whose arrival time cannot be explained by a
// sound wave: for any pair of sensors the arrival difference is bounded by
// their separation divided by the speed of sound, plus the clock skew allowed
// between nodes.
type OutlierFilter struct {
	quorum       int
	speedOfSound float64
	skew         float64
	distance     DistanceFunc
}

func NewOutlierFilter(s Settings, distance DistanceFunc) *OutlierFilter {
	if distance == nil {
		distance = GeodesicDistance
	}
	return &OutlierFilter{
		quorum:       s.Quorum,
		speedOfSound: s.SpeedOfSound,
		skew:         s.ClockSkew.Seconds(),
		distance:     distance,
	}
}

// Filter returns the consistent subset of readings in their original order.
func (f *OutlierFilter) Filter(readings []entity.SensorReading) ([]entity.SensorReading, error) {
	if len(readings) < f.quorum {
		return nil, fmt.Errorf("%w: %d readings, need %d", ErrInsufficientQuorum, len(readings), f.quorum)
	}

	n := len(readings)
	excess := make([][]float64, n)
	for i := range excess {
		excess[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := f.distance(readings[i].Position, readings[j].Position)
			e := math.Abs(readings[i].Timestamp-readings[j].Timestamp) - d/f.speedOfSound - f.skew
			excess[i][j], excess[j][i] = e, e
		}
	}

	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	remaining := n

	for {
		worst, worstCount, worstExcess := -1, 0, 0.0
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			count, total := 0, 0.0
			for j := 0; j < n; j++ {
				if j == i || !alive[j] || excess[i][j] <= 0 {
					continue
				}
				count++
				total += excess[i][j]
			}
			if count == 0 {
				continue
			}
			// later arrivals lose ties
			if count > worstCount || (count == worstCount && total >= worstExcess) {
				worst, worstCount, worstExcess = i, count, total
			}
		}
		if worst < 0 {
			break
		}
		alive[worst] = false
		remaining--
		if remaining < f.quorum {
			return nil, fmt.Errorf("%w: %d of %d readings consistent, need %d",
				ErrInsufficientQuorum, remaining, n, f.quorum)
		}
	}

	out := make([]entity.SensorReading, 0, remaining)
	for i, r := range readings {
		if alive[i] {
			out = append(out, r)
		}
	}
	return out, nil
}
