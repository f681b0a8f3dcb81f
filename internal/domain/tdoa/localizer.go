package tdoa

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"shotlocator/internal/domain/entity"
)

const (
	maxIterations = 200
	maxDamping    = 1e16
	jacobianStep  = 1e-7  // degrees, about a centimeter
	stepTolerance = 1e-10 // degrees
	costTolerance = 1e-12 // relative
)

// Localizer estimates the source position from sensor positions and arrival
// offsets. The search is a projected Levenberg-Marquardt iteration started at
// the sensor centroid and confined to a box around it.
type Localizer struct {
	speedOfSound float64
	searchRadius float64
	minBaseline  float64
	timeout      time.Duration
	distance     DistanceFunc
}

func NewLocalizer(s Settings, distance DistanceFunc) *Localizer {
	if distance == nil {
		distance = GeodesicDistance
	}
	return &Localizer{
		speedOfSound: s.SpeedOfSound,
		searchRadius: s.SearchRadius,
		minBaseline:  s.MinBaseline,
		timeout:      s.Timeout,
		distance:     distance,
	}
}

// Locate fits a source position. offsets[i] is the arrival time at
// positions[i] relative to the earliest arrival; residuals compare
// consecutive pairs in the given order.
func (l *Localizer) Locate(ctx context.Context, positions []entity.GeoPoint, offsets []float64) (entity.LocalizationResult, error) {
	if len(positions) != len(offsets) {
		return entity.LocalizationResult{}, fmt.Errorf("%d positions but %d offsets", len(positions), len(offsets))
	}
	if len(positions) < 3 {
		return entity.LocalizationResult{}, fmt.Errorf("%w: %d sensors", ErrInsufficientQuorum, len(positions))
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	center := centroid(positions)
	if l.maxBaseline(positions) < l.minBaseline {
		return entity.LocalizationResult{}, fmt.Errorf("%w: degenerate sensor geometry", ErrConvergence)
	}
	lower := []float64{center.Latitude - l.searchRadius, center.Longitude - l.searchRadius}
	upper := []float64{center.Latitude + l.searchRadius, center.Longitude + l.searchRadius}

	// measured range differences, meters
	measured := make([]float64, len(offsets)-1)
	for i := range measured {
		measured[i] = (offsets[i] - offsets[i+1]) * l.speedOfSound
	}
	residuals := func(r, x []float64) {
		p := entity.GeoPoint{Latitude: x[0], Longitude: x[1]}
		prev := l.distance(p, positions[0])
		for i := range measured {
			next := l.distance(p, positions[i+1])
			r[i] = (prev - next) - measured[i]
			prev = next
		}
	}

	m := len(measured)
	x := []float64{center.Latitude, center.Longitude}
	r := make([]float64, m)
	residuals(r, x)
	cost := floats.Dot(r, r)

	jac := mat.NewDense(m, 2, nil)
	jacSettings := &fd.JacobianSettings{Formula: fd.Central, Step: jacobianStep}
	candidate := make([]float64, 2)
	rNew := make([]float64, m)
	damping := 1e-3
	converged := false
	iter := 0

	for ; iter < maxIterations && !converged; iter++ {
		if err := ctx.Err(); err != nil {
			return entity.LocalizationResult{}, fmt.Errorf("%w: %v", ErrConvergence, err)
		}

		fd.Jacobian(jac, residuals, x, jacSettings)
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		if cost == 0 || mat.Norm(&grad, math.Inf(1)) == 0 {
			converged = true
			break
		}

		for {
			a := mat.DenseCopyOf(&jtj)
			for i := 0; i < 2; i++ {
				a.Set(i, i, jtj.At(i, i)*(1+damping)+damping)
			}
			var step mat.VecDense
			if err := step.SolveVec(a, &grad); err != nil {
				damping *= 10
				if damping > maxDamping {
					return entity.LocalizationResult{}, fmt.Errorf("%w: %v", ErrConvergence, err)
				}
				continue
			}

			for i := range x {
				candidate[i] = math.Min(math.Max(x[i]-step.AtVec(i), lower[i]), upper[i])
			}
			residuals(rNew, candidate)
			newCost := floats.Dot(rNew, rNew)
			if math.IsNaN(newCost) || math.IsInf(newCost, 0) {
				return entity.LocalizationResult{}, fmt.Errorf("%w: objective is not finite", ErrConvergence)
			}

			if newCost < cost {
				moved := math.Max(math.Abs(candidate[0]-x[0]), math.Abs(candidate[1]-x[1]))
				converged = moved < stepTolerance || cost-newCost <= costTolerance*cost
				copy(x, candidate)
				copy(r, rNew)
				cost = newCost
				damping = math.Max(damping/10, 1e-12)
				break
			}

			damping *= 10
			if damping > maxDamping {
				// no descent direction left at this point
				converged = true
				break
			}
		}
	}

	if !converged {
		return entity.LocalizationResult{}, fmt.Errorf("%w: %d iterations exhausted, residual %.3gm",
			ErrConvergence, maxIterations, math.Sqrt(cost))
	}
	return entity.LocalizationResult{
		Position:   entity.GeoPoint{Latitude: x[0], Longitude: x[1]},
		Converged:  true,
		Residual:   math.Sqrt(cost/float64(m)) / l.speedOfSound,
		Iterations: iter,
	}, nil
}

func centroid(points []entity.GeoPoint) entity.GeoPoint {
	var c entity.GeoPoint
	for _, p := range points {
		c.Latitude += p.Latitude
		c.Longitude += p.Longitude
	}
	c.Latitude /= float64(len(points))
	c.Longitude /= float64(len(points))
	return c
}

func (l *Localizer) maxBaseline(points []entity.GeoPoint) float64 {
	var best float64
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			best = math.Max(best, l.distance(points[i], points[j]))
		}
	}
	return best
}
