package public

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/planner"
	"github.com/openavp/planning/stgraph"
)

// SpeedOptimizer produces the speed profile for one reference line given
// the station-time boundaries attached to it.
type SpeedOptimizer interface {
	Name() string
	Process(cfg planner.Config, start msgs.TrajectoryPoint, info *frame.ReferenceLineInfo) error
}

// stGraphSpeedOptimizer integrates a forward speed profile bounded by the
// cruise speed, the acceleration limits, and the free station range the
// boundaries leave at each time step. Blocking boundaries are honored by
// keeping the profile on a braking envelope that comes to rest before the
// nearest blocked station.
type stGraphSpeedOptimizer struct{}

func (o *stGraphSpeedOptimizer) Name() string { return "st_graph_speed" }

func (o *stGraphSpeedOptimizer) Process(cfg planner.Config, start msgs.TrajectoryPoint, info *frame.ReferenceLineInfo) error {
	dt := cfg.TrajectoryTimeStep
	if dt <= 0 {
		return errors.New("non-positive trajectory time step")
	}
	// boundaries carry line station; the profile integrates from the start
	// point, so the stop distance is measured from its projection
	startS, _, ok := info.ReferenceLine().XYToSL(r2.Point{X: start.PathPoint.X, Y: start.PathPoint.Y})
	if !ok {
		return errors.New("planning start point does not project onto the line")
	}
	stopS := nearestBlockedStation(info.STBoundaries(), cfg.PlanningHorizonSec, dt, startS)

	v := math.Max(start.V, 0)
	s := 0.0
	n := int(math.Round(cfg.PlanningHorizonSec/dt)) + 1
	points := make([]frame.SpeedPoint, 0, n)
	points = append(points, frame.SpeedPoint{S: s, T: 0, V: v})

	for i := 1; i < n; i++ {
		t := float64(i) * dt
		target := math.Min(v+cfg.MaxAcceleration*dt, cfg.CruiseSpeedMPS)
		if stopS < math.Inf(1) {
			// remaining distance after this step's travel keeps the
			// profile inside the braking envelope
			remaining := stopS - s - v*dt
			if remaining < 0 {
				remaining = 0
			}
			envelope := math.Sqrt(2 * cfg.MaxDeceleration * remaining)
			if target > envelope {
				target = envelope
			}
			if floor := v - cfg.MaxDeceleration*dt; target < floor {
				target = floor
			}
		}
		if target < 0 {
			target = 0
		}
		a := (target - v) / dt
		s += (v + target) / 2 * dt
		v = target
		points = append(points, frame.SpeedPoint{S: s, T: t, V: v, A: a})
	}

	info.SpeedData().Points = points
	return nil
}

// nearestBlockedStation returns the lowest distance ahead of startS any
// blocking boundary caps the vehicle to anywhere in the horizon, or +Inf
// when the lane ahead is free. Boundaries fully behind the start and keep
// clear boundaries do not block.
func nearestBlockedStation(boundaries []*stgraph.Boundary, horizon, dt, startS float64) float64 {
	stopS := math.Inf(1)
	for _, b := range boundaries {
		switch b.Type() {
		case stgraph.Stop, stgraph.Yield, stgraph.Follow:
		default:
			continue
		}
		for t := 0.0; t <= horizon; t += dt {
			sUpper, _, ok := b.UnblockSRange(t)
			if ok && sUpper > startS && sUpper-startS < stopS {
				stopS = sUpper - startS
			}
		}
	}
	return stopS
}
