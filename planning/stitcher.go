package planning

import (
	"math"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/spatialmath"
	"github.com/openavp/planning/vehiclestate"
)

// StitcherOptions bound when the previous trajectory may be continued.
type StitcherOptions struct {
	// MaxPositionDeviation is the largest distance, in meters, tolerated
	// between the time-matched previous point and the current position.
	MaxPositionDeviation float64
	// MaxHeadingDeviation is the largest heading difference tolerated, in
	// radians.
	MaxHeadingDeviation float64
	// MaxStitchPoints caps the length of the returned prefix.
	MaxStitchPoints int
}

// DefaultStitcherOptions returns the production thresholds.
func DefaultStitcherOptions() StitcherOptions {
	return StitcherOptions{
		MaxPositionDeviation: 2.5,
		MaxHeadingDeviation:  math.Pi / 6,
		MaxStitchPoints:      20,
	}
}

// Stitcher reconciles the previously published trajectory with the fresh
// vehicle state to pick the next cycle's planning start.
type Stitcher struct {
	opts StitcherOptions
}

// NewStitcher returns a stitcher with the given options.
func NewStitcher(opts StitcherOptions) *Stitcher {
	if opts.MaxStitchPoints <= 0 {
		opts.MaxStitchPoints = 1
	}
	return &Stitcher{opts: opts}
}

// ComputeStitchingTrajectory returns the prefix of the previous trajectory
// the new plan should continue from, ending at the point projected to be
// executing at now + cycleTime. When the previous trajectory is missing,
// stale, too short, or too far from the actual vehicle state, it instead
// returns a single point synthesized from the state and reports a replan.
//
// Returned points are re-timed so that relative time zero is now.
func (s *Stitcher) ComputeStitchingTrajectory(
	state vehiclestate.State,
	now float64,
	cycleTime float64,
	prev *PublishableTrajectory,
) (stitch []msgs.TrajectoryPoint, isReplan bool) {
	if prev == nil || prev.NumPoints() == 0 {
		return reinitFromState(state), true
	}
	if prev.HeaderTime() < now-2*cycleTime {
		return reinitFromState(state), true
	}

	vehRelTime := now - prev.HeaderTime()
	matchedIdx, ok := prev.QueryLowerBoundPoint(vehRelTime)
	if !ok {
		// the whole previous plan is already in the past
		return reinitFromState(state), true
	}
	matched := prev.PointAt(matchedIdx)
	if deviates(matched, state, s.opts) {
		return reinitFromState(state), true
	}

	forwardRelTime := vehRelTime + cycleTime
	forwardIdx, ok := prev.QueryLowerBoundPoint(forwardRelTime)
	if !ok {
		return reinitFromState(state), true
	}

	start := forwardIdx + 1 - s.opts.MaxStitchPoints
	if start < 0 {
		start = 0
	}
	timeShift := prev.HeaderTime() - now
	stitch = make([]msgs.TrajectoryPoint, 0, forwardIdx+1-start)
	for i := start; i <= forwardIdx; i++ {
		p := prev.PointAt(i)
		p.RelativeTime += timeShift
		stitch = append(stitch, p)
	}
	return stitch, false
}

func deviates(p msgs.TrajectoryPoint, state vehiclestate.State, opts StitcherOptions) bool {
	dx := p.PathPoint.X - state.X
	dy := p.PathPoint.Y - state.Y
	if math.Hypot(dx, dy) > opts.MaxPositionDeviation {
		return true
	}
	dTheta := spatialmath.NormalizeAngle(p.PathPoint.Theta - state.Heading)
	return math.Abs(dTheta) > opts.MaxHeadingDeviation
}

func reinitFromState(state vehiclestate.State) []msgs.TrajectoryPoint {
	return []msgs.TrajectoryPoint{{
		PathPoint: msgs.PathPoint{
			X:     state.X,
			Y:     state.Y,
			Theta: state.Heading,
			Kappa: state.Kappa,
		},
		V:            state.LinearVelocity,
		A:            state.LinearAcceleration,
		RelativeTime: 0,
	}}
}

// TransformLastPublishedTrajectory re-expresses every point of the previous
// body-frame trajectory in the new body frame, given the displacement
// (xDiff, yDiff) and rotation thetaDiff of the body between the two cycles.
// Used only in relative-map navigation mode.
func TransformLastPublishedTrajectory(xDiff, yDiff, thetaDiff float64, prev *PublishableTrajectory) {
	if prev == nil {
		return
	}
	cosTheta := math.Cos(thetaDiff)
	sinTheta := -math.Sin(thetaDiff)
	tx := -(cosTheta*xDiff - sinTheta*yDiff)
	ty := -(sinTheta*xDiff + cosTheta*yDiff)
	for i := range prev.points {
		pp := &prev.points[i].PathPoint
		x, y := pp.X, pp.Y
		pp.X = cosTheta*x - sinTheta*y + tx
		pp.Y = sinTheta*x + cosTheta*y + ty
		pp.Theta = spatialmath.NormalizeAngle(pp.Theta - thetaDiff)
	}
}
