package frame

import (
	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/obstacle"
	"github.com/openavp/planning/refline"
	"github.com/openavp/planning/spatialmath"
	"github.com/openavp/planning/stgraph"
)

// ReferenceLineInfo is the planning state accumulated on one candidate
// reference line over a cycle: decisions, ST boundaries, path and speed
// data, cost, and the combined trajectory. It is owned by its Frame and
// lives only for the cycle.
type ReferenceLineInfo struct {
	line *refline.ReferenceLine

	cost     float64
	drivable bool

	pathData  PathData
	speedData SpeedData

	obstacles    []*obstacle.Obstacle
	stBoundaries []*stgraph.Boundary

	objectDecisions []msgs.ObjectDecision
	rightOfWay      msgs.RightOfWayStatus

	trajectory []msgs.TrajectoryPoint
	latency    msgs.LatencyStats
}

func newReferenceLineInfo(line *refline.ReferenceLine, obstacles []*obstacle.Obstacle) *ReferenceLineInfo {
	return &ReferenceLineInfo{line: line, drivable: true, obstacles: obstacles}
}

// ReferenceLine returns the underlying geometry.
func (r *ReferenceLineInfo) ReferenceLine() *refline.ReferenceLine { return r.line }

// Obstacles returns the obstacles decorating this line.
func (r *ReferenceLineInfo) Obstacles() []*obstacle.Obstacle { return r.obstacles }

// AddObstacle attaches an extra (typically virtual) obstacle to this line.
func (r *ReferenceLineInfo) AddObstacle(o *obstacle.Obstacle) {
	r.obstacles = append(r.obstacles, o)
}

// IsDrivable reports whether the line is still a valid candidate.
func (r *ReferenceLineInfo) IsDrivable() bool { return r.drivable }

// SetDrivable marks the line drivable or not.
func (r *ReferenceLineInfo) SetDrivable(drivable bool) { r.drivable = drivable }

// Cost returns the accumulated planning cost.
func (r *ReferenceLineInfo) Cost() float64 { return r.cost }

// AddCost accumulates planning cost.
func (r *ReferenceLineInfo) AddCost(c float64) { r.cost += c }

// SetCost overwrites the planning cost.
func (r *ReferenceLineInfo) SetCost(c float64) { r.cost = c }

// PathData returns the mutable spatial plan.
func (r *ReferenceLineInfo) PathData() *PathData { return &r.pathData }

// SpeedData returns the mutable speed profile.
func (r *ReferenceLineInfo) SpeedData() *SpeedData { return &r.speedData }

// AddSTBoundary attaches one obstacle's boundary.
func (r *ReferenceLineInfo) AddSTBoundary(b *stgraph.Boundary) {
	if b == nil || b.IsEmpty() {
		return
	}
	r.stBoundaries = append(r.stBoundaries, b)
}

// STBoundaries returns the boundaries attached so far.
func (r *ReferenceLineInfo) STBoundaries() []*stgraph.Boundary { return r.stBoundaries }

// AddObjectDecision records a decision against one obstacle.
func (r *ReferenceLineInfo) AddObjectDecision(d msgs.ObjectDecision) {
	r.objectDecisions = append(r.objectDecisions, d)
}

// ObjectDecisions returns the decisions recorded so far.
func (r *ReferenceLineInfo) ObjectDecisions() []msgs.ObjectDecision { return r.objectDecisions }

// SetRightOfWay sets the right-of-way status the decider concluded.
func (r *ReferenceLineInfo) SetRightOfWay(s msgs.RightOfWayStatus) { r.rightOfWay = s }

// RightOfWay returns the right-of-way status.
func (r *ReferenceLineInfo) RightOfWay() msgs.RightOfWayStatus { return r.rightOfWay }

// LatencyStats returns the mutable per-line latency record.
func (r *ReferenceLineInfo) LatencyStats() *msgs.LatencyStats { return &r.latency }

// SetTrajectory installs a finished trajectory directly, bypassing the
// path/speed combination. Replay planners use this.
func (r *ReferenceLineInfo) SetTrajectory(points []msgs.TrajectoryPoint) {
	r.trajectory = points
}

// Trajectory returns the line's finished trajectory.
func (r *ReferenceLineInfo) Trajectory() []msgs.TrajectoryPoint { return r.trajectory }

// CombinePathAndSpeed merges path data and speed data into the line's
// trajectory: for each speed sample the matching path point is interpolated
// at the sample's station.
func (r *ReferenceLineInfo) CombinePathAndSpeed(relativeTimeOffset float64) error {
	if r.pathData.IsEmpty() {
		return errors.New("path data is empty")
	}
	if r.speedData.IsEmpty() {
		return errors.New("speed data is empty")
	}
	combined := make([]msgs.TrajectoryPoint, 0, len(r.speedData.Points))
	for _, sp := range r.speedData.Points {
		pp, ok := evaluatePathByS(r.pathData.Points, sp.S)
		if !ok {
			break
		}
		combined = append(combined, msgs.TrajectoryPoint{
			PathPoint:    pp,
			V:            sp.V,
			A:            sp.A,
			RelativeTime: relativeTimeOffset + sp.T,
		})
	}
	if len(combined) == 0 {
		return errors.New("path and speed data do not overlap")
	}
	r.trajectory = combined
	return nil
}

func evaluatePathByS(points []msgs.PathPoint, s float64) (msgs.PathPoint, bool) {
	if len(points) == 0 {
		return msgs.PathPoint{}, false
	}
	if s <= points[0].S {
		return points[0], true
	}
	last := points[len(points)-1]
	if s > last.S+1e-6 {
		return msgs.PathPoint{}, false
	}
	if s >= last.S {
		return last, true
	}
	i := 1
	for i < len(points) && points[i].S < s {
		i++
	}
	prev, next := points[i-1], points[i]
	ds := next.S - prev.S
	if ds <= 0 {
		return prev, true
	}
	ratio := (s - prev.S) / ds
	return msgs.PathPoint{
		X:      prev.X + ratio*(next.X-prev.X),
		Y:      prev.Y + ratio*(next.Y-prev.Y),
		Theta:  prev.Theta + ratio*spatialmath.NormalizeAngle(next.Theta-prev.Theta),
		Kappa:  prev.Kappa + ratio*(next.Kappa-prev.Kappa),
		DKappa: prev.DKappa + ratio*(next.DKappa-prev.DKappa),
		S:      s,
	}, true
}

// ExportDecision fills the published decision block from the line's state.
func (r *ReferenceLineInfo) ExportDecision(decision *msgs.Decision) {
	decision.ObjectDecisions = append([]msgs.ObjectDecision(nil), r.objectDecisions...)
	stop := false
	for _, d := range r.objectDecisions {
		if d.Type == msgs.ObjectStop {
			stop = true
			break
		}
	}
	if stop {
		decision.Main = msgs.MainDecision{Stop: true}
	} else {
		decision.Main = msgs.MainDecision{Cruise: true}
	}
}
