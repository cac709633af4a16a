// Package planning drives the periodic planning cycle: it fuses inputs,
// stitches against the previous plan, builds the per-cycle frame, runs the
// configured planner, and publishes the selected trajectory.
package planning

import (
	"sort"

	"github.com/openavp/planning/msgs"
)

// PublishableTrajectory is a trajectory anchored to an absolute header
// timestamp, kept across cycles for stitching and fallback.
type PublishableTrajectory struct {
	headerTime float64
	points     []msgs.TrajectoryPoint
}

// NewPublishableTrajectory anchors a point sequence at the given header
// time.
func NewPublishableTrajectory(headerTime float64, points []msgs.TrajectoryPoint) *PublishableTrajectory {
	return &PublishableTrajectory{headerTime: headerTime, points: points}
}

// HeaderTime returns the absolute header timestamp in epoch seconds.
func (t *PublishableTrajectory) HeaderTime() float64 { return t.headerTime }

// NumPoints returns the number of points.
func (t *PublishableTrajectory) NumPoints() int { return len(t.points) }

// Points returns the underlying points.
func (t *PublishableTrajectory) Points() []msgs.TrajectoryPoint { return t.points }

// PointAt returns the i-th point; it panics when out of range, matching
// slice semantics.
func (t *PublishableTrajectory) PointAt(i int) msgs.TrajectoryPoint { return t.points[i] }

// PrependPoints inserts points before the existing sequence. Used to glue
// the stitch prefix onto a freshly planned trajectory.
func (t *PublishableTrajectory) PrependPoints(points []msgs.TrajectoryPoint) {
	if len(points) == 0 {
		return
	}
	merged := make([]msgs.TrajectoryPoint, 0, len(points)+len(t.points))
	merged = append(merged, points...)
	merged = append(merged, t.points...)
	t.points = merged
}

// QueryLowerBoundPoint returns the index of the first point whose relative
// time is not less than relTime, and whether such a point exists.
func (t *PublishableTrajectory) QueryLowerBoundPoint(relTime float64) (int, bool) {
	idx := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].RelativeTime >= relTime
	})
	return idx, idx < len(t.points)
}

// PopulateTrajectory copies the points into a message being published.
func (t *PublishableTrajectory) PopulateTrajectory(out *msgs.ADCTrajectory) {
	out.TrajectoryPoints = append([]msgs.TrajectoryPoint(nil), t.points...)
}
