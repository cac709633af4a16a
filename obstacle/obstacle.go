// Package obstacle projects perceived and virtual obstacles onto reference
// lines and maps their predicted motion into the station-time plane.
package obstacle

import (
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/refline"
	"github.com/openavp/planning/stgraph"
)

// Obstacle is one obstacle considered by a planning cycle: a perceived
// object with optional predicted trajectory, or a virtual fence injected by
// a traffic rule.
type Obstacle struct {
	ID        string
	Position  r2.Point
	Heading   float64
	Length    float64
	Width     float64
	Velocity  float64
	IsStatic  bool
	IsVirtual bool

	// Trajectory is the highest-probability predicted motion; empty for
	// static and virtual obstacles.
	Trajectory []msgs.PredictionPoint
}

// FromPrediction converts a prediction update into planning obstacles,
// keeping the highest-probability trajectory of each.
func FromPrediction(prediction *msgs.PredictionObstacles) []*Obstacle {
	if prediction == nil {
		return nil
	}
	out := make([]*Obstacle, 0, len(prediction.Obstacles))
	for _, po := range prediction.Obstacles {
		o := &Obstacle{
			ID:       po.ID,
			Position: r2.Point{X: po.Position.X, Y: po.Position.Y},
			Heading:  po.Heading,
			Length:   po.Length,
			Width:    po.Width,
			Velocity: po.Velocity,
			IsStatic: po.IsStatic,
		}
		var best *msgs.PredictionTrajectory
		for i := range po.Trajectories {
			if best == nil || po.Trajectories[i].Probability > best.Probability {
				best = &po.Trajectories[i]
			}
		}
		if best != nil {
			o.Trajectory = best.Points
		}
		out = append(out, o)
	}
	return out
}

// NewVirtualStop returns a virtual zero-length obstacle pinned at arclength
// stopS of the given line, used as a stop fence.
func NewVirtualStop(id string, line *refline.ReferenceLine, stopS float64) *Obstacle {
	rp := line.PointAtS(stopS)
	return &Obstacle{
		ID:        fmt.Sprintf("virtual_%s", id),
		Position:  r2.Point{X: rp.X, Y: rp.Y},
		Heading:   rp.Heading,
		IsStatic:  true,
		IsVirtual: true,
	}
}

// STBoundaryOptions configure the projection of an obstacle into the
// station-time plane.
type STBoundaryOptions struct {
	// PlanningHorizon is the time window covered, in seconds.
	PlanningHorizon float64
	// TimeStep is the sampling step for moving obstacles.
	TimeStep float64
	// Buffer grows the obstacle footprint along the line.
	Buffer float64
	// SHighLimit caps reported station values.
	SHighLimit float64
}

// DefaultSTBoundaryOptions mirror the speed-planning defaults: an 8 second
// horizon sampled at 0.1 s with a 1 m longitudinal buffer.
func DefaultSTBoundaryOptions() STBoundaryOptions {
	return STBoundaryOptions{PlanningHorizon: 8, TimeStep: 0.1, Buffer: 1, SHighLimit: 200}
}

// ComputeSTBoundary maps the obstacle's occupancy along the line into a
// boundary over [0, PlanningHorizon]. Static obstacles occupy a constant
// station band; moving obstacles are sampled along their prediction. The
// result is empty when the obstacle never touches the line.
func (o *Obstacle) ComputeSTBoundary(line *refline.ReferenceLine, opts STBoundaryOptions) *stgraph.Boundary {
	if o.IsStatic || len(o.Trajectory) < 2 {
		return o.staticSTBoundary(line, opts)
	}
	return o.dynamicSTBoundary(line, opts)
}

func (o *Obstacle) staticSTBoundary(line *refline.ReferenceLine, opts STBoundaryOptions) *stgraph.Boundary {
	s, lateral, ok := o.projectOn(line)
	if !ok {
		return stgraph.NewBoundary(nil)
	}
	if !o.IsVirtual && (lateral > o.Width/2+2 || lateral < -(o.Width/2+2)) {
		return stgraph.NewBoundary(nil)
	}
	halfLength := o.Length/2 + opts.Buffer
	lower := []stgraph.STPoint{{S: s - halfLength, T: 0}, {S: s - halfLength, T: opts.PlanningHorizon}}
	upper := []stgraph.STPoint{{S: s + halfLength, T: 0}, {S: s + halfLength, T: opts.PlanningHorizon}}
	b := stgraph.NewBoundaryFromChains(lower, upper)
	b.SetID(o.ID)
	b.SetCharacteristicLength(o.Length)
	b.SetSHighLimit(opts.SHighLimit)
	return b
}

func (o *Obstacle) dynamicSTBoundary(line *refline.ReferenceLine, opts STBoundaryOptions) *stgraph.Boundary {
	var lower, upper []stgraph.STPoint
	halfLength := o.Length/2 + opts.Buffer
	for _, pt := range o.Trajectory {
		if pt.RelativeTime < 0 || pt.RelativeTime > opts.PlanningHorizon {
			continue
		}
		s, lateral, ok := line.XYToSL(r2.Point{X: pt.X, Y: pt.Y})
		if !ok {
			continue
		}
		// skip samples laterally clear of the lane
		if lateral > o.Width/2+2 || lateral < -(o.Width/2+2) {
			continue
		}
		if n := len(lower); n > 0 && pt.RelativeTime <= lower[n-1].T {
			continue
		}
		lower = append(lower, stgraph.STPoint{S: s - halfLength, T: pt.RelativeTime})
		upper = append(upper, stgraph.STPoint{S: s + halfLength, T: pt.RelativeTime})
	}
	b := stgraph.NewBoundaryFromChains(lower, upper)
	b.SetID(o.ID)
	b.SetCharacteristicLength(o.Length)
	b.SetSHighLimit(opts.SHighLimit)
	return b
}

// projectOn returns the obstacle center's arclength on the line.
func (o *Obstacle) projectOn(line *refline.ReferenceLine) (s, lateral float64, ok bool) {
	return line.XYToSL(o.Position)
}
