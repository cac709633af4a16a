// Package refline provides reference lines: smooth lane-aligned curves
// parameterized by arclength, against which path and speed are planned.
package refline

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/spatialmath"
)

// ReferencePoint is one sample of a reference line.
type ReferencePoint struct {
	X       float64
	Y       float64
	Heading float64
	Kappa   float64
	DKappa  float64
	S       float64
}

// ReferenceLine is an ordered sequence of reference points with
// monotonically non-decreasing arclength.
type ReferenceLine struct {
	id     string
	points []ReferencePoint
}

// NewReferenceLine builds a reference line from pre-computed points. At least
// two points are required and their arclength must be non-decreasing.
func NewReferenceLine(id string, points []ReferencePoint) (*ReferenceLine, error) {
	if len(points) < 2 {
		return nil, errors.Errorf("reference line %q needs at least 2 points, got %d", id, len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].S < points[i-1].S {
			return nil, errors.Errorf("reference line %q arclength decreases at index %d", id, i)
		}
	}
	return &ReferenceLine{id: id, points: points}, nil
}

// NewFromWaypoints builds a reference line through the given waypoints,
// deriving arclength, heading and curvature from the geometry.
func NewFromWaypoints(id string, waypoints []r2.Point) (*ReferenceLine, error) {
	if len(waypoints) < 2 {
		return nil, errors.Errorf("reference line %q needs at least 2 waypoints", id)
	}
	points := make([]ReferencePoint, len(waypoints))
	var s float64
	for i, wp := range waypoints {
		if i > 0 {
			s += wp.Sub(waypoints[i-1]).Norm()
		}
		points[i] = ReferencePoint{X: wp.X, Y: wp.Y, S: s}
	}
	for i := range points {
		var dir r2.Point
		if i == len(points)-1 {
			dir = waypoints[i].Sub(waypoints[i-1])
		} else {
			dir = waypoints[i+1].Sub(waypoints[i])
		}
		points[i].Heading = math.Atan2(dir.Y, dir.X)
	}
	for i := 1; i < len(points); i++ {
		ds := points[i].S - points[i-1].S
		if ds <= 0 {
			continue
		}
		dTheta := spatialmath.NormalizeAngle(points[i].Heading - points[i-1].Heading)
		points[i].Kappa = dTheta / ds
	}
	return NewReferenceLine(id, points)
}

// ID returns the lane identifier the line follows.
func (l *ReferenceLine) ID() string { return l.id }

// Points returns the underlying samples.
func (l *ReferenceLine) Points() []ReferencePoint { return l.points }

// Length returns the total arclength.
func (l *ReferenceLine) Length() float64 {
	return l.points[len(l.points)-1].S - l.points[0].S
}

// PointAtS linearly interpolates the reference point at arclength s, clamped
// to the line's domain.
func (l *ReferenceLine) PointAtS(s float64) ReferencePoint {
	pts := l.points
	if s <= pts[0].S {
		return pts[0]
	}
	if s >= pts[len(pts)-1].S {
		return pts[len(pts)-1]
	}
	// linear scan is fine at the sample counts reference lines carry; the
	// hot queries go through XYToSL instead
	i := 1
	for i < len(pts) && pts[i].S < s {
		i++
	}
	prev, next := pts[i-1], pts[i]
	ds := next.S - prev.S
	if ds <= 0 {
		return prev
	}
	r := (s - prev.S) / ds
	return ReferencePoint{
		X:       prev.X + r*(next.X-prev.X),
		Y:       prev.Y + r*(next.Y-prev.Y),
		Heading: prev.Heading + r*spatialmath.NormalizeAngle(next.Heading-prev.Heading),
		Kappa:   prev.Kappa + r*(next.Kappa-prev.Kappa),
		DKappa:  prev.DKappa + r*(next.DKappa-prev.DKappa),
		S:       s,
	}
}

// XYToSL projects a map-frame point onto the line, returning its arclength
// and signed lateral offset (positive left of the travel direction). It
// reports false when the projection falls beyond either end of the line.
func (l *ReferenceLine) XYToSL(p r2.Point) (s, lateral float64, ok bool) {
	bestDistSq := math.Inf(1)
	found := false
	for i := 1; i < len(l.points); i++ {
		a := r2.Point{X: l.points[i-1].X, Y: l.points[i-1].Y}
		b := r2.Point{X: l.points[i].X, Y: l.points[i].Y}
		ab := b.Sub(a)
		lenSq := ab.Dot(ab)
		if lenSq <= 0 {
			continue
		}
		proj := p.Sub(a).Dot(ab) / lenSq
		if proj < 0 || proj > 1 {
			continue
		}
		closest := a.Add(ab.Mul(proj))
		d := p.Sub(closest)
		distSq := d.Dot(d)
		if distSq < bestDistSq {
			bestDistSq = distSq
			segLen := math.Sqrt(lenSq)
			s = l.points[i-1].S + proj*segLen
			lateral = ab.Cross(p.Sub(a)) / segLen
			found = true
		}
	}
	if !found {
		// end caps: accept the endpoints themselves
		for _, idx := range []int{0, len(l.points) - 1} {
			cand := r2.Point{X: l.points[idx].X, Y: l.points[idx].Y}
			d := p.Sub(cand)
			if distSq := d.Dot(d); distSq < bestDistSq && distSq < 1e-12 {
				bestDistSq = distSq
				s = l.points[idx].S
				lateral = 0
				found = true
			}
		}
	}
	return s, lateral, found
}

// ToPathPoint converts a reference point into a published path point.
func (p ReferencePoint) ToPathPoint() msgs.PathPoint {
	return msgs.PathPoint{X: p.X, Y: p.Y, Theta: p.Heading, Kappa: p.Kappa, DKappa: p.DKappa, S: p.S}
}
