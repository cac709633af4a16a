// Package stgraph models dynamic-obstacle occupancy along a reference line as
// polygons in the (station, time) plane and answers the range queries speed
// planning needs.
package stgraph

import "fmt"

// STPoint is a point in the station-time plane. T is a time offset from the
// planning start, S an arclength along the reference line.
type STPoint struct {
	S float64
	T float64
}

func (p STPoint) String() string {
	return fmt.Sprintf("(s=%.6f, t=%.6f)", p.S, p.T)
}

// PointPair is one vertical segment of a boundary: lower and upper station
// bounds sampled at (nearly) the same time.
type PointPair struct {
	Lower STPoint
	Upper STPoint
}
