package msgs

// LaneWaypoint is a waypoint annotation on a routed lane.
type LaneWaypoint struct {
	LaneID string  `json:"lane_id"`
	S      float64 `json:"s"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// LaneSegment is a routed stretch of a single lane.
type LaneSegment struct {
	LaneID string  `json:"lane_id"`
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
}

// RoutingResponse is a route from the current pose to a goal, expressed as an
// ordered sequence of lane segments with waypoint annotations.
type RoutingResponse struct {
	Header    *Header        `json:"header,omitempty"`
	Segments  []LaneSegment  `json:"segments"`
	Waypoints []LaneWaypoint `json:"waypoints,omitempty"`
}

// SameRouteAs reports whether two responses describe the same route. Headers
// are ignored; only the routed lane segments matter.
func (r *RoutingResponse) SameRouteAs(other *RoutingResponse) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.Segments) != len(other.Segments) {
		return false
	}
	for i, seg := range r.Segments {
		if seg != other.Segments[i] {
			return false
		}
	}
	return true
}

// Length returns the total routed distance.
func (r *RoutingResponse) Length() float64 {
	var total float64
	for _, seg := range r.Segments {
		total += seg.EndS - seg.StartS
	}
	return total
}
