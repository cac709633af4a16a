package refline

import (
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/vehiclestate"
)

// Provider supplies the per-cycle candidate reference lines derived from the
// route, the map, and the vehicle state. Implementations may run their own
// smoothing thread; the snapshot accessors must be safe for concurrent use.
type Provider interface {
	// UpdateRoutingResponse feeds the latest accepted route. It reports
	// false when the route cannot be used.
	UpdateRoutingResponse(routing *msgs.RoutingResponse) bool
	// UpdateVehicleState feeds the latest fused vehicle state.
	UpdateVehicleState(state vehiclestate.State)
	// ReferenceLines returns the current candidates. An empty result fails
	// frame initialization for the cycle.
	ReferenceLines() ([]*ReferenceLine, error)
	// LastTimeDelay reports how long the most recent candidate generation
	// took, in seconds, for latency accounting.
	LastTimeDelay() float64
}

// WaypointProvider is a Provider backed by fixed waypoint sets, one per
// candidate lane. It serves test mode and replay deployments where the lane
// geometry is known up front.
type WaypointProvider struct {
	mu      sync.Mutex
	lines   []*ReferenceLine
	routing *msgs.RoutingResponse
	state   vehiclestate.State
}

// NewWaypointProvider builds a provider from one waypoint set per lane.
func NewWaypointProvider(lanes map[string][]r2.Point) (*WaypointProvider, error) {
	p := &WaypointProvider{}
	for id, waypoints := range lanes {
		line, err := NewFromWaypoints(id, waypoints)
		if err != nil {
			return nil, errors.Wrapf(err, "lane %q", id)
		}
		p.lines = append(p.lines, line)
	}
	return p, nil
}

// UpdateRoutingResponse stores the route; any non-nil route is accepted. A
// route with segments narrows ReferenceLines to the lanes it names.
func (p *WaypointProvider) UpdateRoutingResponse(routing *msgs.RoutingResponse) bool {
	if routing == nil {
		return false
	}
	p.mu.Lock()
	p.routing = routing
	p.mu.Unlock()
	return true
}

// UpdateVehicleState stores the vehicle state.
func (p *WaypointProvider) UpdateVehicleState(state vehiclestate.State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// ReferenceLines returns the configured lanes the current route names, or
// every configured lane while no route with segments has arrived.
func (p *WaypointProvider) ReferenceLines() ([]*ReferenceLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lines) == 0 {
		return nil, errors.New("waypoint provider has no lanes")
	}
	if p.routing == nil || len(p.routing.Segments) == 0 {
		out := make([]*ReferenceLine, len(p.lines))
		copy(out, p.lines)
		return out, nil
	}
	routed := make(map[string]bool, len(p.routing.Segments))
	for _, seg := range p.routing.Segments {
		routed[seg.LaneID] = true
	}
	var out []*ReferenceLine
	for _, line := range p.lines {
		if routed[line.ID()] {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("route names no configured lane")
	}
	return out, nil
}

// LastTimeDelay is effectively zero for precomputed lanes.
func (p *WaypointProvider) LastTimeDelay() float64 { return 0 }
