package refline

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/vehiclestate"
)

func TestNewReferenceLineValidation(t *testing.T) {
	_, err := NewReferenceLine("lane", []ReferencePoint{{S: 0}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewReferenceLine("lane", []ReferencePoint{{S: 1}, {S: 0}})
	test.That(t, err, test.ShouldNotBeNil)

	line, err := NewReferenceLine("lane", []ReferencePoint{{S: 0}, {X: 5, S: 5}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line.ID(), test.ShouldEqual, "lane")
	test.That(t, line.Length(), test.ShouldAlmostEqual, 5.0, 1e-9)
}

func TestNewFromWaypoints(t *testing.T) {
	line, err := NewFromWaypoints("lane", []r2.Point{
		{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line.Length(), test.ShouldAlmostEqual, 7.0, 1e-9)

	pts := line.Points()
	test.That(t, pts[0].Heading, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, pts[1].Heading, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, pts[2].Heading, test.ShouldAlmostEqual, math.Pi/2, 1e-9)

	_, err = NewFromWaypoints("lane", []r2.Point{{X: 0, Y: 0}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointAtS(t *testing.T) {
	line, err := NewFromWaypoints("lane", []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	test.That(t, err, test.ShouldBeNil)

	mid := line.PointAtS(4)
	test.That(t, mid.X, test.ShouldAlmostEqual, 4.0, 1e-9)
	test.That(t, mid.S, test.ShouldAlmostEqual, 4.0, 1e-9)

	// clamped at both ends
	test.That(t, line.PointAtS(-1).X, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, line.PointAtS(99).X, test.ShouldAlmostEqual, 10.0, 1e-9)
}

func TestXYToSL(t *testing.T) {
	line, err := NewFromWaypoints("lane", []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	test.That(t, err, test.ShouldBeNil)

	s, lateral, ok := line.XYToSL(r2.Point{X: 3, Y: 2})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s, test.ShouldAlmostEqual, 3.0, 1e-9)
	test.That(t, lateral, test.ShouldAlmostEqual, 2.0, 1e-9)

	// right of the travel direction is negative
	_, lateral, ok = line.XYToSL(r2.Point{X: 7, Y: -1.5})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lateral, test.ShouldAlmostEqual, -1.5, 1e-9)

	// beyond the end does not project
	_, _, ok = line.XYToSL(r2.Point{X: 15, Y: 0})
	test.That(t, ok, test.ShouldBeFalse)

	// the exact endpoint does
	s, _, ok = line.XYToSL(r2.Point{X: 10, Y: 0})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s, test.ShouldAlmostEqual, 10.0, 1e-9)
}

func TestWaypointProvider(t *testing.T) {
	provider, err := NewWaypointProvider(map[string][]r2.Point{
		"lane_a": {{X: 0, Y: 0}, {X: 10, Y: 0}},
		"lane_b": {{X: 0, Y: 3}, {X: 10, Y: 3}},
	})
	test.That(t, err, test.ShouldBeNil)

	lines, err := provider.ReferenceLines()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(lines), test.ShouldEqual, 2)

	test.That(t, provider.UpdateRoutingResponse(nil), test.ShouldBeFalse)
	// a segment-less route leaves every lane a candidate
	test.That(t, provider.UpdateRoutingResponse(&msgs.RoutingResponse{}), test.ShouldBeTrue)
	lines, err = provider.ReferenceLines()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(lines), test.ShouldEqual, 2)

	// a routed lane narrows the candidates to it
	ok := provider.UpdateRoutingResponse(&msgs.RoutingResponse{
		Segments: []msgs.LaneSegment{{LaneID: "lane_b", StartS: 0, EndS: 10}},
	})
	test.That(t, ok, test.ShouldBeTrue)
	lines, err = provider.ReferenceLines()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(lines), test.ShouldEqual, 1)
	test.That(t, lines[0].ID(), test.ShouldEqual, "lane_b")

	// a route over unknown lanes yields no candidates
	provider.UpdateRoutingResponse(&msgs.RoutingResponse{
		Segments: []msgs.LaneSegment{{LaneID: "lane_z", StartS: 0, EndS: 10}},
	})
	_, err = provider.ReferenceLines()
	test.That(t, err, test.ShouldNotBeNil)

	provider.UpdateVehicleState(vehiclestate.State{X: 1})
	test.That(t, provider.LastTimeDelay(), test.ShouldEqual, 0.0)

	_, err = NewWaypointProvider(map[string][]r2.Point{"bad": {{X: 0, Y: 0}}})
	test.That(t, err, test.ShouldNotBeNil)
}
