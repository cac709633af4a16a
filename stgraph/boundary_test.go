package stgraph

import (
	"testing"

	"go.viam.com/test"
)

func pair(t, lowerS, upperS float64) PointPair {
	return PointPair{Lower: STPoint{S: lowerS, T: t}, Upper: STPoint{S: upperS, T: t}}
}

// rampBoundary covers t in [0, 4] with lower s = t, upper s = t + 2. The
// chains are non-collinear enough that no vertex is reduced away.
func rampBoundary() *Boundary {
	return NewBoundary([]PointPair{
		pair(0, 0, 2),
		pair(1, 1, 3.5),
		pair(2, 2, 4),
		pair(3, 3, 6.5),
		pair(4, 4, 6),
	})
}

func TestNewBoundaryInvariants(t *testing.T) {
	b := rampBoundary()
	test.That(t, b.IsEmpty(), test.ShouldBeFalse)
	test.That(t, b.MinT(), test.ShouldEqual, 0.0)
	test.That(t, b.MaxT(), test.ShouldEqual, 4.0)
	test.That(t, b.MinS(), test.ShouldEqual, 0.0)
	test.That(t, b.MaxS(), test.ShouldEqual, 6.5)
	// closed polygon: lower chain forward plus upper chain reversed
	test.That(t, b.Polygon(), test.ShouldHaveLength, 2*len(b.lowerPoints))
	for i := 1; i < len(b.lowerPoints); i++ {
		test.That(t, b.lowerPoints[i].T, test.ShouldBeGreaterThan, b.lowerPoints[i-1].T)
		test.That(t, b.upperPoints[i].S, test.ShouldBeGreaterThanOrEqualTo, b.lowerPoints[i].S)
	}
}

func TestNewBoundaryRejectsInvalidInput(t *testing.T) {
	// single pair
	b := NewBoundary([]PointPair{pair(0, 0, 1)})
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)

	// two pairs at the same time value do not form a polygon
	b = NewBoundary([]PointPair{pair(1, 1, 2), pair(1, 2, 3)})
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)
	test.That(t, b.IsPointInBoundary(STPoint{S: 1.5, T: 1}), test.ShouldBeFalse)

	// decreasing time
	b = NewBoundary([]PointPair{pair(2, 1, 2), pair(1, 2, 3)})
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)

	// upper below lower
	b = NewBoundary([]PointPair{pair(0, 2, 1), pair(1, 2, 3)})
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)

	// misaligned pair times
	b = NewBoundary([]PointPair{
		{Lower: STPoint{S: 0, T: 0}, Upper: STPoint{S: 1, T: 1e-3}},
		pair(1, 0, 1),
	})
	test.That(t, b.IsEmpty(), test.ShouldBeTrue)
}

func TestRemoveRedundantPoints(t *testing.T) {
	// the pair at t=2 lies on the chords of its neighbors and is dropped
	b := NewBoundary([]PointPair{
		pair(1, 1, 2),
		pair(2, 2, 3),
		pair(3, 3, 4),
		pair(4, 4, 7),
		pair(5, 5, 6),
	})
	test.That(t, b.lowerPoints, test.ShouldHaveLength, 4)
	test.That(t, b.lowerPoints[0].T, test.ShouldEqual, 1.0)
	test.That(t, b.lowerPoints[1].T, test.ShouldEqual, 3.0)
	test.That(t, b.lowerPoints[2].T, test.ShouldEqual, 4.0)
	test.That(t, b.lowerPoints[3].T, test.ShouldEqual, 5.0)
	test.That(t, b.MinT(), test.ShouldEqual, 1.0)
	test.That(t, b.MaxT(), test.ShouldEqual, 5.0)
}

func TestIsPointInBoundary(t *testing.T) {
	b := rampBoundary()
	// strictly inside
	test.That(t, b.IsPointInBoundary(STPoint{S: 2.5, T: 1.5}), test.ShouldBeTrue)
	test.That(t, b.IsPointInBoundary(STPoint{S: 3.0, T: 2.5}), test.ShouldBeTrue)
	// outside in s
	test.That(t, b.IsPointInBoundary(STPoint{S: 8, T: 1.5}), test.ShouldBeFalse)
	test.That(t, b.IsPointInBoundary(STPoint{S: 0.2, T: 1.5}), test.ShouldBeFalse)
	// outside in t, including the open endpoints
	test.That(t, b.IsPointInBoundary(STPoint{S: 1, T: 0}), test.ShouldBeFalse)
	test.That(t, b.IsPointInBoundary(STPoint{S: 4.5, T: 4}), test.ShouldBeFalse)
	test.That(t, b.IsPointInBoundary(STPoint{S: 1, T: -1}), test.ShouldBeFalse)
	test.That(t, b.IsPointInBoundary(STPoint{S: 1, T: 9}), test.ShouldBeFalse)
}

func TestBoundarySRange(t *testing.T) {
	b := rampBoundary()

	upper, lower, ok := b.BoundarySRange(1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldAlmostEqual, 1.0)
	test.That(t, upper, test.ShouldAlmostEqual, 3.5)

	// linear between vertices
	upper, lower, ok = b.BoundarySRange(1.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldAlmostEqual, 1.5)
	test.That(t, upper, test.ShouldAlmostEqual, 3.75)

	// endpoint: t equal to the last sample must not divide by zero
	upper, lower, ok = b.BoundarySRange(4)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldAlmostEqual, 4.0)
	test.That(t, upper, test.ShouldAlmostEqual, 6.0)

	_, _, ok = b.BoundarySRange(4.5)
	test.That(t, ok, test.ShouldBeFalse)
	_, _, ok = b.BoundarySRange(-0.5)
	test.That(t, ok, test.ShouldBeFalse)

	// results stay within [minS, maxS] intersected with [0, s-high limit]
	for _, tt := range []float64{0, 0.3, 1.7, 2.9, 3.3, 4} {
		upper, lower, ok = b.BoundarySRange(tt)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, lower, test.ShouldBeGreaterThanOrEqualTo, 0.0)
		test.That(t, upper, test.ShouldBeLessThanOrEqualTo, b.MaxS())
		test.That(t, upper, test.ShouldBeGreaterThanOrEqualTo, lower)
	}
}

func TestBoundarySRangeClipping(t *testing.T) {
	b := NewBoundary([]PointPair{pair(0, -5, 500), pair(1, -5, 500)})
	upper, lower, ok := b.BoundarySRange(0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldEqual, 0.0)
	test.That(t, upper, test.ShouldEqual, 200.0)

	b.SetSHighLimit(100)
	upper, _, _ = b.BoundarySRange(0.5)
	test.That(t, upper, test.ShouldEqual, 100.0)
}

func TestUnblockSRange(t *testing.T) {
	b := rampBoundary()

	// unknown type fails inside the window
	_, _, ok := b.UnblockSRange(1)
	test.That(t, ok, test.ShouldBeFalse)

	// blocking types free the range below the lower bound
	for _, bt := range []BoundaryType{Stop, Yield, Follow} {
		b.SetType(bt)
		upper, lower, ok := b.UnblockSRange(1.5)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, lower, test.ShouldEqual, 0.0)
		test.That(t, upper, test.ShouldAlmostEqual, 1.5)
	}

	// overtake frees the range above the upper bound
	b.SetType(Overtake)
	upper, lower, ok := b.UnblockSRange(1.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldAlmostEqual, 3.75)
	test.That(t, upper, test.ShouldEqual, 200.0)

	// outside the window the full range is free regardless of type
	upper, lower, ok = b.UnblockSRange(10)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lower, test.ShouldEqual, 0.0)
	test.That(t, upper, test.ShouldEqual, 200.0)
}

func TestExpandByS(t *testing.T) {
	b := rampBoundary()
	expanded := b.ExpandByS(0.5)
	test.That(t, expanded.IsEmpty(), test.ShouldBeFalse)
	test.That(t, expanded.MinS(), test.ShouldAlmostEqual, b.MinS()-0.5)
	test.That(t, expanded.MaxS(), test.ShouldAlmostEqual, b.MaxS()+0.5)
	test.That(t, expanded.MinT(), test.ShouldEqual, b.MinT())
	test.That(t, expanded.MaxT(), test.ShouldEqual, b.MaxT())
}

func TestExpandByT(t *testing.T) {
	b := rampBoundary()
	b.SetID("obs-1")
	b.SetType(Follow)
	expanded := b.ExpandByT(0.5)
	test.That(t, expanded.IsEmpty(), test.ShouldBeFalse)
	test.That(t, expanded.MinT(), test.ShouldAlmostEqual, -0.5)
	test.That(t, expanded.MaxT(), test.ShouldAlmostEqual, 4.5)
	// identity carries over to the derived boundary
	test.That(t, expanded.ID(), test.ShouldEqual, "obs-1")
	test.That(t, expanded.Type(), test.ShouldEqual, Follow)

	// a two-vertex boundary expands to four vertices with linear interior
	two := NewBoundary([]PointPair{pair(0, 0, 1), pair(1, 1, 2)})
	expanded = two.ExpandByT(0.25)
	test.That(t, expanded.IsEmpty(), test.ShouldBeFalse)
	test.That(t, expanded.MinT(), test.ShouldAlmostEqual, -0.25)
	test.That(t, expanded.MaxT(), test.ShouldAlmostEqual, 1.25)
	// endpoints keep a minimum s separation
	blp := expanded.BottomLeftPoint()
	upper, lower, ok := expanded.BoundarySRange(blp.T)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, upper-lower, test.ShouldBeGreaterThanOrEqualTo, 1e-3)
}

func TestCutOffByT(t *testing.T) {
	b := rampBoundary()
	cut := b.CutOffByT(1.5)
	test.That(t, cut.IsEmpty(), test.ShouldBeFalse)
	test.That(t, cut.MinT(), test.ShouldEqual, 2.0)
	test.That(t, cut.MaxT(), test.ShouldEqual, 4.0)

	// cutting past the end leaves an empty boundary
	test.That(t, b.CutOffByT(10).IsEmpty(), test.ShouldBeTrue)
}

func TestBottomPoints(t *testing.T) {
	b := rampBoundary()
	test.That(t, b.BottomLeftPoint(), test.ShouldResemble, STPoint{S: 0, T: 0})
	test.That(t, b.BottomRightPoint(), test.ShouldResemble, STPoint{S: 4, T: 4})
	empty := &Boundary{}
	test.That(t, empty.BottomLeftPoint(), test.ShouldResemble, STPoint{})
}

func TestNewBoundaryFromChains(t *testing.T) {
	lower := []STPoint{{S: 0, T: 0}, {S: 1, T: 1}}
	upper := []STPoint{{S: 2, T: 0}, {S: 3.6, T: 1}}
	b := NewBoundaryFromChains(lower, upper)
	test.That(t, b.IsEmpty(), test.ShouldBeFalse)
	test.That(t, b.MaxS(), test.ShouldEqual, 3.6)

	test.That(t, NewBoundaryFromChains(lower, upper[:1]).IsEmpty(), test.ShouldBeTrue)
	test.That(t, NewBoundaryFromChains(nil, nil).IsEmpty(), test.ShouldBeTrue)
}
