package stgraph

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// BoundaryType classifies how the free station range relates to a boundary.
type BoundaryType int

// Boundary types.
const (
	Unknown BoundaryType = iota
	Stop
	Follow
	Yield
	Overtake
	KeepClear
)

func (t BoundaryType) String() string {
	switch t {
	case Stop:
		return "STOP"
	case Follow:
		return "FOLLOW"
	case Yield:
		return "YIELD"
	case Overtake:
		return "OVERTAKE"
	case KeepClear:
		return "KEEP_CLEAR"
	default:
		return "UNKNOWN"
	}
}

const (
	// tAlignmentEpsilon bounds the time skew tolerated between the two
	// members of a point pair.
	tAlignmentEpsilon = 1e-9
	// minDeltaT is the minimum time advance between consecutive pairs.
	minDeltaT = 1e-6
	// redundancyDist: interior vertices within this distance of the chords
	// spanning their neighbors are dropped at construction.
	redundancyDist = 0.1
	// minSEpsilon keeps the lower and upper endpoints separated after a
	// time expansion.
	minSEpsilon = 1e-3

	defaultSHighLimit = 200.0
)

// Boundary is the forbidden region of one obstacle in the station-time
// plane: two chains of station bounds over strictly increasing times,
// closed into a polygon. The zero value is an empty boundary; all queries on
// it report false.
type Boundary struct {
	lowerPoints []STPoint
	upperPoints []STPoint
	// polygon is the lower chain forward then the upper chain reversed,
	// with points as (x=t, y=s).
	polygon []r2.Point

	boundaryType         BoundaryType
	id                   string
	characteristicLength float64
	sHighLimit           float64

	minS, maxS float64
	minT, maxT float64
}

// NewBoundary builds a boundary from ordered point pairs. Invalid input
// (fewer than two pairs, non-monotone time, misaligned pairs, or upper below
// lower) yields an empty boundary. Redundant interior pairs are removed
// before storage.
func NewBoundary(pointPairs []PointPair) *Boundary {
	b := &Boundary{sHighLimit: defaultSHighLimit}
	if !validPointPairs(pointPairs) {
		return b
	}
	reduced := removeRedundantPoints(pointPairs)

	b.minS = math.Inf(1)
	b.maxS = math.Inf(-1)
	for _, pair := range reduced {
		// use the lower member's time for both chain entries
		t := pair.Lower.T
		b.lowerPoints = append(b.lowerPoints, STPoint{S: pair.Lower.S, T: t})
		b.upperPoints = append(b.upperPoints, STPoint{S: pair.Upper.S, T: t})
		b.minS = math.Min(b.minS, pair.Lower.S)
		b.maxS = math.Max(b.maxS, pair.Upper.S)
	}
	for _, p := range b.lowerPoints {
		b.polygon = append(b.polygon, r2.Point{X: p.T, Y: p.S})
	}
	for i := len(b.upperPoints) - 1; i >= 0; i-- {
		b.polygon = append(b.polygon, r2.Point{X: b.upperPoints[i].T, Y: b.upperPoints[i].S})
	}
	b.minT = b.lowerPoints[0].T
	b.maxT = b.lowerPoints[len(b.lowerPoints)-1].T
	return b
}

// NewBoundaryFromChains builds a boundary from aligned lower and upper
// chains. Mismatched lengths or fewer than two entries yield an empty
// boundary.
func NewBoundaryFromChains(lowerPoints, upperPoints []STPoint) *Boundary {
	if len(lowerPoints) != len(upperPoints) || len(lowerPoints) < 2 {
		return &Boundary{sHighLimit: defaultSHighLimit}
	}
	pairs := make([]PointPair, 0, len(lowerPoints))
	for i := range lowerPoints {
		pairs = append(pairs, PointPair{Lower: lowerPoints[i], Upper: upperPoints[i]})
	}
	return NewBoundary(pairs)
}

func validPointPairs(pointPairs []PointPair) bool {
	if len(pointPairs) < 2 {
		return false
	}
	for i, pair := range pointPairs {
		if pair.Upper.S < pair.Lower.S {
			return false
		}
		if math.Abs(pair.Lower.T-pair.Upper.T) > tAlignmentEpsilon {
			return false
		}
		if i+1 < len(pointPairs) {
			next := pointPairs[i+1]
			if math.Max(pair.Lower.T, pair.Upper.T)+minDeltaT >=
				math.Min(next.Lower.T, next.Upper.T) {
				return false
			}
		}
	}
	return true
}

// removeRedundantPoints drops interior pairs whose lower AND upper members
// lie within redundancyDist of the chords spanning their neighbors, with a
// two-pointer walk keeping an anchor i and a look-ahead j. The last pair is
// always kept.
func removeRedundantPoints(pointPairs []PointPair) []PointPair {
	if len(pointPairs) <= 2 {
		return pointPairs
	}
	out := make([]PointPair, len(pointPairs))
	copy(out, pointPairs)

	i, j := 0, 1
	for i < len(out) && j+1 < len(out) {
		lowerNear := isPointNearSegment(stToPlane(out[i].Lower), stToPlane(out[j+1].Lower),
			stToPlane(out[j].Lower), redundancyDist)
		upperNear := isPointNearSegment(stToPlane(out[i].Upper), stToPlane(out[j+1].Upper),
			stToPlane(out[j].Upper), redundancyDist)
		if !lowerNear || !upperNear {
			i++
			if i != j {
				out[i] = out[j]
			}
		}
		j++
	}
	i++
	out[i] = out[len(out)-1]
	return out[:i+1]
}

func stToPlane(p STPoint) r2.Point { return r2.Point{X: p.T, Y: p.S} }

// isPointNearSegment reports whether p lies within maxDist of segment ab.
func isPointNearSegment(a, b, p r2.Point, maxDist float64) bool {
	return distanceSquaredToSegment(a, b, p) < maxDist*maxDist
}

func distanceSquaredToSegment(a, b, p r2.Point) float64 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq <= 0 {
		return ap.Dot(ap)
	}
	proj := ap.Dot(ab) / lenSq
	if proj < 0 {
		proj = 0
	} else if proj > 1 {
		proj = 1
	}
	closest := a.Add(ab.Mul(proj))
	d := p.Sub(closest)
	return d.Dot(d)
}

// IsEmpty reports whether the boundary holds no vertices.
func (b *Boundary) IsEmpty() bool { return len(b.lowerPoints) == 0 }

// MinS returns the smallest lower station bound.
func (b *Boundary) MinS() float64 { return b.minS }

// MaxS returns the largest upper station bound.
func (b *Boundary) MaxS() float64 { return b.maxS }

// MinT returns the first vertex time.
func (b *Boundary) MinT() float64 { return b.minT }

// MaxT returns the last vertex time.
func (b *Boundary) MaxT() float64 { return b.maxT }

// Type returns the boundary type.
func (b *Boundary) Type() BoundaryType { return b.boundaryType }

// SetType sets the boundary type.
func (b *Boundary) SetType(t BoundaryType) { b.boundaryType = t }

// ID returns the obstacle identifier the boundary belongs to.
func (b *Boundary) ID() string { return b.id }

// SetID sets the obstacle identifier.
func (b *Boundary) SetID(id string) { b.id = id }

// CharacteristicLength returns the length used when expanding or shrinking
// the boundary for decisions.
func (b *Boundary) CharacteristicLength() float64 { return b.characteristicLength }

// SetCharacteristicLength sets the characteristic length.
func (b *Boundary) SetCharacteristicLength(l float64) { b.characteristicLength = l }

// SetSHighLimit caps the station values reported by range queries.
func (b *Boundary) SetSHighLimit(limit float64) { b.sHighLimit = limit }

// Polygon returns the cached closed polygon, lower chain first, as
// (x=t, y=s) points.
func (b *Boundary) Polygon() []r2.Point { return b.polygon }

// BottomLeftPoint returns the first lower-chain vertex.
func (b *Boundary) BottomLeftPoint() STPoint {
	if b.IsEmpty() {
		return STPoint{}
	}
	return b.lowerPoints[0]
}

// BottomRightPoint returns the last lower-chain vertex.
func (b *Boundary) BottomRightPoint() STPoint {
	if b.IsEmpty() {
		return STPoint{}
	}
	return b.lowerPoints[len(b.lowerPoints)-1]
}

// IsPointInBoundary reports whether p lies strictly between the chains. The
// result on the polygon edge itself is unspecified but deterministic.
func (b *Boundary) IsPointInBoundary(p STPoint) bool {
	if b.IsEmpty() {
		return false
	}
	if p.T <= b.minT || p.T >= b.maxT {
		return false
	}
	left, right, ok := indexRange(b.lowerPoints, p.T)
	if !ok {
		return false
	}
	pp := stToPlane(p)
	checkUpper := crossProd(pp, stToPlane(b.upperPoints[left]), stToPlane(b.upperPoints[right]))
	checkLower := crossProd(pp, stToPlane(b.lowerPoints[left]), stToPlane(b.lowerPoints[right]))
	return checkUpper*checkLower < 0
}

// crossProd returns the z-component of (p1-p0) x (p2-p0).
func crossProd(p0, p1, p2 r2.Point) float64 {
	return p1.Sub(p0).Cross(p2.Sub(p0))
}

// BoundarySRange interpolates the station bounds occupied at time t. It
// reports false when t lies outside [MinT, MaxT]. The upper bound is clipped
// to the s-high limit and the lower bound to zero.
func (b *Boundary) BoundarySRange(t float64) (sUpper, sLower float64, ok bool) {
	if b.IsEmpty() || t < b.minT || t > b.maxT {
		return 0, 0, false
	}
	left, right, ok := indexRange(b.lowerPoints, t)
	if !ok {
		return 0, 0, false
	}
	r := interpRatio(b.upperPoints[left].T, b.upperPoints[right].T, t)
	sUpper = b.upperPoints[left].S + r*(b.upperPoints[right].S-b.upperPoints[left].S)
	sLower = b.lowerPoints[left].S + r*(b.lowerPoints[right].S-b.lowerPoints[left].S)
	sUpper = math.Min(sUpper, b.sHighLimit)
	sLower = math.Max(sLower, 0)
	return sUpper, sLower, true
}

// UnblockSRange returns the free station range at time t given the boundary
// type: for Follow, Stop and Yield the obstacle is ahead and blocks above its
// lower bound; for Overtake the free range starts above its upper bound.
// Outside the time window the full range (0, s-high limit) is free. Unknown
// boundary types report false.
func (b *Boundary) UnblockSRange(t float64) (sUpper, sLower float64, ok bool) {
	sUpper = b.sHighLimit
	sLower = 0
	if b.IsEmpty() || t < b.minT || t > b.maxT {
		return sUpper, sLower, true
	}
	left, right, idxOK := indexRange(b.lowerPoints, t)
	if !idxOK {
		return 0, 0, false
	}
	r := interpRatio(b.upperPoints[left].T, b.upperPoints[right].T, t)
	upperCrossS := b.upperPoints[left].S + r*(b.upperPoints[right].S-b.upperPoints[left].S)
	lowerCrossS := b.lowerPoints[left].S + r*(b.lowerPoints[right].S-b.lowerPoints[left].S)

	switch b.boundaryType {
	case Stop, Yield, Follow:
		sUpper = lowerCrossS
	case Overtake:
		sLower = math.Max(sLower, upperCrossS)
	default:
		return 0, 0, false
	}
	return sUpper, sLower, true
}

// interpRatio guards the degenerate left == right bracket, where the time
// difference is zero.
func interpRatio(tLeft, tRight, t float64) float64 {
	if tRight <= tLeft {
		return 0
	}
	return (t - tLeft) / (tRight - tLeft)
}

// indexRange binary-searches the bracketing vertex indices for time t. When
// t equals the last sample both indices are the last index.
func indexRange(points []STPoint, t float64) (left, right int, ok bool) {
	if len(points) == 0 || t < points[0].T || t > points[len(points)-1].T {
		return 0, 0, false
	}
	idx := sort.Search(len(points), func(i int) bool { return points[i].T >= t })
	switch {
	case idx == 0:
		return 0, 0, true
	case idx == len(points):
		return len(points) - 1, len(points) - 1, true
	default:
		return idx - 1, idx, true
	}
}

// ExpandByS returns a copy grown by s on both station sides.
func (b *Boundary) ExpandByS(s float64) *Boundary {
	if b.IsEmpty() {
		return &Boundary{sHighLimit: b.sHighLimit}
	}
	pairs := make([]PointPair, 0, len(b.lowerPoints))
	for i := range b.lowerPoints {
		pairs = append(pairs, PointPair{
			Lower: STPoint{S: b.lowerPoints[i].S - s, T: b.lowerPoints[i].T},
			Upper: STPoint{S: b.upperPoints[i].S + s, T: b.upperPoints[i].T},
		})
	}
	return b.cloneWith(NewBoundary(pairs))
}

// ExpandByT returns a copy grown by t on both time sides, extrapolating the
// station bounds linearly from the two endpoint segments. A minimum station
// separation is enforced at the new endpoints.
func (b *Boundary) ExpandByT(t float64) *Boundary {
	if len(b.lowerPoints) < 2 {
		return &Boundary{sHighLimit: b.sHighLimit}
	}
	pairs := make([]PointPair, 0, len(b.lowerPoints)+2)

	leftDeltaT := b.lowerPoints[1].T - b.lowerPoints[0].T
	lowerLeftDeltaS := b.lowerPoints[1].S - b.lowerPoints[0].S
	upperLeftDeltaS := b.upperPoints[1].S - b.upperPoints[0].S

	front := PointPair{
		Lower: STPoint{
			S: b.lowerPoints[0].S - t*lowerLeftDeltaS/leftDeltaT,
			T: b.lowerPoints[0].T - t,
		},
		Upper: STPoint{
			S: b.upperPoints[0].S - t*upperLeftDeltaS/leftDeltaT,
			T: b.upperPoints[0].T - t,
		},
	}
	front.Lower.S = math.Min(front.Upper.S-minSEpsilon, front.Lower.S)
	pairs = append(pairs, front)

	for i := range b.lowerPoints {
		pairs = append(pairs, PointPair{Lower: b.lowerPoints[i], Upper: b.upperPoints[i]})
	}

	n := len(b.lowerPoints)
	rightDeltaT := b.lowerPoints[n-1].T - b.lowerPoints[n-2].T
	lowerRightDeltaS := b.lowerPoints[n-1].S - b.lowerPoints[n-2].S
	upperRightDeltaS := b.upperPoints[n-1].S - b.upperPoints[n-2].S

	back := PointPair{
		Lower: STPoint{
			S: b.lowerPoints[n-1].S + t*lowerRightDeltaS/rightDeltaT,
			T: b.lowerPoints[n-1].T + t,
		},
		Upper: STPoint{
			S: b.upperPoints[n-1].S + t*upperRightDeltaS/rightDeltaT,
			T: b.upperPoints[n-1].T + t,
		},
	}
	back.Upper.S = math.Max(back.Upper.S, back.Lower.S+minSEpsilon)
	pairs = append(pairs, back)

	return b.cloneWith(NewBoundary(pairs))
}

// CutOffByT returns a copy holding only the vertices at or after t0.
func (b *Boundary) CutOffByT(t0 float64) *Boundary {
	var lower, upper []STPoint
	for i := range b.lowerPoints {
		if b.lowerPoints[i].T < t0 {
			continue
		}
		lower = append(lower, b.lowerPoints[i])
		upper = append(upper, b.upperPoints[i])
	}
	return b.cloneWith(NewBoundaryFromChains(lower, upper))
}

// cloneWith carries identity and limits over to a derived boundary.
func (b *Boundary) cloneWith(derived *Boundary) *Boundary {
	derived.boundaryType = b.boundaryType
	derived.id = b.id
	derived.characteristicLength = b.characteristicLength
	derived.sHighLimit = b.sHighLimit
	return derived
}
