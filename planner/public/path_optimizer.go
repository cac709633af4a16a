package public

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/refline"
)

// pathSampleStep is the station spacing of produced path points, in meters.
const pathSampleStep = 0.5

// PathOptimizer produces the geometric path for one reference line, sized to
// cover the distance the speed profile travels.
type PathOptimizer interface {
	Name() string
	Process(speed *frame.SpeedData, line *refline.ReferenceLine, start msgs.TrajectoryPoint, path *frame.PathData) error
}

// referenceLinePathOptimizer follows the reference line geometry from the
// start point's projection. Station values are re-zeroed at the start so
// they line up with the speed profile.
type referenceLinePathOptimizer struct{}

func (o *referenceLinePathOptimizer) Name() string { return "reference_line_path" }

func (o *referenceLinePathOptimizer) Process(
	speed *frame.SpeedData,
	line *refline.ReferenceLine,
	start msgs.TrajectoryPoint,
	path *frame.PathData,
) error {
	path.Clear()
	startS, _, ok := line.XYToSL(r2.Point{X: start.PathPoint.X, Y: start.PathPoint.Y})
	if !ok {
		return errors.New("planning start point does not project onto the line")
	}

	needed := 0.0
	if n := len(speed.Points); n > 0 {
		needed = speed.Points[n-1].S
	}
	available := line.Length() - startS
	if available <= 0 {
		return errors.New("planning start point is at the end of the line")
	}
	length := needed + pathSampleStep
	if length > available {
		length = available
	}

	for s := 0.0; s <= length; s += pathSampleStep {
		rp := line.PointAtS(startS + s)
		pp := rp.ToPathPoint()
		pp.S = s
		path.Points = append(path.Points, pp)
	}
	// make sure the path reaches the speed profile's final station
	if last := path.Points[len(path.Points)-1]; last.S < needed && needed <= available {
		rp := line.PointAtS(startS + needed)
		pp := rp.ToPathPoint()
		pp.S = needed
		path.Points = append(path.Points, pp)
	}
	return nil
}
