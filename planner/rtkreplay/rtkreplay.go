// Package rtkreplay implements the replay planner: it republishes a
// prerecorded trajectory, each cycle resuming from the recorded point
// closest to the vehicle.
package rtkreplay

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/planner"
)

func init() {
	planner.Register(planner.TypeRTK, func(logger golog.Logger) planner.Planner {
		return NewPlanner(logger)
	})
}

// Planner replays a recorded trajectory.
type Planner struct {
	cfg    planner.Config
	points []msgs.TrajectoryPoint
	logger golog.Logger
}

// NewPlanner builds an empty replay backend; Init loads the recording.
func NewPlanner(logger golog.Logger) *Planner {
	return &Planner{logger: logger}
}

// Name implements planner.Planner.
func (p *Planner) Name() string { return "rtk_replay" }

// Init loads the recorded trajectory named by the config.
func (p *Planner) Init(cfg planner.Config) error {
	p.cfg = cfg.WithDefaults()
	if cfg.RTKTrajectoryFile != "" {
		points, err := ReadTrajectoryFile(cfg.RTKTrajectoryFile)
		if err != nil {
			return err
		}
		p.points = points
	}
	if len(p.points) == 0 {
		return errors.New("replay planner has no recorded trajectory")
	}
	return nil
}

// SetTrajectory injects the recording directly, bypassing the file load.
func (p *Planner) SetTrajectory(points []msgs.TrajectoryPoint) {
	p.points = points
}

// Plan finds the recorded point closest to the vehicle and republishes the
// recording from there, re-timed to the planning start point.
func (p *Planner) Plan(ctx context.Context, start msgs.TrajectoryPoint, f *frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state := f.VehicleState()
	matched := p.queryNearestPoint(state.X, state.Y)
	if matched >= len(p.points)-1 {
		return errors.New("vehicle is at the end of the recorded trajectory")
	}

	end := matched + p.cfg.RTKForwardPoints
	if end > len(p.points) {
		end = len(p.points)
	}
	base := p.points[matched].RelativeTime
	segment := make([]msgs.TrajectoryPoint, 0, end-matched)
	for _, pt := range p.points[matched:end] {
		pt.RelativeTime = pt.RelativeTime - base + start.RelativeTime
		segment = append(segment, pt)
	}

	for _, info := range f.ReferenceLineInfos() {
		info.SetTrajectory(segment)
		info.SetDrivable(true)
	}
	return nil
}

func (p *Planner) queryNearestPoint(x, y float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, pt := range p.points {
		d := math.Hypot(pt.PathPoint.X-x, pt.PathPoint.Y-y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// ReadTrajectoryFile loads a recording stored as one JSON trajectory point
// per line.
func ReadTrajectoryFile(path string) ([]msgs.TrajectoryPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open recorded trajectory")
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	var points []msgs.TrajectoryPoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var pt msgs.TrajectoryPoint
		if err := json.Unmarshal(line, &pt); err != nil {
			return nil, errors.Wrapf(err, "recorded trajectory line %d", len(points)+1)
		}
		points = append(points, pt)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read recorded trajectory")
	}
	return points, nil
}
