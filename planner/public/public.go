// Package public implements the on-road planner: a path held to the
// reference line combined with a station-time speed profile that respects
// the boundaries the traffic rules produced.
package public

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/planner"
)

func init() {
	planner.Register(planner.TypeEM, func(logger golog.Logger) planner.Planner {
		return NewPlanner(logger)
	})
}

// Planner is the public road planner backend.
type Planner struct {
	cfg    planner.Config
	path   PathOptimizer
	speed  SpeedOptimizer
	logger golog.Logger
}

// NewPlanner builds the backend with the default path and speed optimizers.
func NewPlanner(logger golog.Logger) *Planner {
	return &Planner{
		path:   &referenceLinePathOptimizer{},
		speed:  &stGraphSpeedOptimizer{},
		logger: logger,
	}
}

// Name implements planner.Planner.
func (p *Planner) Name() string { return "public" }

// Init implements planner.Planner.
func (p *Planner) Init(cfg planner.Config) error {
	p.cfg = cfg.WithDefaults()
	return nil
}

// Plan runs path and speed optimization on every candidate line. A line
// whose optimization fails is marked not drivable and planning moves on; the
// cycle fails only when every line failed.
func (p *Planner) Plan(ctx context.Context, start msgs.TrajectoryPoint, f *frame.Frame) error {
	var errs error
	planned := 0
	for _, info := range f.ReferenceLineInfos() {
		if err := p.planOnReferenceLine(ctx, start, f, info); err != nil {
			p.logger.Warnw("planning on reference line failed",
				"line", info.ReferenceLine().ID(), "error", err)
			info.SetDrivable(false)
			errs = multierr.Combine(errs, err)
			continue
		}
		info.SetDrivable(true)
		planned++
	}
	if planned == 0 {
		return errors.Wrap(errs, "no reference line could be planned")
	}
	return nil
}

func (p *Planner) planOnReferenceLine(
	ctx context.Context,
	start msgs.TrajectoryPoint,
	f *frame.Frame,
	info *frame.ReferenceLineInfo,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.speed.Process(p.cfg, start, info); err != nil {
		return errors.Wrap(err, "speed optimization")
	}
	if err := p.path.Process(info.SpeedData(), info.ReferenceLine(), start, info.PathData()); err != nil {
		return errors.Wrap(err, "path optimization")
	}
	if err := info.CombinePathAndSpeed(start.RelativeTime); err != nil {
		return err
	}
	// prefer the line that makes the most progress
	if n := len(info.SpeedData().Points); n > 0 {
		final := info.SpeedData().Points[n-1]
		info.AddCost(p.cfg.CruiseSpeedMPS*p.cfg.PlanningHorizonSec - final.S)
	}
	return nil
}
