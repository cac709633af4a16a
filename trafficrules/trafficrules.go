// Package trafficrules applies ordered traffic rules to each candidate
// reference line before planning: stop fences for the route destination and
// red signals, decisions against perceived obstacles, and keep clear zones.
package trafficrules

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
)

// Context is one rule invocation's view of the cycle.
type Context struct {
	Frame        *frame.Frame
	Info         *frame.ReferenceLineInfo
	Routing      *msgs.RoutingResponse
	TrafficLight *msgs.TrafficLightDetection
}

// adcS returns the vehicle's arclength on the candidate line, or false when
// the vehicle does not project onto it.
func (c *Context) adcS() (float64, bool) {
	state := c.Frame.VehicleState()
	s, _, ok := c.Info.ReferenceLine().XYToSL(r2.Point{X: state.X, Y: state.Y})
	return s, ok
}

// Rule is one traffic rule. Rules run in registration order and may add
// virtual obstacles, boundaries, and object decisions to the line.
type Rule interface {
	Name() string
	Apply(ctx *Context) error
}

// Decider runs the configured rules against one reference line.
type Decider struct {
	rules  []Rule
	logger golog.Logger
}

// NewDecider builds a decider with the default rule ordering.
func NewDecider(cfg Config, logger golog.Logger) *Decider {
	cfg = cfg.withDefaults()
	return &Decider{
		rules: []Rule{
			&destinationRule{cfg: cfg},
			&signalLightRule{cfg: cfg},
			&obstacleRule{cfg: cfg},
			&keepClearRule{cfg: cfg},
		},
		logger: logger,
	}
}

// Execute runs every rule. A failing rule is logged and does not prevent the
// remaining rules from running; all failures are reported together.
func (d *Decider) Execute(ctx *Context) error {
	var errs error
	for _, r := range d.rules {
		if err := r.Apply(ctx); err != nil {
			d.logger.Warnw("traffic rule failed", "rule", r.Name(), "error", err)
			errs = multierr.Combine(errs, err)
		}
	}
	return errs
}
