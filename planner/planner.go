// Package planner defines the trajectory planner contract and the registry
// the loop resolves its configured backend from.
package planner

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
)

// Type selects a planner backend.
type Type string

// Known planner backends.
const (
	TypeRTK     Type = "RTK"
	TypeEM      Type = "EM"
	TypeLattice Type = "LATTICE"
	TypeNavi    Type = "NAVI"
)

// Config tunes a planner backend. Unrelated backends ignore each other's
// fields.
type Config struct {
	// PlanningHorizonSec is the time span every produced trajectory covers.
	PlanningHorizonSec float64 `json:"planning_horizon_sec"`
	// TrajectoryTimeStep is the temporal resolution of produced points.
	TrajectoryTimeStep float64 `json:"trajectory_time_step"`
	// CruiseSpeedMPS is the target speed when nothing blocks the lane.
	CruiseSpeedMPS float64 `json:"cruise_speed_mps"`
	// MaxAcceleration bounds speed-up, in m/s^2.
	MaxAcceleration float64 `json:"max_acceleration"`
	// MaxDeceleration bounds braking as a positive magnitude, in m/s^2.
	MaxDeceleration float64 `json:"max_deceleration"`

	// RTKTrajectoryFile is the recorded trajectory replayed by the RTK
	// backend, one JSON trajectory point per line.
	RTKTrajectoryFile string `json:"rtk_trajectory_file,omitempty"`
	// RTKForwardPoints is how many recorded points past the matched one the
	// RTK backend republishes each cycle.
	RTKForwardPoints int `json:"rtk_forward_points,omitempty"`
}

// WithDefaults fills unset fields with the production values.
func (c Config) WithDefaults() Config {
	if c.PlanningHorizonSec <= 0 {
		c.PlanningHorizonSec = 8
	}
	if c.TrajectoryTimeStep <= 0 {
		c.TrajectoryTimeStep = 0.1
	}
	if c.CruiseSpeedMPS <= 0 {
		c.CruiseSpeedMPS = 5
	}
	if c.MaxAcceleration <= 0 {
		c.MaxAcceleration = 2
	}
	if c.MaxDeceleration <= 0 {
		c.MaxDeceleration = 4
	}
	if c.RTKForwardPoints <= 0 {
		c.RTKForwardPoints = 800
	}
	return c
}

// Planner produces a trajectory on every drivable reference line of a frame.
type Planner interface {
	// Name identifies the backend in logs and latency stats.
	Name() string
	// Init prepares the backend; it runs once before the first cycle.
	Init(cfg Config) error
	// Plan fills the trajectory of each reference line of the frame,
	// starting from the stitch-derived point. Lines that cannot be planned
	// are marked not drivable; Plan fails only when no line succeeded.
	Plan(ctx context.Context, start msgs.TrajectoryPoint, f *frame.Frame) error
}

// Constructor builds one backend instance.
type Constructor func(logger golog.Logger) Planner

var registry = map[Type]Constructor{}

// Register installs a backend constructor. It panics when the type is
// already taken.
func Register(t Type, c Constructor) {
	if _, ok := registry[t]; ok {
		panic(errors.Errorf("planner type %q already registered", t))
	}
	registry[t] = c
}

// New resolves a registered backend.
func New(t Type, logger golog.Logger) (Planner, error) {
	c, ok := registry[t]
	if !ok {
		return nil, errors.Errorf("unknown planner type %q", t)
	}
	return c(logger), nil
}

// Registered lists the available backend types.
func Registered() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}
