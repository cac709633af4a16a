// Package vehiclestate fuses localization and chassis telemetry into a single
// kinematic vehicle state and extrapolates it over short horizons.
package vehiclestate

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/spatialmath"
)

// ErrLocalization is returned by Update when the localization input lacks the
// fields required to construct a vehicle state.
var ErrLocalization = errors.New("localization input invalid")

// State is the fused kinematic state of the vehicle at Timestamp.
type State struct {
	X       float64
	Y       float64
	Z       float64
	Roll    float64
	Pitch   float64
	Yaw     float64
	Heading float64
	Kappa   float64

	LinearVelocity     float64
	AngularVelocity    float64
	LinearAcceleration float64

	Gear        msgs.GearPosition
	DrivingMode msgs.DrivingMode
	Timestamp   float64

	// Pose is the localization pose the state was fused from, kept for
	// orientation-aware extrapolation.
	Pose *msgs.Pose
}

// IsValid reports whether every scalar component of the state is finite.
func (s *State) IsValid() bool {
	for _, v := range []float64{
		s.X, s.Y, s.Z, s.Heading, s.Kappa,
		s.LinearVelocity, s.AngularVelocity, s.LinearAcceleration,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Options configure how the provider interprets its inputs.
type Options struct {
	// EnableMapReferenceUnify requires vehicle-frame angular velocity and
	// linear acceleration from localization and uses them instead of the
	// map-frame fields.
	EnableMapReferenceUnify bool
	// UseNavigationMode skips pose-derived fields; in that mode planning
	// operates in the body frame against a relative map.
	UseNavigationMode bool
}

// Provider fuses inputs into a State once per planning cycle. It is written
// only by the planning goroutine; accessors are not synchronized.
type Provider struct {
	opts   Options
	state  State
	logger golog.Logger
}

// NewProvider returns a provider with a zero state.
func NewProvider(opts Options, logger golog.Logger) *Provider {
	return &Provider{opts: opts, logger: logger}
}

// Update fuses one localization estimate and one chassis snapshot into the
// current state, replacing the previous one. The timestamp is taken from the
// localization header when present, else from the chassis header; having
// neither is logged but is not an error.
func (p *Provider) Update(localization *msgs.LocalizationEstimate, chassis *msgs.Chassis) error {
	if err := p.constructExceptLinearVelocity(localization); err != nil {
		return err
	}

	switch {
	case localization != nil && localization.Header != nil:
		p.state.Timestamp = localization.Header.TimestampSec
	case chassis != nil && chassis.Header != nil:
		p.logger.Warn("no localization timestamp for vehicle state; using chassis time instead")
		p.state.Timestamp = chassis.Header.TimestampSec
	default:
		p.logger.Warn("neither localization nor chassis carries a timestamp")
	}

	if chassis != nil && chassis.SpeedMPS != nil {
		p.state.LinearVelocity = *chassis.SpeedMPS
	}
	if chassis != nil && chassis.GearLocation != nil {
		p.state.Gear = *chassis.GearLocation
	} else {
		p.state.Gear = msgs.GearNone
	}
	if chassis != nil {
		p.state.DrivingMode = chassis.DrivingMode
	}

	if p.state.LinearVelocity > 0 {
		p.state.Kappa = p.state.AngularVelocity / p.state.LinearVelocity
	} else {
		p.state.Kappa = 0
	}
	return nil
}

func (p *Provider) constructExceptLinearVelocity(localization *msgs.LocalizationEstimate) error {
	if localization == nil || localization.Pose == nil {
		return errors.Wrap(ErrLocalization, "pose is missing")
	}

	// In navigation mode planning runs in the body frame, so the map-frame
	// pose is left untouched.
	if p.opts.UseNavigationMode {
		return nil
	}

	pose := localization.Pose
	p.state.Pose = pose
	if pose.Position != nil {
		p.state.X = pose.Position.X
		p.state.Y = pose.Position.Y
		p.state.Z = pose.Position.Z
	}

	switch {
	case pose.Heading != nil:
		p.state.Heading = *pose.Heading
	case pose.Orientation != nil:
		p.state.Heading = spatialmath.QuaternionToHeading(*pose.Orientation)
	default:
		return errors.Wrap(ErrLocalization, "neither heading nor orientation is present")
	}

	if p.opts.EnableMapReferenceUnify {
		if pose.AngularVelocityVRF == nil {
			return errors.Wrap(ErrLocalization, "angular_velocity_vrf required with map-reference-unify")
		}
		p.state.AngularVelocity = pose.AngularVelocityVRF.Z
		if pose.LinearAccelerationVRF == nil {
			return errors.Wrap(ErrLocalization, "linear_acceleration_vrf required with map-reference-unify")
		}
		p.state.LinearAcceleration = pose.LinearAccelerationVRF.Y
	} else {
		if pose.AngularVelocity != nil {
			p.state.AngularVelocity = pose.AngularVelocity.Z
		} else {
			p.logger.Warn("localization carries no angular velocity; defaulting to zero")
			p.state.AngularVelocity = 0
		}
		if pose.LinearAcceleration != nil {
			p.state.LinearAcceleration = pose.LinearAcceleration.Y
		} else {
			p.logger.Warn("localization carries no linear acceleration; defaulting to zero")
			p.state.LinearAcceleration = 0
		}
	}

	if pose.EulerAngles != nil {
		p.state.Roll = pose.EulerAngles.X
		p.state.Pitch = pose.EulerAngles.Y
		p.state.Yaw = pose.EulerAngles.Z
	} else if pose.Orientation != nil {
		euler := spatialmath.NewEulerAnglesZXY(*pose.Orientation)
		p.state.Roll = euler.Roll
		p.state.Pitch = euler.Pitch
		p.state.Yaw = euler.Yaw
	}
	return nil
}

// State returns a copy of the last fused state.
func (p *Provider) State() State { return p.state }

// SetLinearVelocity overrides the fused linear velocity.
func (p *Provider) SetLinearVelocity(v float64) { p.state.LinearVelocity = v }

// EstimateFuturePosition projects the vehicle position dt seconds forward
// with a constant-angular-velocity rigid body model. The body-frame
// displacement is rotated into the map frame by the pose orientation; with no
// orientation available it is applied in the map frame directly.
func (p *Provider) EstimateFuturePosition(dt float64) r2.Point {
	v := p.state.LinearVelocity
	if p.state.Gear == msgs.GearReverse {
		v = -v
	}

	omega := p.state.AngularVelocity
	var displacement r3.Vector
	if math.Abs(omega) < 1e-4 {
		displacement = r3.Vector{Y: v * dt}
	} else {
		displacement = r3.Vector{
			X: -v / omega * (1 - math.Cos(omega*dt)),
			Y: v / omega * math.Sin(omega*dt),
		}
	}

	if p.state.Pose != nil && p.state.Pose.Orientation != nil {
		rotated := spatialmath.RotateVector(*p.state.Pose.Orientation, displacement)
		return r2.Point{X: p.state.X + rotated.X, Y: p.state.Y + rotated.Y}
	}
	return r2.Point{X: p.state.X + displacement.X, Y: p.state.Y + displacement.Y}
}

// ComputeCOMPosition returns the center-of-mass position, given the distance
// between the rear axle and the center of mass.
func (p *Provider) ComputeCOMPosition(rearToCOMDistance float64) r2.Point {
	offset := r3.Vector{Y: rearToCOMDistance}
	if p.state.Pose != nil && p.state.Pose.Orientation != nil {
		offset = spatialmath.RotateVector(*p.state.Pose.Orientation, offset)
	}
	return r2.Point{X: p.state.X + offset.X, Y: p.state.Y + offset.Y}
}
