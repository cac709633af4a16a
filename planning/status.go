package planning

import (
	"github.com/pkg/errors"

	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/vehiclestate"
)

var (
	// ErrNotReady is returned when a required input topic has never been
	// observed.
	ErrNotReady = errors.New("input not ready")
	// ErrPlanFailed is returned when no drivable trajectory could be
	// produced on any reference line.
	ErrPlanFailed = errors.New("planning on all reference lines failed")
)

// errorCodeOf maps a cycle error to the wire error code carried by the
// output header.
func errorCodeOf(err error) msgs.ErrorCode {
	switch {
	case err == nil:
		return msgs.OK
	case errors.Is(err, ErrNotReady):
		return msgs.InputNotReady
	case errors.Is(err, vehiclestate.ErrLocalization):
		return msgs.LocalizationError
	case errors.Is(err, frame.ErrNoReferenceLine):
		return msgs.FrameInitError
	default:
		return msgs.PlanningError
	}
}
