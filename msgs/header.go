// Package msgs contains the typed messages exchanged with the surrounding
// middleware: localization and chassis inputs, routing, prediction, traffic
// light state, and the published trajectory.
package msgs

// ErrorCode enumerates the failure kinds a planning cycle can report.
type ErrorCode int

// Planning cycle error codes.
const (
	OK ErrorCode = iota
	InputNotReady
	LocalizationError
	FrameInitError
	PlanningError
	ConfigError
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case InputNotReady:
		return "INPUT_NOT_READY"
	case LocalizationError:
		return "LOCALIZATION_ERROR"
	case FrameInitError:
		return "FRAME_INIT_ERROR"
	case PlanningError:
		return "PLANNING_ERROR"
	case ConfigError:
		return "CONFIG_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status is the per-cycle outcome embedded in a published header.
type Status struct {
	Code ErrorCode `json:"code"`
	Msg  string    `json:"msg,omitempty"`
}

// Header carries the publish timestamp of a message, in seconds since the
// unix epoch, plus bookkeeping fields.
type Header struct {
	TimestampSec float64 `json:"timestamp_sec"`
	ModuleName   string  `json:"module_name,omitempty"`
	SequenceNum  uint32  `json:"sequence_num,omitempty"`
	Status       *Status `json:"status,omitempty"`
}
