package msgs

// GearPosition is the chassis gear selector state.
type GearPosition int

// Gear positions. GearNone is reported when the selector state is unknown.
const (
	GearNone GearPosition = iota
	GearDrive
	GearReverse
	GearNeutral
	GearPark
)

func (g GearPosition) String() string {
	switch g {
	case GearDrive:
		return "DRIVE"
	case GearReverse:
		return "REVERSE"
	case GearNeutral:
		return "NEUTRAL"
	case GearPark:
		return "PARK"
	default:
		return "NONE"
	}
}

// DrivingMode reports who is in control of the vehicle.
type DrivingMode int

// Driving modes.
const (
	ModeManual DrivingMode = iota
	ModeAutoDrive
	ModeSpeedOnly
	ModeSteerOnly
	ModeEmergency
)

// Chassis is one chassis telemetry snapshot.
type Chassis struct {
	Header       *Header       `json:"header,omitempty"`
	SpeedMPS     *float64      `json:"speed_mps,omitempty"`
	GearLocation *GearPosition `json:"gear_location,omitempty"`
	DrivingMode  DrivingMode   `json:"driving_mode"`
}
