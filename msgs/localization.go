package msgs

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is the localization solution for the vehicle body. Optional fields are
// pointers; a nil field means the estimator did not produce it. Vehicle-frame
// ("VRF") fields are expressed in the body frame, the rest in the map frame.
type Pose struct {
	Position    *r3.Vector   `json:"position,omitempty"`
	Orientation *quat.Number `json:"orientation,omitempty"`

	// EulerAngles holds roll (X), pitch (Y), yaw (Z) in radians when the
	// estimator reports them directly.
	EulerAngles *r3.Vector `json:"euler_angles,omitempty"`
	Heading     *float64   `json:"heading,omitempty"`

	AngularVelocity    *r3.Vector `json:"angular_velocity,omitempty"`
	LinearAcceleration *r3.Vector `json:"linear_acceleration,omitempty"`

	AngularVelocityVRF    *r3.Vector `json:"angular_velocity_vrf,omitempty"`
	LinearAccelerationVRF *r3.Vector `json:"linear_acceleration_vrf,omitempty"`
}

// LocalizationEstimate is one localization update.
type LocalizationEstimate struct {
	Header *Header `json:"header,omitempty"`
	Pose   *Pose   `json:"pose,omitempty"`
}
