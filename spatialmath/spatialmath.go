// Package spatialmath provides the small set of rigid-body math primitives
// the planner needs: quaternion-derived headings, ZXY Euler angles, and
// quaternion rotation of 3-vectors.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// QuaternionToHeading returns the heading angle, in radians in (-pi, pi],
// encoded by a unit quaternion: atan2(2(wz + xy), 1 - 2(y^2 + z^2)).
func QuaternionToHeading(q quat.Number) float64 {
	return math.Atan2(
		2*(q.Real*q.Kmag+q.Imag*q.Jmag),
		1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag),
	)
}

// EulerAnglesZXY are intrinsic Tait-Bryan angles in the ZXY convention used
// by the localization stack: pitch about X, roll about Y, yaw about Z.
type EulerAnglesZXY struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// NewEulerAnglesZXY decomposes a unit quaternion into ZXY Euler angles.
func NewEulerAnglesZXY(q quat.Number) *EulerAnglesZXY {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &EulerAnglesZXY{
		Roll:  math.Atan2(2*(w*y-x*z), 2*(w*w+z*z)-1),
		Pitch: math.Asin(clamp(2*(w*x+y*z), -1, 1)),
		Yaw:   math.Atan2(2*(w*z-x*y), 2*(w*w+y*y)-1),
	}
}

// Quaternion recomposes the angles into a unit quaternion.
func (e *EulerAnglesZXY) Quaternion() quat.Number {
	r, p, y := e.Roll/2, e.Pitch/2, e.Yaw/2
	sr, cr := math.Sincos(r)
	sp, cp := math.Sincos(p)
	sy, cy := math.Sincos(y)
	return quat.Number{
		Real: cr*cp*cy - sr*sp*sy,
		Imag: cr*sp*cy - sr*cp*sy,
		Jmag: cr*sp*sy + sr*cp*cy,
		Kmag: cr*cp*sy + sr*sp*cy,
	}
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// NormalizeAngle wraps an angle in radians to (-pi, pi].
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
