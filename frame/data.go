// Package frame holds the per-cycle working set of the planner: the planning
// start point, the candidate reference lines with their planning state, the
// obstacles, and the resulting trajectory.
package frame

import "github.com/openavp/planning/msgs"

// PathData is the spatial half of a plan on one reference line.
type PathData struct {
	Points []msgs.PathPoint
}

// Clear drops all points.
func (p *PathData) Clear() { p.Points = nil }

// IsEmpty reports whether no path has been produced yet.
func (p *PathData) IsEmpty() bool { return len(p.Points) == 0 }

// SpeedPoint is one sample of a speed profile: station and kinematics at a
// time offset from the planning start.
type SpeedPoint struct {
	S float64
	T float64
	V float64
	A float64
	// Da is jerk, the derivative of acceleration.
	Da float64
}

// SpeedData is the temporal half of a plan on one reference line.
type SpeedData struct {
	Points []SpeedPoint
}

// IsEmpty reports whether no profile has been produced yet.
func (s *SpeedData) IsEmpty() bool { return len(s.Points) == 0 }

// TotalTime returns the time span covered by the profile.
func (s *SpeedData) TotalTime() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].T - s.Points[0].T
}

// EvaluateByTime linearly interpolates the profile at time t. It reports
// false outside the profile's domain.
func (s *SpeedData) EvaluateByTime(t float64) (SpeedPoint, bool) {
	pts := s.Points
	if len(pts) == 0 || t < pts[0].T || t > pts[len(pts)-1].T {
		return SpeedPoint{}, false
	}
	i := 1
	for i < len(pts) && pts[i].T < t {
		i++
	}
	if i == len(pts) {
		return pts[len(pts)-1], true
	}
	prev, next := pts[i-1], pts[i]
	dt := next.T - prev.T
	if dt <= 0 {
		return prev, true
	}
	r := (t - prev.T) / dt
	return SpeedPoint{
		S:  prev.S + r*(next.S-prev.S),
		T:  t,
		V:  prev.V + r*(next.V-prev.V),
		A:  prev.A + r*(next.A-prev.A),
		Da: prev.Da + r*(next.Da-prev.Da),
	}, true
}
