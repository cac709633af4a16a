package msgs

// PathPoint is a point on a planned path, parameterized by arclength.
type PathPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Theta  float64 `json:"theta"`
	Kappa  float64 `json:"kappa"`
	DKappa float64 `json:"dkappa"`
	S      float64 `json:"s"`
}

// TrajectoryPoint is a path point with the speed profile attached.
// RelativeTime is measured from the owning trajectory's header timestamp.
type TrajectoryPoint struct {
	PathPoint    PathPoint `json:"path_point"`
	V            float64   `json:"v"`
	A            float64   `json:"a"`
	RelativeTime float64   `json:"relative_time"`
}

// ObjectDecisionType is the decision taken against one obstacle.
type ObjectDecisionType int

// Object decision kinds.
const (
	ObjectIgnore ObjectDecisionType = iota
	ObjectFollow
	ObjectStop
	ObjectYield
	ObjectOvertake
	ObjectKeepClear
)

func (d ObjectDecisionType) String() string {
	switch d {
	case ObjectFollow:
		return "FOLLOW"
	case ObjectStop:
		return "STOP"
	case ObjectYield:
		return "YIELD"
	case ObjectOvertake:
		return "OVERTAKE"
	case ObjectKeepClear:
		return "KEEP_CLEAR"
	default:
		return "IGNORE"
	}
}

// ObjectDecision records the decision taken against one obstacle, with the
// stop fence position when the decision implies one.
type ObjectDecision struct {
	ObstacleID string             `json:"obstacle_id"`
	Type       ObjectDecisionType `json:"type"`
	FenceS     float64            `json:"fence_s,omitempty"`
}

// NotReady explains why a cycle published no plan.
type NotReady struct {
	Reason string `json:"reason"`
}

// MainDecision is the single top-level decision of a cycle.
type MainDecision struct {
	NotReady *NotReady `json:"not_ready,omitempty"`
	Cruise   bool      `json:"cruise,omitempty"`
	Stop     bool      `json:"stop,omitempty"`
}

// Decision aggregates the cycle's main decision and per-object decisions.
type Decision struct {
	Main            MainDecision     `json:"main"`
	ObjectDecisions []ObjectDecision `json:"object_decisions,omitempty"`
}

// EStop asks the controller to latch an emergency stop.
type EStop struct {
	IsEStop bool   `json:"is_estop"`
	Reason  string `json:"reason,omitempty"`
}

// TaskStats is the measured latency of one named planning task.
type TaskStats struct {
	Name   string  `json:"name"`
	TimeMS float64 `json:"time_ms"`
}

// LatencyStats records how long the pieces of a cycle took.
type LatencyStats struct {
	TotalTimeMS     float64     `json:"total_time_ms"`
	InitFrameTimeMS float64     `json:"init_frame_time_ms"`
	TaskStats       []TaskStats `json:"task_stats,omitempty"`
}

// RightOfWayStatus reports whether the selected lane has protected right of
// way (e.g. a protected turn).
type RightOfWayStatus int

// Right of way states.
const (
	RightOfWayUnprotected RightOfWayStatus = iota
	RightOfWayProtected
)

// DebugPath is a named point sequence exported for inspection.
type DebugPath struct {
	Name   string      `json:"name"`
	Points []PathPoint `json:"points"`
}

// Debug is the optional debug payload attached to a published trajectory.
type Debug struct {
	InitPoint *TrajectoryPoint `json:"init_point,omitempty"`
	Paths     []DebugPath      `json:"paths,omitempty"`
}

// ADCTrajectory is the published output of one planning cycle.
type ADCTrajectory struct {
	Header           *Header           `json:"header,omitempty"`
	TrajectoryPoints []TrajectoryPoint `json:"trajectory_points"`
	Gear             GearPosition      `json:"gear"`
	LaneIDs          []string          `json:"lane_ids,omitempty"`
	Decision         Decision          `json:"decision"`
	EStop            *EStop            `json:"estop,omitempty"`
	LatencyStats     LatencyStats      `json:"latency_stats"`
	IsReplan         bool              `json:"is_replan"`
	RightOfWay       RightOfWayStatus  `json:"right_of_way_status"`
	EngageAdvice     string            `json:"engage_advice,omitempty"`
	RoutingHeader    *Header           `json:"routing_header,omitempty"`
	Debug            *Debug            `json:"debug,omitempty"`
}
