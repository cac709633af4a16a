package msgs

import "github.com/golang/geo/r3"

// PredictionPoint is one sample of a predicted obstacle trajectory.
type PredictionPoint struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Heading      float64 `json:"heading"`
	Velocity     float64 `json:"v"`
	RelativeTime float64 `json:"relative_time"`
}

// PredictionTrajectory is one predicted motion hypothesis for an obstacle.
type PredictionTrajectory struct {
	Probability float64           `json:"probability"`
	Points      []PredictionPoint `json:"points"`
}

// PredictionObstacle is one perceived obstacle with its predicted motion.
type PredictionObstacle struct {
	ID           string                 `json:"id"`
	Position     r3.Vector              `json:"position"`
	Heading      float64                `json:"heading"`
	Length       float64                `json:"length"`
	Width        float64                `json:"width"`
	Velocity     float64                `json:"velocity"`
	IsStatic     bool                   `json:"is_static"`
	Trajectories []PredictionTrajectory `json:"trajectories,omitempty"`
}

// PredictionObstacles is one prediction update covering all tracked obstacles.
type PredictionObstacles struct {
	Header    *Header              `json:"header,omitempty"`
	Obstacles []PredictionObstacle `json:"obstacles"`
}

// TrafficLightColor is a detected signal color.
type TrafficLightColor int

// Traffic light colors.
const (
	ColorUnknown TrafficLightColor = iota
	ColorRed
	ColorYellow
	ColorGreen
	ColorBlack
)

// TrafficLight is one detected signal keyed by the lane it governs.
type TrafficLight struct {
	LaneID     string            `json:"lane_id"`
	Color      TrafficLightColor `json:"color"`
	Confidence float64           `json:"confidence"`
}

// TrafficLightDetection is one traffic light perception update.
type TrafficLightDetection struct {
	Header *Header        `json:"header,omitempty"`
	Lights []TrafficLight `json:"lights"`
}

// RelativeLane is a lane of the local map, in the body frame.
type RelativeLane struct {
	ID     string      `json:"id"`
	Points []PathPoint `json:"points"`
}

// RelativeMap is a local lane graph in the body frame, used in navigation
// mode where no global HD map is available.
type RelativeMap struct {
	Header *Header        `json:"header,omitempty"`
	Lanes  []RelativeLane `json:"lanes"`
}
