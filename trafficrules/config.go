package trafficrules

// KeepClearZone is a station range of the reference line the vehicle may
// pass through but must not stop inside.
type KeepClearZone struct {
	ID     string  `json:"id"`
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
}

// SignalStopLine binds a perceived traffic light to the stop line arclength
// on the reference line it governs.
type SignalStopLine struct {
	LaneID string  `json:"lane_id"`
	StopS  float64 `json:"stop_s"`
}

// Config tunes the traffic rules.
type Config struct {
	// StopDistance is the gap kept between a stop fence and the blocking
	// obstacle, in meters.
	StopDistance float64 `json:"stop_distance"`
	// DestinationStopDistance is the gap kept before the route end.
	DestinationStopDistance float64 `json:"destination_stop_distance"`
	// MinPassConfidence is the lowest detection confidence at which a green
	// light is trusted; signals below it are treated as red.
	MinPassConfidence float64 `json:"min_pass_confidence"`

	KeepClearZones  []KeepClearZone  `json:"keep_clear_zones,omitempty"`
	SignalStopLines []SignalStopLine `json:"signal_stop_lines,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.StopDistance <= 0 {
		c.StopDistance = 1.0
	}
	if c.DestinationStopDistance <= 0 {
		c.DestinationStopDistance = 0.5
	}
	if c.MinPassConfidence <= 0 {
		c.MinPassConfidence = 0.5
	}
	return c
}
