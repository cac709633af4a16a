package planning

import (
	"sync"

	"github.com/openavp/planning/msgs"
)

// latched holds the most recent message on a topic. A topic that was never
// written reports not-ok.
type latched[T any] struct {
	mu  sync.RWMutex
	val T
	set bool
}

func (l *latched[T]) Set(v T) {
	l.mu.Lock()
	l.val = v
	l.set = true
	l.mu.Unlock()
}

func (l *latched[T]) Get() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.val, l.set
}

// Adapters is the set of latched input topics the loop reads at the start of
// every cycle. Writers may publish from any goroutine.
type Adapters struct {
	Localization latched[msgs.LocalizationEstimate]
	Chassis      latched[msgs.Chassis]
	Routing      latched[msgs.RoutingResponse]
	Prediction   latched[msgs.PredictionObstacles]
	TrafficLight latched[msgs.TrafficLightDetection]
	RelativeMap  latched[msgs.RelativeMap]
}

// Snapshot is one cycle's consistent view of all inputs.
type Snapshot struct {
	Localization msgs.LocalizationEstimate
	Chassis      msgs.Chassis
	Routing      msgs.RoutingResponse
	Prediction   msgs.PredictionObstacles
	TrafficLight msgs.TrafficLightDetection
	RelativeMap  msgs.RelativeMap

	HasLocalization bool
	HasChassis      bool
	HasRouting      bool
	HasPrediction   bool
	HasTrafficLight bool
	HasRelativeMap  bool
}

// Observe copies the latest value of every topic. Each topic is read
// atomically; the snapshot as a whole is the freshest value of each at the
// moment of the call.
func (a *Adapters) Observe() Snapshot {
	var s Snapshot
	s.Localization, s.HasLocalization = a.Localization.Get()
	s.Chassis, s.HasChassis = a.Chassis.Get()
	s.Routing, s.HasRouting = a.Routing.Get()
	s.Prediction, s.HasPrediction = a.Prediction.Get()
	s.TrafficLight, s.HasTrafficLight = a.TrafficLight.Get()
	s.RelativeMap, s.HasRelativeMap = a.RelativeMap.Get()
	return s
}
