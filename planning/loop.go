package planning

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/openavp/planning/config"
	"github.com/openavp/planning/frame"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/obstacle"
	"github.com/openavp/planning/planner"
	"github.com/openavp/planning/refline"
	"github.com/openavp/planning/spatialmath"
	"github.com/openavp/planning/trafficrules"
	"github.com/openavp/planning/vehiclestate"
)

const (
	moduleName = "planning"

	// states fresher than this are extrapolated to the cycle start instead
	// of being used as-is
	messageLatencyThreshold = 0.02

	fallbackTimeStep    = 0.1
	highDensityTimeStep = 0.02
)

// PublishFunc delivers one finished cycle output to the middleware.
type PublishFunc func(*msgs.ADCTrajectory)

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithClock substitutes the wall clock, letting tests drive cycles
// deterministically.
func WithClock(c clock.Clock) LoopOption {
	return func(l *Loop) { l.clock = c }
}

// WithStitcherOptions overrides the stitch thresholds.
func WithStitcherOptions(opts StitcherOptions) LoopOption {
	return func(l *Loop) { l.stitcher = NewStitcher(opts) }
}

// Loop drives the fixed-rate planning cycle: observe inputs, fuse state,
// stitch, frame, decide, plan, publish, archive.
type Loop struct {
	cfg      config.Config
	logger   golog.Logger
	clock    clock.Clock
	adapters *Adapters
	provider refline.Provider

	stateProvider *vehiclestate.Provider
	stitcher      *Stitcher
	decider       *trafficrules.Decider
	backend       planner.Planner
	history       *frame.History
	publish       PublishFunc

	sequenceNum atomic.Uint32

	// cycle-local bookkeeping, touched only by the planning goroutine
	lastPublished *PublishableTrajectory
	lastRouting   *msgs.RoutingResponse
	lastState     vehiclestate.State
	hasLastState  bool
	pullOver      bool

	mu                      sync.Mutex
	running                 bool
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop wires a loop from validated configuration. The planner backend is
// resolved from the registry and initialized once.
func NewLoop(
	cfg config.Config,
	adapters *Adapters,
	provider refline.Provider,
	publish PublishFunc,
	logger golog.Logger,
	opts ...LoopOption,
) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := planner.New(cfg.PlannerType, logger)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(cfg.Planner.WithDefaults()); err != nil {
		return nil, errors.Wrapf(err, "initializing %q planner", cfg.PlannerType)
	}
	l := &Loop{
		cfg:      cfg,
		logger:   logger,
		clock:    clock.New(),
		adapters: adapters,
		provider: provider,
		stateProvider: vehiclestate.NewProvider(vehiclestate.Options{
			EnableMapReferenceUnify: cfg.EnableMapReferenceUnify,
			UseNavigationMode:       cfg.UseNavigationMode,
		}, logger),
		stitcher: NewStitcher(DefaultStitcherOptions()),
		decider:  trafficrules.NewDecider(cfg.TrafficRules, logger),
		backend:  backend,
		history:  frame.NewHistory(cfg.FrameHistoryCapacity),
		publish:  publish,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// History exposes the archived frames.
func (l *Loop) History() *frame.History { return l.history }

// SequenceNum returns the sequence number of the last archived cycle.
func (l *Loop) SequenceNum() uint32 { return l.sequenceNum.Load() }

// Start launches the cycle goroutine. In test mode with a positive duration
// the loop stops itself once the duration elapses.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("planning loop already running")
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true

	period := time.Duration(l.cfg.CycleTime() * float64(time.Second))
	startedAt := l.clock.Now()
	ticker := l.clock.Ticker(period)

	l.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		defer ticker.Stop()
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if l.cfg.PlanningTestMode && l.cfg.TestDurationSec > 0 &&
				l.clock.Since(startedAt).Seconds() >= l.cfg.TestDurationSec {
				l.logger.Infow("test duration elapsed, stopping", "duration_sec", l.cfg.TestDurationSec)
				return
			}
			l.RunOnce(cancelCtx)
		}
	}, l.activeBackgroundWorkers.Done)
	return nil
}

// Stop halts the cycle goroutine and waits for it.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
	l.activeBackgroundWorkers.Wait()
	l.running = false
}

// RunOnce executes a single planning cycle and returns what it published.
func (l *Loop) RunOnce(ctx context.Context) msgs.ADCTrajectory {
	cycleStart := l.clock.Now()
	now := epochSeconds(cycleStart)
	snapshot := l.adapters.Observe()

	if missing := missingInputs(&snapshot, l.cfg.UseNavigationMode); len(missing) > 0 {
		return l.publishNotReady(now, strings.Join(missing, ", "))
	}

	if l.cfg.UseNavigationMode {
		l.rebuildNavigationProvider(&snapshot)
	}

	state, err := l.fuseVehicleState(&snapshot, now)
	if err != nil {
		l.logger.Errorw("vehicle state rejected", "error", err)
		return l.publishFatal(now, errorCodeOf(err), err.Error())
	}

	if l.cfg.UseNavigationMode {
		l.shiftLastTrajectoryToBodyFrame(state)
	}
	l.lastState = state
	l.hasLastState = true

	l.updateRoute(&snapshot, state)

	stitch, isReplan := l.stitcher.ComputeStitchingTrajectory(state, now, l.cfg.CycleTime(), l.lastPublished)
	startPoint := stitch[len(stitch)-1]

	seq := l.sequenceNum.Load() + 1
	f := frame.New(seq, startPoint, now, state)
	frameStart := l.clock.Now()
	var obstacles []*obstacle.Obstacle
	if l.cfg.EnablePrediction && snapshot.HasPrediction {
		obstacles = obstacle.FromPrediction(&snapshot.Prediction)
	}
	if err := f.Init(l.provider, obstacles); err != nil {
		l.logger.Errorw("frame initialization failed", "error", err)
		return l.publishFatal(now, errorCodeOf(err), err.Error())
	}
	initFrameMS := millis(l.clock.Since(frameStart))

	l.runTrafficRules(f, &snapshot)

	planStart := l.clock.Now()
	planErr := l.backend.Plan(ctx, startPoint, f)
	planMS := millis(l.clock.Since(planStart))
	best := f.FindDriveReferenceLineInfo()

	var out msgs.ADCTrajectory
	if planErr != nil || best == nil {
		if planErr == nil {
			planErr = ErrPlanFailed
		}
		l.logger.Warnw("cycle fell back", "error", planErr)
		out = l.fallbackTrajectory(now, state, planErr)
	} else {
		out = l.assembleTrajectory(now, seq, state, &snapshot, best, isReplan)
	}

	out.LatencyStats = msgs.LatencyStats{
		TotalTimeMS:     millis(l.clock.Since(cycleStart)),
		InitFrameTimeMS: initFrameMS,
		TaskStats: []msgs.TaskStats{
			{Name: l.backend.Name(), TimeMS: planMS},
		},
	}

	l.publish(&out)
	l.lastPublished = NewPublishableTrajectory(now, out.TrajectoryPoints)
	l.history.Add(seq, f)
	l.sequenceNum.Store(seq)
	return out
}

// missingInputs lists the required topics the snapshot lacks.
func missingInputs(s *Snapshot, navigationMode bool) []string {
	var missing []string
	if !s.HasLocalization {
		missing = append(missing, "localization")
	}
	if !s.HasChassis {
		missing = append(missing, "chassis")
	}
	if !s.HasRouting {
		missing = append(missing, "routing")
	}
	if navigationMode && !s.HasRelativeMap {
		missing = append(missing, "relative map")
	}
	return missing
}

// fuseVehicleState runs the provider update plus the optional age
// correction of the position to the cycle start.
func (l *Loop) fuseVehicleState(s *Snapshot, now float64) (vehiclestate.State, error) {
	if err := l.stateProvider.Update(&s.Localization, &s.Chassis); err != nil {
		return vehiclestate.State{}, err
	}
	state := l.stateProvider.State()
	if l.cfg.EstimateCurrentVehicleState {
		if age := now - state.Timestamp; age > 0 && age < messageLatencyThreshold {
			future := l.stateProvider.EstimateFuturePosition(age)
			state.X = future.X
			state.Y = future.Y
			state.Timestamp = now
		}
	}
	if !state.IsValid() {
		return vehiclestate.State{}, errors.Wrap(vehiclestate.ErrLocalization, "fused state has non-finite components")
	}
	return state, nil
}

// rebuildNavigationProvider swaps the reference line provider for one built
// from the latest body-frame lane snapshot.
func (l *Loop) rebuildNavigationProvider(s *Snapshot) {
	lanes := make(map[string][]r2.Point, len(s.RelativeMap.Lanes))
	for _, lane := range s.RelativeMap.Lanes {
		pts := make([]r2.Point, 0, len(lane.Points))
		for _, p := range lane.Points {
			pts = append(pts, r2.Point{X: p.X, Y: p.Y})
		}
		lanes[lane.ID] = pts
	}
	provider, err := refline.NewWaypointProvider(lanes)
	if err != nil {
		l.logger.Warnw("relative map rejected, keeping previous lanes", "error", err)
		return
	}
	// the fresh provider starts without a route; re-feed the current one so
	// updateRoute's change gate does not leave it unrouted
	if l.lastRouting != nil && !provider.UpdateRoutingResponse(l.lastRouting) {
		l.logger.Warnw("current route rejected by rebuilt provider")
	}
	l.provider = provider
}

// shiftLastTrajectoryToBodyFrame re-expresses the previous cycle's
// trajectory in the new body frame using the pose delta since then.
func (l *Loop) shiftLastTrajectoryToBodyFrame(state vehiclestate.State) {
	if !l.hasLastState || l.lastPublished == nil {
		return
	}
	cosH := math.Cos(l.lastState.Heading)
	sinH := math.Sin(l.lastState.Heading)
	dx := state.X - l.lastState.X
	dy := state.Y - l.lastState.Y
	xDiff := cosH*dx + sinH*dy
	yDiff := -sinH*dx + cosH*dy
	thetaDiff := spatialmath.NormalizeAngle(state.Heading - l.lastState.Heading)
	TransformLastPublishedTrajectory(xDiff, yDiff, thetaDiff, l.lastPublished)
}

// updateRoute feeds the provider and clears the pull-over latch on a route
// change.
func (l *Loop) updateRoute(s *Snapshot, state vehiclestate.State) {
	if l.lastRouting == nil || !s.Routing.SameRouteAs(l.lastRouting) {
		routing := s.Routing
		if l.provider.UpdateRoutingResponse(&routing) {
			l.lastRouting = &routing
			if l.pullOver {
				l.logger.Infow("new route, clearing pull-over")
				l.pullOver = false
			}
		} else {
			l.logger.Warnw("routing response rejected by reference line provider")
		}
	}
	l.provider.UpdateVehicleState(state)
}

func (l *Loop) runTrafficRules(f *frame.Frame, s *Snapshot) {
	var trafficLight *msgs.TrafficLightDetection
	if s.HasTrafficLight {
		trafficLight = &s.TrafficLight
	}
	for _, info := range f.ReferenceLineInfos() {
		err := l.decider.Execute(&trafficrules.Context{
			Frame:        f,
			Info:         info,
			Routing:      l.lastRouting,
			TrafficLight: trafficLight,
		})
		if err != nil {
			l.logger.Warnw("traffic rules failed on line",
				"line", info.ReferenceLine().ID(), "error", err)
		}
	}
}

// assembleTrajectory builds the published message for a successful cycle.
func (l *Loop) assembleTrajectory(
	now float64,
	seq uint32,
	state vehiclestate.State,
	s *Snapshot,
	best *frame.ReferenceLineInfo,
	isReplan bool,
) msgs.ADCTrajectory {
	points := best.Trajectory()
	if l.cfg.TrajectoryTimeHighDensityPeriod > 0 && !l.cfg.PlanningTestMode {
		points = densifyTrajectory(points, l.cfg.TrajectoryTimeHighDensityPeriod)
	}
	out := msgs.ADCTrajectory{
		Header: &msgs.Header{
			TimestampSec: now,
			ModuleName:   moduleName,
			SequenceNum:  seq,
			Status:       &msgs.Status{Code: msgs.OK},
		},
		TrajectoryPoints: points,
		Gear:             state.Gear,
		LaneIDs:          []string{best.ReferenceLine().ID()},
		IsReplan:         isReplan,
		RightOfWay:       best.RightOfWay(),
	}
	best.ExportDecision(&out.Decision)
	if s.Routing.Header != nil {
		out.RoutingHeader = s.Routing.Header
	}
	startPoint := best.Trajectory()[0]
	out.Debug = &msgs.Debug{InitPoint: &startPoint}
	if path := best.PathData(); !path.IsEmpty() {
		out.Debug.Paths = append(out.Debug.Paths, msgs.DebugPath{
			Name:   "planned_path",
			Points: path.Points,
		})
	}
	return out
}

// publishNotReady reports a missing input. The frame history is left
// untouched so an unchanged world does not manufacture history entries.
func (l *Loop) publishNotReady(now float64, reason string) msgs.ADCTrajectory {
	l.logger.Warnw("planning cycle not ready", "missing", reason)
	out := msgs.ADCTrajectory{
		Header: &msgs.Header{
			TimestampSec: now,
			ModuleName:   moduleName,
			SequenceNum:  l.sequenceNum.Load(),
			Status:       &msgs.Status{Code: msgs.InputNotReady, Msg: reason},
		},
	}
	out.Decision.Main.NotReady = &msgs.NotReady{Reason: reason}
	l.publish(&out)
	return out
}

// publishFatal reports a cycle that cannot produce any safe trajectory. With
// estop publication enabled the controller is asked to latch a stop.
func (l *Loop) publishFatal(now float64, code msgs.ErrorCode, reason string) msgs.ADCTrajectory {
	out := msgs.ADCTrajectory{
		Header: &msgs.Header{
			TimestampSec: now,
			ModuleName:   moduleName,
			SequenceNum:  l.sequenceNum.Load(),
			Status:       &msgs.Status{Code: code, Msg: reason},
		},
	}
	if l.cfg.PublishEStop {
		out.EStop = &msgs.EStop{IsEStop: true, Reason: reason}
	}
	l.publish(&out)
	return out
}

// fallbackTrajectory keeps the controller fed when planning fails: the
// previous trajectory is re-timed to the new header when one exists,
// otherwise a constant-velocity cruise is synthesized from the state.
func (l *Loop) fallbackTrajectory(now float64, state vehiclestate.State, cause error) msgs.ADCTrajectory {
	out := msgs.ADCTrajectory{
		Header: &msgs.Header{
			TimestampSec: now,
			ModuleName:   moduleName,
			SequenceNum:  l.sequenceNum.Load() + 1,
			Status:       &msgs.Status{Code: errorCodeOf(cause), Msg: cause.Error()},
		},
	}
	if !l.cfg.UsePlanningFallback {
		return out
	}
	if l.lastPublished != nil && l.lastPublished.NumPoints() > 0 {
		shift := l.lastPublished.HeaderTime() - now
		points := make([]msgs.TrajectoryPoint, 0, l.lastPublished.NumPoints())
		for _, p := range l.lastPublished.Points() {
			p.RelativeTime += shift
			points = append(points, p)
		}
		out.TrajectoryPoints = points
		return out
	}
	out.TrajectoryPoints = cruiseTrajectory(state, l.cfg.NavigationFallbackCruiseTime)
	return out
}

// cruiseTrajectory extrapolates the current state at constant velocity.
func cruiseTrajectory(state vehiclestate.State, duration float64) []msgs.TrajectoryPoint {
	n := int(math.Round(duration/fallbackTimeStep)) + 1
	points := make([]msgs.TrajectoryPoint, 0, n)
	cosH := math.Cos(state.Heading)
	sinH := math.Sin(state.Heading)
	for i := 0; i < n; i++ {
		t := float64(i) * fallbackTimeStep
		d := state.LinearVelocity * t
		points = append(points, msgs.TrajectoryPoint{
			PathPoint: msgs.PathPoint{
				X:     state.X + d*cosH,
				Y:     state.Y + d*sinH,
				Theta: state.Heading,
				S:     d,
			},
			V:            state.LinearVelocity,
			RelativeTime: t,
		})
	}
	return points
}

// densifyTrajectory linearly interpolates extra points inside the first
// period seconds of the trajectory, where the controller consumes commands
// at its fastest.
func densifyTrajectory(points []msgs.TrajectoryPoint, period float64) []msgs.TrajectoryPoint {
	if len(points) < 2 {
		return points
	}
	out := make([]msgs.TrajectoryPoint, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		prev, next := points[i-1], points[i]
		if prev.RelativeTime < period {
			for t := prev.RelativeTime + highDensityTimeStep; t < next.RelativeTime-1e-9; t += highDensityTimeStep {
				out = append(out, interpolateTrajectoryPoint(prev, next, t))
			}
		}
		out = append(out, next)
	}
	return out
}

func interpolateTrajectoryPoint(a, b msgs.TrajectoryPoint, t float64) msgs.TrajectoryPoint {
	span := b.RelativeTime - a.RelativeTime
	if span <= 0 {
		return a
	}
	r := (t - a.RelativeTime) / span
	return msgs.TrajectoryPoint{
		PathPoint: msgs.PathPoint{
			X:     a.PathPoint.X + r*(b.PathPoint.X-a.PathPoint.X),
			Y:     a.PathPoint.Y + r*(b.PathPoint.Y-a.PathPoint.Y),
			Theta: a.PathPoint.Theta + r*spatialmath.NormalizeAngle(b.PathPoint.Theta-a.PathPoint.Theta),
			Kappa: a.PathPoint.Kappa + r*(b.PathPoint.Kappa-a.PathPoint.Kappa),
			S:     a.PathPoint.S + r*(b.PathPoint.S-a.PathPoint.S),
		},
		V:            a.V + r*(b.V-a.V),
		A:            a.A + r*(b.A-a.A),
		RelativeTime: t,
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
