package planning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/openavp/planning/config"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/refline"

	// registered planner backends
	_ "github.com/openavp/planning/planner/public"
)

type publishRecorder struct {
	mu       sync.Mutex
	messages []*msgs.ADCTrajectory
}

func (r *publishRecorder) publish(t *msgs.ADCTrajectory) {
	r.mu.Lock()
	r.messages = append(r.messages, t)
	r.mu.Unlock()
}

func (r *publishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func testLoopConfig() config.Config {
	cfg := config.Default()
	cfg.Planner.CruiseSpeedMPS = 10
	cfg.Planner.MaxAcceleration = 2
	cfg.Planner.MaxDeceleration = 4
	// keep the raw planner output inspectable
	cfg.TrajectoryTimeHighDensityPeriod = 0
	return cfg
}

func straightProvider(t *testing.T) *refline.WaypointProvider {
	t.Helper()
	waypoints := make([]r2.Point, 0, 201)
	for i := 0; i <= 200; i++ {
		waypoints = append(waypoints, r2.Point{X: float64(i), Y: 0})
	}
	provider, err := refline.NewWaypointProvider(map[string][]r2.Point{"lane_a": waypoints})
	test.That(t, err, test.ShouldBeNil)
	return provider
}

func feedInputs(a *Adapters, nowSec, x, v float64) {
	heading := 0.0
	a.Localization.Set(msgs.LocalizationEstimate{
		Header: &msgs.Header{TimestampSec: nowSec},
		Pose: &msgs.Pose{
			Position:              &r3.Vector{X: x, Y: 0},
			Heading:               &heading,
			AngularVelocityVRF:    &r3.Vector{},
			LinearAccelerationVRF: &r3.Vector{},
		},
	})
	gear := msgs.GearDrive
	a.Chassis.Set(msgs.Chassis{
		Header:       &msgs.Header{TimestampSec: nowSec},
		SpeedMPS:     &v,
		GearLocation: &gear,
	})
	a.Routing.Set(msgs.RoutingResponse{
		Header:   &msgs.Header{TimestampSec: nowSec},
		Segments: []msgs.LaneSegment{{LaneID: "lane_a", StartS: 0, EndS: 500}},
	})
}

func newTestLoop(t *testing.T, cfg config.Config) (*Loop, *Adapters, *publishRecorder, *clock.Mock) {
	t.Helper()
	logger := golog.NewTestLogger(t)
	adapters := &Adapters{}
	recorder := &publishRecorder{}
	mock := clock.NewMock()
	mock.Set(time.Unix(1000, 0))
	l, err := NewLoop(cfg, adapters, straightProvider(t), recorder.publish, logger, WithClock(mock))
	test.That(t, err, test.ShouldBeNil)
	return l, adapters, recorder, mock
}

func TestLoopNotReadyLeavesHistoryUntouched(t *testing.T) {
	l, _, recorder, _ := newTestLoop(t, testLoopConfig())

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.InputNotReady)
	test.That(t, out.Decision.Main.NotReady, test.ShouldNotBeNil)
	test.That(t, l.History().Len(), test.ShouldEqual, 0)

	// with nothing changed, repeating the cycle still leaves no history
	out = l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.InputNotReady)
	test.That(t, l.History().Len(), test.ShouldEqual, 0)
	test.That(t, recorder.count(), test.ShouldEqual, 2)
}

func TestLoopPublishesCruiseTrajectory(t *testing.T) {
	l, adapters, recorder, mock := newTestLoop(t, testLoopConfig())
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.OK)
	test.That(t, out.Header.TimestampSec, test.ShouldAlmostEqual, nowSec, 1e-6)
	test.That(t, out.Header.SequenceNum, test.ShouldEqual, uint32(1))
	test.That(t, out.IsReplan, test.ShouldBeTrue)
	test.That(t, out.Gear, test.ShouldEqual, msgs.GearDrive)
	test.That(t, out.LaneIDs, test.ShouldResemble, []string{"lane_a"})
	test.That(t, len(out.TrajectoryPoints), test.ShouldBeGreaterThanOrEqualTo, 80)
	for _, pt := range out.TrajectoryPoints {
		test.That(t, pt.V, test.ShouldAlmostEqual, 10.0, 1e-6)
	}
	// first point starts at the reinitialized stitch, relative time zero
	test.That(t, out.TrajectoryPoints[0].RelativeTime, test.ShouldAlmostEqual, 0.0, 1e-6)
	test.That(t, l.History().Len(), test.ShouldEqual, 1)
	test.That(t, recorder.count(), test.ShouldEqual, 1)
	test.That(t, out.Debug, test.ShouldNotBeNil)
	test.That(t, out.LatencyStats.TaskStats[0].Name, test.ShouldEqual, "public")
}

func TestLoopSecondCycleContinues(t *testing.T) {
	l, adapters, _, mock := newTestLoop(t, testLoopConfig())
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)

	first := l.RunOnce(context.Background())
	test.That(t, first.IsReplan, test.ShouldBeTrue)

	// one cycle later the vehicle tracked the plan
	mock.Add(100 * time.Millisecond)
	nowSec = float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 1.0, 10)

	second := l.RunOnce(context.Background())
	test.That(t, second.Header.Status.Code, test.ShouldEqual, msgs.OK)
	test.That(t, second.IsReplan, test.ShouldBeFalse)
	test.That(t, second.Header.SequenceNum, test.ShouldEqual, uint32(2))
	// header timestamp consistency: the first point's relative time equals
	// the stitch endpoint's offset from the header, one cycle ahead
	test.That(t, second.TrajectoryPoints[0].RelativeTime, test.ShouldAlmostEqual, 0.1, 1e-6)
	test.That(t, l.History().Len(), test.ShouldEqual, 2)
}

func TestLoopFallbackRepublishesPrevious(t *testing.T) {
	cfg := testLoopConfig()
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)

	first := l.RunOnce(context.Background())
	test.That(t, first.Header.Status.Code, test.ShouldEqual, msgs.OK)

	// park the vehicle at the very end of the lane so planning fails
	mock.Add(100 * time.Millisecond)
	nowSec = float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 200, 10)

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.PlanningError)
	test.That(t, len(out.TrajectoryPoints), test.ShouldBeGreaterThan, 0)
	// the previous plan is re-timed by the header delta
	delta := first.Header.TimestampSec - out.Header.TimestampSec
	test.That(t, out.TrajectoryPoints[0].RelativeTime,
		test.ShouldAlmostEqual, first.TrajectoryPoints[0].RelativeTime+delta, 1e-6)
}

func TestLoopFallbackSynthesizesCruise(t *testing.T) {
	cfg := testLoopConfig()
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	// no previous trajectory exists and the vehicle is off the end of the
	// lane, so the first cycle already falls back
	feedInputs(adapters, nowSec, 200, 5)

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.PlanningError)
	n := int(cfg.NavigationFallbackCruiseTime/0.1) + 1
	test.That(t, len(out.TrajectoryPoints), test.ShouldEqual, n)
	for _, pt := range out.TrajectoryPoints {
		test.That(t, pt.V, test.ShouldAlmostEqual, 5.0, 1e-9)
	}
	last := out.TrajectoryPoints[n-1]
	test.That(t, last.PathPoint.X, test.ShouldAlmostEqual, 200+5*cfg.NavigationFallbackCruiseTime, 1e-6)
}

func TestLoopEStopOnBadLocalization(t *testing.T) {
	cfg := testLoopConfig()
	cfg.PublishEStop = true
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)
	// strip the pose so state fusion fails
	adapters.Localization.Set(msgs.LocalizationEstimate{
		Header: &msgs.Header{TimestampSec: nowSec},
	})

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.LocalizationError)
	test.That(t, out.EStop, test.ShouldNotBeNil)
	test.That(t, out.EStop.IsEStop, test.ShouldBeTrue)
	test.That(t, l.History().Len(), test.ShouldEqual, 0)
}

func TestLoopStopObstacleDecision(t *testing.T) {
	cfg := testLoopConfig()
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)
	adapters.Prediction.Set(msgs.PredictionObstacles{
		Obstacles: []msgs.PredictionObstacle{{
			ID:       "veh_1",
			Position: r3.Vector{X: 30, Y: 0},
			Length:   4,
			Width:    2,
			IsStatic: true,
		}},
	})

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.OK)
	var stopDecision *msgs.ObjectDecision
	for i, d := range out.Decision.ObjectDecisions {
		if d.ObstacleID == "veh_1" {
			stopDecision = &out.Decision.ObjectDecisions[i]
		}
	}
	test.That(t, stopDecision, test.ShouldNotBeNil)
	test.That(t, stopDecision.Type, test.ShouldEqual, msgs.ObjectStop)
	// the plan comes to rest before the blocked band at 30 - length/2 - buffer
	last := out.TrajectoryPoints[len(out.TrajectoryPoints)-1]
	test.That(t, last.PathPoint.X, test.ShouldBeLessThan, 27.0)
	test.That(t, last.V, test.ShouldBeLessThan, 0.5)
}

func TestLoopStopObstacleDecisionMidLane(t *testing.T) {
	cfg := testLoopConfig()
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	// the vehicle is already 20 m down the lane when the blocker appears
	feedInputs(adapters, nowSec, 20, 5)
	adapters.Prediction.Set(msgs.PredictionObstacles{
		Obstacles: []msgs.PredictionObstacle{{
			ID:       "veh_1",
			Position: r3.Vector{X: 30, Y: 0},
			Length:   4,
			Width:    2,
			IsStatic: true,
		}},
	})

	out := l.RunOnce(context.Background())
	test.That(t, out.Header.Status.Code, test.ShouldEqual, msgs.OK)
	// the plan still comes to rest before the blocked band at
	// 30 - length/2 - buffer, not that distance past it
	for _, pt := range out.TrajectoryPoints {
		test.That(t, pt.PathPoint.X, test.ShouldBeLessThan, 27.0)
	}
	last := out.TrajectoryPoints[len(out.TrajectoryPoints)-1]
	test.That(t, last.V, test.ShouldBeLessThan, 0.5)
}

func TestLoopNavigationRebuildKeepsRoute(t *testing.T) {
	cfg := testLoopConfig()
	cfg.UseNavigationMode = true
	l, adapters, _, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)

	lane := func(id string, y float64) msgs.RelativeLane {
		pts := make([]msgs.PathPoint, 0, 201)
		for i := 0; i <= 200; i++ {
			pts = append(pts, msgs.PathPoint{X: float64(i), Y: y})
		}
		return msgs.RelativeLane{ID: id, Points: pts}
	}
	adapters.RelativeMap.Set(msgs.RelativeMap{
		Lanes: []msgs.RelativeLane{lane("lane_a", 0), lane("lane_b", 3)},
	})

	first := l.RunOnce(context.Background())
	test.That(t, first.Header.Status.Code, test.ShouldEqual, msgs.OK)

	// the provider is rebuilt every navigation cycle; with the route
	// unchanged it must still be routed, keeping lane_b out
	mock.Add(100 * time.Millisecond)
	second := l.RunOnce(context.Background())
	test.That(t, second.Header.Status.Code, test.ShouldEqual, msgs.OK)
	test.That(t, second.LaneIDs, test.ShouldResemble, []string{"lane_a"})

	lines, err := l.provider.ReferenceLines()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(lines), test.ShouldEqual, 1)
	test.That(t, lines[0].ID(), test.ShouldEqual, "lane_a")
}

func TestLoopStartStop(t *testing.T) {
	cfg := testLoopConfig()
	l, adapters, recorder, mock := newTestLoop(t, cfg)
	nowSec := float64(mock.Now().UnixNano()) / 1e9
	feedInputs(adapters, nowSec, 0, 10)

	test.That(t, l.Start(), test.ShouldBeNil)
	test.That(t, l.Start(), test.ShouldNotBeNil)

	// three ticks of the mock clock drive three cycles
	for i := 0; i < 3; i++ {
		mock.Add(100 * time.Millisecond)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, recorder.count(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	l.Stop()
	// stopping twice is safe
	l.Stop()
}
