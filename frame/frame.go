package frame

import (
	"math"

	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/obstacle"
	"github.com/openavp/planning/refline"
	"github.com/openavp/planning/vehiclestate"
)

// ErrNoReferenceLine is returned by Init when the provider supplies no
// candidate.
var ErrNoReferenceLine = errors.New("reference line provider returned no candidate")

// Frame is the per-cycle anchor: everything one planning pass needs, and the
// trajectory it produces. A Frame is the unique owner of its
// ReferenceLineInfos.
type Frame struct {
	sequenceNum        uint32
	startTime          float64
	planningStartPoint msgs.TrajectoryPoint
	vehicleState       vehiclestate.State

	referenceLineInfos []*ReferenceLineInfo
	obstacles          []*obstacle.Obstacle

	trajectory msgs.ADCTrajectory
	debug      msgs.Debug
}

// New assembles a frame around the stitch-derived planning start point.
func New(
	sequenceNum uint32,
	planningStartPoint msgs.TrajectoryPoint,
	startTime float64,
	vehicleState vehiclestate.State,
) *Frame {
	return &Frame{
		sequenceNum:        sequenceNum,
		planningStartPoint: planningStartPoint,
		startTime:          startTime,
		vehicleState:       vehicleState,
	}
}

// Init pulls the candidate reference lines from the provider and decorates
// each with the cycle's obstacles. It fails when no candidate is available.
func (f *Frame) Init(provider refline.Provider, obstacles []*obstacle.Obstacle) error {
	lines, err := provider.ReferenceLines()
	if err != nil {
		return errors.Wrap(ErrNoReferenceLine, err.Error())
	}
	if len(lines) == 0 {
		return ErrNoReferenceLine
	}
	f.obstacles = obstacles
	f.referenceLineInfos = f.referenceLineInfos[:0]
	for _, line := range lines {
		f.referenceLineInfos = append(f.referenceLineInfos, newReferenceLineInfo(line, obstacles))
	}
	return nil
}

// SequenceNum returns the cycle's sequence number.
func (f *Frame) SequenceNum() uint32 { return f.sequenceNum }

// StartTime returns the wall-clock start of the cycle, in epoch seconds.
func (f *Frame) StartTime() float64 { return f.startTime }

// PlanningStartPoint returns the point planning begins from.
func (f *Frame) PlanningStartPoint() msgs.TrajectoryPoint { return f.planningStartPoint }

// VehicleState returns the fused state the frame was built with.
func (f *Frame) VehicleState() vehiclestate.State { return f.vehicleState }

// ReferenceLineInfos returns the owned per-line planning states.
func (f *Frame) ReferenceLineInfos() []*ReferenceLineInfo { return f.referenceLineInfos }

// Obstacles returns the cycle's obstacle set.
func (f *Frame) Obstacles() []*obstacle.Obstacle { return f.obstacles }

// Trajectory returns the mutable output message being filled in.
func (f *Frame) Trajectory() *msgs.ADCTrajectory { return &f.trajectory }

// Debug returns the mutable debug payload.
func (f *Frame) Debug() *msgs.Debug { return &f.debug }

// FindDriveReferenceLineInfo returns the drivable candidate with the lowest
// cost and a non-empty trajectory, or nil when none qualifies.
func (f *Frame) FindDriveReferenceLineInfo() *ReferenceLineInfo {
	minCost := math.Inf(1)
	var best *ReferenceLineInfo
	for _, info := range f.referenceLineInfos {
		if !info.IsDrivable() || len(info.Trajectory()) == 0 {
			continue
		}
		if info.Cost() < minCost {
			minCost = info.Cost()
			best = info
		}
	}
	return best
}
