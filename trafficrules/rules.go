package trafficrules

import (
	"github.com/pkg/errors"

	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/obstacle"
	"github.com/openavp/planning/stgraph"
)

// destinationRule fences the route end so the vehicle stops there instead of
// driving off the known route.
type destinationRule struct {
	cfg Config
}

func (r *destinationRule) Name() string { return "destination" }

func (r *destinationRule) Apply(ctx *Context) error {
	if ctx.Routing == nil || len(ctx.Routing.Segments) == 0 {
		return nil
	}
	line := ctx.Info.ReferenceLine()
	destS := ctx.Routing.Length()
	if destS > line.Length() {
		// destination lies beyond this candidate; a later route segment
		// will fence it
		return nil
	}
	if adcS, ok := ctx.adcS(); ok && adcS > destS {
		return nil
	}
	stopS := destS - r.cfg.DestinationStopDistance
	if stopS < 0 {
		stopS = 0
	}
	addStopFence(ctx, "destination", stopS)
	return nil
}

// signalLightRule fences the stop line of every governed signal that is not
// showing a trustworthy green.
type signalLightRule struct {
	cfg Config
}

func (r *signalLightRule) Name() string { return "signal_light" }

func (r *signalLightRule) Apply(ctx *Context) error {
	if ctx.TrafficLight == nil {
		return nil
	}
	adcS, hasADC := ctx.adcS()
	for _, light := range ctx.TrafficLight.Lights {
		if light.Color == msgs.ColorGreen && light.Confidence >= r.cfg.MinPassConfidence {
			continue
		}
		for _, stopLine := range r.cfg.SignalStopLines {
			if stopLine.LaneID != light.LaneID {
				continue
			}
			if hasADC && adcS > stopLine.StopS {
				// already past the stop line, do not brake inside the
				// junction
				continue
			}
			addStopFence(ctx, "signal_"+light.LaneID, stopLine.StopS)
		}
	}
	return nil
}

// obstacleRule projects every perceived obstacle into the station-time plane
// and records a decision against it.
type obstacleRule struct {
	cfg Config
}

func (r *obstacleRule) Name() string { return "obstacle" }

func (r *obstacleRule) Apply(ctx *Context) error {
	for _, o := range ctx.Info.Obstacles() {
		if o.IsVirtual {
			continue
		}
		b := o.ComputeSTBoundary(ctx.Info.ReferenceLine(), obstacle.DefaultSTBoundaryOptions())
		if b.IsEmpty() {
			ctx.Info.AddObjectDecision(msgs.ObjectDecision{ObstacleID: o.ID, Type: msgs.ObjectIgnore})
			continue
		}
		if o.IsStatic {
			b.SetType(stgraph.Stop)
			ctx.Info.AddObjectDecision(msgs.ObjectDecision{
				ObstacleID: o.ID,
				Type:       msgs.ObjectStop,
				FenceS:     b.MinS() - r.cfg.StopDistance,
			})
		} else {
			b.SetType(stgraph.Yield)
			ctx.Info.AddObjectDecision(msgs.ObjectDecision{ObstacleID: o.ID, Type: msgs.ObjectYield})
		}
		ctx.Info.AddSTBoundary(b)
	}
	return nil
}

// keepClearRule marks the configured no stopping zones of the line.
type keepClearRule struct {
	cfg Config
}

func (r *keepClearRule) Name() string { return "keep_clear" }

func (r *keepClearRule) Apply(ctx *Context) error {
	opts := obstacle.DefaultSTBoundaryOptions()
	for _, zone := range r.cfg.KeepClearZones {
		if zone.EndS <= zone.StartS {
			return errors.Errorf("keep clear zone %q has non-positive extent", zone.ID)
		}
		if zone.StartS > ctx.Info.ReferenceLine().Length() {
			continue
		}
		lower := []stgraph.STPoint{{S: zone.StartS, T: 0}, {S: zone.StartS, T: opts.PlanningHorizon}}
		upper := []stgraph.STPoint{{S: zone.EndS, T: 0}, {S: zone.EndS, T: opts.PlanningHorizon}}
		b := stgraph.NewBoundaryFromChains(lower, upper)
		b.SetID("keep_clear_" + zone.ID)
		b.SetType(stgraph.KeepClear)
		b.SetSHighLimit(opts.SHighLimit)
		ctx.Info.AddSTBoundary(b)
		ctx.Info.AddObjectDecision(msgs.ObjectDecision{
			ObstacleID: "keep_clear_" + zone.ID,
			Type:       msgs.ObjectKeepClear,
			FenceS:     zone.StartS,
		})
	}
	return nil
}

// addStopFence injects a virtual stop obstacle at stopS and the matching
// boundary and decision.
func addStopFence(ctx *Context, id string, stopS float64) {
	line := ctx.Info.ReferenceLine()
	fence := obstacle.NewVirtualStop(id, line, stopS)
	ctx.Info.AddObstacle(fence)
	b := fence.ComputeSTBoundary(line, obstacle.DefaultSTBoundaryOptions())
	b.SetType(stgraph.Stop)
	ctx.Info.AddSTBoundary(b)
	ctx.Info.AddObjectDecision(msgs.ObjectDecision{
		ObstacleID: fence.ID,
		Type:       msgs.ObjectStop,
		FenceS:     stopS,
	})
}
