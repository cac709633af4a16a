// Package main runs the planning loop as a standalone process: lanes come
// from a waypoint file, inputs arrive as JSON lines on stdin, and published
// trajectories leave as JSON lines on stdout or a file.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/openavp/planning/config"
	"github.com/openavp/planning/msgs"
	"github.com/openavp/planning/planning"
	"github.com/openavp/planning/refline"

	// registered planner backends
	_ "github.com/openavp/planning/planner/public"
	_ "github.com/openavp/planning/planner/rtkreplay"
)

func main() {
	goutils.ContextualMain(mainWithArgs, golog.NewDevelopmentLogger("planningd"))
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	app := &cli.App{
		Name:  "planningd",
		Usage: "periodic motion planning engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "planning configuration JSON; defaults apply when omitted",
			},
			&cli.StringFlag{
				Name:     "lanes",
				Required: true,
				Usage:    "lane waypoint JSON, one point list per lane id",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "file the published trajectories are appended to, JSON per line (default stdout)",
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, c, logger)
		},
	}
	return app.RunContext(ctx, args)
}

func run(ctx context.Context, c *cli.Context, logger golog.Logger) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}

	provider, err := loadLanes(c.String("lanes"))
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open output")
		}
		defer goutils.UncheckedErrorFunc(f.Close)
		out = f
	}
	encoder := json.NewEncoder(out)

	adapters := &planning.Adapters{}
	loop, err := planning.NewLoop(cfg, adapters, provider, func(t *msgs.ADCTrajectory) {
		if err := encoder.Encode(t); err != nil {
			logger.Errorw("failed to write trajectory", "error", err)
		}
	}, logger)
	if err != nil {
		return err
	}

	go feedInputs(ctx, adapters, logger)

	if err := loop.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	loop.Stop()
	return nil
}

// inputEnvelope is one stdin line: exactly one of the topic fields is set.
type inputEnvelope struct {
	Localization *msgs.LocalizationEstimate  `json:"localization,omitempty"`
	Chassis      *msgs.Chassis               `json:"chassis,omitempty"`
	Routing      *msgs.RoutingResponse       `json:"routing,omitempty"`
	Prediction   *msgs.PredictionObstacles   `json:"prediction,omitempty"`
	TrafficLight *msgs.TrafficLightDetection `json:"traffic_light,omitempty"`
	RelativeMap  *msgs.RelativeMap           `json:"relative_map,omitempty"`
}

// feedInputs latches stdin messages into the adapters until EOF or
// cancellation.
func feedInputs(ctx context.Context, adapters *planning.Adapters, logger golog.Logger) {
	decoder := json.NewDecoder(os.Stdin)
	for ctx.Err() == nil {
		var env inputEnvelope
		if err := decoder.Decode(&env); err != nil {
			return
		}
		switch {
		case env.Localization != nil:
			adapters.Localization.Set(*env.Localization)
		case env.Chassis != nil:
			adapters.Chassis.Set(*env.Chassis)
		case env.Routing != nil:
			adapters.Routing.Set(*env.Routing)
		case env.Prediction != nil:
			adapters.Prediction.Set(*env.Prediction)
		case env.TrafficLight != nil:
			adapters.TrafficLight.Set(*env.TrafficLight)
		case env.RelativeMap != nil:
			adapters.RelativeMap.Set(*env.RelativeMap)
		default:
			logger.Warn("input line sets no topic")
		}
	}
}

func loadLanes(path string) (*refline.WaypointProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read lanes")
	}
	var lanes map[string][][2]float64
	if err := json.Unmarshal(raw, &lanes); err != nil {
		return nil, errors.Wrap(err, "parse lanes")
	}
	converted := make(map[string][]r2.Point, len(lanes))
	for id, pts := range lanes {
		line := make([]r2.Point, 0, len(pts))
		for _, p := range pts {
			line = append(line, r2.Point{X: p[0], Y: p[1]})
		}
		converted[id] = line
	}
	return refline.NewWaypointProvider(converted)
}
