// Package config loads and validates the planning process configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/openavp/planning/planner"
	"github.com/openavp/planning/trafficrules"
)

// Config is the top level planning configuration.
type Config struct {
	PlannerType      planner.Type `json:"planner_type"`
	PlanningLoopRate float64      `json:"planning_loop_rate"`

	UseNavigationMode           bool `json:"use_navigation_mode"`
	EnableMapReferenceUnify     bool `json:"enable_map_reference_unify"`
	EnablePrediction            bool `json:"enable_prediction"`
	EstimateCurrentVehicleState bool `json:"estimate_current_vehicle_state"`
	PublishEStop                bool `json:"publish_estop"`
	UsePlanningFallback         bool `json:"use_planning_fallback"`

	NavigationFallbackCruiseTime    float64 `json:"navigation_fallback_cruise_time"`
	TrajectoryTimeHighDensityPeriod float64 `json:"trajectory_time_high_density_period"`

	PlanningTestMode bool    `json:"planning_test_mode"`
	TestDurationSec  float64 `json:"test_duration_sec"`

	FrameHistoryCapacity int `json:"frame_history_capacity"`

	// PlannerConfigFile and TrafficRuleConfigFile name JSON files loaded
	// into Planner and TrafficRules, resolved relative to the main config
	// file. Inline values are overwritten by the referenced files.
	PlannerConfigFile     string `json:"planner_config_file,omitempty"`
	TrafficRuleConfigFile string `json:"traffic_rule_config_file,omitempty"`

	Planner      planner.Config      `json:"planner"`
	TrafficRules trafficrules.Config `json:"traffic_rules"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		PlannerType:                     planner.TypeEM,
		PlanningLoopRate:                10,
		EnableMapReferenceUnify:         true,
		EnablePrediction:                true,
		UsePlanningFallback:             true,
		NavigationFallbackCruiseTime:    3,
		TrajectoryTimeHighDensityPeriod: 1,
		FrameHistoryCapacity:            200,
	}
}

// Load reads a JSON config file, resolves referenced sub-config files, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	dir := filepath.Dir(path)
	if cfg.PlannerConfigFile != "" {
		if err := loadInto(filepath.Join(dir, cfg.PlannerConfigFile), &cfg.Planner); err != nil {
			return Config{}, errors.Wrap(err, "planner config")
		}
	}
	if cfg.TrafficRuleConfigFile != "" {
		if err := loadInto(filepath.Join(dir, cfg.TrafficRuleConfigFile), &cfg.TrafficRules); err != nil {
			return Config{}, errors.Wrap(err, "traffic rule config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadInto(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	switch c.PlannerType {
	case planner.TypeRTK, planner.TypeEM, planner.TypeLattice, planner.TypeNavi:
	default:
		return errors.Errorf("invalid planner_type %q", c.PlannerType)
	}
	if c.PlanningLoopRate <= 0 {
		return errors.Errorf("planning_loop_rate must be positive, got %v", c.PlanningLoopRate)
	}
	if c.UsePlanningFallback && c.NavigationFallbackCruiseTime <= 0 {
		return errors.New("navigation_fallback_cruise_time must be positive when fallback is enabled")
	}
	if c.PlanningTestMode && c.TestDurationSec < 0 {
		return errors.New("test_duration_sec must not be negative")
	}
	if c.FrameHistoryCapacity <= 0 {
		return errors.New("frame_history_capacity must be positive")
	}
	return nil
}

// CycleTime returns the loop period in seconds.
func (c Config) CycleTime() float64 { return 1 / c.PlanningLoopRate }
