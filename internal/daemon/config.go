// Package daemon holds the demo driver's configuration: a TOML file with
// environment-variable overrides.
//
// The adaptation core itself takes no configuration from the environment;
// everything here feeds the driver — which engine features to switch on,
// where to serve statistics, whether to record snapshots to SQLite.
package daemon

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the full driver configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Engine   EngineConfig   `toml:"engine"`
	Workload WorkloadConfig `toml:"workload"`
	Stats    StatsConfig    `toml:"stats"`
}

// APIConfig configures the statistics HTTP server.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// EngineConfig maps onto the engine's feature controls.
type EngineConfig struct {
	MagnifyCountByDeviation  bool    `toml:"magnify_count_by_deviation"`
	ProbabilityOfExploration float64 `toml:"probability_of_exploration"`
	DeemphasizeHistory       bool    `toml:"deemphasize_history"`
	DeemphasizeAlpha         float64 `toml:"deemphasize_alpha"`
	ForgetHistory            bool    `toml:"forget_history"`
	ForgetBeta               float64 `toml:"forget_beta"`
	UseFastReactionStrategy  bool    `toml:"use_fast_reaction_strategy"`
}

// WorkloadConfig shapes the synthetic workload the demo drives.
type WorkloadConfig struct {
	Invocations      int     `toml:"invocations"`
	MeanSeconds      float64 `toml:"mean_seconds"`
	WindowFrac       float64 `toml:"window_frac"`
	Stickiness       int     `toml:"stickiness"`
	SlidingWindow    int     `toml:"sliding_window"`
	ReportEvery      int     `toml:"report_every"`
	AlternativeCount int     `toml:"alternative_count"`
}

// StatsConfig configures snapshot recording.
type StatsConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// DefaultConfig returns the defaults the demo runs with when no file or
// environment overrides are present. Engine defaults mirror the engine's
// own feature defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    7171,
		},
		Engine: EngineConfig{
			MagnifyCountByDeviation:  true,
			ProbabilityOfExploration: 0,
			DeemphasizeHistory:       true,
			DeemphasizeAlpha:         0.99,
			ForgetHistory:            true,
			ForgetBeta:               0.001,
			UseFastReactionStrategy:  false,
		},
		Workload: WorkloadConfig{
			Invocations:      200,
			MeanSeconds:      0.005,
			WindowFrac:       0.3,
			Stickiness:       0,
			SlidingWindow:    1,
			ReportEvery:      0,
			AlternativeCount: 4,
		},
		Stats: StatsConfig{SQLitePath: ""},
	}
}

// Load reads the config file at path (missing file means defaults), then
// applies CADENCE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays the environment-variable controls onto cfg.
func applyEnv(cfg *Config) {
	envBool("CADENCE_MAGNIFY_COUNT_BY_DEVIATION", &cfg.Engine.MagnifyCountByDeviation)
	envFloat("CADENCE_PROBABILITY_OF_EXPLORATION", &cfg.Engine.ProbabilityOfExploration)
	envBool("CADENCE_DEEMPHASIZE_HISTORY", &cfg.Engine.DeemphasizeHistory)
	envFloat("CADENCE_DEEMPHASIZE_ALPHA", &cfg.Engine.DeemphasizeAlpha)
	envBool("CADENCE_FORGET_HISTORY", &cfg.Engine.ForgetHistory)
	envFloat("CADENCE_FORGET_BETA", &cfg.Engine.ForgetBeta)
	envBool("CADENCE_USE_FAST_REACTION_STRATEGY", &cfg.Engine.UseFastReactionStrategy)

	envInt("CADENCE_INVOCATIONS", &cfg.Workload.Invocations)
	envFloat("CADENCE_MEAN_SECONDS", &cfg.Workload.MeanSeconds)
	envFloat("CADENCE_WINDOW_FRAC", &cfg.Workload.WindowFrac)
	envInt("CADENCE_STICKINESS", &cfg.Workload.Stickiness)
	envInt("CADENCE_SLIDING_WINDOW", &cfg.Workload.SlidingWindow)

	envBool("CADENCE_API_ENABLED", &cfg.API.Enabled)
	envInt("CADENCE_API_PORT", &cfg.API.Port)
	envString("CADENCE_STATS_SQLITE", &cfg.Stats.SQLitePath)
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envFloat(name string, dst *float64) {
	if v, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}
