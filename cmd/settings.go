package cmd

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/sensitivity"
)

// runSettings are the model settings of `capsim run`. Scenario data lives in
// the scenario files; everything here applies to the whole batch.
type runSettings struct {
	WeibullShape   float64
	WeibullScale   float64
	Sensitivity    float64
	SA             bool
	IncludeWeibull bool
	Workers        int
	Audit          bool
	TargetYear     int
	PlotStart      int
	PlotEnd        int
	ChartFormat    string
	CohortDetail   bool
	ResultsDir     string
	Archive        string
}

func defaultRunSettings() runSettings {
	return runSettings{
		WeibullShape: sim.DefaultWeibull.Shape,
		WeibullScale: sim.DefaultWeibull.Scale,
		Sensitivity:  sensitivity.DefaultSensitivity,
		SA:           true,
		TargetYear:   2035,
		PlotStart:    2025,
		PlotEnd:      2050,
		ChartFormat:  "png",
		ResultsDir:   "results",
	}
}

func (s runSettings) weibull() sim.WeibullParams {
	return sim.WeibullParams{Shape: s.WeibullShape, Scale: s.WeibullScale}
}

func (s runSettings) plotWindow() sim.Horizon {
	return sim.NewHorizon(s.PlotStart, s.PlotEnd)
}

var validChartFormats = map[string]bool{"png": true, "svg": true, "pdf": true}

// Validate checks the settings that do not depend on a scenario.
func (s runSettings) Validate() error {
	if err := s.weibull().Validate(); err != nil {
		return err
	}
	if s.SA {
		if err := (sensitivity.Options{Sensitivity: s.Sensitivity}).Validate(); err != nil {
			return err
		}
	}
	if s.PlotEnd < s.PlotStart {
		return fmt.Errorf("%w: plot window %d..%d is empty", sim.ErrConfiguration, s.PlotStart, s.PlotEnd)
	}
	if !validChartFormats[s.ChartFormat] {
		return fmt.Errorf("%w: unknown chart format %q (png, svg, pdf)", sim.ErrConfiguration, s.ChartFormat)
	}
	if s.ResultsDir == "" {
		return fmt.Errorf("%w: results directory is empty", sim.ErrConfiguration)
	}
	return nil
}

// envSettings are the environment overrides. Unset variables keep their zero
// value and leave the corresponding flag alone.
type envSettings struct {
	ResultsDir string `env:"CAPSIM_RESULTS_DIR"`
	Workers    int    `env:"CAPSIM_WORKERS"`
	LogLevel   string `env:"CAPSIM_LOG_LEVEL"`
	Archive    string `env:"CAPSIM_ARCHIVE"`
}

func loadEnv() (envSettings, error) {
	var e envSettings
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// apply overlays the environment onto s. Flags set on the command line win.
func (e envSettings) apply(s *runSettings, changed func(name string) bool) {
	if e.ResultsDir != "" && !changed("results-dir") {
		s.ResultsDir = e.ResultsDir
	}
	if e.Workers > 0 && !changed("workers") {
		s.Workers = e.Workers
	}
	if e.Archive != "" && !changed("archive") {
		s.Archive = e.Archive
	}
}
