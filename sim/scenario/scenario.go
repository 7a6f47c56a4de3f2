// Package scenario reads scenario files and converts them into simulation inputs.
//
// A scenario file is YAML. Every per-year quantity is a Series: either a
// scalar applied to every year of the horizon or a list with exactly one
// value per year. Historical registrations are a list starting at start_year;
// its length sets the number of initialization years and must be the same for
// every vehicle.
//
//	name: baseline
//	start_year: 2025
//	end_year: 2050
//	cagr: 1.5
//	vehicles:
//	  - name: compact
//	    total_mass: 1500
//	    plastic_content: [15, 15.2, ...]
//	    pp_content: 40
//	    pa_content: 8
//	    pc_content: 5
//	    abs_content: 7
//	    registrations: [1000, 1020]
//	    dismantling: {pp_mass: 2, pa_mass: 0.5, pc_mass: 0.3, abs_mass: 0.4}
//	loss: {exports: 30, unknown_whereabouts: 10}
//	recycling: {pp_efficiency: 70, pa_efficiency: 60, pc_efficiency: 50, abs_efficiency: 55}
//	production:
//	  pp_efficiency: 90
//	  ...
//	  max_pp: 25
//	  ...
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/capsim/capsim/sim"
)

// Scenario is the parsed content of one scenario file.
type Scenario struct {
	Name       string         `yaml:"name"`
	StartYear  int            `yaml:"start_year"`
	EndYear    int            `yaml:"end_year"`
	CAGR       float64        `yaml:"cagr"`
	Vehicles   []VehicleSpec  `yaml:"vehicles"`
	Loss       LossSpec       `yaml:"loss"`
	Recycling  RecyclingSpec  `yaml:"recycling"`
	Production ProductionSpec `yaml:"production"`
	ZeroDemand string         `yaml:"zero_demand,omitempty"` // "sentinel" (default) or "strict"

	// Path is the file the scenario was loaded from; empty for Parse.
	Path string `yaml:"-"`
}

// VehicleSpec describes one vehicle model over the horizon.
type VehicleSpec struct {
	Name           string          `yaml:"name"`
	TotalMass      Series          `yaml:"total_mass"`
	PlasticContent Series          `yaml:"plastic_content"`
	PPContent      Series          `yaml:"pp_content"`
	PAContent      Series          `yaml:"pa_content"`
	PCContent      Series          `yaml:"pc_content"`
	ABSContent     Series          `yaml:"abs_content"`
	Registrations  []float64       `yaml:"registrations"`
	Dismantling    DismantlingSpec `yaml:"dismantling"`
}

// DismantlingSpec holds the recovered mass (kg) per dismantled vehicle.
type DismantlingSpec struct {
	PPMass  Series `yaml:"pp_mass"`
	PAMass  Series `yaml:"pa_mass"`
	PCMass  Series `yaml:"pc_mass"`
	ABSMass Series `yaml:"abs_mass"`
}

// LossSpec holds the shares (%) of end-of-life vehicles lost to the domestic system.
type LossSpec struct {
	Exports            Series `yaml:"exports"`
	UnknownWhereabouts Series `yaml:"unknown_whereabouts"`
}

// RecyclingSpec holds the recycling efficiencies (%).
type RecyclingSpec struct {
	PPEfficiency  Series `yaml:"pp_efficiency"`
	PAEfficiency  Series `yaml:"pa_efficiency"`
	PCEfficiency  Series `yaml:"pc_efficiency"`
	ABSEfficiency Series `yaml:"abs_efficiency"`
}

// ProductionSpec holds production efficiencies (%) and the maximum recycled
// share (%) of demand.
type ProductionSpec struct {
	PPEfficiency  Series `yaml:"pp_efficiency"`
	PAEfficiency  Series `yaml:"pa_efficiency"`
	PCEfficiency  Series `yaml:"pc_efficiency"`
	ABSEfficiency Series `yaml:"abs_efficiency"`
	MaxPP         Series `yaml:"max_pp"`
	MaxPA         Series `yaml:"max_pa"`
	MaxPC         Series `yaml:"max_pc"`
	MaxABS        Series `yaml:"max_abs"`
}

// Load reads and parses a scenario file. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	if sc.Name == "" {
		sc.Name = trimExt(filepath.Base(path))
	}
	return sc, nil
}

// Parse decodes a scenario document with strict field checking.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// Horizon returns the simulated year range.
func (s *Scenario) Horizon() sim.Horizon {
	return sim.NewHorizon(s.StartYear, s.EndYear)
}

// InitYears returns the number of historical registration years.
func (s *Scenario) InitYears() int {
	if len(s.Vehicles) == 0 {
		return 0
	}
	return len(s.Vehicles[0].Registrations)
}

// ZeroDemandPolicy returns the configured policy, defaulting to the sentinel.
func (s *Scenario) ZeroDemandPolicy() (sim.ZeroDemandPolicy, error) {
	if s.ZeroDemand == "" {
		return sim.ZeroDemandSentinel, nil
	}
	return sim.ParseZeroDemandPolicy(s.ZeroDemand)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
