// Package testutil provides shared test infrastructure for the capsim packages.
// It builds fully populated scenarios and offers float comparison helpers used
// across sim/ and its sub-package tests.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/capsim/capsim/sim"
)

// Tolerance is the absolute/relative tolerance used by float comparisons.
const Tolerance = 1e-9

// ApproxOpts compares floats within Tolerance in cmp.Diff.
var ApproxOpts = cmp.Options{cmpopts.EquateApprox(Tolerance, Tolerance), cmpopts.EquateNaNs()}

// Fixture values used by NewInputs.
var (
	FixtureSpec = sim.VehicleSpec{
		TotalMass:      1500,
		PlasticContent: 15,
		Content:        sim.PolymerValues{40, 8, 5, 7},
	}
	FixtureDismantling = sim.DismantlingSpec{Mass: sim.PolymerValues{2, 0.5, 0.3, 0.4}}
	FixtureLoss        = sim.LossRate{Exports: 30, UnknownWhereabouts: 10}
	FixtureRecycling   = sim.RecyclingEfficiency{Efficiency: sim.PolymerValues{70, 60, 50, 55}}
	FixtureProduction  = sim.ProductionSpec{
		Efficiency:  sim.PolymerValues{90, 85, 80, 85},
		MaxRecycled: sim.PolymerValues{25, 20, 15, 20},
	}
)

// NewInputs returns a complete scenario over [startYear, endYear] with
// nVehicles vehicle models and constant per-year fixture values. Vehicle i
// registers i * historical[k] vehicles in year startYear+k.
func NewInputs(startYear, endYear, nVehicles int, historical ...float64) *sim.Inputs {
	h := sim.NewHorizon(startYear, endYear)
	in := &sim.Inputs{
		ScenarioName:  "fixture",
		Horizon:       h,
		InitYears:     len(historical),
		CAGR:          1,
		Weibull:       sim.DefaultWeibull,
		VehicleSpecs:  make(sim.VehicleSpecs),
		Registrations: make(sim.Registrations),
		Loss:          make(sim.LossRates),
		Dismantling:   make(sim.DismantlingSpecs),
		Recycling:     make(sim.RecyclingEfficiencies),
		Production:    make(sim.ProductionSpecs),
	}
	for i := 1; i <= nVehicles; i++ {
		id := sim.VehicleID(i)
		in.Vehicles = append(in.Vehicles, sim.Vehicle{ID: id, Name: fmt.Sprintf("vehicle-%d", i)})
		for k, reg := range historical {
			in.Registrations[sim.VehicleYear{Vehicle: id, Year: startYear + k}] = reg * float64(i)
		}
		for _, y := range h.Years() {
			key := sim.VehicleYear{Vehicle: id, Year: y}
			in.VehicleSpecs[key] = FixtureSpec
			in.Dismantling[key] = FixtureDismantling
		}
	}
	for _, y := range h.Years() {
		in.Loss[y] = FixtureLoss
		in.Recycling[y] = FixtureRecycling
		in.Production[y] = FixtureProduction
	}
	return in
}

// MustRun runs the full pipeline and fails the test on error.
func MustRun(t *testing.T, in *sim.Inputs) *sim.Result {
	t.Helper()
	res, err := sim.RunFullSimulation(in, sim.Options{})
	if err != nil {
		t.Fatalf("RunFullSimulation: %v", err)
	}
	return res
}

// ApproxEqual reports whether a and b agree within Tolerance, absolutely or
// relative to the larger magnitude.
func ApproxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	if diff <= Tolerance {
		return true
	}
	return diff <= Tolerance*math.Max(math.Abs(a), math.Abs(b))
}
