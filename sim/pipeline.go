package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Options control behavior that is not part of the scenario inputs.
type Options struct {
	ZeroDemand ZeroDemandPolicy
}

// Result bundles every table produced by one full simulation run, together
// with the inputs it was computed from.
type Result struct {
	Inputs        *Inputs
	Registrations Registrations // historical plus projected
	Cohorts       CohortMatrix  // after the end-of-life split
	Fleet         FleetSummary
	EndOfLife     EndOfLifeFlow
	ClosedLoop    ClosedLoopRates
}

// RunFullSimulation validates the inputs and runs every stage in order:
// registration projection, fleet cohorts, end-of-life split, recycling and
// closed-loop rates. The inputs are not modified.
func RunFullSimulation(in *Inputs, opts Options) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", in.ScenarioName, err)
	}
	h := in.Horizon
	vehicles := in.VehicleIDs()

	regs, err := ProjectRegistrations(h, vehicles, in.CAGR, in.InitYears, in.Registrations)
	if err != nil {
		return nil, fmt.Errorf("projecting registrations: %w", err)
	}
	cohorts, _, err := ComputeFleet(h, vehicles, regs, in.Weibull)
	if err != nil {
		return nil, fmt.Errorf("computing fleet: %w", err)
	}
	cohorts, fleet, err := SplitEndOfLife(h, vehicles, cohorts, in.Loss)
	if err != nil {
		return nil, fmt.Errorf("splitting end-of-life flows: %w", err)
	}
	eol, err := ComputeRecycling(h, vehicles, in.VehicleSpecs, cohorts, in.Dismantling, in.Recycling)
	if err != nil {
		return nil, fmt.Errorf("computing recycling: %w", err)
	}
	closedLoop, err := ComputeClosedLoop(h, vehicles, in.VehicleSpecs, regs, eol, in.Production, opts.ZeroDemand)
	if err != nil {
		return nil, fmt.Errorf("computing closed-loop rates: %w", err)
	}

	logrus.Debugf("scenario %q simulated %d..%d", in.ScenarioName, h.StartYear, h.EndYear)
	return &Result{
		Inputs:        in,
		Registrations: regs,
		Cohorts:       cohorts,
		Fleet:         fleet,
		EndOfLife:     eol,
		ClosedLoop:    closedLoop,
	}, nil
}
