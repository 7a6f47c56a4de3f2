// Package sensitivity runs a one-factor-at-a-time sensitivity analysis over
// the simulation pipeline. Every catalogue parameter is scaled by (1+s) and
// (1-s) in turn; the closed-loop rates of each run are collected in catalogue
// order and can be reduced to envelopes and tornado rankings.
package sensitivity

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/capsim/capsim/sim"
)

// DefaultSensitivity is the relative perturbation used when none is configured.
const DefaultSensitivity = 0.2

// Direction selects the sign of a perturbation.
type Direction int

const (
	Plus Direction = iota
	Minus
)

func (d Direction) String() string {
	if d == Minus {
		return "minus"
	}
	return "plus"
}

// Factor returns the multiplier applied for sensitivity s.
func (d Direction) Factor(s float64) float64 {
	if d == Minus {
		return 1 - s
	}
	return 1 + s
}

// Options configure a sweep.
type Options struct {
	Sensitivity    float64 // relative perturbation, e.g. 0.2 for ±20%
	Workers        int     // concurrent pipeline runs; <= 0 means GOMAXPROCS
	Audit          bool    // keep the full sim.Result of every run
	IncludeWeibull bool
	ZeroDemand     sim.ZeroDemandPolicy
}

// Validate checks that the sensitivity is a finite value in [0, 1).
func (o Options) Validate() error {
	if !(o.Sensitivity >= 0 && o.Sensitivity < 1) {
		return fmt.Errorf("%w: sensitivity must be in [0, 1), got %g", sim.ErrConfiguration, o.Sensitivity)
	}
	return nil
}

// Run is the outcome of one perturbed pipeline run.
type Run struct {
	ClosedLoop sim.ClosedLoopRates
	Audit      *sim.Result // nil unless Options.Audit
}

// ResultSet holds the baseline and every perturbed run, indexed like Parameters.
type ResultSet struct {
	Sensitivity float64
	Baseline    *sim.Result
	Parameters  []Parameter
	Plus        []Run
	Minus       []Run
}

// Labels returns the display labels in catalogue order.
func (rs *ResultSet) Labels() []string {
	return Labels(rs.Parameters)
}

// Runs returns the runs for direction d.
func (rs *ResultSet) Runs(d Direction) []Run {
	if d == Minus {
		return rs.Minus
	}
	return rs.Plus
}

// RunSweep simulates the baseline and then every catalogue parameter in both
// directions on a bounded worker pool. Each run works on its own clone of
// baseline, which is never modified. The first failing run cancels the rest
// and its error is returned.
func RunSweep(ctx context.Context, baseline *sim.Inputs, opts Options) (*ResultSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	simOpts := sim.Options{ZeroDemand: opts.ZeroDemand}

	base, err := sim.RunFullSimulation(baseline, simOpts)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	params := Catalogue(baseline.VehicleIDs(), opts.IncludeWeibull)
	rs := &ResultSet{
		Sensitivity: opts.Sensitivity,
		Baseline:    base,
		Parameters:  params,
		Plus:        make([]Run, len(params)),
		Minus:       make([]Run, len(params)),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	total := 2 * len(params)
	logrus.Infof("sensitivity analysis of %q: %d parameters at ±%g%% on %d workers",
		baseline.ScenarioName, len(params), opts.Sensitivity*100, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var done atomic.Int64

	for i, p := range params {
		for _, d := range []Direction{Plus, Minus} {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run, err := runOne(baseline, p, d.Factor(opts.Sensitivity), simOpts, opts.Audit)
				if err != nil {
					return fmt.Errorf("%s %s: %w", p.Name, d, err)
				}
				rs.Runs(d)[i] = run
				logrus.Debugf("(SA) %s %s%g%% done (%d/%d)", p.Name, sign(d), opts.Sensitivity*100, done.Add(1), total)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logrus.Infof("sensitivity analysis of %q finished: %d runs", baseline.ScenarioName, total)
	return rs, nil
}

func runOne(baseline *sim.Inputs, p Parameter, factor float64, simOpts sim.Options, audit bool) (Run, error) {
	in := baseline.Clone()
	p.Apply(in, factor)
	res, err := sim.RunFullSimulation(in, simOpts)
	if err != nil {
		return Run{}, err
	}
	run := Run{ClosedLoop: res.ClosedLoop}
	if audit {
		run.Audit = res
	}
	return run, nil
}

func sign(d Direction) string {
	if d == Minus {
		return "-"
	}
	return "+"
}
