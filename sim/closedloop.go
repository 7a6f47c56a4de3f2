package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ZeroDemandPolicy decides how a closed-loop rate with zero demand is reported.
type ZeroDemandPolicy int

const (
	// ZeroDemandSentinel reports a 0% rate and flags the metric as ZeroDemand.
	ZeroDemandSentinel ZeroDemandPolicy = iota
	// ZeroDemandStrict fails the run with ErrDivisionByZero.
	ZeroDemandStrict
)

var zeroDemandPolicyNames = map[string]ZeroDemandPolicy{
	"sentinel": ZeroDemandSentinel,
	"strict":   ZeroDemandStrict,
}

// ParseZeroDemandPolicy maps "sentinel" or "strict" to a policy.
func ParseZeroDemandPolicy(name string) (ZeroDemandPolicy, error) {
	p, ok := zeroDemandPolicyNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown zero-demand policy %q; valid: sentinel, strict", name)
	}
	return p, nil
}

func (p ZeroDemandPolicy) String() string {
	if p == ZeroDemandStrict {
		return "strict"
	}
	return "sentinel"
}

// ClosedLoopRecord balances recycled supply against new-vehicle demand in one year.
// Masses are kg; rates are %.
type ClosedLoopRecord struct {
	Demand        PolymerValues
	DemandPlastic float64
	RawSupply     PolymerValues // recycling output before the capacity cap
	Supply        PolymerValues // after the capacity cap
	SupplyTotal   float64
	UsableSupply  PolymerValues // Supply after production conversion losses
	Rate          PolymerValues
	Total         float64
	ZeroDemand    [NumMetrics]bool // metric had zero demand and reports the sentinel rate
}

// Value returns the closed-loop rate (%) for a metric.
func (r ClosedLoopRecord) Value(m Metric) float64 {
	if m == MetricTotal {
		return r.Total
	}
	return r.Rate[m]
}

// ClosedLoopRates holds one ClosedLoopRecord per year.
type ClosedLoopRates map[int]ClosedLoopRecord

// Series returns the rate of metric m for every year of h, in order.
func (c ClosedLoopRates) Series(h Horizon, m Metric) []float64 {
	out := make([]float64, 0, h.Len())
	for _, y := range h.Years() {
		out = append(out, c[y].Value(m))
	}
	return out
}

// ApplyCapacityCap limits supply so that the usable recycled input
// (supply * efficiency%) never exceeds maxShare% of demand. Applying it to
// its own result returns the same value.
func ApplyCapacityCap(supply, demand, efficiency, maxShare float64) (float64, error) {
	eff := efficiency / 100
	limit := demand * maxShare / 100
	if supply*eff <= limit {
		return supply, nil
	}
	if eff == 0 {
		return 0, divisionErrorf("capacity cap with zero production efficiency")
	}
	return limit / eff, nil
}

// ComputeClosedLoop computes the yearly closed-loop rates. Demand comes from
// that year's registrations and vehicle composition; supply is the summed
// recycling output of all vehicle models, capped by ApplyCapacityCap.
func ComputeClosedLoop(h Horizon, vehicles []VehicleID, specs VehicleSpecs, regs Registrations, eol EndOfLifeFlow, production ProductionSpecs, policy ZeroDemandPolicy) (ClosedLoopRates, error) {
	rates := make(ClosedLoopRates, h.Len())

	for year := h.StartYear; year <= h.EndYear; year++ {
		prod, err := lookupYear(production, "production", year)
		if err != nil {
			return nil, err
		}

		var rec ClosedLoopRecord
		for _, v := range vehicles {
			n, err := lookupVY(regs, "registrations", v, year)
			if err != nil {
				return nil, err
			}
			spec, err := lookupVY(specs, "vehicles_data", v, year)
			if err != nil {
				return nil, err
			}
			out, err := lookupVY(eol, "eol", v, year)
			if err != nil {
				return nil, err
			}
			for _, p := range Polymers {
				rec.Demand[p] += spec.PolymerMass(n, p)
				rec.RawSupply[p] += out.RecyclingOutput[p]
			}
			rec.DemandPlastic += spec.PlasticMass(n)
		}

		for _, p := range Polymers {
			supply, err := ApplyCapacityCap(rec.RawSupply[p], rec.Demand[p], prod.Efficiency[p], prod.MaxRecycled[p])
			if err != nil {
				return nil, fmt.Errorf("year %d, %s: %w", year, p.Title(), err)
			}
			rec.Supply[p] = supply
			rec.UsableSupply[p] = supply * prod.Efficiency[p] / 100
		}
		rec.SupplyTotal = rec.Supply.Sum()

		for _, p := range Polymers {
			m := MetricForPolymer(p)
			rec.Rate[p], rec.ZeroDemand[m], err = rate(rec.UsableSupply[p], rec.Demand[p], policy)
			if err != nil {
				return nil, fmt.Errorf("year %d, %s demand: %w", year, p.Title(), err)
			}
		}
		rec.Total, rec.ZeroDemand[MetricTotal], err = rate(rec.UsableSupply.Sum(), rec.DemandPlastic, policy)
		if err != nil {
			return nil, fmt.Errorf("year %d, plastic demand: %w", year, err)
		}
		for _, m := range Metrics {
			if rec.ZeroDemand[m] {
				logrus.Warnf("year %d: zero %s demand, reporting a %s closed-loop rate of 0%%", year, m.Title(), policy)
			}
		}
		rates[year] = rec
	}
	logrus.Debugf("computed closed-loop rates %d..%d", h.StartYear, h.EndYear)
	return rates, nil
}

// rate returns usable/demand in percent, applying the zero-demand policy.
func rate(usable, demand float64, policy ZeroDemandPolicy) (float64, bool, error) {
	if demand != 0 {
		return usable / demand * 100, false, nil
	}
	if policy == ZeroDemandStrict {
		return 0, true, divisionErrorf("zero demand")
	}
	return 0, true, nil
}
