package sensitivity

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/capsim/capsim/sim"
)

// Band is the range of one closed-loop metric over every run, per year.
type Band struct {
	Metric   sim.Metric
	Years    []int
	Min      []float64
	Baseline []float64
	Max      []float64
}

// Envelope returns, for every metric and year, the minimum and maximum
// closed-loop rate over the baseline and all perturbed runs.
func Envelope(rs *ResultSet) [sim.NumMetrics]Band {
	h := rs.Baseline.Inputs.Horizon
	years := h.Years()
	var bands [sim.NumMetrics]Band

	for _, m := range sim.Metrics {
		b := Band{
			Metric:   m,
			Years:    years,
			Min:      make([]float64, len(years)),
			Baseline: rs.Baseline.ClosedLoop.Series(h, m),
			Max:      make([]float64, len(years)),
		}
		values := make([]float64, 0, 1+len(rs.Plus)+len(rs.Minus))
		for i, y := range years {
			values = append(values[:0], b.Baseline[i])
			for _, runs := range [][]Run{rs.Plus, rs.Minus} {
				for _, r := range runs {
					values = append(values, r.ClosedLoop[y].Value(m))
				}
			}
			b.Min[i] = floats.Min(values)
			b.Max[i] = floats.Max(values)
		}
		bands[m] = b
	}
	return bands
}

// Deviation is the relative change (%) of one metric caused by one parameter.
type Deviation struct {
	Name   string
	Label  string
	Minus  float64
	Plus   float64
	Spread float64 // |Minus| + |Plus|
}

// TornadoChart ranks the parameters by their effect on one metric in one year.
type TornadoChart struct {
	Metric   sim.Metric
	Year     int
	Baseline float64
	// Undefined is set when the baseline is zero and no relative deviation exists.
	Undefined bool
	// Deviations lists every parameter in catalogue order.
	Deviations []Deviation
	// Ranked holds the deviations with a non-zero spread, smallest first.
	Ranked []Deviation
}

// Tornado computes the relative deviations (perturbed - base) / base * 100 of
// every parameter at year, for each metric.
func Tornado(rs *ResultSet, year int) ([sim.NumMetrics]TornadoChart, error) {
	var charts [sim.NumMetrics]TornadoChart
	if h := rs.Baseline.Inputs.Horizon; !h.Contains(year) {
		return charts, fmt.Errorf("%w: tornado year %d outside %d..%d", sim.ErrConfiguration, year, h.StartYear, h.EndYear)
	}

	for _, m := range sim.Metrics {
		base := rs.Baseline.ClosedLoop[year].Value(m)
		c := TornadoChart{Metric: m, Year: year, Baseline: base}
		if base == 0 {
			c.Undefined = true
			charts[m] = c
			continue
		}
		c.Deviations = make([]Deviation, len(rs.Parameters))
		for i, p := range rs.Parameters {
			minus := relativeChange(rs.Minus[i].ClosedLoop[year].Value(m), base)
			plus := relativeChange(rs.Plus[i].ClosedLoop[year].Value(m), base)
			c.Deviations[i] = Deviation{
				Name:   p.Name,
				Label:  p.Label,
				Minus:  minus,
				Plus:   plus,
				Spread: math.Abs(minus) + math.Abs(plus),
			}
		}
		for _, d := range c.Deviations {
			if d.Spread > 0 {
				c.Ranked = append(c.Ranked, d)
			}
		}
		slices.SortStableFunc(c.Ranked, func(a, b Deviation) int {
			return cmp.Compare(a.Spread, b.Spread)
		})
		charts[m] = c
	}
	return charts, nil
}

func relativeChange(v, base float64) float64 {
	return (v - base) / base * 100
}
