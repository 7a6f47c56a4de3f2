package sim

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

// FleetFlows holds vehicle counts for one cohort cell, or their sum over all
// cohorts of a vehicle in a given year.
type FleetFlows struct {
	Stock       float64
	Exits       float64
	Exports     float64
	Unknown     float64
	ToRecycling float64
}

// CohortMatrix holds per-cohort fleet flows, keyed by vehicle, registration
// year and current year (current year >= registration year).
type CohortMatrix map[CohortKey]FleetFlows

// FleetSummary holds fleet flows summed over all cohorts, keyed by vehicle and year.
type FleetSummary map[VehicleYear]FleetFlows

// survivalModel turns the Weibull density into a yearly retirement share.
// The density is evaluated directly at integer ages; it is not a
// discretized CDF difference.
type survivalModel struct {
	dist distuv.Weibull
}

func newSurvivalModel(w WeibullParams) survivalModel {
	return survivalModel{dist: distuv.Weibull{K: w.Shape, Lambda: w.Scale}}
}

// retirementShare returns the Weibull density at the given age in years.
func (m survivalModel) retirementShare(age int) float64 {
	if age > 0 {
		return m.dist.Prob(float64(age))
	}
	// Limit of the density at zero: distuv yields NaN for K == 1.
	switch {
	case m.dist.K > 1:
		return 0
	case m.dist.K == 1:
		return 1 / m.dist.Lambda
	default:
		return math.Inf(1)
	}
}

// retiringVehicles returns floor(n * share). An unbounded share yields +Inf,
// which the caller clamps to the surviving stock.
func retiringVehicles(n, share float64) float64 {
	if n == 0 {
		return 0
	}
	raw := n * share
	if math.IsNaN(raw) {
		return 0
	}
	return math.Floor(raw)
}

// ComputeFleet ages every registration cohort through the horizon. Each year
// floor(N * weibull_pdf(age)) vehicles retire; once cumulative retirements
// exceed the cohort size N the year's exits are clamped (to N at age zero,
// otherwise to the surviving stock), so stock never goes negative.
//
// Cohorts are processed in ascending year order because the clamp depends on
// the previous year's stock.
func ComputeFleet(h Horizon, vehicles []VehicleID, regs Registrations, w WeibullParams) (CohortMatrix, FleetSummary, error) {
	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	model := newSurvivalModel(w)
	n := h.Len()
	cohorts := make(CohortMatrix, len(vehicles)*n*(n+1)/2)

	for _, v := range vehicles {
		for regYear := h.StartYear; regYear <= h.EndYear; regYear++ {
			registered, err := lookupVY(regs, "registrations", v, regYear)
			if err != nil {
				return nil, nil, err
			}

			exitSum := 0.0
			stock := registered
			for year := regYear; year <= h.EndYear; year++ {
				age := year - regYear
				raw := retiringVehicles(registered, model.retirementShare(age))
				exitSum += raw

				exits := raw
				if exitSum > registered {
					if age == 0 {
						exits = registered
					} else {
						exits = math.Min(stock, raw)
					}
				}
				if age == 0 {
					stock = registered - exits
				} else {
					stock -= exits
				}
				cohorts[CohortKey{Vehicle: v, RegYear: regYear, Year: year}] = FleetFlows{Stock: stock, Exits: exits}
			}
		}
	}

	summary, err := summarizeFleet(h, vehicles, cohorts)
	if err != nil {
		return nil, nil, err
	}
	logrus.Debugf("computed fleet for %d vehicles over %d years (%d cohort cells)", len(vehicles), n, len(cohorts))
	return cohorts, summary, nil
}

// summarizeFleet sums every field of the cohort matrix over registration
// years y_reg <= y for each vehicle and year.
func summarizeFleet(h Horizon, vehicles []VehicleID, cohorts CohortMatrix) (FleetSummary, error) {
	summary := make(FleetSummary, len(vehicles)*h.Len())
	for _, v := range vehicles {
		for year := h.StartYear; year <= h.EndYear; year++ {
			var total FleetFlows
			for regYear := h.StartYear; regYear <= year; regYear++ {
				cell, err := lookupCohort(cohorts, v, regYear, year)
				if err != nil {
					return nil, err
				}
				total.Stock += cell.Stock
				total.Exits += cell.Exits
				total.Exports += cell.Exports
				total.Unknown += cell.Unknown
				total.ToRecycling += cell.ToRecycling
			}
			summary[VehicleYear{Vehicle: v, Year: year}] = total
		}
	}
	return summary, nil
}
