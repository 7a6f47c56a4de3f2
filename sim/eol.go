package sim

import (
	"maps"

	"github.com/sirupsen/logrus"
)

// SplitEndOfLife derives each cohort's yearly exits from the change in its
// stock and divides them into exports, vehicles of unknown whereabouts and
// vehicles entering recycling using that year's loss rates:
//
//	exits        = stock(y-1) - stock(y)      (0 in the registration year)
//	exports      = exits * exports% / 100
//	unknown      = exits * unknown_whereabouts% / 100
//	to_recycling = exits - exports - unknown
//
// It returns a new cohort matrix and the matching fleet summary; the input
// matrix is left untouched.
func SplitEndOfLife(h Horizon, vehicles []VehicleID, cohorts CohortMatrix, loss LossRates) (CohortMatrix, FleetSummary, error) {
	out := maps.Clone(cohorts)

	for _, v := range vehicles {
		for year := h.StartYear; year <= h.EndYear; year++ {
			rates, err := lookupYear(loss, "loss", year)
			if err != nil {
				return nil, nil, err
			}

			own := CohortKey{Vehicle: v, RegYear: year, Year: year}
			cell, err := lookupCohort(out, v, year, year)
			if err != nil {
				return nil, nil, err
			}
			cell.Exits, cell.Exports, cell.Unknown, cell.ToRecycling = 0, 0, 0, 0
			out[own] = cell

			for regYear := h.StartYear; regYear < year; regYear++ {
				prev, err := lookupCohort(cohorts, v, regYear, year-1)
				if err != nil {
					return nil, nil, err
				}
				cur, err := lookupCohort(cohorts, v, regYear, year)
				if err != nil {
					return nil, nil, err
				}
				exits := prev.Stock - cur.Stock
				exports := exits * rates.Exports / 100
				unknown := exits * rates.UnknownWhereabouts / 100
				out[CohortKey{Vehicle: v, RegYear: regYear, Year: year}] = FleetFlows{
					Stock:       cur.Stock,
					Exits:       exits,
					Exports:     exports,
					Unknown:     unknown,
					ToRecycling: exits - exports - unknown,
				}
			}
		}
	}

	summary, err := summarizeFleet(h, vehicles, out)
	if err != nil {
		return nil, nil, err
	}
	logrus.Debugf("split end-of-life flows for %d vehicles", len(vehicles))
	return out, summary, nil
}
