package sim

import "github.com/sirupsen/logrus"

// EndOfLifeRecord holds the recycling-side material flows (kg) of one vehicle
// model in one year.
type EndOfLifeRecord struct {
	InputELVs            float64       // vehicles entering recycling
	Input                PolymerValues // polymer mass entering recycling
	DismantlingOutput    PolymerValues // mass recovered by dismantling
	Body                 PolymerValues // post-dismantling fraction
	RecyclingOutput      PolymerValues // recyclate produced from the body fraction
	RecyclingOutputTotal float64
}

// EndOfLifeFlow holds EndOfLifeRecords keyed by vehicle and year.
type EndOfLifeFlow map[VehicleYear]EndOfLifeRecord

// ComputeRecycling converts vehicles entering recycling into polymer flows.
//
// The polymer input of a year sums over every cohort, using the composition
// of the cohort's registration year. Dismantling recovers a fixed mass per
// vehicle taken from the current year's dismantling spec; the remaining body
// fraction is recycled with the current year's efficiency.
func ComputeRecycling(h Horizon, vehicles []VehicleID, specs VehicleSpecs, cohorts CohortMatrix, dismantling DismantlingSpecs, recycling RecyclingEfficiencies) (EndOfLifeFlow, error) {
	flow := make(EndOfLifeFlow, len(vehicles)*h.Len())

	for _, v := range vehicles {
		for year := h.StartYear; year <= h.EndYear; year++ {
			var rec EndOfLifeRecord
			for regYear := h.StartYear; regYear <= year; regYear++ {
				cell, err := lookupCohort(cohorts, v, regYear, year)
				if err != nil {
					return nil, err
				}
				spec, err := lookupVY(specs, "vehicles_data", v, regYear)
				if err != nil {
					return nil, err
				}
				for _, p := range Polymers {
					rec.Input[p] += spec.PolymerMass(cell.ToRecycling, p)
				}
				rec.InputELVs += cell.ToRecycling
			}

			dis, err := lookupVY(dismantling, "dismantling", v, year)
			if err != nil {
				return nil, err
			}
			eff, err := lookupYear(recycling, "recycling", year)
			if err != nil {
				return nil, err
			}
			for _, p := range Polymers {
				rec.DismantlingOutput[p] = rec.InputELVs * dis.Mass[p]
				rec.Body[p] = rec.Input[p] - rec.DismantlingOutput[p]
				rec.RecyclingOutput[p] = rec.Body[p] * eff.Efficiency[p] / 100
			}
			rec.RecyclingOutputTotal = rec.RecyclingOutput.Sum()
			flow[VehicleYear{Vehicle: v, Year: year}] = rec
		}
	}
	logrus.Debugf("computed recycling outputs for %d vehicles", len(vehicles))
	return flow, nil
}
