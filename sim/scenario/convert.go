package scenario

import (
	"fmt"
	"math"

	"github.com/capsim/capsim/sim"
)

// Validate checks the structure of the scenario: the horizon, that every
// series has one value per year, and that all vehicles share the same number
// of historical registration years. Value ranges are checked by
// sim.Inputs.Validate once the scenario is converted.
func (s *Scenario) Validate() error {
	if s.EndYear < s.StartYear {
		return configErrorf("end_year %d is before start_year %d", s.EndYear, s.StartYear)
	}
	if math.IsNaN(s.CAGR) || math.IsInf(s.CAGR, 0) {
		return configErrorf("cagr must be a finite number")
	}
	if len(s.Vehicles) == 0 {
		return configErrorf("at least one vehicle is required")
	}
	if _, err := s.ZeroDemandPolicy(); err != nil {
		return configErrorf("zero_demand: %v", err)
	}
	years := s.Horizon().Len()
	initYears := s.InitYears()
	if initYears == 0 {
		return configErrorf("vehicles[0].registrations: no registration baseline to project from")
	}
	if initYears > years {
		return configErrorf("vehicles[0].registrations: %d values exceed the %d-year horizon", initYears, years)
	}

	for i, v := range s.Vehicles {
		prefix := fmt.Sprintf("vehicles[%d]", i)
		if len(v.Registrations) != initYears {
			return configErrorf("%s.registrations: expected %d historical years like vehicles[0], got %d", prefix, initYears, len(v.Registrations))
		}
		series := []struct {
			name string
			s    Series
		}{
			{"total_mass", v.TotalMass},
			{"plastic_content", v.PlasticContent},
			{"pp_content", v.PPContent},
			{"pa_content", v.PAContent},
			{"pc_content", v.PCContent},
			{"abs_content", v.ABSContent},
			{"dismantling.pp_mass", v.Dismantling.PPMass},
			{"dismantling.pa_mass", v.Dismantling.PAMass},
			{"dismantling.pc_mass", v.Dismantling.PCMass},
			{"dismantling.abs_mass", v.Dismantling.ABSMass},
		}
		for _, f := range series {
			if err := f.s.validate(prefix+"."+f.name, years); err != nil {
				return configErrorf("%v", err)
			}
		}
	}

	global := []struct {
		name string
		s    Series
	}{
		{"loss.exports", s.Loss.Exports},
		{"loss.unknown_whereabouts", s.Loss.UnknownWhereabouts},
		{"recycling.pp_efficiency", s.Recycling.PPEfficiency},
		{"recycling.pa_efficiency", s.Recycling.PAEfficiency},
		{"recycling.pc_efficiency", s.Recycling.PCEfficiency},
		{"recycling.abs_efficiency", s.Recycling.ABSEfficiency},
		{"production.pp_efficiency", s.Production.PPEfficiency},
		{"production.pa_efficiency", s.Production.PAEfficiency},
		{"production.pc_efficiency", s.Production.PCEfficiency},
		{"production.abs_efficiency", s.Production.ABSEfficiency},
		{"production.max_pp", s.Production.MaxPP},
		{"production.max_pa", s.Production.MaxPA},
		{"production.max_pc", s.Production.MaxPC},
		{"production.max_abs", s.Production.MaxABS},
	}
	for _, f := range global {
		if err := f.s.validate(f.name, years); err != nil {
			return configErrorf("%v", err)
		}
	}
	return nil
}

// ToInputs validates the scenario and builds the simulation inputs using the
// given survival model. Vehicle ids are assigned 1..n in file order.
func (s *Scenario) ToInputs(w sim.WeibullParams) (*sim.Inputs, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	h := s.Horizon()
	in := &sim.Inputs{
		ScenarioName:  s.Name,
		Horizon:       h,
		InitYears:     s.InitYears(),
		CAGR:          s.CAGR,
		Weibull:       w,
		VehicleSpecs:  make(sim.VehicleSpecs, len(s.Vehicles)*h.Len()),
		Registrations: make(sim.Registrations, len(s.Vehicles)*s.InitYears()),
		Loss:          make(sim.LossRates, h.Len()),
		Dismantling:   make(sim.DismantlingSpecs, len(s.Vehicles)*h.Len()),
		Recycling:     make(sim.RecyclingEfficiencies, h.Len()),
		Production:    make(sim.ProductionSpecs, h.Len()),
	}

	for i, v := range s.Vehicles {
		id := sim.VehicleID(i + 1)
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("vehicle %d", id)
		}
		in.Vehicles = append(in.Vehicles, sim.Vehicle{ID: id, Name: name})
		for k, n := range v.Registrations {
			in.Registrations[sim.VehicleYear{Vehicle: id, Year: h.StartYear + k}] = n
		}
		for k, y := range h.Years() {
			key := sim.VehicleYear{Vehicle: id, Year: y}
			in.VehicleSpecs[key] = sim.VehicleSpec{
				TotalMass:      v.TotalMass.At(k),
				PlasticContent: v.PlasticContent.At(k),
				Content:        sim.PolymerValues{v.PPContent.At(k), v.PAContent.At(k), v.PCContent.At(k), v.ABSContent.At(k)},
			}
			d := v.Dismantling
			in.Dismantling[key] = sim.DismantlingSpec{
				Mass: sim.PolymerValues{d.PPMass.At(k), d.PAMass.At(k), d.PCMass.At(k), d.ABSMass.At(k)},
			}
		}
	}

	r, p := s.Recycling, s.Production
	for k, y := range h.Years() {
		in.Loss[y] = sim.LossRate{Exports: s.Loss.Exports.At(k), UnknownWhereabouts: s.Loss.UnknownWhereabouts.At(k)}
		in.Recycling[y] = sim.RecyclingEfficiency{
			Efficiency: sim.PolymerValues{r.PPEfficiency.At(k), r.PAEfficiency.At(k), r.PCEfficiency.At(k), r.ABSEfficiency.At(k)},
		}
		in.Production[y] = sim.ProductionSpec{
			Efficiency:  sim.PolymerValues{p.PPEfficiency.At(k), p.PAEfficiency.At(k), p.PCEfficiency.At(k), p.ABSEfficiency.At(k)},
			MaxRecycled: sim.PolymerValues{p.MaxPP.At(k), p.MaxPA.At(k), p.MaxPC.At(k), p.MaxABS.At(k)},
		}
	}

	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return in, nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sim.ErrConfiguration, fmt.Sprintf(format, args...))
}
