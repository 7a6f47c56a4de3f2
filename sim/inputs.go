package sim

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Vehicle is a modelled vehicle type with its display name.
type Vehicle struct {
	ID   VehicleID
	Name string
}

// VehicleSpec describes the material composition of a vehicle model built in a given year.
type VehicleSpec struct {
	TotalMass      float64       // kg
	PlasticContent float64       // % of total mass
	Content        PolymerValues // % of plastic mass per polymer; need not sum to 100
}

// PlasticMass returns the plastic mass (kg) of n vehicles.
func (s VehicleSpec) PlasticMass(n float64) float64 {
	return n * s.TotalMass * s.PlasticContent / 100
}

// PolymerMass returns the mass (kg) of polymer p in n vehicles.
func (s VehicleSpec) PolymerMass(n float64, p Polymer) float64 {
	return n * s.TotalMass * s.PlasticContent / 100 * s.Content[p] / 100
}

// LossRate holds the yearly shares (%) of fleet exits leaving the domestic recycling system.
type LossRate struct {
	Exports            float64
	UnknownWhereabouts float64
}

// DismantlingSpec holds the polymer mass (kg) recovered per dismantled vehicle.
type DismantlingSpec struct {
	Mass PolymerValues
}

// RecyclingEfficiency holds the yearly recycling efficiency (%) per polymer
// applied to the post-dismantling body fraction.
type RecyclingEfficiency struct {
	Efficiency PolymerValues
}

// ProductionSpec holds the yearly conversion efficiency (%) of recyclate into
// production input and the maximum share (%) of demand met by recycled content.
type ProductionSpec struct {
	Efficiency  PolymerValues
	MaxRecycled PolymerValues
}

// WeibullParams parameterizes the fleet survival model.
type WeibullParams struct {
	Shape float64 // k
	Scale float64 // lambda, years
}

// DefaultWeibull is the survival model used when none is configured.
var DefaultWeibull = WeibullParams{Shape: 3.2, Scale: 16.75}

// Input and output tables. Every stage returns fresh tables; none is mutated
// after it has been handed to the next stage.
type (
	VehicleSpecs          map[VehicleYear]VehicleSpec
	Registrations         map[VehicleYear]float64
	LossRates             map[int]LossRate
	DismantlingSpecs      map[VehicleYear]DismantlingSpec
	RecyclingEfficiencies map[int]RecyclingEfficiency
	ProductionSpecs       map[int]ProductionSpec
)

// Inputs is the complete set of leaf inputs for one simulation run.
type Inputs struct {
	ScenarioName string
	Horizon      Horizon
	Vehicles     []Vehicle
	InitYears    int // number of historical registration years starting at Horizon.StartYear
	CAGR         float64
	Weibull      WeibullParams

	VehicleSpecs  VehicleSpecs
	Registrations Registrations // historical prefix only
	Loss          LossRates
	Dismantling   DismantlingSpecs
	Recycling     RecyclingEfficiencies
	Production    ProductionSpecs
}

// InitYear returns the last year with historical registration data.
func (in *Inputs) InitYear() int {
	return in.Horizon.StartYear + in.InitYears - 1
}

// VehicleIDs returns the vehicle ids in ascending order.
func (in *Inputs) VehicleIDs() []VehicleID {
	ids := make([]VehicleID, len(in.Vehicles))
	for i, v := range in.Vehicles {
		ids[i] = v.ID
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent deep copy. All table values are plain values,
// so copying the maps is sufficient.
func (in *Inputs) Clone() *Inputs {
	out := *in
	out.Vehicles = slices.Clone(in.Vehicles)
	out.VehicleSpecs = maps.Clone(in.VehicleSpecs)
	out.Registrations = maps.Clone(in.Registrations)
	out.Loss = maps.Clone(in.Loss)
	out.Dismantling = maps.Clone(in.Dismantling)
	out.Recycling = maps.Clone(in.Recycling)
	out.Production = maps.Clone(in.Production)
	return &out
}

// Validate checks the scalar settings and that every table covers every
// required vehicle/year key with finite, in-range values.
func (in *Inputs) Validate() error {
	h := in.Horizon
	if h.Len() == 0 {
		return configErrorf("end_year %d is before start_year %d", h.EndYear, h.StartYear)
	}
	if len(in.Vehicles) == 0 {
		return configErrorf("at least one vehicle is required")
	}
	for i, id := range in.VehicleIDs() {
		if int(id) != i+1 {
			return configErrorf("vehicle ids must be 1..%d, got %d at position %d", len(in.Vehicles), id, i)
		}
	}
	if in.InitYears < 0 {
		return configErrorf("init_years must be non-negative, got %d", in.InitYears)
	}
	if in.InitYears == 0 {
		return configErrorf("no registration baseline to project from")
	}
	if err := validateFinite("cagr", in.CAGR); err != nil {
		return err
	}
	if in.CAGR <= -100 {
		return configErrorf("cagr must be greater than -100%%, got %g", in.CAGR)
	}
	if err := in.Weibull.Validate(); err != nil {
		return err
	}

	lastRegYear := min(in.InitYear(), h.EndYear)
	for _, v := range in.VehicleIDs() {
		for y := h.StartYear; y <= lastRegYear; y++ {
			reg, err := lookupVY(in.Registrations, "registrations", v, y)
			if err != nil {
				return err
			}
			if err := validateNonNegative(fmt.Sprintf("registrations%v", VehicleYear{v, y}), reg); err != nil {
				return err
			}
		}
		for _, y := range h.Years() {
			spec, err := lookupVY(in.VehicleSpecs, "vehicles_data", v, y)
			if err != nil {
				return err
			}
			if err := spec.validate(VehicleYear{v, y}); err != nil {
				return err
			}
			dis, err := lookupVY(in.Dismantling, "dismantling", v, y)
			if err != nil {
				return err
			}
			for _, p := range Polymers {
				if err := validateNonNegative(fmt.Sprintf("dismantling%v.%s_mass", VehicleYear{v, y}, p), dis.Mass[p]); err != nil {
					return err
				}
			}
		}
	}

	for _, y := range h.Years() {
		loss, err := lookupYear(in.Loss, "loss", y)
		if err != nil {
			return err
		}
		if err := validatePercent(fmt.Sprintf("loss[%d].exports", y), loss.Exports); err != nil {
			return err
		}
		if err := validatePercent(fmt.Sprintf("loss[%d].unknown_whereabouts", y), loss.UnknownWhereabouts); err != nil {
			return err
		}
		rec, err := lookupYear(in.Recycling, "recycling", y)
		if err != nil {
			return err
		}
		prod, err := lookupYear(in.Production, "production", y)
		if err != nil {
			return err
		}
		for _, p := range Polymers {
			if err := validatePercent(fmt.Sprintf("recycling[%d].%s_efficiency", y, p), rec.Efficiency[p]); err != nil {
				return err
			}
			if err := validatePercent(fmt.Sprintf("production[%d].%s_efficiency", y, p), prod.Efficiency[p]); err != nil {
				return err
			}
			if err := validatePercent(fmt.Sprintf("production[%d].max_%s", y, p), prod.MaxRecycled[p]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate checks that both Weibull parameters are finite and positive.
func (w WeibullParams) Validate() error {
	if math.IsNaN(w.Shape) || math.IsInf(w.Shape, 0) || w.Shape <= 0 {
		return configErrorf("weibull shape must be a positive finite number, got %g", w.Shape)
	}
	if math.IsNaN(w.Scale) || math.IsInf(w.Scale, 0) || w.Scale <= 0 {
		return configErrorf("weibull scale must be a positive finite number, got %g", w.Scale)
	}
	return nil
}

func (s VehicleSpec) validate(key VehicleYear) error {
	prefix := fmt.Sprintf("vehicles_data%v", key)
	if err := validateNonNegative(prefix+".total_mass", s.TotalMass); err != nil {
		return err
	}
	if err := validatePercent(prefix+".plastic_content", s.PlasticContent); err != nil {
		return err
	}
	for _, p := range Polymers {
		if err := validatePercent(fmt.Sprintf("%s.%s_content", prefix, p), s.Content[p]); err != nil {
			return err
		}
	}
	return nil
}

func validateFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return configErrorf("%s must be a finite number, got %f", name, val)
	}
	return nil
}

func validateNonNegative(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val < 0 {
		return configErrorf("%s must be non-negative, got %g", name, val)
	}
	return nil
}

func validatePercent(name string, val float64) error {
	if err := validateNonNegative(name, val); err != nil {
		return err
	}
	if val > 100 {
		return configErrorf("%s must be at most 100%%, got %g", name, val)
	}
	return nil
}
