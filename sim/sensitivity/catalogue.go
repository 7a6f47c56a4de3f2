package sensitivity

import (
	"fmt"

	"github.com/capsim/capsim/sim"
)

// Kind groups parameters by the input table they perturb.
type Kind int

const (
	KindVehicleSpec Kind = iota
	KindGrowth
	KindLoss
	KindDismantling
	KindRecycling
	KindProduction
	KindSurvival
)

var kindNames = map[Kind]string{
	KindVehicleSpec: "vehicles_data",
	KindGrowth:      "cagr",
	KindLoss:        "loss",
	KindDismantling: "dismantling",
	KindRecycling:   "recycling",
	KindProduction:  "production",
	KindSurvival:    "weibull",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parameter is one leaf input varied by the sweep. Percentage parameters are
// clamped to 100 when scaled up.
type Parameter struct {
	Name    string // machine name, e.g. "pp_content_vehicle_2"
	Label   string // display label, e.g. "PP content of vehicle 2"
	Kind    Kind
	Vehicle sim.VehicleID // 0 for parameters that are not per vehicle
	Percent bool

	set func(in *sim.Inputs, scale func(float64) float64)
}

// Apply multiplies every year of the parameter in in by factor. in is
// modified in place; callers pass a clone.
func (p Parameter) Apply(in *sim.Inputs, factor float64) {
	p.set(in, func(v float64) float64 {
		v *= factor
		if p.Percent && factor > 1 && v > 100 {
			v = 100
		}
		return v
	})
}

// Catalogue returns every parameter of the sweep in reporting order. The
// Weibull parameters are appended only when includeWeibull is set.
func Catalogue(vehicles []sim.VehicleID, includeWeibull bool) []Parameter {
	var params []Parameter

	for _, v := range vehicles {
		params = append(params, Parameter{
			Name:    fmt.Sprintf("total_mass_vehicle_%d", v),
			Label:   fmt.Sprintf("total mass of vehicle %d", v),
			Kind:    KindVehicleSpec,
			Vehicle: v,
			set: forVehicleSpecs(v, func(s *sim.VehicleSpec, scale func(float64) float64) {
				s.TotalMass = scale(s.TotalMass)
			}),
		})
	}

	for _, v := range vehicles {
		params = append(params, Parameter{
			Name:    fmt.Sprintf("plastic_content_vehicle_%d", v),
			Label:   fmt.Sprintf("plastic content of vehicle %d", v),
			Kind:    KindVehicleSpec,
			Vehicle: v,
			Percent: true,
			set: forVehicleSpecs(v, func(s *sim.VehicleSpec, scale func(float64) float64) {
				s.PlasticContent = scale(s.PlasticContent)
			}),
		})
	}
	for _, p := range sim.Polymers {
		for _, v := range vehicles {
			params = append(params, Parameter{
				Name:    fmt.Sprintf("%s_content_vehicle_%d", p, v),
				Label:   fmt.Sprintf("%s content of vehicle %d", p.Title(), v),
				Kind:    KindVehicleSpec,
				Vehicle: v,
				Percent: true,
				set: forVehicleSpecs(v, func(s *sim.VehicleSpec, scale func(float64) float64) {
					s.Content[p] = scale(s.Content[p])
				}),
			})
		}
	}

	params = append(params, Parameter{
		Name:  "cagr",
		Label: "CAGR",
		Kind:  KindGrowth,
		set: func(in *sim.Inputs, scale func(float64) float64) {
			in.CAGR = scale(in.CAGR)
		},
	})

	params = append(params,
		Parameter{
			Name:    "exports",
			Label:   "exports",
			Kind:    KindLoss,
			Percent: true,
			set: forLoss(func(l *sim.LossRate, scale func(float64) float64) {
				l.Exports = scale(l.Exports)
			}),
		},
		Parameter{
			Name:    "unknown_whereabouts",
			Label:   "unknown whereabouts",
			Kind:    KindLoss,
			Percent: true,
			set: forLoss(func(l *sim.LossRate, scale func(float64) float64) {
				l.UnknownWhereabouts = scale(l.UnknownWhereabouts)
			}),
		},
	)

	for _, p := range sim.Polymers {
		for _, v := range vehicles {
			params = append(params, Parameter{
				Name:    fmt.Sprintf("dismantling_%s_mass_vehicle_%d", p, v),
				Label:   fmt.Sprintf("dismantled %s mass of vehicle %d", p.Title(), v),
				Kind:    KindDismantling,
				Vehicle: v,
				set:     forDismantling(v, p),
			})
		}
	}

	for _, p := range sim.Polymers {
		params = append(params, Parameter{
			Name:    fmt.Sprintf("recycling_%s_efficiency", p),
			Label:   fmt.Sprintf("recycling %s efficiency", p.Title()),
			Kind:    KindRecycling,
			Percent: true,
			set: func(in *sim.Inputs, scale func(float64) float64) {
				for y, r := range in.Recycling {
					r.Efficiency[p] = scale(r.Efficiency[p])
					in.Recycling[y] = r
				}
			},
		})
	}
	for _, p := range sim.Polymers {
		params = append(params, Parameter{
			Name:    fmt.Sprintf("production_%s_efficiency", p),
			Label:   fmt.Sprintf("production %s efficiency", p.Title()),
			Kind:    KindProduction,
			Percent: true,
			set: forProduction(func(s *sim.ProductionSpec, scale func(float64) float64) {
				s.Efficiency[p] = scale(s.Efficiency[p])
			}),
		})
	}
	for _, p := range sim.Polymers {
		params = append(params, Parameter{
			Name:    fmt.Sprintf("production_max_%s", p),
			Label:   fmt.Sprintf("max recycled %s input", p.Title()),
			Kind:    KindProduction,
			Percent: true,
			set: forProduction(func(s *sim.ProductionSpec, scale func(float64) float64) {
				s.MaxRecycled[p] = scale(s.MaxRecycled[p])
			}),
		})
	}

	if includeWeibull {
		params = append(params,
			Parameter{
				Name:  "weibull_shape",
				Label: "Weibull shape parameter",
				Kind:  KindSurvival,
				set: func(in *sim.Inputs, scale func(float64) float64) {
					in.Weibull.Shape = scale(in.Weibull.Shape)
				},
			},
			Parameter{
				Name:  "weibull_scale",
				Label: "Weibull scale parameter",
				Kind:  KindSurvival,
				set: func(in *sim.Inputs, scale func(float64) float64) {
					in.Weibull.Scale = scale(in.Weibull.Scale)
				},
			},
		)
	}
	return params
}

// Labels returns the display labels of params in order.
func Labels(params []Parameter) []string {
	labels := make([]string, len(params))
	for i, p := range params {
		labels[i] = p.Label
	}
	return labels
}

func forVehicleSpecs(v sim.VehicleID, edit func(*sim.VehicleSpec, func(float64) float64)) func(*sim.Inputs, func(float64) float64) {
	return func(in *sim.Inputs, scale func(float64) float64) {
		for _, y := range in.Horizon.Years() {
			key := sim.VehicleYear{Vehicle: v, Year: y}
			spec, ok := in.VehicleSpecs[key]
			if !ok {
				continue
			}
			edit(&spec, scale)
			in.VehicleSpecs[key] = spec
		}
	}
}

func forDismantling(v sim.VehicleID, p sim.Polymer) func(*sim.Inputs, func(float64) float64) {
	return func(in *sim.Inputs, scale func(float64) float64) {
		for _, y := range in.Horizon.Years() {
			key := sim.VehicleYear{Vehicle: v, Year: y}
			d, ok := in.Dismantling[key]
			if !ok {
				continue
			}
			d.Mass[p] = scale(d.Mass[p])
			in.Dismantling[key] = d
		}
	}
}

func forLoss(edit func(*sim.LossRate, func(float64) float64)) func(*sim.Inputs, func(float64) float64) {
	return func(in *sim.Inputs, scale func(float64) float64) {
		for y, l := range in.Loss {
			edit(&l, scale)
			in.Loss[y] = l
		}
	}
}

func forProduction(edit func(*sim.ProductionSpec, func(float64) float64)) func(*sim.Inputs, func(float64) float64) {
	return func(in *sim.Inputs, scale func(float64) float64) {
		for y, s := range in.Production {
			edit(&s, scale)
			in.Production[y] = s
		}
	}
}
