package sim

import (
	"maps"
	"math"

	"github.com/sirupsen/logrus"
)

// ProjectRegistrations extends the historical registration series of every
// vehicle from the last historical year (start + initYears - 1) to the end of
// the horizon with a compound annual growth rate (cagr, %):
//
//	reg(v, y) = reg(v, init) * (1 + cagr/100)^(y - init)
//
// Values are left unrounded. If the history already reaches the end year the
// series is returned unchanged. The input map is never modified.
func ProjectRegistrations(h Horizon, vehicles []VehicleID, cagr float64, initYears int, historical Registrations) (Registrations, error) {
	if initYears <= 0 {
		return nil, configErrorf("no registration baseline to project from")
	}
	out := maps.Clone(historical)
	if out == nil {
		out = make(Registrations)
	}

	initYear := h.StartYear + initYears - 1
	if initYear >= h.EndYear {
		logrus.Debugf("registrations already defined through %d, nothing to project", initYear)
		return out, nil
	}
	if cagr <= -100 {
		return nil, configErrorf("cagr must be greater than -100%%, got %g", cagr)
	}

	growth := 1 + cagr/100
	for _, v := range vehicles {
		base, err := lookupVY(historical, "registrations", v, initYear)
		if err != nil {
			return nil, err
		}
		for y := initYear + 1; y <= h.EndYear; y++ {
			out[VehicleYear{Vehicle: v, Year: y}] = base * math.Pow(growth, float64(y-initYear))
		}
	}
	logrus.Debugf("projected registrations %d..%d at %.3f%% CAGR for %d vehicles", initYear+1, h.EndYear, cagr, len(vehicles))
	return out, nil
}
