package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleVehicle(start, end int, regs ...float64) (Horizon, []VehicleID, Registrations) {
	h := NewHorizon(start, end)
	r := make(Registrations)
	for i, n := range regs {
		r[VehicleYear{Vehicle: 1, Year: start + i}] = n
	}
	return h, []VehicleID{1}, r
}

func TestRetirementShare_AgeZero_UsesDensityLimit(t *testing.T) {
	tests := []struct {
		name  string
		shape float64
		want  float64
	}{
		{"shape above one", 3.2, 0},
		{"exponential", 1, 1 / 16.75},
		{"shape below one", 0.5, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSurvivalModel(WeibullParams{Shape: tt.shape, Scale: 16.75})
			assert.Equal(t, tt.want, m.retirementShare(0))
		})
	}
}

func TestRetirementShare_DefaultModel_MatchesWeibullDensity(t *testing.T) {
	// GIVEN the default survival model
	m := newSurvivalModel(DefaultWeibull)

	// WHEN evaluated at integer ages
	// THEN it returns k/λ (x/λ)^(k-1) exp(-(x/λ)^k)
	for age := 1; age <= 40; age++ {
		x := float64(age) / DefaultWeibull.Scale
		want := DefaultWeibull.Shape / DefaultWeibull.Scale * math.Pow(x, DefaultWeibull.Shape-1) * math.Exp(-math.Pow(x, DefaultWeibull.Shape))
		assert.InDelta(t, want, m.retirementShare(age), 1e-12, "age %d", age)
	}
}

func TestRetiringVehicles_FloorsAndHandlesEdgeValues(t *testing.T) {
	assert.Equal(t, 1.0, retiringVehicles(1000, 0.00177863))
	assert.Equal(t, 0.0, retiringVehicles(1100, 0.00038748))
	assert.Equal(t, 0.0, retiringVehicles(0, math.Inf(1)))
	assert.True(t, math.IsInf(retiringVehicles(5, math.Inf(1)), 1))
}

func TestComputeFleet_DefaultWeibull_FirstAgesMatchFlooredDensity(t *testing.T) {
	// GIVEN one cohort of 1000 vehicles registered in 2025
	h, vehicles, regs := singleVehicle(2025, 2032, 1000, 0, 0, 0, 0, 0, 0, 0)

	// WHEN the fleet is computed
	cohorts, summary, err := ComputeFleet(h, vehicles, regs, DefaultWeibull)
	require.NoError(t, err)

	// THEN exits are floor(1000 * pdf(age)) and stock decreases accordingly
	wantExits := []float64{0, 0, 1, 4, 8, 13, 19, 26}
	stock := 1000.0
	for age, want := range wantExits {
		cell := cohorts[CohortKey{Vehicle: 1, RegYear: 2025, Year: 2025 + age}]
		stock -= want
		assert.Equal(t, want, cell.Exits, "age %d exits", age)
		assert.Equal(t, stock, cell.Stock, "age %d stock", age)
		assert.Equal(t, stock, summary[VehicleYear{Vehicle: 1, Year: 2025 + age}].Stock)
	}
}

func TestComputeFleet_ExitsExceedCohort_ClampsAtAgeZero(t *testing.T) {
	// GIVEN a shape below one, whose density is infinite at age zero
	h, vehicles, regs := singleVehicle(2025, 2030, 50, 50, 50, 50, 50, 50)
	w := WeibullParams{Shape: 0.5, Scale: 2}

	// WHEN the fleet is computed
	cohorts, _, err := ComputeFleet(h, vehicles, regs, w)
	require.NoError(t, err)

	// THEN every cohort retires completely in its registration year and stays empty
	for regYear := 2025; regYear <= 2030; regYear++ {
		own := cohorts[CohortKey{Vehicle: 1, RegYear: regYear, Year: regYear}]
		assert.Equal(t, 50.0, own.Exits)
		assert.Equal(t, 0.0, own.Stock)
		for year := regYear + 1; year <= 2030; year++ {
			cell := cohorts[CohortKey{Vehicle: 1, RegYear: regYear, Year: year}]
			assert.Equal(t, 0.0, cell.Stock)
			assert.GreaterOrEqual(t, cell.Exits, 0.0)
		}
	}
}

func TestComputeFleet_ShortScale_StockNeverNegativeAndNonIncreasing(t *testing.T) {
	// GIVEN a survival model that retires vehicles quickly
	h, vehicles, regs := singleVehicle(2000, 2040, 777)
	for y := 2001; y <= 2040; y++ {
		regs[VehicleYear{Vehicle: 1, Year: y}] = float64(100 * (y % 7))
	}
	w := WeibullParams{Shape: 1.3, Scale: 1.5}

	// WHEN the fleet is computed
	cohorts, _, err := ComputeFleet(h, vehicles, regs, w)
	require.NoError(t, err)

	// THEN stock is non-negative and non-increasing within every cohort
	for regYear := 2000; regYear <= 2040; regYear++ {
		prev := regs[VehicleYear{Vehicle: 1, Year: regYear}]
		for year := regYear; year <= 2040; year++ {
			cell := cohorts[CohortKey{Vehicle: 1, RegYear: regYear, Year: year}]
			assert.GreaterOrEqual(t, cell.Stock, 0.0, "cohort %d year %d", regYear, year)
			assert.LessOrEqual(t, cell.Stock, prev, "cohort %d year %d", regYear, year)
			prev = cell.Stock
		}
	}
}

func TestComputeFleet_ZeroRegistrations_NoExits(t *testing.T) {
	h, vehicles, regs := singleVehicle(2025, 2027, 0, 0, 0)

	cohorts, summary, err := ComputeFleet(h, vehicles, regs, WeibullParams{Shape: 0.5, Scale: 1})
	require.NoError(t, err)

	for k, cell := range cohorts {
		assert.Equal(t, FleetFlows{}, cell, "cell %v", k)
	}
	assert.Len(t, summary, 3)
}

func TestComputeFleet_MissingRegistration_ReturnsDataShapeError(t *testing.T) {
	h, vehicles, regs := singleVehicle(2025, 2027, 1000, 1000)

	_, _, err := ComputeFleet(h, vehicles, regs, DefaultWeibull)

	var shapeErr *DataShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "registrations", shapeErr.Table)
	assert.Equal(t, VehicleYear{Vehicle: 1, Year: 2027}, shapeErr.Key)
}

func TestComputeFleet_InvalidWeibull_ReturnsConfigurationError(t *testing.T) {
	h, vehicles, regs := singleVehicle(2025, 2025, 1000)

	_, _, err := ComputeFleet(h, vehicles, regs, WeibullParams{Shape: 0, Scale: 10})

	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSplitEndOfLife_ExitsMatchStockChangeAndConserve(t *testing.T) {
	// GIVEN a fleet with several ageing cohorts
	h, vehicles, regs := singleVehicle(2000, 2030, 5000)
	for y := 2001; y <= 2030; y++ {
		regs[VehicleYear{Vehicle: 1, Year: y}] = 5000
	}
	cohorts, _, err := ComputeFleet(h, vehicles, regs, WeibullParams{Shape: 2, Scale: 6})
	require.NoError(t, err)
	loss := make(LossRates)
	for _, y := range h.Years() {
		loss[y] = LossRate{Exports: 30, UnknownWhereabouts: 10}
	}

	// WHEN the end-of-life split runs
	split, summary, err := SplitEndOfLife(h, vehicles, cohorts, loss)
	require.NoError(t, err)

	// THEN every cell conserves exits and own-year cells carry no flows
	for k, cell := range split {
		assert.InDelta(t, cell.Exits, cell.Exports+cell.Unknown+cell.ToRecycling, 1e-9, "cell %v", k)
		if k.RegYear == k.Year {
			assert.Zero(t, cell.Exits, "cell %v", k)
			continue
		}
		prev := split[CohortKey{Vehicle: k.Vehicle, RegYear: k.RegYear, Year: k.Year - 1}]
		assert.Equal(t, prev.Stock-cell.Stock, cell.Exits, "cell %v", k)
		assert.InDelta(t, cell.Exits*0.3, cell.Exports, 1e-9)
	}

	// AND the summary aggregates the cohort cells
	for _, y := range h.Years() {
		var want FleetFlows
		for regYear := h.StartYear; regYear <= y; regYear++ {
			c := split[CohortKey{Vehicle: 1, RegYear: regYear, Year: y}]
			want.Stock += c.Stock
			want.Exits += c.Exits
			want.ToRecycling += c.ToRecycling
		}
		got := summary[VehicleYear{Vehicle: 1, Year: y}]
		assert.Equal(t, want.Stock, got.Stock, "year %d", y)
		assert.InDelta(t, want.Exits, got.Exits, 1e-9, "year %d", y)
		assert.InDelta(t, want.ToRecycling, got.ToRecycling, 1e-9, "year %d", y)
	}
}

func TestSplitEndOfLife_DoesNotModifyInput(t *testing.T) {
	h, vehicles, regs := singleVehicle(2025, 2026, 100, 100)
	cohorts, _, err := ComputeFleet(h, vehicles, regs, WeibullParams{Shape: 0.5, Scale: 1})
	require.NoError(t, err)
	before := cohorts[CohortKey{Vehicle: 1, RegYear: 2025, Year: 2025}]
	loss := LossRates{2025: {}, 2026: {}}

	split, _, err := SplitEndOfLife(h, vehicles, cohorts, loss)
	require.NoError(t, err)

	assert.Equal(t, before, cohorts[CohortKey{Vehicle: 1, RegYear: 2025, Year: 2025}])
	assert.Zero(t, split[CohortKey{Vehicle: 1, RegYear: 2025, Year: 2025}].Exits)
}

func TestSplitEndOfLife_MissingLossYear_ReturnsDataShapeError(t *testing.T) {
	h, vehicles, regs := singleVehicle(2025, 2026, 100, 100)
	cohorts, _, err := ComputeFleet(h, vehicles, regs, DefaultWeibull)
	require.NoError(t, err)

	_, _, err = SplitEndOfLife(h, vehicles, cohorts, LossRates{2025: {}})

	assert.ErrorIs(t, err, ErrDataShape)
	assert.Contains(t, err.Error(), "year=2026")
}
