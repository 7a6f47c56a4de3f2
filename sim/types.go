package sim

import (
	"fmt"
	"strings"
)

// VehicleID identifies a vehicle model. Valid ids are 1..n_vehicles.
type VehicleID int

// Horizon is the inclusive simulated year range.
type Horizon struct {
	StartYear int
	EndYear   int
}

// NewHorizon constructs a Horizon.
func NewHorizon(startYear, endYear int) Horizon {
	return Horizon{StartYear: startYear, EndYear: endYear}
}

// Len returns the number of simulated years (0 for an inverted range).
func (h Horizon) Len() int {
	if h.EndYear < h.StartYear {
		return 0
	}
	return h.EndYear - h.StartYear + 1
}

// Contains reports whether year lies inside the horizon.
func (h Horizon) Contains(year int) bool {
	return year >= h.StartYear && year <= h.EndYear
}

// Years returns every year of the horizon in ascending order.
func (h Horizon) Years() []int {
	years := make([]int, 0, h.Len())
	for y := h.StartYear; y <= h.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// VehicleYear keys per-vehicle, per-year tables.
type VehicleYear struct {
	Vehicle VehicleID
	Year    int
}

func (k VehicleYear) String() string {
	return fmt.Sprintf("(vehicle=%d, year=%d)", k.Vehicle, k.Year)
}

// CohortKey keys the cohort fleet matrix. Year >= RegYear for valid cells.
type CohortKey struct {
	Vehicle VehicleID
	RegYear int
	Year    int
}

func (k CohortKey) String() string {
	return fmt.Sprintf("(vehicle=%d, reg_year=%d, year=%d)", k.Vehicle, k.RegYear, k.Year)
}

// Polymer enumerates the tracked plastic fractions.
type Polymer int

const (
	PP Polymer = iota
	PA
	PC
	ABS

	NumPolymers = 4
)

// Polymers lists every polymer in reporting order.
var Polymers = [NumPolymers]Polymer{PP, PA, PC, ABS}

var polymerNames = [NumPolymers]string{"pp", "pa", "pc", "abs"}

// String returns the lower-case column name ("pp", "pa", ...).
func (p Polymer) String() string {
	if p < 0 || int(p) >= NumPolymers {
		return fmt.Sprintf("polymer(%d)", int(p))
	}
	return polymerNames[p]
}

// Title returns the upper-case display name ("PP", "PA", ...).
func (p Polymer) Title() string {
	return strings.ToUpper(p.String())
}

// PolymerValues holds one quantity per polymer, indexed by Polymer.
type PolymerValues [NumPolymers]float64

// Sum returns the total over all polymers.
func (v PolymerValues) Sum() float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total
}

// Scale returns v multiplied element-wise by f.
func (v PolymerValues) Scale(f float64) PolymerValues {
	var out PolymerValues
	for i, x := range v {
		out[i] = x * f
	}
	return out
}

// Metric selects one closed-loop rate series: a polymer or the plastic total.
type Metric int

const (
	MetricPP Metric = iota
	MetricPA
	MetricPC
	MetricABS
	MetricTotal

	NumMetrics = 5
)

// Metrics lists every closed-loop metric in reporting order.
var Metrics = [NumMetrics]Metric{MetricPP, MetricPA, MetricPC, MetricABS, MetricTotal}

// MetricForPolymer maps a polymer to its closed-loop metric.
func MetricForPolymer(p Polymer) Metric {
	return Metric(p)
}

func (m Metric) String() string {
	if m == MetricTotal {
		return "total"
	}
	if m >= 0 && m < MetricTotal {
		return Polymer(m).String()
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Title returns the display name ("PP", ..., "Total").
func (m Metric) Title() string {
	if m == MetricTotal {
		return "Total"
	}
	return strings.ToUpper(m.String())
}
