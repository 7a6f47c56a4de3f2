package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/capsim/capsim/sim"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one fixture scenario (see NewInputs) with its survival
// model, growth rate and the expected values of selected years.
type GoldenTestCase struct {
	Name         string       `json:"name"`
	StartYear    int          `json:"start"`
	EndYear      int          `json:"end"`
	Vehicles     int          `json:"vehicles"`
	Historical   []float64    `json:"historical"`
	CAGR         float64      `json:"cagr"`
	WeibullShape float64      `json:"shape"`
	WeibullScale float64      `json:"scale"`
	Years        []GoldenYear `json:"years"`
}

// GoldenYear holds expected totals over all vehicles for one year.
type GoldenYear struct {
	Year          int     `json:"year"`
	Registrations float64 `json:"registrations"`
	Stock         float64 `json:"stock"`
	ToRecycling   float64 `json:"to_recycling"`
	DemandPlastic float64 `json:"demand_plastic"`
	Rates         struct {
		PP    float64 `json:"pp"`
		PA    float64 `json:"pa"`
		PC    float64 `json:"pc"`
		ABS   float64 `json:"abs"`
		Total float64 `json:"total"`
	} `json:"rates"`
}

// Rate returns the expected closed-loop rate of metric m.
func (g GoldenYear) Rate(m sim.Metric) float64 {
	return [sim.NumMetrics]float64{g.Rates.PP, g.Rates.PA, g.Rates.PC, g.Rates.ABS, g.Rates.Total}[m]
}

// Inputs builds the scenario of the test case.
func (tc GoldenTestCase) Inputs() *sim.Inputs {
	in := NewInputs(tc.StartYear, tc.EndYear, tc.Vehicles, tc.Historical...)
	in.ScenarioName = tc.Name
	in.CAGR = tc.CAGR
	in.Weibull = sim.WeibullParams{Shape: tc.WeibullShape, Scale: tc.WeibullScale}
	return in
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
