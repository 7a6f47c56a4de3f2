package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/internal/testutil"
	"github.com/capsim/capsim/sim/sensitivity"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func TestWriteTables_WritesWideYearTables(t *testing.T) {
	// GIVEN a two-vehicle result
	res := testutil.MustRun(t, testutil.NewInputs(2025, 2030, 2, 1000))
	dir := filepath.Join(t.TempDir(), "out")

	// WHEN the tables are written
	paths, err := WriteTables(dir, res, TableOptions{})
	require.NoError(t, err)

	// THEN every default table exists and no cohort detail is written
	assert.Len(t, paths, 13)
	assert.NoFileExists(t, filepath.Join(dir, FileFleetDetail))

	// AND the closed-loop table lists Total first with one column per year
	rows := readCSV(t, filepath.Join(dir, FileClosedLoopRates))
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"", "2025", "2026", "2027", "2028", "2029", "2030"}, rows[0])
	assert.Equal(t, "Total", rows[1][0])
	assert.Equal(t, "ABS", rows[5][0])
	assert.InDelta(t, res.ClosedLoop[2030].Total, parseFloat(t, rows[1][6]), 1e-12)

	// AND per-vehicle tables carry one row per vehicle
	regs := readCSV(t, filepath.Join(dir, FileRegistrations))
	require.Len(t, regs, 3)
	assert.Equal(t, "vehicle-2", regs[2][0])
	assert.Equal(t, 2000.0, parseFloat(t, regs[2][1]))

	// AND polymer tables carry one row per vehicle and polymer
	out := readCSV(t, filepath.Join(dir, FileRecyclingOutput))
	require.Len(t, out, 1+2*sim.NumPolymers)
	assert.Equal(t, []string{"vehicle-1", "PA"}, out[2][:2])
}

func TestWriteTables_CohortDetail_WritesTriangularMatrix(t *testing.T) {
	res := testutil.MustRun(t, testutil.NewInputs(2025, 2027, 1, 1000))
	dir := t.TempDir()

	_, err := WriteTables(dir, res, TableOptions{CohortDetail: true})
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, FileFleetDetail))
	// header + 3 + 2 + 1 cohort cells
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"vehicle-1", "2025", "2027", "999", "1", "0.3", "0.1", "0.6"}, rows[3])
}

func TestWriteTables_InputSnapshot_ListsHistoricalRegistrationsOnly(t *testing.T) {
	res := testutil.MustRun(t, testutil.NewInputs(2025, 2027, 1, 1000))
	dir := t.TempDir()

	_, err := WriteTables(dir, res, TableOptions{})
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, FileInputsVehicles))
	require.Len(t, rows, 4)
	assert.Equal(t, "1000", rows[1][2])
	assert.Equal(t, "", rows[2][2])
	assert.Equal(t, "1500", rows[1][3])

	years := readCSV(t, filepath.Join(dir, FileInputsYears))
	assert.Equal(t, "max_abs", years[0][len(years[0])-1])
	assert.Equal(t, "20", years[3][len(years[3])-1])
}

func TestWriteSensitivity_WritesRunsRangeAndTornado(t *testing.T) {
	// GIVEN a sweep with audit results
	in := testutil.NewInputs(2025, 2035, 1, 1000)
	rs, err := sensitivity.RunSweep(context.Background(), in, sensitivity.Options{Sensitivity: 0.2, Audit: true, Workers: 2})
	require.NoError(t, err)
	dir := t.TempDir()
	auditDir := filepath.Join(dir, "audit")

	// WHEN written
	_, err = WriteSensitivity(dir, rs, SensitivityOptions{TornadoYears: []int{2030, 2035}, AuditDir: auditDir})
	require.NoError(t, err)

	// THEN runs are listed per parameter and year
	plus := readCSV(t, filepath.Join(dir, "sa-results-plus.csv"))
	assert.Equal(t, []string{"parameter", "label", "year", "pp", "pa", "pc", "abs", "total"}, plus[0])
	assert.Len(t, plus, 1+len(rs.Parameters)*in.Horizon.Len())
	assert.Equal(t, "total_mass_vehicle_1", plus[1][0])

	// AND the range table holds min/baseline/max per metric
	rng := readCSV(t, filepath.Join(dir, "sa-results-range.csv"))
	require.Len(t, rng, 1+3*sim.NumMetrics)
	assert.Equal(t, []string{"PP", "min"}, rng[1][:2])
	assert.Equal(t, []string{"Total", "max"}, rng[15][:2])

	// AND one tornado table per requested year lists every parameter per metric
	for _, year := range []int{2030, 2035} {
		tornado := readCSV(t, filepath.Join(dir, "sa-tornado-"+strconv.Itoa(year)+".csv"))
		assert.Len(t, tornado, 1+sim.NumMetrics*len(rs.Parameters))
	}

	// AND every audited run has its own table directory
	assert.FileExists(t, filepath.Join(auditDir, "cagr_plus", FileClosedLoopRates))
	assert.FileExists(t, filepath.Join(auditDir, "production_max_abs_minus", FileInputsYears))
}

func TestWriteSensitivity_TornadoYearOutsideHorizon_Fails(t *testing.T) {
	in := testutil.NewInputs(2025, 2027, 1, 1000)
	rs, err := sensitivity.RunSweep(context.Background(), in, sensitivity.Options{Sensitivity: 0.2})
	require.NoError(t, err)

	_, err = WriteSensitivity(t.TempDir(), rs, SensitivityOptions{TornadoYears: []int{2040}})

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestPlots_WriteImageFiles(t *testing.T) {
	// GIVEN a result and a sweep
	in := testutil.NewInputs(2020, 2040, 2, 900, 1000)
	rs, err := sensitivity.RunSweep(context.Background(), in, sensitivity.Options{Sensitivity: 0.2})
	require.NoError(t, err)
	res := rs.Baseline
	dir := t.TempDir()
	window := sim.NewHorizon(2022, 2050)

	// WHEN every chart is drawn
	require.NoError(t, PlotClosedLoop(filepath.Join(dir, "closed-loop-rates.png"), res, window, 2035))
	require.NoError(t, PlotDemandSupply(filepath.Join(dir, "closed-loop-content.png"), res, window))
	require.NoError(t, PlotRegistrations(filepath.Join(dir, "registrations.png"), res, window))
	require.NoError(t, PlotFleet(filepath.Join(dir, "fleet.svg"), res, window))
	require.NoError(t, PlotEndOfLife(filepath.Join(dir, "eol.png"), res, res.Inputs.Vehicles[1], window))
	require.NoError(t, PlotEnvelope(filepath.Join(dir, "sa-range.png"), sensitivity.Envelope(rs), window, 0.2))
	charts, err := sensitivity.Tornado(rs, 2035)
	require.NoError(t, err)
	drawn, err := PlotTornado(filepath.Join(dir, "sa-tornado.png"), charts[sim.MetricTotal], 0.2)
	require.NoError(t, err)
	require.NoError(t, PlotComparison(filepath.Join(dir, "comparison.png"), "Total closed-loop rates", []ScenarioSeries{
		{Name: "a", Years: in.Horizon.Years(), Values: res.ClosedLoop.Series(in.Horizon, sim.MetricTotal)},
		{Name: "b", Years: in.Horizon.Years(), Values: res.ClosedLoop.Series(in.Horizon, sim.MetricPP)},
	}))

	// THEN the files exist and are non-empty
	assert.True(t, drawn)
	for _, name := range []string{"closed-loop-rates.png", "closed-loop-content.png", "registrations.png", "fleet.svg", "eol.png", "sa-range.png", "sa-tornado.png", "comparison.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestPlotTornado_NothingRanked_SkipsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.png")

	drawn, err := PlotTornado(path, sensitivity.TornadoChart{Metric: sim.MetricPP, Year: 2030, Undefined: true}, 0.2)

	require.NoError(t, err)
	assert.False(t, drawn)
	assert.NoFileExists(t, path)
}

func TestClipWindow_IntersectsHorizon(t *testing.T) {
	got := ClipWindow(sim.NewHorizon(2020, 2040), sim.NewHorizon(2025, 2050))

	assert.Equal(t, sim.NewHorizon(2025, 2040), got)
	assert.Equal(t, "dir/2_fleet.png", filepath.ToSlash(ChartPath("dir", "2", "fleet.png")))
	assert.Equal(t, "dir/fleet.png", filepath.ToSlash(ChartPath("dir", "", "fleet.png")))
}
