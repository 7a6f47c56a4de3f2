package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/archive"
	"github.com/capsim/capsim/sim/report"
	"github.com/capsim/capsim/sim/scenario"
	"github.com/capsim/capsim/sim/sensitivity"
)

var (
	smallScenario    = filepath.Join("..", "sim", "scenario", "testdata", "scenario_small.yaml")
	baselineScenario = filepath.Join("..", "examples", "scenario_baseline.yaml")
	batchTime        = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
)

// copyInto copies src into dir under name and returns the new path.
func copyInto(t *testing.T, src, dir, name string) string {
	t.Helper()
	dst := filepath.Join(dir, name)
	require.NoError(t, copyFile(src, dst))
	return dst
}

func testSettings(t *testing.T) runSettings {
	t.Helper()
	s := defaultRunSettings()
	s.ResultsDir = filepath.Join(t.TempDir(), "results")
	s.Workers = 2
	return s
}

func TestRunBatch_SingleScenario_WritesTablesChartsSensitivityAndArchive(t *testing.T) {
	// GIVEN the example scenario with the sensitivity analysis and archive enabled
	s := testSettings(t)
	s.Archive = filepath.Join(t.TempDir(), "runs.db")
	s.Audit = true

	// WHEN the batch runs
	root, err := runBatch(context.Background(), []string{baselineScenario}, s, batchTime)
	require.NoError(t, err)

	// THEN results land in one timestamped folder without scenario sub folders
	assert.Equal(t, filepath.Join(s.ResultsDir, "2026-10-18_12-00-00"), root)
	assert.FileExists(t, filepath.Join(root, "scenario_baseline.yaml"))
	assert.FileExists(t, filepath.Join(root, report.FileClosedLoopRates))
	assert.FileExists(t, filepath.Join(root, "closed-loop-rates.png"))
	assert.FileExists(t, filepath.Join(root, "eol-vehicle-2.png"))

	// AND sensitivity results cover the target year and the last plotted year
	sa := filepath.Join(root, saDirName)
	assert.FileExists(t, filepath.Join(sa, "sa-results-plus.csv"))
	assert.FileExists(t, filepath.Join(sa, "sa-tornado-2035.csv"))
	assert.FileExists(t, filepath.Join(sa, "sa-tornado-2050.csv"))
	assert.FileExists(t, filepath.Join(sa, "sa-tornado-2035-total.png"))
	assert.FileExists(t, filepath.Join(sa, "sa-range.png"))
	assert.FileExists(t, filepath.Join(sa, "tmp", "cagr_plus", report.FileClosedLoopRates))

	// AND the archive holds the baseline and every perturbed run
	store, err := archive.Open(s.Archive)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, runs, 1+2*len(sensitivity.Catalogue([]sim.VehicleID{1, 2}, false)))
}

func TestRunBatch_MultipleScenarios_OneFails_ContinuesAndReports(t *testing.T) {
	// GIVEN a directory with a valid and an invalid scenario
	in := t.TempDir()
	copyInto(t, smallScenario, in, "scenario_1.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(in, "scenario_2.yaml"), []byte("cgar: 3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.yaml"), []byte("ignored"), 0o644))
	s := testSettings(t)
	s.SA = false

	// WHEN the directory runs
	root, err := runBatch(context.Background(), []string{in}, s, batchTime)

	// THEN the failure is reported after the valid scenario completed
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scenarios failed: 2")
	assert.FileExists(t, filepath.Join(root, "scenario_1", report.FileClosedLoopRates))
	assert.FileExists(t, filepath.Join(root, "scenario_1", "1_closed-loop-rates.png"))
	assert.NoDirExists(t, filepath.Join(root, "scenario_1", saDirName))
	assert.NoFileExists(t, filepath.Join(root, "comparison-closed-loop-total.png"))
}

func TestRunBatch_MultipleScenarios_DrawsComparison(t *testing.T) {
	in := t.TempDir()
	copyInto(t, smallScenario, in, "scenario_a.yaml")
	copyInto(t, smallScenario, in, "scenario_b.yaml")
	s := testSettings(t)
	s.SA = false
	s.ChartFormat = "svg"

	root, err := runBatch(context.Background(), []string{in}, s, batchTime)

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "comparison-closed-loop-total.svg"))
	assert.FileExists(t, filepath.Join(root, "scenario_b", "b_fleet.svg"))
}

func TestRunBatch_NoScenarioFiles_Fails(t *testing.T) {
	_, err := runBatch(context.Background(), []string{t.TempDir()}, testSettings(t), batchTime)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario*.yaml files")
}

func TestDiscoverScenarios_Directory_ReturnsSortedScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scenario_b.yaml", "scenario_a.yml", "data.yaml", "scenario_c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	extra := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(extra, nil, 0o644))

	files, err := discoverScenarios([]string{dir, extra})

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "scenario_a.yml"),
		filepath.Join(dir, "scenario_b.yaml"),
		extra,
	}, files)
}

func TestDiscoverScenarios_MissingPath_Fails(t *testing.T) {
	_, err := discoverScenarios([]string{filepath.Join(t.TempDir(), "missing")})

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScenarioID_FromFileNameOrPosition(t *testing.T) {
	assert.Equal(t, "3", scenarioID("in/scenario_3.yaml", 0))
	assert.Equal(t, "high-cagr", scenarioID("scenario_high-cagr.yml", 0))
	assert.Equal(t, "2", scenarioID("in/baseline.yaml", 1))
}

func TestTornadoYears_DropsDuplicatesAndYearsOutsideHorizon(t *testing.T) {
	tests := []struct {
		name       string
		target     int
		plotEnd    int
		wantYears  []int
		horizonEnd int
	}{
		{"target and plot end", 2035, 2050, []int{2035, 2050}, 2050},
		{"plot end clipped to horizon", 2035, 2060, []int{2035, 2040}, 2040},
		{"same year", 2040, 2040, []int{2040}, 2050},
		{"target outside", 2070, 2050, []int{2050}, 2050},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultRunSettings()
			s.TargetYear, s.PlotEnd = tt.target, tt.plotEnd
			job := scenarioJob{settings: s}

			got := job.tornadoYears(sim.NewHorizon(2020, tt.horizonEnd))

			assert.Equal(t, tt.wantYears, got)
		})
	}
}

func TestScenarioJob_Window_FallsBackToHorizon(t *testing.T) {
	s := defaultRunSettings()
	s.PlotStart, s.PlotEnd = 2060, 2070
	h := sim.NewHorizon(2020, 2040)

	assert.Equal(t, h, scenarioJob{settings: s}.window(h))
}

func TestEnvSettings_Apply_ExplicitFlagsWin(t *testing.T) {
	// GIVEN every environment override
	t.Setenv("CAPSIM_RESULTS_DIR", "/data/out")
	t.Setenv("CAPSIM_WORKERS", "3")
	t.Setenv("CAPSIM_ARCHIVE", "/data/runs.db")
	e, err := loadEnv()
	require.NoError(t, err)

	// WHEN applied while --workers was given on the command line
	s := defaultRunSettings()
	s.Workers = 8
	e.apply(&s, func(name string) bool { return name == "workers" })

	// THEN the flag keeps its value and the rest comes from the environment
	assert.Equal(t, 8, s.Workers)
	assert.Equal(t, "/data/out", s.ResultsDir)
	assert.Equal(t, "/data/runs.db", s.Archive)
}

func TestLoadEnv_MalformedValue_Fails(t *testing.T) {
	t.Setenv("CAPSIM_WORKERS", "many")

	_, err := loadEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestRunSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *runSettings)
		wantErr bool
	}{
		{"defaults", func(s *runSettings) {}, false},
		{"zero shape", func(s *runSettings) { s.WeibullShape = 0 }, true},
		{"sensitivity of one", func(s *runSettings) { s.Sensitivity = 1 }, true},
		{"sensitivity ignored without SA", func(s *runSettings) { s.Sensitivity, s.SA = 1, false }, false},
		{"inverted plot window", func(s *runSettings) { s.PlotStart, s.PlotEnd = 2050, 2025 }, true},
		{"unknown chart format", func(s *runSettings) { s.ChartFormat = "gif" }, true},
		{"empty results dir", func(s *runSettings) { s.ResultsDir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultRunSettings()
			tt.mutate(&s)

			err := s.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, sim.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateScenarios_ReportsEachFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "scenario_bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("start_year: 2030\nend_year: 2020\n"), 0o644))
	var out bytes.Buffer

	failed := validateScenarios(&out, []string{smallScenario, bad})

	assert.Equal(t, 1, failed)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ok "), lines[0])
	assert.Contains(t, lines[0], `"small", 2025..2027, 1 vehicles, 1 historical years`)
	assert.True(t, strings.HasPrefix(lines[1], "FAIL "+bad), lines[1])
}

func TestListParameters_PrintsCatalogue(t *testing.T) {
	sc, err := scenario.Load(baselineScenario)
	require.NoError(t, err)
	var out bytes.Buffer

	require.NoError(t, listParameters(&out, sc, true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := sensitivity.Catalogue([]sim.VehicleID{1, 2}, true)
	require.Len(t, lines, 1+len(want))
	assert.Contains(t, lines[1], "total_mass_vehicle_1")
	assert.Contains(t, lines[1], "vehicles_data")
	assert.Contains(t, lines[len(lines)-1], "weibull_scale")
}
