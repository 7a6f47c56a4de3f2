package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/archive"
	"github.com/capsim/capsim/sim/report"
	"github.com/capsim/capsim/sim/scenario"
	"github.com/capsim/capsim/sim/sensitivity"
)

// saDirName is the per-scenario folder for sensitivity results.
const saDirName = "sensitivity_analysis"

// runCmd simulates every scenario and writes tables, charts and the archive
var runCmd = &cobra.Command{
	Use:   "run [scenario files or directories]",
	Short: "Simulate scenarios and write their results",
	Long: `Simulate one or more scenario files. Directories are searched for
scenario*.yaml files, which run in name order. Results go to a timestamped
folder under --results-dir, with one scenario_<id> folder per scenario when
more than one runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		e.apply(&settings, cmd.Flags().Changed)
		if err := settings.Validate(); err != nil {
			logrus.Fatalf("Invalid settings: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		out, err := runBatch(ctx, args, settings, startTime)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Simulation complete in %s, results in %s", time.Since(startTime).Round(time.Millisecond), out)
	},
}

// runBatch runs every scenario found in args and returns the results folder.
// A failing scenario is logged and skipped; the batch then reports an error
// after the remaining scenarios have run.
func runBatch(ctx context.Context, args []string, s runSettings, now time.Time) (string, error) {
	files, err := discoverScenarios(args)
	if err != nil {
		return "", err
	}
	logrus.Infof("Found %d scenario file(s)", len(files))

	root := filepath.Join(s.ResultsDir, now.Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating results folder: %w", err)
	}

	var store *archive.Store
	if s.Archive != "" {
		store, err = archive.Open(s.Archive)
		if err != nil {
			return root, err
		}
		defer store.Close()
	}
	batch := archive.NewBatchID()

	var (
		comparison []report.ScenarioSeries
		failed     []string
	)
	for i, file := range files {
		id := scenarioID(file, i)
		job := scenarioJob{file: file, dir: root, settings: s, store: store, batch: batch}
		if len(files) > 1 {
			job.dir = filepath.Join(root, "scenario_"+id)
			job.prefix = id
		}

		logrus.Infof("Scenario %s: %s", id, file)
		res, err := job.run(ctx)
		if err != nil {
			logrus.Errorf("Scenario %s failed: %v", id, err)
			failed = append(failed, id)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		h := res.Inputs.Horizon
		comparison = append(comparison, report.ScenarioSeries{
			Name:   res.Inputs.ScenarioName,
			Years:  h.Years(),
			Values: res.ClosedLoop.Series(h, sim.MetricTotal),
		})
		logrus.Infof("Scenario %s completed", id)
	}

	if len(comparison) > 1 {
		path := filepath.Join(root, "comparison-closed-loop-total."+s.ChartFormat)
		if err := report.PlotComparison(path, "Total closed-loop rates", comparison); err != nil {
			return root, fmt.Errorf("comparison chart: %w", err)
		}
	}
	if len(failed) > 0 {
		return root, fmt.Errorf("%d of %d scenarios failed: %s", len(failed), len(files), strings.Join(failed, ", "))
	}
	return root, nil
}

// scenarioJob is one scenario of a batch and where its results go.
type scenarioJob struct {
	file     string
	dir      string
	prefix   string // chart file prefix, empty for single-scenario batches
	settings runSettings
	store    *archive.Store
	batch    string
}

func (j scenarioJob) run(ctx context.Context) (*sim.Result, error) {
	s := j.settings
	sc, err := scenario.Load(j.file)
	if err != nil {
		return nil, err
	}
	policy, err := sc.ZeroDemandPolicy()
	if err != nil {
		return nil, err
	}
	in, err := sc.ToInputs(s.weibull())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", j.dir, err)
	}
	if err := copyFile(j.file, filepath.Join(j.dir, filepath.Base(j.file))); err != nil {
		return nil, err
	}

	var (
		res *sim.Result
		rs  *sensitivity.ResultSet
	)
	if s.SA {
		rs, err = sensitivity.RunSweep(ctx, in, sensitivity.Options{
			Sensitivity:    s.Sensitivity,
			Workers:        s.Workers,
			Audit:          s.Audit,
			IncludeWeibull: s.IncludeWeibull,
			ZeroDemand:     policy,
		})
		if err != nil {
			return nil, fmt.Errorf("sensitivity analysis: %w", err)
		}
		res = rs.Baseline
	} else {
		res, err = sim.RunFullSimulation(in, sim.Options{ZeroDemand: policy})
		if err != nil {
			return nil, err
		}
	}

	if _, err := report.WriteTables(j.dir, res, report.TableOptions{CohortDetail: s.CohortDetail}); err != nil {
		return nil, err
	}
	if err := j.writeCharts(res); err != nil {
		return nil, err
	}
	if rs != nil {
		if err := j.writeSensitivity(rs); err != nil {
			return nil, err
		}
	}

	if j.store != nil {
		if rs != nil {
			_, err = j.store.RecordSweep(ctx, j.batch, rs)
		} else {
			_, err = j.store.RecordBaseline(ctx, j.batch, res)
		}
		if err != nil {
			return nil, fmt.Errorf("archiving: %w", err)
		}
	}
	return res, nil
}

func (j scenarioJob) chart(dir, name string) string {
	return report.ChartPath(dir, j.prefix, name+"."+j.settings.ChartFormat)
}

// window returns the plot window clipped to the horizon, or the whole
// horizon when the two do not overlap.
func (j scenarioJob) window(h sim.Horizon) sim.Horizon {
	w := report.ClipWindow(h, j.settings.plotWindow())
	if w.EndYear < w.StartYear {
		logrus.Warnf("plot window %d..%d is outside %d..%d, plotting the whole horizon",
			j.settings.PlotStart, j.settings.PlotEnd, h.StartYear, h.EndYear)
		return h
	}
	return w
}

func (j scenarioJob) writeCharts(res *sim.Result) error {
	window := j.window(res.Inputs.Horizon)
	if !res.Inputs.Horizon.Contains(j.settings.TargetYear) {
		logrus.Warnf("target year %d is outside the horizon, no marker drawn", j.settings.TargetYear)
	}
	charts := []struct {
		name string
		draw func(path string) error
	}{
		{"closed-loop-rates", func(p string) error { return report.PlotClosedLoop(p, res, window, j.settings.TargetYear) }},
		{"closed-loop-content", func(p string) error { return report.PlotDemandSupply(p, res, window) }},
		{"registrations", func(p string) error { return report.PlotRegistrations(p, res, window) }},
		{"fleet", func(p string) error { return report.PlotFleet(p, res, window) }},
	}
	for _, v := range res.Inputs.Vehicles {
		charts = append(charts, struct {
			name string
			draw func(path string) error
		}{fmt.Sprintf("eol-vehicle-%d", v.ID), func(p string) error { return report.PlotEndOfLife(p, res, v, window) }})
	}
	for _, c := range charts {
		if err := c.draw(j.chart(j.dir, c.name)); err != nil {
			return fmt.Errorf("%s chart: %w", c.name, err)
		}
	}
	return nil
}

// tornadoYears returns the target year and the last plotted year, dropping
// years outside the horizon and duplicates.
func (j scenarioJob) tornadoYears(h sim.Horizon) []int {
	var years []int
	for _, y := range []int{j.settings.TargetYear, j.window(h).EndYear} {
		if h.Contains(y) && !slices.Contains(years, y) {
			years = append(years, y)
		}
	}
	return years
}

func (j scenarioJob) writeSensitivity(rs *sensitivity.ResultSet) error {
	dir := filepath.Join(j.dir, saDirName)
	opts := report.SensitivityOptions{TornadoYears: j.tornadoYears(rs.Baseline.Inputs.Horizon)}
	if j.settings.Audit {
		opts.AuditDir = filepath.Join(dir, "tmp")
	}
	if _, err := report.WriteSensitivity(dir, rs, opts); err != nil {
		return err
	}

	window := j.window(rs.Baseline.Inputs.Horizon)
	if err := report.PlotEnvelope(j.chart(dir, "sa-range"), sensitivity.Envelope(rs), window, rs.Sensitivity); err != nil {
		return fmt.Errorf("sensitivity range chart: %w", err)
	}
	for _, year := range opts.TornadoYears {
		charts, err := sensitivity.Tornado(rs, year)
		if err != nil {
			return err
		}
		for _, c := range charts {
			name := fmt.Sprintf("sa-tornado-%d-%s", year, c.Metric)
			if _, err := report.PlotTornado(j.chart(dir, name), c, rs.Sensitivity); err != nil {
				return fmt.Errorf("%s chart: %w", name, err)
			}
		}
	}
	return nil
}

var scenarioFilePattern = regexp.MustCompile(`^scenario_(.+)\.ya?ml$`)

// scenarioID derives a scenario id from a file named scenario_<id>.yaml, or
// falls back to the 1-based position in the batch.
func scenarioID(file string, index int) string {
	if m := scenarioFilePattern.FindStringSubmatch(filepath.Base(file)); m != nil {
		return m[1]
	}
	return strconv.Itoa(index + 1)
}

// discoverScenarios expands directories into their scenario*.yaml files in
// name order. Without arguments the current directory is searched.
func discoverScenarios(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		var found []string
		for _, pattern := range []string{"scenario*.yaml", "scenario*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario*.yaml files found in %s", strings.Join(args, ", "))
	}
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copying input file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying input file: %w", err)
	}
	return out.Close()
}
