package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/sensitivity"
)

// SensitivityOptions control WriteSensitivity.
type SensitivityOptions struct {
	// TornadoYears lists the years with tornado tables, typically the target
	// year and the last plotted year.
	TornadoYears []int
	// AuditDir receives the full tables of every perturbed run when the
	// result set carries audit results. Empty disables the audit export.
	AuditDir string
}

// WriteSensitivity writes the perturbed closed-loop series, the result
// envelope and the tornado tables into dir and returns the paths written.
func WriteSensitivity(dir string, rs *sensitivity.ResultSet, opts SensitivityOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	var paths []string
	write := func(name string, rows [][]string) error {
		path := filepath.Join(dir, name)
		if err := writeCSV(path, rows); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	for _, d := range []sensitivity.Direction{sensitivity.Plus, sensitivity.Minus} {
		if err := write(fmt.Sprintf("sa-results-%s.csv", d), runRows(rs, d)); err != nil {
			return paths, err
		}
	}
	if err := write("sa-results-range.csv", envelopeRows(sensitivity.Envelope(rs))); err != nil {
		return paths, err
	}
	for _, year := range opts.TornadoYears {
		charts, err := sensitivity.Tornado(rs, year)
		if err != nil {
			return paths, err
		}
		if err := write(fmt.Sprintf("sa-tornado-%d.csv", year), tornadoRows(charts)); err != nil {
			return paths, err
		}
	}

	if opts.AuditDir != "" {
		for _, d := range []sensitivity.Direction{sensitivity.Plus, sensitivity.Minus} {
			for i, run := range rs.Runs(d) {
				if run.Audit == nil {
					continue
				}
				sub := filepath.Join(opts.AuditDir, fmt.Sprintf("%s_%s", rs.Parameters[i].Name, d))
				written, err := WriteTables(sub, run.Audit, TableOptions{})
				if err != nil {
					return paths, err
				}
				paths = append(paths, written...)
			}
		}
	}
	logrus.Debugf("wrote %d sensitivity files to %s", len(paths), dir)
	return paths, nil
}

func runRows(rs *sensitivity.ResultSet, d sensitivity.Direction) [][]string {
	header := []string{"parameter", "label", "year"}
	for _, m := range sim.Metrics {
		header = append(header, m.String())
	}
	rows := [][]string{header}
	years := rs.Baseline.Inputs.Horizon.Years()
	for i, run := range rs.Runs(d) {
		p := rs.Parameters[i]
		for _, y := range years {
			row := []string{p.Name, p.Label, strconv.Itoa(y)}
			for _, m := range sim.Metrics {
				row = append(row, formatFloat(run.ClosedLoop[y].Value(m)))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func envelopeRows(bands [sim.NumMetrics]sensitivity.Band) [][]string {
	var rows [][]string
	for i, b := range bands {
		if i == 0 {
			rows = append(rows, yearHeader([]string{"metric", "bound"}, b.Years))
		}
		for _, bound := range []struct {
			name   string
			values []float64
		}{{"min", b.Min}, {"baseline", b.Baseline}, {"max", b.Max}} {
			row := []string{b.Metric.Title(), bound.name}
			for _, v := range bound.values {
				row = append(row, formatFloat(v))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// tornadoRows lists every parameter, including those without effect, so the
// table can be re-ranked elsewhere.
func tornadoRows(charts [sim.NumMetrics]sensitivity.TornadoChart) [][]string {
	rows := [][]string{{"metric", "parameter", "label", "minus", "plus", "spread"}}
	for _, c := range charts {
		if c.Undefined {
			logrus.Warnf("tornado %d: %s baseline is 0, relative deviations undefined", c.Year, c.Metric.Title())
			rows = append(rows, []string{c.Metric.String(), "", "undefined", "", "", ""})
			continue
		}
		for _, d := range c.Deviations {
			rows = append(rows, []string{
				c.Metric.String(), d.Name, d.Label,
				formatFloat(d.Minus), formatFloat(d.Plus), formatFloat(d.Spread),
			})
		}
	}
	return rows
}
