// Package report writes simulation and sensitivity results as CSV tables and
// charts. Wide tables carry one column per year, like the spreadsheets the
// model inputs usually come from.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/capsim/capsim/sim"
)

// TableOptions select optional tables.
type TableOptions struct {
	CohortDetail bool // per-cohort fleet matrix; large for long horizons
}

// Table file names written by WriteTables.
const (
	FileClosedLoopRates    = "closed-loop-rates.csv"
	FileClosedLoopBalance  = "closed-loop-balance.csv"
	FileRegistrations      = "registrations.csv"
	FileFleet              = "fleet.csv"
	FileExits              = "exits.csv"
	FileExports            = "exports.csv"
	FileUnknownWhereabouts = "unknown-whereabouts.csv"
	FileToRecycling        = "to-recycling.csv"
	FileRecyclingInput     = "recycling-input.csv"
	FileDismantling        = "dismantling.csv"
	FileRecyclingOutput    = "recycling-output.csv"
	FileFleetDetail        = "fleet-detail.csv"
	FileInputsVehicles     = "inputs-vehicles.csv"
	FileInputsYears        = "inputs-years.csv"
)

// WriteTables writes every result table of res into dir, creating it if
// needed, and returns the paths written.
func WriteTables(dir string, res *sim.Result, opts TableOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	in := res.Inputs
	years := in.Horizon.Years()

	tables := []struct {
		name string
		rows [][]string
	}{
		{FileClosedLoopRates, closedLoopRows(years, res.ClosedLoop)},
		{FileClosedLoopBalance, closedLoopBalanceRows(years, res.ClosedLoop)},
		{FileRegistrations, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Registrations[k] })},
		{FileFleet, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Fleet[k].Stock })},
		{FileExits, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Fleet[k].Exits })},
		{FileExports, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Fleet[k].Exports })},
		{FileUnknownWhereabouts, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Fleet[k].Unknown })},
		{FileToRecycling, vehicleRows(in, func(k sim.VehicleYear) float64 { return res.Fleet[k].ToRecycling })},
		{FileRecyclingInput, polymerRows(in, func(k sim.VehicleYear) sim.PolymerValues { return res.EndOfLife[k].Input })},
		{FileDismantling, polymerRows(in, func(k sim.VehicleYear) sim.PolymerValues { return res.EndOfLife[k].DismantlingOutput })},
		{FileRecyclingOutput, polymerRows(in, func(k sim.VehicleYear) sim.PolymerValues { return res.EndOfLife[k].RecyclingOutput })},
		{FileInputsVehicles, inputVehicleRows(in)},
		{FileInputsYears, inputYearRows(in)},
	}
	if opts.CohortDetail {
		tables = append(tables, struct {
			name string
			rows [][]string
		}{FileFleetDetail, cohortRows(in, res.Cohorts)})
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := writeCSV(path, t.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	logrus.Debugf("wrote %d tables for %q to %s", len(paths), in.ScenarioName, dir)
	return paths, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func yearHeader(first []string, years []int) []string {
	header := append([]string{}, first...)
	for _, y := range years {
		header = append(header, strconv.Itoa(y))
	}
	return header
}

func closedLoopRows(years []int, cl sim.ClosedLoopRates) [][]string {
	rows := [][]string{yearHeader([]string{""}, years)}
	// Total first, then the polymers.
	order := []sim.Metric{sim.MetricTotal, sim.MetricPP, sim.MetricPA, sim.MetricPC, sim.MetricABS}
	for _, m := range order {
		row := []string{m.Title()}
		for _, y := range years {
			row = append(row, formatFloat(cl[y].Value(m)))
		}
		rows = append(rows, row)
	}
	return rows
}

func closedLoopBalanceRows(years []int, cl sim.ClosedLoopRates) [][]string {
	rows := [][]string{{"year", "metric", "demand", "raw_supply", "supply", "usable_supply", "rate", "zero_demand"}}
	for _, y := range years {
		rec := cl[y]
		for _, p := range sim.Polymers {
			m := sim.MetricForPolymer(p)
			rows = append(rows, []string{
				strconv.Itoa(y), m.String(),
				formatFloat(rec.Demand[p]),
				formatFloat(rec.RawSupply[p]),
				formatFloat(rec.Supply[p]),
				formatFloat(rec.UsableSupply[p]),
				formatFloat(rec.Rate[p]),
				strconv.FormatBool(rec.ZeroDemand[m]),
			})
		}
		rows = append(rows, []string{
			strconv.Itoa(y), sim.MetricTotal.String(),
			formatFloat(rec.DemandPlastic),
			formatFloat(rec.RawSupply.Sum()),
			formatFloat(rec.SupplyTotal),
			formatFloat(rec.UsableSupply.Sum()),
			formatFloat(rec.Total),
			strconv.FormatBool(rec.ZeroDemand[sim.MetricTotal]),
		})
	}
	return rows
}

func vehicleRows(in *sim.Inputs, value func(sim.VehicleYear) float64) [][]string {
	years := in.Horizon.Years()
	rows := [][]string{yearHeader([]string{"vehicle"}, years)}
	for _, v := range in.Vehicles {
		row := []string{v.Name}
		for _, y := range years {
			row = append(row, formatFloat(value(sim.VehicleYear{Vehicle: v.ID, Year: y})))
		}
		rows = append(rows, row)
	}
	return rows
}

func polymerRows(in *sim.Inputs, value func(sim.VehicleYear) sim.PolymerValues) [][]string {
	years := in.Horizon.Years()
	rows := [][]string{yearHeader([]string{"vehicle", "plastic"}, years)}
	for _, v := range in.Vehicles {
		for _, p := range sim.Polymers {
			row := []string{v.Name, p.Title()}
			for _, y := range years {
				row = append(row, formatFloat(value(sim.VehicleYear{Vehicle: v.ID, Year: y})[p]))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func cohortRows(in *sim.Inputs, cohorts sim.CohortMatrix) [][]string {
	rows := [][]string{{"vehicle", "reg_year", "year", "stock", "exits", "exports", "unknown_whereabouts", "to_recycling"}}
	h := in.Horizon
	for _, v := range in.Vehicles {
		for regYear := h.StartYear; regYear <= h.EndYear; regYear++ {
			for year := regYear; year <= h.EndYear; year++ {
				c := cohorts[sim.CohortKey{Vehicle: v.ID, RegYear: regYear, Year: year}]
				rows = append(rows, []string{
					v.Name, strconv.Itoa(regYear), strconv.Itoa(year),
					formatFloat(c.Stock), formatFloat(c.Exits), formatFloat(c.Exports),
					formatFloat(c.Unknown), formatFloat(c.ToRecycling),
				})
			}
		}
	}
	return rows
}

func inputVehicleRows(in *sim.Inputs) [][]string {
	header := []string{"vehicle", "year", "registrations", "total_mass", "plastic_content"}
	for _, p := range sim.Polymers {
		header = append(header, p.String()+"_content")
	}
	for _, p := range sim.Polymers {
		header = append(header, p.String()+"_mass")
	}
	rows := [][]string{header}
	for _, v := range in.Vehicles {
		for _, y := range in.Horizon.Years() {
			key := sim.VehicleYear{Vehicle: v.ID, Year: y}
			spec := in.VehicleSpecs[key]
			reg := ""
			if n, ok := in.Registrations[key]; ok {
				reg = formatFloat(n)
			}
			row := []string{v.Name, strconv.Itoa(y), reg, formatFloat(spec.TotalMass), formatFloat(spec.PlasticContent)}
			for _, p := range sim.Polymers {
				row = append(row, formatFloat(spec.Content[p]))
			}
			for _, p := range sim.Polymers {
				row = append(row, formatFloat(in.Dismantling[key].Mass[p]))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func inputYearRows(in *sim.Inputs) [][]string {
	header := []string{"year", "cagr", "exports", "unknown_whereabouts"}
	for _, p := range sim.Polymers {
		header = append(header, "recycling_"+p.String()+"_efficiency")
	}
	for _, p := range sim.Polymers {
		header = append(header, "production_"+p.String()+"_efficiency")
	}
	for _, p := range sim.Polymers {
		header = append(header, "max_"+p.String())
	}
	rows := [][]string{header}
	for _, y := range in.Horizon.Years() {
		loss := in.Loss[y]
		row := []string{strconv.Itoa(y), formatFloat(in.CAGR), formatFloat(loss.Exports), formatFloat(loss.UnknownWhereabouts)}
		for _, p := range sim.Polymers {
			row = append(row, formatFloat(in.Recycling[y].Efficiency[p]))
		}
		for _, p := range sim.Polymers {
			row = append(row, formatFloat(in.Production[y].Efficiency[p]))
		}
		for _, p := range sim.Polymers {
			row = append(row, formatFloat(in.Production[y].MaxRecycled[p]))
		}
		rows = append(rows, row)
	}
	return rows
}
