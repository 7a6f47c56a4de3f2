package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/scenario"
	"github.com/capsim/capsim/sim/sensitivity"
)

// validateCmd loads scenarios and reports the first problem of each
var validateCmd = &cobra.Command{
	Use:   "validate [scenario files or directories]",
	Short: "Check scenario files without simulating them",
	Run: func(cmd *cobra.Command, args []string) {
		files, err := discoverScenarios(args)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if failed := validateScenarios(cmd.OutOrStdout(), files); failed > 0 {
			logrus.Fatalf("%d of %d scenario files are invalid", failed, len(files))
		}
	},
}

// paramsCmd lists the sensitivity parameters of a scenario
var paramsCmd = &cobra.Command{
	Use:   "params <scenario file>",
	Short: "List the sensitivity analysis parameters of a scenario",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := loadScenario(args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		includeWeibull, _ := cmd.Flags().GetBool("sa-weibull")
		if err := listParameters(cmd.OutOrStdout(), sc, includeWeibull); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	paramsCmd.Flags().Bool("sa-weibull", false, "Include the Weibull parameters")
}

func loadScenario(path string) (*scenario.Scenario, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// validateScenarios converts every file to simulation inputs and returns the
// number of invalid files.
func validateScenarios(w io.Writer, files []string) int {
	failed := 0
	for _, file := range files {
		sc, err := scenario.Load(file)
		if err == nil {
			_, err = sc.ToInputs(sim.DefaultWeibull)
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", file, err)
			continue
		}
		h := sc.Horizon()
		fmt.Fprintf(w, "ok   %s: %q, %d..%d, %d vehicles, %d historical years\n",
			file, sc.Name, h.StartYear, h.EndYear, len(sc.Vehicles), sc.InitYears())
	}
	return failed
}

func listParameters(w io.Writer, sc *scenario.Scenario, includeWeibull bool) error {
	vehicles := make([]sim.VehicleID, len(sc.Vehicles))
	for i := range sc.Vehicles {
		vehicles[i] = sim.VehicleID(i + 1)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tKIND\tLABEL")
	for i, p := range sensitivity.Catalogue(vehicles, includeWeibull) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, p.Name, p.Kind, p.Label)
	}
	return tw.Flush()
}
