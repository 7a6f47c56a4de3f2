package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Log verbosity level
	logLevel string
	// Flags of `capsim run`
	settings = defaultRunSettings()
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "capsim",
	Short: "Closed-loop recycled plastics simulation for passenger cars",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		level := logLevel
		if e.LogLevel != "" && !cmd.Flags().Changed("log") {
			level = e.LogLevel
		}
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", level)
		}
		logrus.SetLevel(lvl)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Survival model
	runCmd.Flags().Float64Var(&settings.WeibullShape, "weibull-shape", settings.WeibullShape, "Weibull shape parameter k of the vehicle lifetime")
	runCmd.Flags().Float64Var(&settings.WeibullScale, "weibull-scale", settings.WeibullScale, "Weibull scale parameter lambda of the vehicle lifetime (years)")

	// Sensitivity analysis
	runCmd.Flags().BoolVar(&settings.SA, "sa", settings.SA, "Run the sensitivity analysis")
	runCmd.Flags().Float64Var(&settings.Sensitivity, "sensitivity", settings.Sensitivity, "Relative perturbation of every parameter, e.g. 0.2 for ±20%")
	runCmd.Flags().BoolVar(&settings.IncludeWeibull, "sa-weibull", settings.IncludeWeibull, "Include the Weibull parameters in the sensitivity analysis")
	runCmd.Flags().IntVar(&settings.Workers, "workers", settings.Workers, "Concurrent sensitivity runs (0 = number of CPUs)")
	runCmd.Flags().BoolVar(&settings.Audit, "audit", settings.Audit, "Write the full tables of every sensitivity run")

	// Output
	runCmd.Flags().IntVar(&settings.TargetYear, "target-year", settings.TargetYear, "Year highlighted in charts and ranked in tornado tables")
	runCmd.Flags().IntVar(&settings.PlotStart, "plot-start", settings.PlotStart, "First year shown in charts")
	runCmd.Flags().IntVar(&settings.PlotEnd, "plot-end", settings.PlotEnd, "Last year shown in charts")
	runCmd.Flags().StringVar(&settings.ChartFormat, "chart-format", settings.ChartFormat, "Chart file format (png, svg, pdf)")
	runCmd.Flags().BoolVar(&settings.CohortDetail, "cohort-detail", settings.CohortDetail, "Write the per-cohort fleet table")
	runCmd.Flags().StringVar(&settings.ResultsDir, "results-dir", settings.ResultsDir, "Directory receiving one timestamped folder per invocation")
	runCmd.Flags().StringVar(&settings.Archive, "archive", settings.Archive, "SQLite file archiving the closed-loop rates of every run (empty disables)")

	rootCmd.AddCommand(runCmd, validateCmd, paramsCmd)
}
