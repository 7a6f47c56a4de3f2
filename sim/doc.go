// Package sim provides the cohort-based material-flow engine of capsim.
//
// # Reading Guide
//
// The pipeline runs five stages in order; each lives in its own file:
//   - registrations.go: ProjectRegistrations extends the historical series with a CAGR
//   - fleet.go: ComputeFleet ages registration cohorts with a Weibull retirement model
//   - eol.go: SplitEndOfLife divides fleet exits into exports, unknown whereabouts and recycling
//   - recycling.go: ComputeRecycling turns recycled vehicles into polymer flows
//   - closedloop.go: ComputeClosedLoop balances recyclate supply against production demand
//
// pipeline.go wires them together in RunFullSimulation.
//
// # Architecture
//
// All tables are maps keyed by (vehicle, year), (vehicle, registration year,
// year) or year. Stages never mutate their inputs; each returns new tables.
// Inputs.Clone gives callers an independent snapshot to perturb.
//
// Sub-packages:
//   - sim/sensitivity/: one-factor-at-a-time sweep, envelopes and tornado rankings
//   - sim/scenario/: YAML scenario files
//   - sim/report/: CSV and chart output
//   - sim/archive/: SQLite archive of runs
//
// # Errors
//
// Failures wrap ErrConfiguration, ErrDataShape or ErrDivisionByZero and can be
// tested with errors.Is.
package sim
