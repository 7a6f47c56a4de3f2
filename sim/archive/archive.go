// Package archive stores closed-loop results of baseline and sensitivity runs
// in a SQLite database so that batches can be compared after the fact.
//
// Every run gets a UUID; runs written by one CLI invocation share a batch id.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/sensitivity"
)

// Store is a run archive backed by a SQLite database.
type Store struct {
	*sql.DB
}

// Run describes one archived pipeline run. Parameter and Direction are empty
// for baseline runs.
type Run struct {
	ID          string
	Batch       string
	Scenario    string
	Parameter   string
	Direction   string
	Sensitivity float64
	StartYear   int
	EndYear     int
	CreatedAt   int64 // unix nanoseconds
}

// IsBaseline reports whether r is an unperturbed run.
func (r Run) IsBaseline() bool { return r.Parameter == "" }

// Open opens (or creates) the archive at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			batch_id      TEXT NOT NULL,
			scenario      TEXT NOT NULL,
			parameter     TEXT NOT NULL DEFAULT '',
			direction     TEXT NOT NULL DEFAULT '',
			sensitivity   DOUBLE NOT NULL DEFAULT 0,
			start_year    INTEGER NOT NULL,
			end_year      INTEGER NOT NULL,
			created_at    BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs (scenario, batch_id);
		CREATE TABLE IF NOT EXISTS closed_loop (
			run_id        TEXT NOT NULL,
			year          INTEGER NOT NULL,
			metric        TEXT NOT NULL,
			demand        DOUBLE NOT NULL,
			supply        DOUBLE NOT NULL,
			usable_supply DOUBLE NOT NULL,
			rate          DOUBLE NOT NULL,
			zero_demand   BOOLEAN NOT NULL,
			PRIMARY KEY (run_id, year, metric),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}
	return &Store{db}, nil
}

// NewBatchID returns an identifier grouping the runs of one invocation.
func NewBatchID() string {
	return uuid.New().String()
}

// RecordBaseline archives a single simulation result and returns its run id.
func (s *Store) RecordBaseline(ctx context.Context, batch string, res *sim.Result) (string, error) {
	tx, err := s.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertRun(ctx, tx, Run{
		Batch:     batch,
		Scenario:  res.Inputs.ScenarioName,
		StartYear: res.Inputs.Horizon.StartYear,
		EndYear:   res.Inputs.Horizon.EndYear,
	}, res.ClosedLoop)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RecordSweep archives the baseline and every perturbed run of rs in one
// transaction. It returns the run ids with the baseline first, followed by
// the plus and minus run of each parameter in catalogue order.
func (s *Store) RecordSweep(ctx context.Context, batch string, rs *sensitivity.ResultSet) ([]string, error) {
	tx, err := s.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	in := rs.Baseline.Inputs
	base := Run{
		Batch:     batch,
		Scenario:  in.ScenarioName,
		StartYear: in.Horizon.StartYear,
		EndYear:   in.Horizon.EndYear,
	}
	ids := make([]string, 0, 1+2*len(rs.Parameters))
	id, err := insertRun(ctx, tx, base, rs.Baseline.ClosedLoop)
	if err != nil {
		return nil, err
	}
	ids = append(ids, id)

	for i, p := range rs.Parameters {
		for _, d := range []sensitivity.Direction{sensitivity.Plus, sensitivity.Minus} {
			run := base
			run.Parameter = p.Name
			run.Direction = d.String()
			run.Sensitivity = rs.Sensitivity
			id, err := insertRun(ctx, tx, run, rs.Runs(d)[i].ClosedLoop)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", p.Name, d, err)
			}
			ids = append(ids, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	logrus.Debugf("archived %d runs of %q in batch %s", len(ids), in.ScenarioName, batch)
	return ids, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run Run, rates sim.ClosedLoopRates) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, batch_id, scenario, parameter, direction,
			sensitivity, start_year, end_year, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Batch, run.Scenario, run.Parameter, run.Direction,
		run.Sensitivity, run.StartYear, run.EndYear, run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO closed_loop (
			run_id, year, metric, demand, supply, usable_supply, rate, zero_demand
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare closed-loop insert: %w", err)
	}
	defer stmt.Close()

	for year := run.StartYear; year <= run.EndYear; year++ {
		rec, ok := rates[year]
		if !ok {
			return "", &sim.DataShapeError{Table: "closed_loop", Key: yearKey(year)}
		}
		for _, m := range sim.Metrics {
			demand, supply, usable := balance(rec, m)
			if _, err := stmt.ExecContext(ctx, run.ID, year, m.String(), demand, supply, usable, rec.Value(m), rec.ZeroDemand[m]); err != nil {
				return "", fmt.Errorf("insert closed-loop %d %s: %w", year, m, err)
			}
		}
	}
	return run.ID, nil
}

func balance(rec sim.ClosedLoopRecord, m sim.Metric) (demand, supply, usable float64) {
	if m == sim.MetricTotal {
		return rec.DemandPlastic, rec.SupplyTotal, rec.UsableSupply.Sum()
	}
	p := sim.Polymer(m)
	return rec.Demand[p], rec.Supply[p], rec.UsableSupply[p]
}

// ListRuns returns the runs of a scenario ordered by creation time, baseline
// first within a batch. An empty scenario lists every run.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `
		SELECT run_id, batch_id, scenario, parameter, direction,
		       sensitivity, start_year, end_year, created_at
		FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Batch, &r.Scenario, &r.Parameter, &r.Direction,
			&r.Sensitivity, &r.StartYear, &r.EndYear, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ClosedLoop reads back the closed-loop records of a run. RawSupply is not
// archived and stays zero.
func (s *Store) ClosedLoop(ctx context.Context, runID string) (sim.ClosedLoopRates, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT year, metric, demand, supply, usable_supply, rate, zero_demand
		FROM closed_loop
		WHERE run_id = ?
		ORDER BY year`, runID)
	if err != nil {
		return nil, fmt.Errorf("query closed-loop rows: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]sim.Metric, sim.NumMetrics)
	for _, m := range sim.Metrics {
		metrics[m.String()] = m
	}
	out := make(sim.ClosedLoopRates)
	for rows.Next() {
		var (
			year                          int
			name                          string
			demand, supply, usable, value float64
			zero                          bool
		)
		if err := rows.Scan(&year, &name, &demand, &supply, &usable, &value, &zero); err != nil {
			return nil, fmt.Errorf("scan closed-loop row: %w", err)
		}
		m, ok := metrics[name]
		if !ok {
			return nil, fmt.Errorf("run %s year %d: unknown metric %q", runID, year, name)
		}
		rec := out[year]
		rec.ZeroDemand[m] = zero
		if m == sim.MetricTotal {
			rec.DemandPlastic, rec.SupplyTotal, rec.Total = demand, supply, value
		} else {
			p := sim.Polymer(m)
			rec.Demand[p], rec.Supply[p], rec.UsableSupply[p], rec.Rate[p] = demand, supply, usable, value
		}
		out[year] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return out, nil
}

type yearKey int

func (y yearKey) String() string { return fmt.Sprintf("(year=%d)", int(y)) }
