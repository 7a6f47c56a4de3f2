package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a scenario that cannot be simulated as configured,
	// e.g. no registration baseline to project from.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataShape marks an input table that lacks a required vehicle/year key.
	ErrDataShape = errors.New("data shape error")

	// ErrDivisionByZero marks a closed-loop computation with a zero denominator.
	ErrDivisionByZero = errors.New("division by zero")
)

// DataShapeError reports the table and key that were missing.
type DataShapeError struct {
	Table string
	Key   fmt.Stringer
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("%v: table %q has no entry for %v", ErrDataShape, e.Table, e.Key)
}

func (e *DataShapeError) Unwrap() error { return ErrDataShape }

type yearKey int

func (y yearKey) String() string { return fmt.Sprintf("(year=%d)", int(y)) }

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func divisionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDivisionByZero, fmt.Sprintf(format, args...))
}

// lookupVY fetches a per-vehicle, per-year entry or reports a DataShapeError.
func lookupVY[V any](table map[VehicleYear]V, name string, v VehicleID, year int) (V, error) {
	key := VehicleYear{Vehicle: v, Year: year}
	val, ok := table[key]
	if !ok {
		var zero V
		return zero, &DataShapeError{Table: name, Key: key}
	}
	return val, nil
}

// lookupYear fetches a per-year entry or reports a DataShapeError.
func lookupYear[V any](table map[int]V, name string, year int) (V, error) {
	val, ok := table[year]
	if !ok {
		var zero V
		return zero, &DataShapeError{Table: name, Key: yearKey(year)}
	}
	return val, nil
}

// lookupCohort fetches a cohort cell or reports a DataShapeError.
func lookupCohort(m CohortMatrix, v VehicleID, regYear, year int) (FleetFlows, error) {
	key := CohortKey{Vehicle: v, RegYear: regYear, Year: year}
	cell, ok := m[key]
	if !ok {
		return FleetFlows{}, &DataShapeError{Table: "fleet_detail", Key: key}
	}
	return cell, nil
}
