package scenario

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Series is a per-year quantity: a scalar broadcast to every year, or a list
// with one value per year of the horizon.
type Series struct {
	Values []float64
	Scalar bool
}

// Constant returns a scalar series.
func Constant(v float64) Series {
	return Series{Values: []float64{v}, Scalar: true}
}

// PerYear returns a list series.
func PerYear(values ...float64) Series {
	return Series{Values: values}
}

// UnmarshalYAML accepts a scalar number or a sequence of numbers.
func (s *Series) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Constant(v)
	case yaml.SequenceNode:
		var values []float64
		if err := node.Decode(&values); err != nil {
			return err
		}
		*s = PerYear(values...)
	default:
		return fmt.Errorf("line %d: expected a number or a list of numbers", node.Line)
	}
	return nil
}

// MarshalYAML writes a scalar series as a number and a list series as a list.
func (s Series) MarshalYAML() (any, error) {
	if s.Scalar && len(s.Values) == 1 {
		return s.Values[0], nil
	}
	return s.Values, nil
}

// At returns the value for the i-th year of the horizon.
func (s Series) At(i int) float64 {
	if s.Scalar {
		return s.Values[0]
	}
	return s.Values[i]
}

func (s Series) validate(name string, years int) error {
	switch {
	case len(s.Values) == 0:
		return fmt.Errorf("%s is required", name)
	case s.Scalar:
		return nil
	case len(s.Values) != years:
		return fmt.Errorf("%s must have one value per year (%d), got %d", name, years, len(s.Values))
	}
	return nil
}
