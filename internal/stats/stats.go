// Package stats provides named summary statistics over table columns.
// Every statistic takes an explicit missing-value policy; there is no
// implicit NA handling anywhere in the pipeline.
package stats

import (
	"fmt"

	montanaflynn "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/lapserate/internal/table"
)

// Policy controls how a statistic treats missing cells.
type Policy int

const (
	// Exclude drops missing cells before computing.
	Exclude Policy = iota
	// Propagate yields a missing result if any input cell is missing.
	Propagate
)

func (p Policy) String() string {
	if p == Propagate {
		return "propagate"
	}
	return "exclude"
}

// InsufficientDataError indicates a statistic or fit had fewer usable
// values than it requires. It is a per-group data condition: record it and
// continue with other groups.
type InsufficientDataError struct {
	Stat string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d values, got %d", e.Stat, e.Need, e.Got)
}

// Func is a named statistic over a numeric column.
type Func struct {
	Name string
	min  int
	eval func(xs []float64) (float64, error)
}

var (
	Mean = Func{Name: "mean", min: 1, eval: func(xs []float64) (float64, error) {
		return stat.Mean(xs, nil), nil
	}}
	StdDev = Func{Name: "sd", min: 2, eval: func(xs []float64) (float64, error) {
		return stat.StdDev(xs, nil), nil
	}}
	Median = Func{Name: "median", min: 1, eval: func(xs []float64) (float64, error) {
		return montanaflynn.Median(xs)
	}}
	IQR = Func{Name: "iqr", min: 2, eval: func(xs []float64) (float64, error) {
		return montanaflynn.InterQuartileRange(xs)
	}}
	Min = Func{Name: "min", min: 1, eval: func(xs []float64) (float64, error) {
		return montanaflynn.Min(xs)
	}}
	Max = Func{Name: "max", min: 1, eval: func(xs []float64) (float64, error) {
		return montanaflynn.Max(xs)
	}}
	Count = Func{Name: "n", min: 0, eval: func(xs []float64) (float64, error) {
		return float64(len(xs)), nil
	}}
)

var funcs = map[string]Func{
	Mean.Name:   Mean,
	StdDev.Name: StdDev,
	Median.Name: Median,
	IQR.Name:    IQR,
	Min.Name:    Min,
	Max.Name:    Max,
	Count.Name:  Count,
}

// ByName looks up a statistic by its output name ("mean", "sd", "median",
// "iqr", "min", "max", "n").
func ByName(name string) (Func, bool) {
	f, ok := funcs[name]
	return f, ok
}

// Apply evaluates the statistic over a column of cells. Under Propagate a
// missing input cell yields a missing result with no error. Under Exclude,
// missing cells are dropped first; too few remaining values is an
// *InsufficientDataError. A valid non-numeric cell is a caller error.
func (f Func) Apply(cells []table.Value, p Policy) (table.Value, error) {
	xs := make([]float64, 0, len(cells))
	for _, c := range cells {
		x, ok := c.Number()
		if !ok {
			if c.Valid {
				return table.Value{}, fmt.Errorf("%s: non-numeric cell of type %s", f.Name, c.Type)
			}
			if p == Propagate {
				return table.NA(table.Float), nil
			}
			continue
		}
		xs = append(xs, x)
	}
	if len(xs) < f.min {
		return table.Value{}, &InsufficientDataError{Stat: f.Name, Need: f.min, Got: len(xs)}
	}
	v, err := f.eval(xs)
	if err != nil {
		return table.Value{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	return table.FloatVal(v), nil
}
