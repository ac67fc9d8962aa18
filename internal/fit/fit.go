// Package fit runs per-group ordinary-least-squares regressions, the core
// of the lapse-rate analysis: temperature as a linear function of elevation
// within each group, collected into one flat result table with per-group
// failures recorded rather than aborting the batch.
package fit

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/lapserate/internal/stats"
	"github.com/lox/lapserate/internal/table"
)

// MetersPerKm rescales a per-meter slope into a lapse rate per 1000 m.
const MetersPerKm = 1000.0

// DegenerateFitError indicates the predictor had zero variance within a
// group: a regression line is undefined when every observation sits at the
// same elevation.
type DegenerateFitError struct {
	Predictor string
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("predictor %q has zero variance", e.Predictor)
}

// Result is one ordinary-least-squares fit.
type Result struct {
	Slope     float64
	Intercept float64
	R2        float64
	N         int
}

// OLS fits y = intercept + slope*x over paired observations. It needs at
// least two observations and a predictor with nonzero variance.
func OLS(xs, ys []float64) (Result, error) {
	if len(xs) != len(ys) {
		return Result{}, fmt.Errorf("ols: %d predictor values, %d response values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return Result{}, &stats.InsufficientDataError{Stat: "ols", Need: 2, Got: len(xs)}
	}
	if stat.Variance(xs, nil) == 0 {
		return Result{}, &DegenerateFitError{Predictor: "x"}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)
	return Result{Slope: slope, Intercept: intercept, R2: r2, N: len(xs)}, nil
}

// GroupFailure records one group whose fit could not be produced.
type GroupFailure struct {
	Key string
	Err error
}

// Columns returns paired (predictor, response) observations from one
// group's rows. Rows where either cell is missing are excluded under
// stats.Exclude; under stats.Propagate any missing cell empties the pair
// set, making the fit insufficient.
func Columns(g *table.Group, predictor, response string, p stats.Policy) ([]float64, []float64, error) {
	px, err := g.Rows.Column(predictor)
	if err != nil {
		return nil, nil, err
	}
	py, err := g.Rows.Column(response)
	if err != nil {
		return nil, nil, err
	}

	var xs, ys []float64
	for i := range px {
		x, okX := px[i].Number()
		y, okY := py[i].Number()
		if !okX || !okY {
			if px[i].Valid && px[i].Type == table.String {
				return nil, nil, fmt.Errorf("predictor %q is not numeric", predictor)
			}
			if py[i].Valid && py[i].Type == table.String {
				return nil, nil, fmt.Errorf("response %q is not numeric", response)
			}
			if p == stats.Propagate {
				return nil, nil, nil
			}
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, nil
}

// PerGroup fits response ~ predictor within every group, visiting each
// group exactly once in group order. The result table has one row per
// successful group: the key columns, n, slope, intercept, r2 and the slope
// rescaled per 1000 m of predictor. Failed groups are returned alongside
// with their key and cause; a failing group never aborts the rest.
//
// An unknown predictor or response column is a caller contract violation
// and fails the whole call before any group is visited.
func PerGroup(g *table.Grouped, response, predictor string, p stats.Policy) (*table.Table, []GroupFailure, error) {
	schema := g.Source().Schema()
	for _, name := range []string{response, predictor} {
		if _, err := schema.Lookup(name); err != nil {
			return nil, nil, err
		}
	}
	for _, name := range g.By() {
		switch name {
		case "n", "slope", "intercept", "r2", "slope_per_km":
			return nil, nil, fmt.Errorf("key column %q collides with a result column", name)
		}
	}

	var cols []table.Column
	for _, name := range g.By() {
		i, err := schema.Lookup(name)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, schema.Columns()[i])
	}
	cols = append(cols,
		table.Column{Name: "n", Type: table.Int},
		table.Column{Name: "slope", Type: table.Float},
		table.Column{Name: "intercept", Type: table.Float},
		table.Column{Name: "r2", Type: table.Float},
		table.Column{Name: "slope_per_km", Type: table.Float},
	)

	out := table.New(table.NewSchema(cols...))
	var failures []GroupFailure
	for _, grp := range g.Groups() {
		xs, ys, err := Columns(grp, predictor, response, p)
		if err != nil {
			return nil, nil, fmt.Errorf("group %s: %w", grp.KeyString(), err)
		}
		res, err := OLS(xs, ys)
		if err != nil {
			var degenerate *DegenerateFitError
			if errors.As(err, &degenerate) {
				degenerate.Predictor = predictor
			}
			failures = append(failures, GroupFailure{Key: grp.KeyString(), Err: err})
			continue
		}
		row := make([]table.Value, 0, len(cols))
		row = append(row, grp.Key...)
		row = append(row,
			table.IntVal(int64(res.N)),
			table.FloatVal(res.Slope),
			table.FloatVal(res.Intercept),
			table.FloatVal(res.R2),
			table.FloatVal(res.Slope*MetersPerKm),
		)
		if err := out.Append(row...); err != nil {
			return nil, nil, err
		}
	}
	return out, failures, nil
}
