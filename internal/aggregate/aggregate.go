// Package aggregate reduces grouped tables to summary rows, or annotates
// rows with their group's statistics. Both modes share a single
// missing-value policy so exclusion semantics cannot diverge between them.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/lox/lapserate/internal/stats"
	"github.com/lox/lapserate/internal/table"
)

// Spec requests one or more statistics over one source column. Output
// columns are named "<stat>_<column>", e.g. "mean_tavg".
type Spec struct {
	Column string
	Stats  []stats.Func
}

func outputName(f stats.Func, column string) string {
	return fmt.Sprintf("%s_%s", f.Name, column)
}

// outputColumns expands specs into the derived column list, validating the
// source columns against the schema and rejecting output names that repeat
// or collide with a reserved (already present) column. Collisions surface
// as errors here so schema assembly can never panic on a duplicate name.
func outputColumns(schema table.Schema, specs []Spec, reserved []string) ([]table.Column, error) {
	var out []table.Column
	seen := make(map[string]bool, len(reserved))
	for _, name := range reserved {
		seen[name] = true
	}
	for _, spec := range specs {
		if _, err := schema.Lookup(spec.Column); err != nil {
			return nil, err
		}
		for _, f := range spec.Stats {
			name := outputName(f, spec.Column)
			if seen[name] {
				return nil, fmt.Errorf("output column %q already exists", name)
			}
			seen[name] = true
			out = append(out, table.Column{Name: name, Type: table.Float})
		}
	}
	return out, nil
}

// groupStats evaluates every requested statistic over one group. A statistic
// that fails with insufficient data yields a missing cell rather than
// aborting: a one-row group legitimately has no standard deviation.
func groupStats(g *table.Group, specs []Spec, p stats.Policy) ([]table.Value, error) {
	var out []table.Value
	for _, spec := range specs {
		col, err := g.Rows.Column(spec.Column)
		if err != nil {
			return nil, err
		}
		for _, f := range spec.Stats {
			v, err := f.Apply(col, p)
			if err != nil {
				var insufficient *stats.InsufficientDataError
				if !errors.As(err, &insufficient) {
					return nil, fmt.Errorf("group %s: %w", g.KeyString(), err)
				}
				v = table.NA(table.Float)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// Summarize produces one row per group: the key columns followed by the
// requested statistics, in group order.
func Summarize(g *table.Grouped, specs []Spec, p stats.Policy) (*table.Table, error) {
	schema := g.Source().Schema()
	statCols, err := outputColumns(schema, specs, g.By())
	if err != nil {
		return nil, err
	}

	var cols []table.Column
	for _, name := range g.By() {
		i, err := schema.Lookup(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, schema.Columns()[i])
	}
	cols = append(cols, statCols...)

	out := table.New(table.NewSchema(cols...))
	for _, grp := range g.Groups() {
		values, err := groupStats(grp, specs, p)
		if err != nil {
			return nil, err
		}
		row := make([]table.Value, 0, len(cols))
		row = append(row, grp.Key...)
		row = append(row, values...)
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Broadcast produces the source rows in their original order, each extended
// with its group's statistics. Row count is preserved.
func Broadcast(g *table.Grouped, specs []Spec, p stats.Policy) (*table.Table, error) {
	src := g.Source()
	var reserved []string
	for _, c := range src.Schema().Columns() {
		reserved = append(reserved, c.Name)
	}
	statCols, err := outputColumns(src.Schema(), specs, reserved)
	if err != nil {
		return nil, err
	}

	// One statistics row per group, scattered back to source positions.
	byIndex := make([][]table.Value, src.Len())
	for _, grp := range g.Groups() {
		values, err := groupStats(grp, specs, p)
		if err != nil {
			return nil, err
		}
		for _, i := range grp.Indices {
			byIndex[i] = values
		}
	}

	cols := append(src.Schema().Columns(), statCols...)
	out := table.New(table.NewSchema(cols...))
	for i := 0; i < src.Len(); i++ {
		row := make([]table.Value, 0, len(cols))
		for _, c := range src.Schema().Columns() {
			v, err := src.Value(i, c.Name)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		row = append(row, byIndex[i]...)
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}
