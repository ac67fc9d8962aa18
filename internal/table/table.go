// Package table provides a small typed in-memory table: a fixed named
// schema, per-cell missing values, and purely functional row/column
// transformations. Every operation returns a new table; inputs are never
// mutated.
package table

import (
	"fmt"
	"sort"
	"strconv"
)

// Type is the type of a column.
type Type int

const (
	String Type = iota
	Int
	Float
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Value is one cell. Valid is false for a missing value, mirroring the
// sql.Null* convention: the payload fields are meaningless when Valid is
// false.
type Value struct {
	Type  Type
	Str   string
	Int   int64
	Float float64
	Valid bool
}

// Str returns a valid string cell.
func Str(s string) Value { return Value{Type: String, Str: s, Valid: true} }

// IntVal returns a valid integer cell.
func IntVal(i int64) Value { return Value{Type: Int, Int: i, Valid: true} }

// FloatVal returns a valid float cell.
func FloatVal(f float64) Value { return Value{Type: Float, Float: f, Valid: true} }

// NA returns a missing cell of the given type.
func NA(t Type) Value { return Value{Type: t} }

// Number returns the cell as a float64, promoting integer cells. The second
// return is false for missing or non-numeric cells.
func (v Value) Number() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Type {
	case Int:
		return float64(v.Int), true
	case Float:
		return v.Float, true
	}
	return 0, false
}

// String renders the cell for display. Missing cells render as "NA".
func (v Value) String() string {
	if !v.Valid {
		return "NA"
	}
	switch v.Type {
	case String:
		return v.Str
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return "?"
}

// Equal reports value equality. Two missing cells of the same type are equal.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Valid != o.Valid {
		return false
	}
	if !v.Valid {
		return true
	}
	switch v.Type {
	case String:
		return v.Str == o.Str
	case Int:
		return v.Int == o.Int
	case Float:
		return v.Float == o.Float
	}
	return false
}

// Column describes one schema entry.
type Column struct {
	Name string
	Type Type
}

// Schema is an ordered, fixed set of named typed columns.
type Schema struct {
	cols  []Column
	index map[string]int
}

// NewSchema builds a schema from the given columns. Duplicate names panic:
// schemas are constructed from literals at load time, not from user input.
func NewSchema(cols ...Column) Schema {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c.Name]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c.Name))
		}
		index[c.Name] = i
	}
	return Schema{cols: cols, index: index}
}

// Columns returns a copy of the schema's columns in order.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Lookup returns the index of a named column, or a *MissingColumnError.
func (s Schema) Lookup(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, &MissingColumnError{Column: name}
	}
	return i, nil
}

// Has reports whether the schema contains a column.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Row is a read-only view of one table row.
type Row struct {
	schema *Schema
	cells  []Value
}

// Value returns the named cell or a *MissingColumnError.
func (r Row) Value(name string) (Value, error) {
	i, err := r.schema.Lookup(name)
	if err != nil {
		return Value{}, err
	}
	return r.cells[i], nil
}

// MustValue returns the named cell, panicking on an unknown column. Intended
// for predicates and derivations over columns the caller has already
// validated against the schema.
func (r Row) MustValue(name string) Value {
	v, err := r.Value(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Table is an ordered sequence of rows sharing a schema.
type Table struct {
	schema Schema
	rows   [][]Value
}

// New returns an empty table with the given schema.
func New(schema Schema) *Table {
	return &Table{schema: schema}
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema { return t.schema }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Append adds one row. The cell count must match the schema and each cell's
// type must match its column.
func (t *Table) Append(cells ...Value) error {
	if len(cells) != len(t.schema.cols) {
		return fmt.Errorf("row has %d cells, schema has %d columns", len(cells), len(t.schema.cols))
	}
	for i, c := range cells {
		if c.Type != t.schema.cols[i].Type {
			return fmt.Errorf("column %q: cell type %s, want %s", t.schema.cols[i].Name, c.Type, t.schema.cols[i].Type)
		}
	}
	row := make([]Value, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// MustAppend is Append for statically known rows, as in tests.
func (t *Table) MustAppend(cells ...Value) {
	if err := t.Append(cells...); err != nil {
		panic(err)
	}
}

// Row returns a view of row i.
func (t *Table) Row(i int) Row {
	return Row{schema: &t.schema, cells: t.rows[i]}
}

// Value returns the cell at (row, column name).
func (t *Table) Value(row int, name string) (Value, error) {
	i, err := t.schema.Lookup(name)
	if err != nil {
		return Value{}, err
	}
	return t.rows[row][i], nil
}

// Column returns all cells of a named column in row order.
func (t *Table) Column(name string) ([]Value, error) {
	i, err := t.schema.Lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Filter returns the subsequence of rows satisfying pred, order preserved.
func (t *Table) Filter(pred func(Row) bool) *Table {
	out := New(t.schema)
	for _, row := range t.rows {
		if pred(Row{schema: &t.schema, cells: row}) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Select returns a projection onto the named columns, in the order given.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for j, name := range names {
		i, err := t.schema.Lookup(name)
		if err != nil {
			return nil, err
		}
		idx[j] = i
		cols[j] = t.schema.cols[i]
	}
	out := New(NewSchema(cols...))
	for _, row := range t.rows {
		cells := make([]Value, len(idx))
		for j, i := range idx {
			cells[j] = row[i]
		}
		out.rows = append(out.rows, cells)
	}
	return out, nil
}

// Drop returns the table without the named columns.
func (t *Table) Drop(names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.schema.Has(name) {
			return nil, &MissingColumnError{Column: name}
		}
		drop[name] = true
	}
	var keep []string
	for _, c := range t.schema.cols {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return t.Select(keep...)
}

// Mutate returns the table extended with a derived column. fn must be a pure
// function of the row; it is called once per row in order. The new column
// name must not collide with an existing one.
func (t *Table) Mutate(name string, typ Type, fn func(Row) Value) (*Table, error) {
	if t.schema.Has(name) {
		return nil, fmt.Errorf("mutate: column %q already exists", name)
	}
	cols := append(t.schema.Columns(), Column{Name: name, Type: typ})
	out := New(NewSchema(cols...))
	for _, row := range t.rows {
		v := fn(Row{schema: &t.schema, cells: row})
		if v.Type != typ {
			return nil, fmt.Errorf("mutate %q: derived cell type %s, want %s", name, v.Type, typ)
		}
		cells := make([]Value, 0, len(row)+1)
		cells = append(cells, row...)
		cells = append(cells, v)
		out.rows = append(out.rows, cells)
	}
	return out, nil
}

// SortBy returns the table stably sorted by a column, missing cells last.
func (t *Table) SortBy(name string, descending bool) (*Table, error) {
	i, err := t.schema.Lookup(name)
	if err != nil {
		return nil, err
	}
	out := New(t.schema)
	out.rows = make([][]Value, len(t.rows))
	copy(out.rows, t.rows)
	less := func(a, b Value) bool {
		if a.Valid != b.Valid {
			return a.Valid // missing sorts last regardless of direction
		}
		if !a.Valid {
			return false
		}
		switch a.Type {
		case String:
			if descending {
				return a.Str > b.Str
			}
			return a.Str < b.Str
		case Int:
			if descending {
				return a.Int > b.Int
			}
			return a.Int < b.Int
		default:
			if descending {
				return a.Float > b.Float
			}
			return a.Float < b.Float
		}
	}
	sort.SliceStable(out.rows, func(x, y int) bool {
		return less(out.rows[x][i], out.rows[y][i])
	})
	return out, nil
}
