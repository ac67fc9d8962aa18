package table

import "strings"

// Group is one partition of a grouped table: the key cells (in GroupBy
// column order), the member rows as a table, and each member's row index in
// the source table.
type Group struct {
	Key     []Value
	Rows    *Table
	Indices []int
}

// KeyString renders the key for display and for use as a stable map key,
// e.g. "Jan" or "GL/Jan". Missing key cells render as "NA".
func (g *Group) KeyString() string {
	parts := make([]string, len(g.Key))
	for i, v := range g.Key {
		parts[i] = v.String()
	}
	return strings.Join(parts, "/")
}

// Grouped is an ordered partition of a table by one or more key columns.
// Group order is the first-occurrence order of each key in the source
// table. Every source row belongs to exactly one group; rows whose key
// cells are missing form their own group rather than being dropped.
type Grouped struct {
	by     []string
	source *Table
	groups []*Group
}

// GroupBy partitions the table by the named key columns.
func (t *Table) GroupBy(by ...string) (*Grouped, error) {
	idx := make([]int, len(by))
	for j, name := range by {
		i, err := t.schema.Lookup(name)
		if err != nil {
			return nil, err
		}
		idx[j] = i
	}

	g := &Grouped{by: append([]string(nil), by...), source: t}
	seen := make(map[string]*Group)
	for r, row := range t.rows {
		key := make([]Value, len(idx))
		for j, i := range idx {
			key[j] = row[i]
		}
		ks := encodeKey(key)
		grp, ok := seen[ks]
		if !ok {
			grp = &Group{Key: key, Rows: New(t.schema)}
			seen[ks] = grp
			g.groups = append(g.groups, grp)
		}
		grp.Rows.rows = append(grp.Rows.rows, row)
		grp.Indices = append(grp.Indices, r)
	}
	return g, nil
}

// By returns the key column names.
func (g *Grouped) By() []string { return append([]string(nil), g.by...) }

// Source returns the table that was grouped.
func (g *Grouped) Source() *Table { return g.source }

// Len returns the number of groups.
func (g *Grouped) Len() int { return len(g.groups) }

// Groups returns the groups in first-occurrence order.
func (g *Grouped) Groups() []*Group { return g.groups }

// encodeKey builds an unambiguous map key from the key cells. Columns are
// joined with a unit separator and a missing cell is marked with a NUL
// sentinel; both bytes (and the escape itself) are escaped inside valid
// cell values, so a cell containing them never collides with the markers
// or across columns.
func encodeKey(key []Value) string {
	var b strings.Builder
	for i, v := range key {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if !v.Valid {
			b.WriteByte(0x00)
			continue
		}
		s := v.String()
		for j := 0; j < len(s); j++ {
			switch c := s[j]; c {
			case 0x00, 0x1b, 0x1f:
				b.WriteByte(0x1b)
				b.WriteByte(c + 0x40)
			default:
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
