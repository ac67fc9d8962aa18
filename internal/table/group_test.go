package table

import (
	"errors"
	"testing"
)

func groupSample(t *testing.T) *Table {
	t.Helper()
	tbl := New(NewSchema(
		Column{Name: "site", Type: String},
		Column{Name: "month", Type: String},
		Column{Name: "tavg", Type: Float},
	))
	tbl.MustAppend(Str("GL"), Str("Jan"), FloatVal(8.5))
	tbl.MustAppend(Str("CHM"), Str("Jan"), FloatVal(4.2))
	tbl.MustAppend(Str("GL"), Str("Feb"), FloatVal(9.1))
	tbl.MustAppend(Str("CHM"), Str("Feb"), FloatVal(5.0))
	tbl.MustAppend(Str("GL"), Str("Jan"), FloatVal(7.9))
	return tbl
}

func TestGroupBy_FirstOccurrenceOrder(t *testing.T) {
	tbl := groupSample(t)

	g, err := tbl.GroupBy("month")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("group count = %d, want 2", g.Len())
	}
	var order []string
	for _, grp := range g.Groups() {
		order = append(order, grp.KeyString())
	}
	if order[0] != "Jan" || order[1] != "Feb" {
		t.Errorf("group order = %v, want [Jan Feb]", order)
	}
}

func TestGroupBy_Partition(t *testing.T) {
	tbl := groupSample(t)

	g, err := tbl.GroupBy("site", "month")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}

	// Every source row index appears exactly once across all groups.
	seen := make(map[int]int)
	total := 0
	for _, grp := range g.Groups() {
		if grp.Rows.Len() != len(grp.Indices) {
			t.Errorf("group %s: %d rows but %d indices", grp.KeyString(), grp.Rows.Len(), len(grp.Indices))
		}
		for _, i := range grp.Indices {
			seen[i]++
		}
		total += grp.Rows.Len()
	}
	if total != tbl.Len() {
		t.Errorf("total grouped rows = %d, want %d", total, tbl.Len())
	}
	for i := 0; i < tbl.Len(); i++ {
		if seen[i] != 1 {
			t.Errorf("row %d appears %d times across groups, want 1", i, seen[i])
		}
	}
}

func TestGroupBy_MissingKeyFormsOwnGroup(t *testing.T) {
	tbl := New(NewSchema(
		Column{Name: "site", Type: String},
		Column{Name: "tavg", Type: Float},
	))
	tbl.MustAppend(Str("GL"), FloatVal(8.5))
	tbl.MustAppend(NA(String), FloatVal(3.0))
	tbl.MustAppend(Str("GL"), FloatVal(7.9))
	tbl.MustAppend(NA(String), FloatVal(2.1))

	g, err := tbl.GroupBy("site")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("group count = %d, want 2 (missing key kept)", g.Len())
	}
	na := g.Groups()[1]
	if na.KeyString() != "NA" {
		t.Errorf("second group key = %q, want NA", na.KeyString())
	}
	if na.Rows.Len() != 2 {
		t.Errorf("NA group rows = %d, want 2", na.Rows.Len())
	}
}

func TestGroupBy_MissingKeyDistinctFromLiteralNA(t *testing.T) {
	tbl := New(NewSchema(
		Column{Name: "site", Type: String},
		Column{Name: "tavg", Type: Float},
	))
	tbl.MustAppend(Str("NA"), FloatVal(1))
	tbl.MustAppend(NA(String), FloatVal(2))

	g, err := tbl.GroupBy("site")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("group count = %d, want 2 (literal NA and missing must not merge)", g.Len())
	}
}

func TestGroupBy_KeyCellsNeverCollideWithMarkers(t *testing.T) {
	t.Run("NUL cell vs missing cell", func(t *testing.T) {
		tbl := New(NewSchema(
			Column{Name: "site", Type: String},
			Column{Name: "tavg", Type: Float},
		))
		tbl.MustAppend(Str("\x00"), FloatVal(1))
		tbl.MustAppend(NA(String), FloatVal(2))

		g, err := tbl.GroupBy("site")
		if err != nil {
			t.Fatalf("GroupBy: %v", err)
		}
		if g.Len() != 2 {
			t.Errorf("group count = %d, want 2", g.Len())
		}
	})

	t.Run("separator byte inside a cell", func(t *testing.T) {
		tbl := New(NewSchema(
			Column{Name: "a", Type: String},
			Column{Name: "b", Type: String},
			Column{Name: "tavg", Type: Float},
		))
		// Without escaping these two keys would encode identically.
		tbl.MustAppend(Str("x\x1f"), Str("y"), FloatVal(1))
		tbl.MustAppend(Str("x"), Str("\x1fy"), FloatVal(2))

		g, err := tbl.GroupBy("a", "b")
		if err != nil {
			t.Fatalf("GroupBy: %v", err)
		}
		if g.Len() != 2 {
			t.Errorf("group count = %d, want 2", g.Len())
		}
	})
}

func TestGroupBy_UnknownColumn(t *testing.T) {
	tbl := groupSample(t)

	_, err := tbl.GroupBy("sight")
	var missing *MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("GroupBy(sight) error = %v, want MissingColumnError", err)
	}
}
