package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/lox/lapserate/internal/stats"
	"github.com/lox/lapserate/internal/table"
)

func TestOLS_ExactLine(t *testing.T) {
	xs := []float64{1000, 2000, 3000}
	ys := []float64{10, 8, 6}

	got, err := OLS(xs, ys)
	if err != nil {
		t.Fatalf("OLS: %v", err)
	}
	if math.Abs(got.Slope-(-0.002)) > 1e-12 {
		t.Errorf("Slope = %v, want -0.002", got.Slope)
	}
	if math.Abs(got.Intercept-12) > 1e-9 {
		t.Errorf("Intercept = %v, want 12", got.Intercept)
	}
	if math.Abs(got.R2-1.0) > 1e-9 {
		t.Errorf("R2 = %v, want 1.0", got.R2)
	}
	if got.N != 3 {
		t.Errorf("N = %d, want 3", got.N)
	}
}

func TestOLS_Errors(t *testing.T) {
	t.Run("single observation", func(t *testing.T) {
		_, err := OLS([]float64{1000}, []float64{10})
		var insufficient *stats.InsufficientDataError
		if !errors.As(err, &insufficient) {
			t.Fatalf("error = %v, want InsufficientDataError", err)
		}
	})

	t.Run("constant predictor", func(t *testing.T) {
		_, err := OLS([]float64{1500, 1500, 1500}, []float64{10, 8, 6})
		var degenerate *DegenerateFitError
		if !errors.As(err, &degenerate) {
			t.Fatalf("error = %v, want DegenerateFitError", err)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		if _, err := OLS([]float64{1, 2}, []float64{1}); err == nil {
			t.Error("mismatched lengths: got nil error")
		}
	})
}

func fitSample(t *testing.T) *table.Grouped {
	t.Helper()
	tbl := table.New(table.NewSchema(
		table.Column{Name: "month", Type: table.String},
		table.Column{Name: "elev", Type: table.Float},
		table.Column{Name: "tavg", Type: table.Float},
	))
	// Group A: exact line, slope -0.002.
	tbl.MustAppend(table.Str("Jan"), table.FloatVal(1000), table.FloatVal(10))
	tbl.MustAppend(table.Str("Jan"), table.FloatVal(2000), table.FloatVal(8))
	tbl.MustAppend(table.Str("Jan"), table.FloatVal(3000), table.FloatVal(6))
	// Group B: degenerate, constant elevation.
	tbl.MustAppend(table.Str("Feb"), table.FloatVal(1500), table.FloatVal(9))
	tbl.MustAppend(table.Str("Feb"), table.FloatVal(1500), table.FloatVal(7))
	// Group C: fits, with one missing response excluded.
	tbl.MustAppend(table.Str("Mar"), table.FloatVal(1000), table.FloatVal(12))
	tbl.MustAppend(table.Str("Mar"), table.FloatVal(2000), table.NA(table.Float))
	tbl.MustAppend(table.Str("Mar"), table.FloatVal(3000), table.FloatVal(4))

	g, err := tbl.GroupBy("month")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	return g
}

func TestPerGroup_PartialFailure(t *testing.T) {
	g := fitSample(t)

	results, failures, err := PerGroup(g, "tavg", "elev", stats.Exclude)
	if err != nil {
		t.Fatalf("PerGroup: %v", err)
	}

	if results.Len() != 2 {
		t.Fatalf("successful fits = %d, want 2", results.Len())
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].Key != "Feb" {
		t.Errorf("failed group = %q, want Feb", failures[0].Key)
	}
	var degenerate *DegenerateFitError
	if !errors.As(failures[0].Err, &degenerate) {
		t.Errorf("failure cause = %v, want DegenerateFitError", failures[0].Err)
	}
	if degenerate.Predictor != "elev" {
		t.Errorf("degenerate predictor = %q, want elev", degenerate.Predictor)
	}

	// Successes keep group order: Jan before Mar, Feb skipped.
	first, _ := results.Value(0, "month")
	second, _ := results.Value(1, "month")
	if first.Str != "Jan" || second.Str != "Mar" {
		t.Errorf("result order = [%s %s], want [Jan Mar]", first.Str, second.Str)
	}

	var gotJan []float64
	for _, col := range []string{"slope", "intercept", "r2", "slope_per_km"} {
		v, _ := results.Value(0, col)
		gotJan = append(gotJan, v.Float)
	}
	wantJan := []float64{-0.002, 12, 1, -2}
	if diff := cmp.Diff(wantJan, gotJan, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Jan coefficients mismatch (-want +got):\n%s", diff)
	}

	// Mar's missing response row is excluded, leaving two observations.
	n, _ := results.Value(1, "n")
	if n.Int != 2 {
		t.Errorf("n[Mar] = %d, want 2", n.Int)
	}
}

func TestPerGroup_UnknownColumnIsFatal(t *testing.T) {
	g := fitSample(t)

	_, _, err := PerGroup(g, "tavg", "elevation", stats.Exclude)
	var missing *table.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingColumnError", err)
	}
}

func TestPerGroup_KeyColumnCollidesWithResultColumn(t *testing.T) {
	tbl := table.New(table.NewSchema(
		table.Column{Name: "slope", Type: table.String},
		table.Column{Name: "elev", Type: table.Float},
		table.Column{Name: "tavg", Type: table.Float},
	))
	tbl.MustAppend(table.Str("north"), table.FloatVal(1000), table.FloatVal(10))
	tbl.MustAppend(table.Str("north"), table.FloatVal(2000), table.FloatVal(8))

	g, err := tbl.GroupBy("slope")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if _, _, err := PerGroup(g, "tavg", "elev", stats.Exclude); err == nil {
		t.Error("key column named like a result column: got nil error")
	}
}

func TestPerGroup_PropagateEmptiesGroupWithMissing(t *testing.T) {
	g := fitSample(t)

	results, failures, err := PerGroup(g, "tavg", "elev", stats.Propagate)
	if err != nil {
		t.Fatalf("PerGroup: %v", err)
	}
	// Mar contains a missing response, so under Propagate it cannot fit.
	if results.Len() != 1 {
		t.Errorf("successful fits = %d, want 1 (Jan only)", results.Len())
	}
	if len(failures) != 2 {
		t.Errorf("failures = %d, want 2 (Feb degenerate, Mar propagated)", len(failures))
	}
}
