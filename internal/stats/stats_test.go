package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/lox/lapserate/internal/table"
)

func cells(xs ...float64) []table.Value {
	out := make([]table.Value, len(xs))
	for i, x := range xs {
		out[i] = table.FloatVal(x)
	}
	return out
}

func TestMean_ExcludeDropsMissing(t *testing.T) {
	in := []table.Value{table.FloatVal(1), table.NA(table.Float), table.FloatVal(3)}

	got, err := Mean.Apply(in, Exclude)
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if !got.Valid || got.Float != 2 {
		t.Errorf("mean([1, NA, 3], exclude) = %v, want 2", got)
	}
}

func TestMean_PropagateYieldsMissing(t *testing.T) {
	in := []table.Value{table.FloatVal(1), table.NA(table.Float), table.FloatVal(3)}

	got, err := Mean.Apply(in, Propagate)
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if got.Valid {
		t.Errorf("mean([1, NA, 3], propagate) = %v, want NA", got)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		f    Func
		in   []table.Value
		want float64
	}{
		{name: "mean", f: Mean, in: cells(2, 4, 6), want: 4},
		{name: "sd", f: StdDev, in: cells(2, 4, 6), want: 2},
		{name: "median odd", f: Median, in: cells(5, 1, 9), want: 5},
		{name: "median even", f: Median, in: cells(1, 3, 5, 7), want: 4},
		{name: "iqr", f: IQR, in: cells(1, 2, 3, 4), want: 2},
		{name: "min", f: Min, in: cells(3, -1, 2), want: -1},
		{name: "max", f: Max, in: cells(3, -1, 2), want: 3},
		{name: "count excludes missing", f: Count, in: []table.Value{table.FloatVal(1), table.NA(table.Float)}, want: 1},
		{name: "int cells promoted", f: Mean, in: []table.Value{table.IntVal(1), table.IntVal(3)}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f.Apply(tt.in, Exclude)
			if err != nil {
				t.Fatalf("%s: %v", tt.f.Name, err)
			}
			if !got.Valid || math.Abs(got.Float-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.f.Name, got, tt.want)
			}
		})
	}
}

func TestApply_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		f    Func
		in   []table.Value
	}{
		{name: "sd of one value", f: StdDev, in: cells(5)},
		{name: "mean of nothing", f: Mean, in: nil},
		{name: "mean of all-missing under exclude", f: Mean, in: []table.Value{table.NA(table.Float)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.f.Apply(tt.in, Exclude)
			var insufficient *InsufficientDataError
			if !errors.As(err, &insufficient) {
				t.Fatalf("error = %v, want InsufficientDataError", err)
			}
		})
	}
}

func TestApply_NonNumericCell(t *testing.T) {
	in := []table.Value{table.Str("oops")}

	if _, err := Mean.Apply(in, Exclude); err == nil {
		t.Error("mean over string cells: got nil error")
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"mean", "sd", "median", "iqr", "min", "max", "n"} {
		f, ok := ByName(name)
		if !ok || f.Name != name {
			t.Errorf("ByName(%q) = (%v, %v)", name, f.Name, ok)
		}
	}
	if _, ok := ByName("mode"); ok {
		t.Error("ByName(mode) = true, want false")
	}
}
