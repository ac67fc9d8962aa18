// Package ingest loads the climate observations dataset into a typed table.
// The expected input is delimited text with a header row naming
// year, month, doy, site, elev, tavg and dates; dates carries redundant
// formatted timestamps and is dropped before analysis.
package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/lapserate/internal/table"
)

// naMarkers are the cell values treated as missing on load.
var naMarkers = []string{"NA", "NaN", ""}

var climateColumns = []table.Column{
	{Name: "year", Type: table.Int},
	{Name: "month", Type: table.String},
	{Name: "doy", Type: table.Int},
	{Name: "site", Type: table.String},
	{Name: "elev", Type: table.Float},
	{Name: "tavg", Type: table.Float},
}

// Schema returns the analysis schema: the dataset columns minus dates.
func Schema() table.Schema {
	return table.NewSchema(climateColumns...)
}

// LoadFile reads a dataset from disk.
func LoadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load decodes a delimited dataset. Every analysis column must be present
// in the header or the load fails with a *table.MissingColumnError; the
// dates column is optional and discarded. NA markers become missing cells;
// any other unparseable numeric cell is an error, never a silent zero.
func Load(r io.Reader) (*table.Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(naMarkers),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	have := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		have[name] = true
	}
	for _, c := range climateColumns {
		if !have[c.Name] {
			return nil, &table.MissingColumnError{Column: c.Name}
		}
	}

	out := table.New(Schema())
	for i := 0; i < df.Nrow(); i++ {
		row := make([]table.Value, 0, len(climateColumns))
		for _, c := range climateColumns {
			elem := df.Col(c.Name).Elem(i)
			v, err := parseCell(elem.IsNA(), elem.String(), c.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", i+1, c.Name, err)
			}
			row = append(row, v)
		}
		if err := out.Append(row...); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return out, nil
}

func parseCell(isNA bool, raw string, typ table.Type) (table.Value, error) {
	if isNA {
		return table.NA(typ), nil
	}
	raw = strings.TrimSpace(raw)
	switch typ {
	case table.String:
		return table.Str(raw), nil
	case table.Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return table.Value{}, fmt.Errorf("parse %q as int: %w", raw, err)
		}
		return table.IntVal(n), nil
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.Value{}, fmt.Errorf("parse %q as float: %w", raw, err)
		}
		return table.FloatVal(f), nil
	}
}
