// Package chart renders the analysis output: per-group scatter plots of
// temperature against elevation with the fitted regression line overlaid,
// and grouped mean-temperature bar charts. It consumes summary and fit
// tables; the analysis core never imports it.
package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/lox/lapserate/internal/table"
)

// LapseScatter plots response (tavg) against predictor (elev) for every
// group, one colored series per group, with each successful fit's line
// overlaid across the observed predictor range. Rows with a missing cell
// in either column are omitted from the drawing.
func LapseScatter(g *table.Grouped, fits *table.Table, response, predictor, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s by %s", response, predictor, joinBy(g))
	p.X.Label.Text = fmt.Sprintf("%s (m)", predictor)
	p.Y.Label.Text = fmt.Sprintf("%s (°C)", response)
	p.Add(plotter.NewGrid())

	slopes, intercepts, err := fitCoefficients(g, fits)
	if err != nil {
		return err
	}

	for gi, grp := range g.Groups() {
		px, err := grp.Rows.Column(predictor)
		if err != nil {
			return err
		}
		py, err := grp.Rows.Column(response)
		if err != nil {
			return err
		}

		var pts plotter.XYs
		minX, maxX := 0.0, 0.0
		for i := range px {
			x, okX := px[i].Number()
			y, okY := py[i].Number()
			if !okX || !okY {
				continue
			}
			if len(pts) == 0 || x < minX {
				minX = x
			}
			if len(pts) == 0 || x > maxX {
				maxX = x
			}
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
		if len(pts) == 0 {
			continue
		}

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("scatter %s: %w", grp.KeyString(), err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(gi)
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(grp.KeyString(), scatter)

		slope, ok := slopes[grp.KeyString()]
		if !ok {
			continue // no fit for this group, scatter only
		}
		intercept := intercepts[grp.KeyString()]
		line := plotter.NewFunction(func(x float64) float64 { return intercept + slope*x })
		line.XMin = minX
		line.XMax = maxX
		line.Color = plotutil.Color(gi)
		line.Width = vg.Points(1.5)
		p.Add(line)
	}

	if err := p.Save(10*vg.Inch, 7*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// SummaryBars draws one bar per summary row of the named statistic column,
// labeled by the group key columns.
func SummaryBars(summary *table.Table, statColumn, path string) error {
	keyColumns := keyColumnNames(summary, statColumn)

	values := make(plotter.Values, 0, summary.Len())
	labels := make([]string, 0, summary.Len())
	for i := 0; i < summary.Len(); i++ {
		v, err := summary.Value(i, statColumn)
		if err != nil {
			return err
		}
		x, ok := v.Number()
		if !ok {
			continue
		}
		values = append(values, x)
		labels = append(labels, rowKeyLabel(summary, i, keyColumns))
	}

	p := plot.New()
	p.Title.Text = statColumn
	p.Y.Label.Text = statColumn
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// fitCoefficients indexes a fit-result table by rendered group key.
func fitCoefficients(g *table.Grouped, fits *table.Table) (map[string]float64, map[string]float64, error) {
	slopes := make(map[string]float64)
	intercepts := make(map[string]float64)
	if fits == nil {
		return slopes, intercepts, nil
	}
	for i := 0; i < fits.Len(); i++ {
		key, err := rowKey(fits, i, g.By())
		if err != nil {
			return nil, nil, err
		}
		slope, err := fits.Value(i, "slope")
		if err != nil {
			return nil, nil, err
		}
		intercept, err := fits.Value(i, "intercept")
		if err != nil {
			return nil, nil, err
		}
		if !slope.Valid || !intercept.Valid {
			continue
		}
		slopes[key] = slope.Float
		intercepts[key] = intercept.Float
	}
	return slopes, intercepts, nil
}

func rowKey(t *table.Table, row int, by []string) (string, error) {
	key := ""
	for i, name := range by {
		v, err := t.Value(row, name)
		if err != nil {
			return "", err
		}
		if i > 0 {
			key += "/"
		}
		key += v.String()
	}
	return key, nil
}

// keyColumnNames treats every column before statColumn as part of the key.
func keyColumnNames(t *table.Table, statColumn string) []string {
	var keys []string
	for _, c := range t.Schema().Columns() {
		if c.Name == statColumn {
			break
		}
		if isStatColumn(c.Name) {
			continue
		}
		keys = append(keys, c.Name)
	}
	return keys
}

func isStatColumn(name string) bool {
	for _, prefix := range []string{"mean_", "sd_", "median_", "iqr_", "min_", "max_", "n_"} {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func rowKeyLabel(t *table.Table, row int, keys []string) string {
	label, _ := rowKey(t, row, keys)
	return label
}

func joinBy(g *table.Grouped) string {
	by := g.By()
	out := ""
	for i, name := range by {
		if i > 0 {
			out += "/"
		}
		out += name
	}
	return out
}
