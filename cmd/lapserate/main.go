package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/lapserate/internal/aggregate"
	"github.com/lox/lapserate/internal/chart"
	"github.com/lox/lapserate/internal/fit"
	"github.com/lox/lapserate/internal/ingest"
	"github.com/lox/lapserate/internal/models"
	"github.com/lox/lapserate/internal/narrative"
	"github.com/lox/lapserate/internal/stats"
	"github.com/lox/lapserate/internal/store"
	"github.com/lox/lapserate/internal/table"
)

type Globals struct {
	Dataset string `help:"Path to the climate dataset CSV." default:"data/climate.csv" env:"LAPSERATE_DATASET"`
	DB      string `help:"Optional sqlite database recording computed results." env:"LAPSERATE_DB"`
	NA      string `help:"Missing-value policy for statistics." enum:"exclude,propagate" default:"exclude" env:"LAPSERATE_NA"`
}

var cli struct {
	Globals

	Fetch   FetchCmd   `cmd:"" help:"Download a dataset over HTTP or FTP."`
	Summary SummaryCmd `cmd:"" help:"Grouped summary statistics of average temperature."`
	Fit     FitCmd     `cmd:"" help:"Per-group OLS fits of temperature vs elevation."`
}

func (g *Globals) policy() stats.Policy {
	if g.NA == "propagate" {
		return stats.Propagate
	}
	return stats.Exclude
}

func (g *Globals) load() (*table.Table, error) {
	tbl, err := ingest.LoadFile(g.Dataset)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d observations from %s", tbl.Len(), g.Dataset)
	return tbl, nil
}

// openStore returns nil when no database is configured.
func (g *Globals) openStore() (*store.Store, func(), error) {
	if g.DB == "" {
		return nil, func() {}, nil
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

type FetchCmd struct {
	URL string `arg:"" help:"Dataset URL (http, https or ftp)."`
	Out string `help:"Output path." default:"data/climate.csv"`
}

func (c *FetchCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	body, err := ingest.Fetch(ctx, c.URL)
	if err != nil {
		return err
	}

	// Validate before writing so a bad download never replaces a good file.
	if _, err := ingest.Load(strings.NewReader(string(body))); err != nil {
		return fmt.Errorf("fetched dataset is not loadable: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(c.Out, body, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s", c.Out)
	return nil
}

type SummaryCmd struct {
	By    []string `help:"Key columns to group by." default:"month"`
	Stats []string `help:"Statistics to compute over tavg." default:"mean,sd,median,iqr,n"`
	Site  string   `help:"Restrict to one site before grouping."`
	Plot  string   `help:"Write a bar chart of the first statistic to this path."`
}

func (c *SummaryCmd) Run(g *Globals) error {
	tbl, err := g.load()
	if err != nil {
		return err
	}

	if c.Site != "" {
		tbl = tbl.Filter(func(r table.Row) bool {
			v := r.MustValue("site")
			return v.Valid && v.Str == c.Site
		})
		log.Printf("filtered to site %s: %d observations", c.Site, tbl.Len())
	}

	if len(c.Stats) == 0 {
		return fmt.Errorf("no statistics requested")
	}
	var funcs []stats.Func
	for _, name := range c.Stats {
		f, ok := stats.ByName(name)
		if !ok {
			return fmt.Errorf("unknown statistic %q", name)
		}
		funcs = append(funcs, f)
	}

	grouped, err := tbl.GroupBy(c.By...)
	if err != nil {
		return err
	}
	summary, err := aggregate.Summarize(grouped, []aggregate.Spec{{Column: "tavg", Stats: funcs}}, g.policy())
	if err != nil {
		return err
	}
	printTable(summary)

	st, closeStore, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if st != nil {
		if err := persistSummaries(st, grouped, summary); err != nil {
			return err
		}
		if err := syncSites(st, tbl); err != nil {
			return err
		}
	}

	if c.Plot != "" {
		statCol := fmt.Sprintf("%s_tavg", funcs[0].Name)
		if err := chart.SummaryBars(summary, statCol, c.Plot); err != nil {
			return err
		}
		log.Printf("wrote %s", c.Plot)
	}
	return nil
}

type FitCmd struct {
	By      []string `help:"Key columns to group by." default:"month"`
	Plot    string   `help:"Write a scatter+fit chart to this path."`
	Narrate bool     `help:"Summarize the results in plain language via OpenAI."`
}

func (c *FitCmd) Run(g *Globals) error {
	tbl, err := g.load()
	if err != nil {
		return err
	}

	grouped, err := tbl.GroupBy(c.By...)
	if err != nil {
		return err
	}
	results, failures, err := fit.PerGroup(grouped, "tavg", "elev", g.policy())
	if err != nil {
		return err
	}

	printTable(results)
	for _, f := range failures {
		log.Printf("fit failed for group %s: %v", f.Key, f.Err)
	}
	log.Printf("fit %d/%d groups", results.Len(), grouped.Len())

	rows, err := fitRows(grouped, results, failures)
	if err != nil {
		return err
	}

	st, closeStore, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if st != nil {
		for _, row := range rows {
			if err := st.UpsertFitResult(row); err != nil {
				return fmt.Errorf("persist fit %s: %w", row.GroupKey, err)
			}
		}
		if err := syncSites(st, tbl); err != nil {
			return err
		}
	}

	if c.Plot != "" {
		if err := chart.LapseScatter(grouped, results, "tavg", "elev", c.Plot); err != nil {
			return err
		}
		log.Printf("wrote %s", c.Plot)
	}

	if c.Narrate {
		narrator, err := narrative.New()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		text, err := narrator.Summarize(ctx, rows)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	return nil
}

// fitRows flattens successes and failures into store rows, keyed the same
// way so both survive persistence.
func fitRows(grouped *table.Grouped, results *table.Table, failures []fit.GroupFailure) ([]models.FitResult, error) {
	groupedBy := strings.Join(grouped.By(), "/")
	now := time.Now().UTC()

	var rows []models.FitResult
	for i := 0; i < results.Len(); i++ {
		key := ""
		for j, name := range grouped.By() {
			v, err := results.Value(i, name)
			if err != nil {
				return nil, err
			}
			if j > 0 {
				key += "/"
			}
			key += v.String()
		}
		n, _ := results.Value(i, "n")
		slope, _ := results.Value(i, "slope")
		intercept, _ := results.Value(i, "intercept")
		r2, _ := results.Value(i, "r2")
		perKm, _ := results.Value(i, "slope_per_km")
		rows = append(rows, models.FitResult{
			GroupedBy:  groupedBy,
			GroupKey:   key,
			N:          sql.NullInt64{Int64: n.Int, Valid: n.Valid},
			Slope:      sql.NullFloat64{Float64: slope.Float, Valid: slope.Valid},
			Intercept:  sql.NullFloat64{Float64: intercept.Float, Valid: intercept.Valid},
			R2:         sql.NullFloat64{Float64: r2.Float, Valid: r2.Valid},
			LapsePerKm: sql.NullFloat64{Float64: perKm.Float, Valid: perKm.Valid},
			ComputedAt: now,
		})
	}
	for _, f := range failures {
		rows = append(rows, models.FitResult{
			GroupedBy:  groupedBy,
			GroupKey:   f.Key,
			FitError:   sql.NullString{String: f.Err.Error(), Valid: true},
			ComputedAt: now,
		})
	}
	return rows, nil
}

func persistSummaries(st *store.Store, grouped *table.Grouped, summary *table.Table) error {
	groupedBy := strings.Join(grouped.By(), "/")
	now := time.Now().UTC()

	for i := 0; i < summary.Len(); i++ {
		key := ""
		for j, name := range grouped.By() {
			v, err := summary.Value(i, name)
			if err != nil {
				return err
			}
			if j > 0 {
				key += "/"
			}
			key += v.String()
		}
		row := models.GroupSummary{GroupedBy: groupedBy, GroupKey: key, ComputedAt: now}
		if v, err := summary.Value(i, "n_tavg"); err == nil && v.Valid {
			row.SampleSize = int(v.Float)
		}
		if v, err := summary.Value(i, "mean_tavg"); err == nil {
			row.MeanTavg = sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
		}
		if v, err := summary.Value(i, "sd_tavg"); err == nil {
			row.SDTavg = sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
		}
		if v, err := summary.Value(i, "median_tavg"); err == nil {
			row.MedianTavg = sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
		}
		if v, err := summary.Value(i, "iqr_tavg"); err == nil {
			row.IQRTavg = sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
		}
		if err := st.UpsertGroupSummary(row); err != nil {
			return fmt.Errorf("persist summary %s: %w", key, err)
		}
	}
	return nil
}

// syncSites records each site's elevation and observation count.
func syncSites(st *store.Store, tbl *table.Table) error {
	grouped, err := tbl.GroupBy("site")
	if err != nil {
		return err
	}
	for _, grp := range grouped.Groups() {
		site := models.Site{Site: grp.KeyString(), Observations: grp.Rows.Len()}
		if elev, err := grp.Rows.Value(0, "elev"); err == nil && elev.Valid {
			site.Elevation = elev.Float
		}
		if err := st.UpsertSite(site); err != nil {
			return fmt.Errorf("persist site %s: %w", site.Site, err)
		}
	}
	return nil
}

func printTable(t *table.Table) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	var header []string
	for _, c := range t.Schema().Columns() {
		header = append(header, c.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i := 0; i < t.Len(); i++ {
		var cells []string
		for _, c := range t.Schema().Columns() {
			v, _ := t.Value(i, c.Name)
			cells = append(cells, v.String())
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("lapserate"),
		kong.Description("Grouped summaries and lapse-rate regressions over a mountain climate dataset."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}
