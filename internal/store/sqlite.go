// Package store persists analysis output in sqlite so repeated runs keep a
// history of computed summaries and fits.
package store

import (
	"database/sql"

	"github.com/lox/lapserate/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertSite(site models.Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (site, elevation, observations)
		VALUES (?, ?, ?)
		ON CONFLICT(site) DO UPDATE SET
			elevation = excluded.elevation,
			observations = excluded.observations
	`, site.Site, site.Elevation, site.Observations)
	return err
}

func (s *Store) GetSites() ([]models.Site, error) {
	rows, err := s.db.Query(`SELECT site, elevation, observations FROM sites ORDER BY elevation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.Site, &site.Elevation, &site.Observations); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) UpsertGroupSummary(sum models.GroupSummary) error {
	_, err := s.db.Exec(`
		INSERT INTO group_summaries (grouped_by, group_key, sample_size, mean_tavg, sd_tavg, median_tavg, iqr_tavg, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(grouped_by, group_key) DO UPDATE SET
			sample_size = excluded.sample_size,
			mean_tavg = excluded.mean_tavg,
			sd_tavg = excluded.sd_tavg,
			median_tavg = excluded.median_tavg,
			iqr_tavg = excluded.iqr_tavg,
			computed_at = excluded.computed_at
	`, sum.GroupedBy, sum.GroupKey, sum.SampleSize, sum.MeanTavg, sum.SDTavg, sum.MedianTavg, sum.IQRTavg, sum.ComputedAt)
	return err
}

func (s *Store) GetGroupSummaries(groupedBy string) ([]models.GroupSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, grouped_by, group_key, sample_size, mean_tavg, sd_tavg, median_tavg, iqr_tavg, computed_at
		FROM group_summaries
		WHERE grouped_by = ?
		ORDER BY id
	`, groupedBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []models.GroupSummary
	for rows.Next() {
		var sum models.GroupSummary
		if err := rows.Scan(&sum.ID, &sum.GroupedBy, &sum.GroupKey, &sum.SampleSize, &sum.MeanTavg, &sum.SDTavg, &sum.MedianTavg, &sum.IQRTavg, &sum.ComputedAt); err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

func (s *Store) UpsertFitResult(fit models.FitResult) error {
	_, err := s.db.Exec(`
		INSERT INTO fit_results (grouped_by, group_key, n, slope, intercept, r2, lapse_per_km, fit_error, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(grouped_by, group_key) DO UPDATE SET
			n = excluded.n,
			slope = excluded.slope,
			intercept = excluded.intercept,
			r2 = excluded.r2,
			lapse_per_km = excluded.lapse_per_km,
			fit_error = excluded.fit_error,
			computed_at = excluded.computed_at
	`, fit.GroupedBy, fit.GroupKey, fit.N, fit.Slope, fit.Intercept, fit.R2, fit.LapsePerKm, fit.FitError, fit.ComputedAt)
	return err
}

func (s *Store) GetFitResults(groupedBy string) ([]models.FitResult, error) {
	rows, err := s.db.Query(`
		SELECT id, grouped_by, group_key, n, slope, intercept, r2, lapse_per_km, fit_error, computed_at
		FROM fit_results
		WHERE grouped_by = ?
		ORDER BY id
	`, groupedBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []models.FitResult
	for rows.Next() {
		var fit models.FitResult
		if err := rows.Scan(&fit.ID, &fit.GroupedBy, &fit.GroupKey, &fit.N, &fit.Slope, &fit.Intercept, &fit.R2, &fit.LapsePerKm, &fit.FitError, &fit.ComputedAt); err != nil {
			return nil, err
		}
		fits = append(fits, fit)
	}
	return fits, rows.Err()
}
