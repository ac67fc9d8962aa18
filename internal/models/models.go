package models

import (
	"database/sql"
	"time"
)

// Site is one observation site in the dataset: identifier, elevation and
// how many observations it contributed.
type Site struct {
	Site         string
	Elevation    float64
	Observations int
}

// GroupSummary is one persisted row of grouped temperature statistics.
// GroupedBy records the key columns (e.g. "month" or "site/month") and
// GroupKey the rendered key tuple. Statistics are null when the group had
// too few usable values.
type GroupSummary struct {
	ID         int64
	GroupedBy  string
	GroupKey   string
	SampleSize int
	MeanTavg   sql.NullFloat64
	SDTavg     sql.NullFloat64
	MedianTavg sql.NullFloat64
	IQRTavg    sql.NullFloat64
	ComputedAt time.Time
}

// FitResult is one persisted per-group lapse-rate fit. A failed fit keeps
// its group key with null coefficients and the cause in FitError.
type FitResult struct {
	ID         int64
	GroupedBy  string
	GroupKey   string
	N          sql.NullInt64
	Slope      sql.NullFloat64
	Intercept  sql.NullFloat64
	R2         sql.NullFloat64
	LapsePerKm sql.NullFloat64
	FitError   sql.NullString
	ComputedAt time.Time
}
