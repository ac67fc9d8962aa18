package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS sites (
    site TEXT PRIMARY KEY,
    elevation REAL,
    observations INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS group_summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    grouped_by TEXT NOT NULL,
    group_key TEXT NOT NULL,
    sample_size INTEGER,
    mean_tavg REAL,
    sd_tavg REAL,
    median_tavg REAL,
    iqr_tavg REAL,
    computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(grouped_by, group_key)
);

CREATE TABLE IF NOT EXISTS fit_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    grouped_by TEXT NOT NULL,
    group_key TEXT NOT NULL,
    n INTEGER,
    slope REAL,
    intercept REAL,
    r2 REAL,
    lapse_per_km REAL,
    fit_error TEXT,
    computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(grouped_by, group_key)
);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
