package store

import (
	"database/sql"
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
CREATE TABLE IF NOT EXISTS wind_farms (
    farm_id TEXT PRIMARY KEY,
    name TEXT,
    latitude REAL,
    longitude REAL,
    turbine_count INTEGER,
    total_power_mw REAL,
    avg_wind_speed REAL,
    efficiency INTEGER,
    status TEXT,
    region TEXT,
    state TEXT
);

CREATE TABLE IF NOT EXISTS turbines (
    turbine_id TEXT PRIMARY KEY,
    farm_id TEXT NOT NULL,
    name TEXT,
    latitude REAL,
    longitude REAL,
    status TEXT,
    capacity_mw REAL,
    health_score REAL
);

CREATE INDEX IF NOT EXISTS idx_turbines_farm ON turbines(farm_id);

CREATE TABLE IF NOT EXISTS turbine_readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    turbine_id TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    power_mw REAL,
    wind_speed REAL,
    rotor_rpm REAL,
    nacelle_temp REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(turbine_id, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_readings_observed ON turbine_readings(observed_at);
`,
	},
	{
		Version:     2,
		Description: "Add daily_energy rollup table",
		SQL: `
CREATE TABLE IF NOT EXISTS daily_energy (
    date DATE NOT NULL,
    farm_id TEXT NOT NULL,
    total_mwh REAL,
    peak_mw REAL,
    reading_count INTEGER,
    PRIMARY KEY (date, farm_id)
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

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
