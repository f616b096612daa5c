package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/galeops/windfleet/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertFarm(f models.WindFarm) error {
	_, err := s.db.Exec(`
		INSERT INTO wind_farms (farm_id, name, latitude, longitude, turbine_count, total_power_mw, avg_wind_speed, efficiency, status, region, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(farm_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			turbine_count = excluded.turbine_count,
			total_power_mw = excluded.total_power_mw,
			avg_wind_speed = excluded.avg_wind_speed,
			efficiency = excluded.efficiency,
			status = excluded.status,
			region = excluded.region,
			state = excluded.state
	`, f.FarmID, f.Name, f.Latitude, f.Longitude, f.TurbineCount, f.TotalPowerMW, f.AvgWindSpeed, f.Efficiency, f.Status, f.Region, f.State)
	return err
}

func (s *Store) GetFarms() ([]models.WindFarm, error) {
	rows, err := s.db.Query(`SELECT farm_id, name, latitude, longitude, turbine_count, total_power_mw, avg_wind_speed, efficiency, status, region, state FROM wind_farms ORDER BY farm_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var farms []models.WindFarm
	for rows.Next() {
		var f models.WindFarm
		if err := rows.Scan(&f.FarmID, &f.Name, &f.Latitude, &f.Longitude, &f.TurbineCount, &f.TotalPowerMW, &f.AvgWindSpeed, &f.Efficiency, &f.Status, &f.Region, &f.State); err != nil {
			return nil, err
		}
		farms = append(farms, f)
	}
	return farms, rows.Err()
}

func (s *Store) GetFarm(farmID string) (*models.WindFarm, error) {
	row := s.db.QueryRow(`SELECT farm_id, name, latitude, longitude, turbine_count, total_power_mw, avg_wind_speed, efficiency, status, region, state FROM wind_farms WHERE farm_id = ?`, farmID)

	var f models.WindFarm
	err := row.Scan(&f.FarmID, &f.Name, &f.Latitude, &f.Longitude, &f.TurbineCount, &f.TotalPowerMW, &f.AvgWindSpeed, &f.Efficiency, &f.Status, &f.Region, &f.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) UpsertTurbine(t models.Turbine) error {
	_, err := s.db.Exec(`
		INSERT INTO turbines (turbine_id, farm_id, name, latitude, longitude, status, capacity_mw, health_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(turbine_id) DO UPDATE SET
			farm_id = excluded.farm_id,
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			status = excluded.status,
			capacity_mw = excluded.capacity_mw,
			health_score = excluded.health_score
	`, t.TurbineID, t.FarmID, t.Name, t.Latitude, t.Longitude, t.Status, t.CapacityMW, t.HealthScore)
	return err
}

// GetTurbines lists turbines, optionally filtered by status. limit <= 0
// means no limit.
func (s *Store) GetTurbines(status models.FarmStatus, limit, offset int) ([]models.Turbine, error) {
	query := `SELECT turbine_id, farm_id, name, latitude, longitude, status, capacity_mw, health_score FROM turbines`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY turbine_id`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turbines []models.Turbine
	for rows.Next() {
		var t models.Turbine
		if err := rows.Scan(&t.TurbineID, &t.FarmID, &t.Name, &t.Latitude, &t.Longitude, &t.Status, &t.CapacityMW, &t.HealthScore); err != nil {
			return nil, err
		}
		turbines = append(turbines, t)
	}
	return turbines, rows.Err()
}

func (s *Store) GetTurbine(turbineID string) (*models.Turbine, error) {
	row := s.db.QueryRow(`SELECT turbine_id, farm_id, name, latitude, longitude, status, capacity_mw, health_score FROM turbines WHERE turbine_id = ?`, turbineID)

	var t models.Turbine
	err := row.Scan(&t.TurbineID, &t.FarmID, &t.Name, &t.Latitude, &t.Longitude, &t.Status, &t.CapacityMW, &t.HealthScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) InsertReading(r models.TurbineReading) error {
	_, err := s.db.Exec(`
		INSERT INTO turbine_readings (turbine_id, observed_at, power_mw, wind_speed, rotor_rpm, nacelle_temp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(turbine_id, observed_at) DO NOTHING
	`, r.TurbineID, r.ObservedAt, r.PowerMW, r.WindSpeed, r.RotorRPM, r.NacelleTemp)
	return err
}

func (s *Store) GetLatestReading(turbineID string) (*models.TurbineReading, error) {
	row := s.db.QueryRow(`
		SELECT id, turbine_id, observed_at, power_mw, wind_speed, rotor_rpm, nacelle_temp, created_at
		FROM turbine_readings
		WHERE turbine_id = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, turbineID)

	var r models.TurbineReading
	err := row.Scan(&r.ID, &r.TurbineID, &r.ObservedAt, &r.PowerMW, &r.WindSpeed, &r.RotorRPM, &r.NacelleTemp, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLatestReadings returns the most recent reading per turbine.
func (s *Store) GetLatestReadings() (map[string]models.TurbineReading, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.turbine_id, r.observed_at, r.power_mw, r.wind_speed, r.rotor_rpm, r.nacelle_temp, r.created_at
		FROM turbine_readings r
		JOIN (
			SELECT turbine_id, MAX(observed_at) AS observed_at
			FROM turbine_readings
			GROUP BY turbine_id
		) latest ON latest.turbine_id = r.turbine_id AND latest.observed_at = r.observed_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make(map[string]models.TurbineReading)
	for rows.Next() {
		var r models.TurbineReading
		if err := rows.Scan(&r.ID, &r.TurbineID, &r.ObservedAt, &r.PowerMW, &r.WindSpeed, &r.RotorRPM, &r.NacelleTemp, &r.CreatedAt); err != nil {
			return nil, err
		}
		readings[r.TurbineID] = r
	}
	return readings, rows.Err()
}

func (s *Store) GetReadings(turbineID string, start, end time.Time) ([]models.TurbineReading, error) {
	rows, err := s.db.Query(`
		SELECT id, turbine_id, observed_at, power_mw, wind_speed, rotor_rpm, nacelle_temp, created_at
		FROM turbine_readings
		WHERE turbine_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, turbineID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.TurbineReading
	for rows.Next() {
		var r models.TurbineReading
		if err := rows.Scan(&r.ID, &r.TurbineID, &r.ObservedAt, &r.PowerMW, &r.WindSpeed, &r.RotorRPM, &r.NacelleTemp, &r.CreatedAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// GetHourlyEnergy sums fleet output per hour across the window. Readings are
// treated as instantaneous MW sampled within each hour bucket.
func (s *Store) GetHourlyEnergy(start, end time.Time) ([]models.EnergyPoint, error) {
	// substr strips the driver's timezone suffix so strftime can parse the
	// stored value.
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m-%dT%H:00:00Z', substr(observed_at, 1, 19)) AS hour, SUM(power_mw)
		FROM turbine_readings
		WHERE observed_at >= ? AND observed_at <= ? AND power_mw IS NOT NULL
		GROUP BY hour
		ORDER BY hour ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.EnergyPoint
	for rows.Next() {
		var hour string
		var value sql.NullFloat64
		if err := rows.Scan(&hour, &value); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, hour)
		if err != nil {
			return nil, fmt.Errorf("parse hour bucket: %w", err)
		}
		points = append(points, models.EnergyPoint{Timestamp: ts, ValueMWh: value.Float64})
	}
	return points, rows.Err()
}

// ComputeDailyEnergy rolls one day of readings up into daily_energy, one row
// per farm. Safe to re-run for the same day.
func (s *Store) ComputeDailyEnergy(date time.Time) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	_, err := s.db.Exec(`
		INSERT INTO daily_energy (date, farm_id, total_mwh, peak_mw, reading_count)
		SELECT ?, t.farm_id, SUM(r.power_mw), MAX(r.power_mw), COUNT(*)
		FROM turbine_readings r
		JOIN turbines t ON t.turbine_id = r.turbine_id
		WHERE r.observed_at >= ? AND r.observed_at < ? AND r.power_mw IS NOT NULL
		GROUP BY t.farm_id
		ON CONFLICT(date, farm_id) DO UPDATE SET
			total_mwh = excluded.total_mwh,
			peak_mw = excluded.peak_mw,
			reading_count = excluded.reading_count
	`, dayStart, dayStart, dayEnd)
	return err
}

func (s *Store) GetDailyEnergy(farmID string, days int) ([]models.DailyEnergy, error) {
	rows, err := s.db.Query(`
		SELECT date, farm_id, total_mwh, peak_mw, reading_count
		FROM daily_energy
		WHERE farm_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, farmID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DailyEnergy
	for rows.Next() {
		var e models.DailyEnergy
		if err := rows.Scan(&e.Date, &e.FarmID, &e.TotalMWh, &e.PeakMW, &e.ReadingCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestReadingAge returns how long ago the newest reading was observed.
// Returns false when no readings exist yet.
func (s *Store) LatestReadingAge(now time.Time) (time.Duration, bool, error) {
	// Selecting the column directly keeps its DATETIME decltype; MAX()
	// would hand back a raw string the driver cannot scan as time.
	var observedAt time.Time
	err := s.db.QueryRow(`SELECT observed_at FROM turbine_readings ORDER BY observed_at DESC LIMIT 1`).Scan(&observedAt)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return now.Sub(observedAt), true, nil
}
