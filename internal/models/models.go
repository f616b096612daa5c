package models

import (
	"database/sql"
	"time"
)

type FarmStatus string

const (
	StatusOptimal     FarmStatus = "optimal"
	StatusModerate    FarmStatus = "moderate"
	StatusMaintenance FarmStatus = "maintenance"
)

// ValidStatus reports whether s is a known farm/turbine status.
func ValidStatus(s FarmStatus) bool {
	switch s {
	case StatusOptimal, StatusModerate, StatusMaintenance:
		return true
	}
	return false
}

// WindFarm is one wind-farm site. The farm set is fixed for the lifetime of
// the process and seeded from configuration.
type WindFarm struct {
	FarmID       string     `json:"id"`
	Name         string     `json:"name"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	TurbineCount int        `json:"turbine_count"`
	TotalPowerMW float64    `json:"total_power_mw"`
	AvgWindSpeed float64    `json:"avg_wind_speed"` // mph
	Efficiency   int        `json:"efficiency"`     // percent, 0-100
	Status       FarmStatus `json:"status"`
	Region       string     `json:"region"`
	State        string     `json:"state"`
}

type Turbine struct {
	TurbineID   string     `json:"id"`
	FarmID      string     `json:"farm_id"`
	Name        string     `json:"name"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Status      FarmStatus `json:"status"`
	CapacityMW  float64    `json:"capacity_mw"`
	HealthScore float64    `json:"health_score"` // 0-100
}

type TurbineReading struct {
	ID          int64           `json:"id"`
	TurbineID   string          `json:"turbine_id"`
	ObservedAt  time.Time       `json:"observed_at"`
	PowerMW     sql.NullFloat64 `json:"power_mw"`
	WindSpeed   sql.NullFloat64 `json:"wind_speed"`
	RotorRPM    sql.NullFloat64 `json:"rotor_rpm"`
	NacelleTemp sql.NullFloat64 `json:"nacelle_temp"`
	CreatedAt   time.Time       `json:"created_at"`
}

type FleetKPIs struct {
	TotalTurbines       int     `json:"total_turbines"`
	NeedingMaintenance  int     `json:"turbines_needing_maintenance"`
	FleetHealthPct      float64 `json:"fleet_health_percentage"`
	TotalEnergyGWh      float64 `json:"total_energy_production"`
	OptimalTurbines     int     `json:"optimal_turbines"`
	ModerateTurbines    int     `json:"moderate_turbines"`
	MaintenanceTurbines int     `json:"maintenance_turbines"`
}

type EnergyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	ValueMWh  float64   `json:"value"`
}

type DailyEnergy struct {
	Date         time.Time
	FarmID       string
	TotalMWh     sql.NullFloat64
	PeakMW       sql.NullFloat64
	ReadingCount int
}

type AssistantSummary struct {
	Message            string   `json:"message"`
	PriorityItems      []string `json:"priority_items"`
	WeatherStatus      string   `json:"weather_status"`
	PerformanceSummary string   `json:"performance_summary"`
}

// QueryResults is a tabular result set attached to an assistant reply.
type QueryResults struct {
	Columns     []string `json:"columns"`
	ColumnTypes []string `json:"column_types,omitempty"`
	Data        [][]any  `json:"data"`
	RowCount    int      `json:"row_count"`
}

// ChatReply is one assistant response to a sent message.
type ChatReply struct {
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	Content        string        `json:"content"`
	Timestamp      time.Time     `json:"timestamp"`
	SQLQuery       string        `json:"sql_query,omitempty"`
	Results        *QueryResults `json:"query_results,omitempty"`
}
