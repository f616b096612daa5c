package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/galeops/windfleet/internal/models"
)

// Config holds the injected wind-farm set. The dashboard core never embeds
// farm data; it only requires read access to a set shaped like this.
type Config struct {
	Farms []Farm `yaml:"farms"`
}

type Farm struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	TurbineCount int     `yaml:"turbine_count"`
	TotalPowerMW float64 `yaml:"total_power_mw"`
	AvgWindSpeed float64 `yaml:"avg_wind_speed"`
	Efficiency   int     `yaml:"efficiency"`
	Status       string  `yaml:"status"`
	Region       string  `yaml:"region"`
	State        string  `yaml:"state"`
}

// Default returns the built-in six-farm US fleet.
func Default() *Config {
	return &Config{
		Farms: []Farm{
			{ID: "tx-panhandle", Name: "Texas Panhandle", Latitude: 35.2, Longitude: -101.8, TurbineCount: 25, TotalPowerMW: 75.0, AvgWindSpeed: 18.5, Efficiency: 94, Status: "optimal", Region: "Great Plains", State: "Texas"},
			{ID: "ia-corn-belt", Name: "Iowa Corn Belt", Latitude: 42.0, Longitude: -93.5, TurbineCount: 18, TotalPowerMW: 54.0, AvgWindSpeed: 16.2, Efficiency: 91, Status: "optimal", Region: "Midwest", State: "Iowa"},
			{ID: "ca-tehachapi", Name: "Tehachapi Pass", Latitude: 35.1, Longitude: -118.3, TurbineCount: 15, TotalPowerMW: 45.0, AvgWindSpeed: 15.8, Efficiency: 88, Status: "moderate", Region: "California", State: "California"},
			{ID: "wy-medicine-bow", Name: "Medicine Bow", Latitude: 41.9, Longitude: -106.3, TurbineCount: 12, TotalPowerMW: 36.0, AvgWindSpeed: 19.1, Efficiency: 92, Status: "optimal", Region: "Rocky Mountains", State: "Wyoming"},
			{ID: "ok-wind-corridor", Name: "Oklahoma Wind Corridor", Latitude: 35.5, Longitude: -98.5, TurbineCount: 20, TotalPowerMW: 60.0, AvgWindSpeed: 17.4, Efficiency: 90, Status: "optimal", Region: "Great Plains", State: "Oklahoma"},
			{ID: "il-prairie", Name: "Illinois Prairie", Latitude: 40.8, Longitude: -89.4, TurbineCount: 10, TotalPowerMW: 30.0, AvgWindSpeed: 14.6, Efficiency: 85, Status: "maintenance", Region: "Midwest", State: "Illinois"},
		},
	}
}

// Load reads a farm configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Farms) == 0 {
		return fmt.Errorf("config: no farms defined")
	}

	seen := make(map[string]bool)
	for i, f := range c.Farms {
		if f.ID == "" {
			return fmt.Errorf("config: farm %d has empty id", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("config: duplicate farm id %q", f.ID)
		}
		seen[f.ID] = true

		if f.Latitude < -90 || f.Latitude > 90 {
			return fmt.Errorf("config: farm %s: latitude %.4f out of range", f.ID, f.Latitude)
		}
		if f.Longitude < -180 || f.Longitude > 180 {
			return fmt.Errorf("config: farm %s: longitude %.4f out of range", f.ID, f.Longitude)
		}
		if f.TurbineCount < 0 {
			return fmt.Errorf("config: farm %s: negative turbine count", f.ID)
		}
		if f.Efficiency < 0 || f.Efficiency > 100 {
			return fmt.Errorf("config: farm %s: efficiency %d out of range", f.ID, f.Efficiency)
		}
		if !models.ValidStatus(models.FarmStatus(f.Status)) {
			return fmt.Errorf("config: farm %s: unknown status %q", f.ID, f.Status)
		}
	}
	return nil
}

// WindFarms converts the configuration into model records.
func (c *Config) WindFarms() []models.WindFarm {
	farms := make([]models.WindFarm, 0, len(c.Farms))
	for _, f := range c.Farms {
		farms = append(farms, models.WindFarm{
			FarmID:       f.ID,
			Name:         f.Name,
			Latitude:     f.Latitude,
			Longitude:    f.Longitude,
			TurbineCount: f.TurbineCount,
			TotalPowerMW: f.TotalPowerMW,
			AvgWindSpeed: f.AvgWindSpeed,
			Efficiency:   f.Efficiency,
			Status:       models.FarmStatus(f.Status),
			Region:       f.Region,
			State:        f.State,
		})
	}
	return farms
}
