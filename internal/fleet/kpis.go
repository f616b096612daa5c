package fleet

import (
	"math"

	"github.com/galeops/windfleet/internal/models"
)

// ComputeKPIs aggregates fleet-wide indicators from the turbine set and the
// latest reading per turbine. Turbines without a reading contribute zero
// output but still count toward status totals.
func ComputeKPIs(turbines []models.Turbine, latest map[string]models.TurbineReading) models.FleetKPIs {
	kpis := models.FleetKPIs{TotalTurbines: len(turbines)}
	if len(turbines) == 0 {
		return kpis
	}

	var healthSum, outputSum float64
	for _, t := range turbines {
		switch t.Status {
		case models.StatusOptimal:
			kpis.OptimalTurbines++
		case models.StatusModerate:
			kpis.ModerateTurbines++
		case models.StatusMaintenance:
			kpis.MaintenanceTurbines++
		}
		healthSum += t.HealthScore

		if r, ok := latest[t.TurbineID]; ok && r.PowerMW.Valid {
			outputSum += r.PowerMW.Float64
		}
	}

	kpis.NeedingMaintenance = kpis.MaintenanceTurbines
	kpis.FleetHealthPct = round1(healthSum / float64(len(turbines)))
	kpis.TotalEnergyGWh = round1(outputSum * 24 / 1000)
	return kpis
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
