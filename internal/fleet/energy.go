package fleet

import (
	"math/rand"
	"time"

	"github.com/galeops/windfleet/internal/models"
)

const baseOutputMWh = 10.0

// DiurnalMultiplier models the daily output pattern: a daytime ramp peaking
// at midday and a flat overnight floor.
func DiurnalMultiplier(hour int) float64 {
	if hour < 6 || hour > 18 {
		return 0.7
	}
	ramp := float64(18-hour) / 6
	if hour <= 12 {
		ramp = float64(hour-6) / 6
	}
	return 1.5 + 0.5*ramp
}

// SimulatedHistory generates hourly energy points ending at now, used when
// the store has no rollup data yet.
func SimulatedHistory(now time.Time, hours int, seed int64) []models.EnergyPoint {
	rng := rand.New(rand.NewSource(seed))

	points := make([]models.EnergyPoint, 0, hours)
	for i := 0; i < hours; i++ {
		ts := now.Add(-time.Duration(hours-i-1) * time.Hour)
		value := baseOutputMWh * DiurnalMultiplier(ts.Hour()) * (0.9 + rng.Float64()*0.2)
		points = append(points, models.EnergyPoint{
			Timestamp: ts,
			ValueMWh:  round2(value),
		})
	}
	return points
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
