package fleet

import (
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/galeops/windfleet/internal/models"
)

const defaultCapacityMW = 3.0

// Simulator generates a synthetic turbine fleet and telemetry for it. The
// turbine layout is deterministic for a given seed so restarts keep ids and
// positions stable.
type Simulator struct {
	farms []models.WindFarm
	seed  int64
}

func NewSimulator(farms []models.WindFarm, seed int64) *Simulator {
	return &Simulator{farms: farms, seed: seed}
}

// Turbines lays out the per-farm turbines: jittered positions around the
// farm site and statuses weighted toward optimal.
func (s *Simulator) Turbines() []models.Turbine {
	rng := rand.New(rand.NewSource(s.seed))

	var turbines []models.Turbine
	id := 1
	for _, farm := range s.farms {
		prefix := farmPrefix(farm.FarmID)
		for i := 0; i < farm.TurbineCount; i++ {
			status := weightedStatus(rng)
			health := 70 + rng.Float64()*30
			if status != models.StatusOptimal {
				health = 40 + rng.Float64()*40
			}

			turbines = append(turbines, models.Turbine{
				TurbineID:   fmt.Sprintf("%s-%03d", prefix, id),
				FarmID:      farm.FarmID,
				Name:        fmt.Sprintf("%s-%03d", prefix, id),
				Latitude:    farm.Latitude + (rng.Float64()-0.5)*0.6,
				Longitude:   farm.Longitude + (rng.Float64()-0.5)*0.6,
				Status:      status,
				CapacityMW:  defaultCapacityMW,
				HealthScore: health,
			})
			id++
		}
	}
	return turbines
}

// farmPrefix takes the leading id segment as the turbine name prefix,
// e.g. "tx-panhandle" -> "TX".
func farmPrefix(farmID string) string {
	if i := strings.Index(farmID, "-"); i > 0 {
		return strings.ToUpper(farmID[:i])
	}
	return strings.ToUpper(farmID)
}

func weightedStatus(rng *rand.Rand) models.FarmStatus {
	switch r := rng.Float64(); {
	case r < 0.75:
		return models.StatusOptimal
	case r < 0.90:
		return models.StatusModerate
	default:
		return models.StatusMaintenance
	}
}

// Readings produces one telemetry reading per turbine at the given time.
// Turbines in maintenance report zero output.
func (s *Simulator) Readings(turbines []models.Turbine, at time.Time) []models.TurbineReading {
	rng := rand.New(rand.NewSource(s.seed ^ at.Unix()))

	readings := make([]models.TurbineReading, 0, len(turbines))
	for _, t := range turbines {
		r := models.TurbineReading{
			TurbineID:  t.TurbineID,
			ObservedAt: at,
		}

		wind := 8 + rng.Float64()*12
		r.WindSpeed = sql.NullFloat64{Float64: wind, Valid: true}
		r.NacelleTemp = sql.NullFloat64{Float64: 30 + rng.Float64()*25, Valid: true}

		if t.Status == models.StatusMaintenance {
			r.PowerMW = sql.NullFloat64{Float64: 0, Valid: true}
			r.RotorRPM = sql.NullFloat64{Float64: 0, Valid: true}
		} else {
			factor := DiurnalMultiplier(at.Hour()) / 2.0 * (0.9 + rng.Float64()*0.2)
			if factor > 1 {
				factor = 1
			}
			r.PowerMW = sql.NullFloat64{Float64: t.CapacityMW * factor, Valid: true}
			r.RotorRPM = sql.NullFloat64{Float64: 8 + wind*0.6, Valid: true}
		}

		readings = append(readings, r)
	}
	return readings
}
