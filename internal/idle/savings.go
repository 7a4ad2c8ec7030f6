package idle

import "github.com/finops-kit/costgov/internal/models"

// Flat monthly estimates per resource type, in USD. These are deliberately
// rough: verdicts rank cleanup candidates, they do not bill anyone.
var baseMonthlySavings = map[models.ResourceType]float64{
	models.ResourceComputeInstance:  60,
	models.ResourceDatabaseInstance: 120,
	models.ResourceBlockVolume:      8,
	models.ResourceLoadBalancer:     18,
	models.ResourceElasticIP:        3.6,
	models.ResourceSnapshot:         5,
	models.ResourceImage:            2,
}

// Per-GB-month rates for storage-backed types, used when the observation
// carries a size.
var perGBMonthly = map[models.ResourceType]float64{
	models.ResourceBlockVolume: 0.08,
	models.ResourceSnapshot:    0.05,
}

// estimateMonthlySavings returns the projected monthly saving from removing
// the resource. Sized storage resources use a per-GB rate; everything else
// falls back to the flat per-type figure.
func estimateMonthlySavings(obs models.ResourceObservation) float64 {
	if rate, ok := perGBMonthly[obs.ResourceType]; ok && obs.SizeGB > 0 {
		return rate * float64(obs.SizeGB)
	}
	return baseMonthlySavings[obs.ResourceType]
}
