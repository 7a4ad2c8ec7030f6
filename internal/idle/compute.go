package idle

import (
	"fmt"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// ComputeCPUCheck flags running compute instances whose CPU stayed below the
// configured threshold every single day of the observation window. One day
// above the threshold disqualifies idleness: a weekly batch host that spikes
// once is doing real work.
type ComputeCPUCheck struct{}

func (ComputeCPUCheck) Type() models.ResourceType { return models.ResourceComputeInstance }
func (ComputeCPUCheck) Name() string              { return "Compute instance CPU idle" }

func (ComputeCPUCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if !windowComplete(obs, cfg) {
		return Assessment{Reason: reasonInsufficientWindow}
	}
	peak := maxSample(obs)
	if peak >= cfg.CPUThreshold {
		return Assessment{Reason: fmt.Sprintf("peak CPU %.1f%% at or above %.1f%%", peak, cfg.CPUThreshold)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("peak CPU %.1f%% below %.1f%% for %d days", peak, cfg.CPUThreshold, len(obs.Samples)),
	}
}

// DatabaseConnectionsCheck flags database instances that saw fewer
// connections than the threshold on every day of the window. Daily samples
// are maxima, so a single nightly client counts as activity.
type DatabaseConnectionsCheck struct{}

func (DatabaseConnectionsCheck) Type() models.ResourceType { return models.ResourceDatabaseInstance }
func (DatabaseConnectionsCheck) Name() string              { return "Database instance connection idle" }

func (DatabaseConnectionsCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if !windowComplete(obs, cfg) {
		return Assessment{Reason: reasonInsufficientWindow}
	}
	peak := maxSample(obs)
	if peak >= cfg.ConnectionThreshold {
		return Assessment{Reason: fmt.Sprintf("peak connections %.0f at or above %.0f", peak, cfg.ConnectionThreshold)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("peak connections %.0f below %.0f for %d days", peak, cfg.ConnectionThreshold, len(obs.Samples)),
	}
}
