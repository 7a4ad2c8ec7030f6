package idle

import (
	"fmt"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// UnattachedVolumeCheck flags block volumes that have sat unattached for at
// least the configured number of days. The collector only observes volumes
// in the detached state, so age here is the lower bound on detachment time.
type UnattachedVolumeCheck struct{}

func (UnattachedVolumeCheck) Type() models.ResourceType { return models.ResourceBlockVolume }
func (UnattachedVolumeCheck) Name() string              { return "Unattached block volume" }

func (UnattachedVolumeCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if obs.AgeDays < cfg.UnattachedDays {
		return Assessment{Reason: fmt.Sprintf("unattached %dd, below %dd", obs.AgeDays, cfg.UnattachedDays)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("unattached for at least %dd", obs.AgeDays),
	}
}

// SnapshotAgeCheck flags snapshots older than the configured age.
type SnapshotAgeCheck struct{}

func (SnapshotAgeCheck) Type() models.ResourceType { return models.ResourceSnapshot }
func (SnapshotAgeCheck) Name() string              { return "Aged snapshot" }

func (SnapshotAgeCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if obs.AgeDays < cfg.SnapshotAgeDays {
		return Assessment{Reason: fmt.Sprintf("age %dd, below %dd", obs.AgeDays, cfg.SnapshotAgeDays)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("snapshot is %dd old", obs.AgeDays),
	}
}

// ImageAgeCheck flags machine images older than the configured age.
type ImageAgeCheck struct{}

func (ImageAgeCheck) Type() models.ResourceType { return models.ResourceImage }
func (ImageAgeCheck) Name() string              { return "Aged machine image" }

func (ImageAgeCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if obs.AgeDays < cfg.ImageAgeDays {
		return Assessment{Reason: fmt.Sprintf("age %dd, below %dd", obs.AgeDays, cfg.ImageAgeDays)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("image is %dd old", obs.AgeDays),
	}
}
