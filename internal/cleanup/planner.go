// Package cleanup converts eligible idle verdicts into actions and drives
// each action to exactly one terminal state under the safety gates.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
	"github.com/finops-kit/costgov/internal/store"
)

// retention for persisted actions.
const actionTTL = 90 * 24 * time.Hour

// Store is the subset of the durable store the cleanup package needs.
type Store interface {
	CreateAction(ctx context.Context, a models.CleanupAction, cooldown time.Duration) error
	AdvanceAction(ctx context.Context, a models.CleanupAction) error
	ActionsByStatus(ctx context.Context, status models.ActionStatus) ([]models.CleanupAction, error)
}

// actionKinds maps each resource type to the operation that reclaims it.
var actionKinds = map[models.ResourceType]models.ActionKind{
	models.ResourceComputeInstance:  models.ActionStop,
	models.ResourceDatabaseInstance: models.ActionStop,
	models.ResourceBlockVolume:      models.ActionDeleteVolume,
	models.ResourceLoadBalancer:     models.ActionDeleteLB,
	models.ResourceElasticIP:        models.ActionReleaseAddress,
	models.ResourceSnapshot:         models.ActionDeleteSnapshot,
	models.ResourceImage:            models.ActionDeregisterImage,
}

// KindFor returns the action kind for a resource type.
func KindFor(t models.ResourceType) (models.ActionKind, bool) {
	k, ok := actionKinds[t]
	return k, ok
}

// Planner creates PENDING actions from verdicts. The conditional store
// write enforces the at-most-one-active-action rule; a conflict means an
// action for the resource already exists inside the cooldown window and is
// counted, not reported as a fault.
type Planner struct {
	store Store
	cfg   policy.CleanupPolicy

	// newID overrides action ID generation in tests.
	newID func() string
}

// NewPlanner returns a Planner under cfg.
func NewPlanner(s Store, cfg policy.CleanupPolicy) *Planner {
	return &Planner{store: s, cfg: cfg, newID: uuid.NewString}
}

// PlanStats summarizes one planning pass.
type PlanStats struct {
	Created    int
	Conflicted int
	Ineligible int
}

// Plan creates one PENDING action per cleanup-eligible verdict and returns
// the created actions. Database instances map to STOP like compute: an idle
// database is stopped, never destroyed.
func (p *Planner) Plan(ctx context.Context, verdicts []models.IdleVerdict) ([]models.CleanupAction, PlanStats, error) {
	cooldown := time.Duration(p.cfg.CooldownHours) * time.Hour

	var created []models.CleanupAction
	var stats PlanStats
	for _, v := range verdicts {
		if !v.CleanupEligible() {
			stats.Ineligible++
			continue
		}
		kind, ok := KindFor(v.ResourceType)
		if !ok {
			return created, stats, fmt.Errorf("no action kind for resource type %q", v.ResourceType)
		}

		a := models.CleanupAction{
			ActionID:                p.newID(),
			ScheduledDate:           v.ScanDate,
			ResourceID:              v.ResourceID,
			ResourceType:            v.ResourceType,
			Region:                  v.Region,
			Kind:                    kind,
			Status:                  models.ActionPending,
			DryRun:                  p.cfg.DryRun,
			Reason:                  v.Reason,
			EstimatedMonthlySavings: v.EstimatedMonthlySavings,
			Expiry:                  v.ScanDate.Add(actionTTL),
		}

		err := p.store.CreateAction(ctx, a, cooldown)
		if errors.Is(err, store.ErrConflict) {
			log.Debug().
				Str("resource_id", v.ResourceID).
				Msg("active action inside cooldown, not rescheduling")
			stats.Conflicted++
			continue
		}
		if err != nil {
			return created, stats, fmt.Errorf("create action for %s: %w", v.ResourceID, err)
		}
		created = append(created, a)
		stats.Created++
	}
	return created, stats, nil
}
