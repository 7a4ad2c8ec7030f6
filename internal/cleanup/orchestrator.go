package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/notify"
	"github.com/finops-kit/costgov/internal/policy"
)

// Executor is the destructive collaborator. Every method addresses one
// resource in one region and returns an ExecutionError on failure.
type Executor interface {
	StopInstance(ctx context.Context, region, instanceID string) error
	TerminateInstance(ctx context.Context, region, instanceID string) error
	StopDatabase(ctx context.Context, region, dbID string) error
	SnapshotInstanceVolumes(ctx context.Context, region, instanceID string) ([]string, error)
	SnapshotVolume(ctx context.Context, region, volumeID string) (string, error)
	DeleteVolume(ctx context.Context, region, volumeID string) error
	ReleaseAddress(ctx context.Context, region, allocationID string) error
	DeleteLoadBalancer(ctx context.Context, region, arn string) error
	DeleteSnapshot(ctx context.Context, region, snapshotID string) error
	DeregisterImage(ctx context.Context, region, imageID string) error
}

// Orchestrator drives every PENDING action to exactly one terminal state.
type Orchestrator struct {
	store    Store
	exec     Executor
	notifier notify.Notifier
	cfg      policy.CleanupPolicy

	// now overrides the clock in tests.
	now func() time.Time
}

// NewOrchestrator returns an Orchestrator under cfg.
func NewOrchestrator(s Store, exec Executor, n notify.Notifier, cfg policy.CleanupPolicy) *Orchestrator {
	return &Orchestrator{store: s, exec: exec, notifier: n, cfg: cfg, now: time.Now}
}

// RunStats counts terminal outcomes of one orchestration pass.
type RunStats struct {
	DryRun   int
	Executed int
	Skipped  int
	Failed   int
}

// Run resolves all PENDING actions. eligible maps resource ID to this
// cycle's verdict; an action whose resource has no eligible verdict anymore
// is skipped. Store failures abort the pass: an action whose terminal
// state cannot be persisted must not be followed by more destructive work.
func (o *Orchestrator) Run(ctx context.Context, eligible map[string]models.IdleVerdict) (RunStats, error) {
	pending, err := o.store.ActionsByStatus(ctx, models.ActionPending)
	if err != nil {
		return RunStats{}, fmt.Errorf("list pending actions: %w", err)
	}

	var stats RunStats
	for _, a := range pending {
		outcome, err := o.resolve(ctx, a, eligible)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case models.ActionDryRunOnly:
			stats.DryRun++
		case models.ActionExecuted:
			stats.Executed++
		case models.ActionSkipped:
			stats.Skipped++
		case models.ActionFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// resolve drives one action to its terminal state and persists the
// transition. The dry-run check runs before anything destructive; the
// eligibility gates run before that so a dry-run records what a real run
// would have decided.
func (o *Orchestrator) resolve(ctx context.Context, a models.CleanupAction, eligible map[string]models.IdleVerdict) (models.ActionStatus, error) {
	if a.DryRun || o.cfg.DryRun {
		a.Status = models.ActionDryRunOnly
		a.Reason = fmt.Sprintf("dry run: would %s (%s)", a.Kind, o.gateAssessment(a, eligible))
		return a.Status, o.advance(ctx, a)
	}

	if reason, ok := o.gatesPass(a, eligible); !ok {
		a.Status = models.ActionSkipped
		a.Reason = reason
		return a.Status, o.advance(ctx, a)
	}

	a.Steps = nil
	execErr := o.execute(ctx, &a)
	if execErr != nil {
		a.Status = models.ActionFailed
		a.Reason = execErr.Error()
		if err := o.advance(ctx, a); err != nil {
			return a.Status, err
		}
		o.publish(ctx, a, fmt.Sprintf("cleanup failed: %s %s", a.Kind, a.ResourceID))
		return a.Status, nil
	}

	a.Status = models.ActionExecuted
	a.ExecutedAt = o.now().UTC()
	if err := o.advance(ctx, a); err != nil {
		return a.Status, err
	}
	o.publish(ctx, a, fmt.Sprintf("cleanup executed: %s %s", a.Kind, a.ResourceID))
	return a.Status, nil
}

// gatesPass evaluates the eligibility gates for EXECUTED. The cooldown gate
// was enforced at creation time by the conditional write; re-checking here
// would only race against it.
func (o *Orchestrator) gatesPass(a models.CleanupAction, eligible map[string]models.IdleVerdict) (string, bool) {
	v, ok := eligible[a.ResourceID]
	if !ok {
		return "resource not observed this cycle", false
	}
	if !v.CleanupEligible() {
		return fmt.Sprintf("resource no longer eligible: %s", v.Reason), false
	}
	if !o.cfg.EnableAutoCleanup {
		return "auto cleanup disabled by policy", false
	}
	return "", true
}

func (o *Orchestrator) gateAssessment(a models.CleanupAction, eligible map[string]models.IdleVerdict) string {
	if reason, ok := o.gatesPass(a, eligible); !ok {
		return "gates would skip: " + reason
	}
	return "gates would pass"
}

// execute performs the destructive work for a, recording one StepResult per
// sub-step. Composite kinds take their safety snapshot first; a snapshot
// failure aborts before the destroy step is attempted.
func (o *Orchestrator) execute(ctx context.Context, a *models.CleanupAction) error {
	switch a.Kind {
	case models.ActionStop:
		if a.ResourceType == models.ResourceDatabaseInstance {
			return o.step(ctx, a, "stop-database", func() error {
				return o.exec.StopDatabase(ctx, a.Region, a.ResourceID)
			})
		}
		return o.step(ctx, a, "stop-instance", func() error {
			return o.exec.StopInstance(ctx, a.Region, a.ResourceID)
		})

	case models.ActionTerminate:
		err := o.step(ctx, a, "snapshot-volumes", func() error {
			_, err := o.exec.SnapshotInstanceVolumes(ctx, a.Region, a.ResourceID)
			return err
		})
		if err != nil {
			return err
		}
		return o.step(ctx, a, "terminate", func() error {
			return o.exec.TerminateInstance(ctx, a.Region, a.ResourceID)
		})

	case models.ActionDeleteVolume:
		var snapID string
		err := o.step(ctx, a, "snapshot", func() error {
			var err error
			snapID, err = o.exec.SnapshotVolume(ctx, a.Region, a.ResourceID)
			return err
		})
		if err != nil {
			return err
		}
		log.Info().Str("volume_id", a.ResourceID).Str("snapshot_id", snapID).
			Msg("pre-deletion snapshot completed")
		return o.step(ctx, a, "delete", func() error {
			return o.exec.DeleteVolume(ctx, a.Region, a.ResourceID)
		})

	case models.ActionReleaseAddress:
		return o.step(ctx, a, "release", func() error {
			return o.exec.ReleaseAddress(ctx, a.Region, a.ResourceID)
		})

	case models.ActionDeleteLB:
		return o.step(ctx, a, "delete", func() error {
			return o.exec.DeleteLoadBalancer(ctx, a.Region, a.ResourceID)
		})

	case models.ActionDeleteSnapshot:
		return o.step(ctx, a, "delete", func() error {
			return o.exec.DeleteSnapshot(ctx, a.Region, a.ResourceID)
		})

	case models.ActionDeregisterImage:
		return o.step(ctx, a, "deregister", func() error {
			return o.exec.DeregisterImage(ctx, a.Region, a.ResourceID)
		})

	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// step runs fn and appends its audit record to the action.
func (o *Orchestrator) step(ctx context.Context, a *models.CleanupAction, name string, fn func() error) error {
	err := fn()
	res := models.StepResult{Step: name, OK: err == nil, FinishedAt: o.now().UTC()}
	if err != nil {
		res.Detail = err.Error()
	}
	a.Steps = append(a.Steps, res)
	return err
}

func (o *Orchestrator) advance(ctx context.Context, a models.CleanupAction) error {
	if err := o.store.AdvanceAction(ctx, a); err != nil {
		return fmt.Errorf("persist %s for action %s: %w", a.Status, a.ActionID, err)
	}
	log.Info().
		Str("action_id", a.ActionID).
		Str("resource_id", a.ResourceID).
		Str("kind", string(a.Kind)).
		Str("status", string(a.Status)).
		Msg("cleanup action resolved")
	return nil
}

// publish delivers a cleanup notification. Delivery failure is logged and
// swallowed; the action outcome is already durable.
func (o *Orchestrator) publish(ctx context.Context, a models.CleanupAction, subject string) {
	if o.notifier == nil {
		return
	}
	msg := fmt.Sprintf("action %s: %s %s (%s), status %s, estimated savings $%.2f/mo",
		a.ActionID, a.Kind, a.ResourceID, a.Region, a.Status, a.EstimatedMonthlySavings)
	if err := o.notifier.Publish(ctx, notify.TopicCleanup, subject, msg); err != nil {
		log.Warn().Err(err).Str("action_id", a.ActionID).Msg("cleanup notification failed")
	}
}
