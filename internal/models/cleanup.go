package models

import "time"

// ActionKind is the destructive operation a cleanup action performs.
type ActionKind string

const (
	ActionStop             ActionKind = "STOP"
	ActionTerminate        ActionKind = "TERMINATE"
	ActionDeleteVolume     ActionKind = "DELETE_VOLUME"
	ActionReleaseAddress   ActionKind = "RELEASE_ADDRESS"
	ActionDeleteLB         ActionKind = "DELETE_LB"
	ActionDeleteSnapshot   ActionKind = "DELETE_SNAPSHOT"
	ActionDeregisterImage  ActionKind = "DEREGISTER_IMAGE"
)

// ActionStatus is the lifecycle state of a CleanupAction. PENDING is the
// only non-terminal state; the orchestrator drives every action to exactly
// one terminal state per cycle.
type ActionStatus string

const (
	ActionPending    ActionStatus = "PENDING"
	ActionDryRunOnly ActionStatus = "DRY_RUN_ONLY"
	ActionExecuted   ActionStatus = "EXECUTED"
	ActionSkipped    ActionStatus = "SKIPPED"
	ActionFailed     ActionStatus = "FAILED"
)

// Terminal reports whether s is a terminal state.
func (s ActionStatus) Terminal() bool {
	return s != ActionPending
}

// Active reports whether an action in this state blocks creation of a new
// action for the same resource within the cooldown window.
func (s ActionStatus) Active() bool {
	return s == ActionPending || s == ActionExecuted
}

// StepResult records one step of a composite action (e.g. the snapshot step
// of a snapshot-then-delete sequence) so partial failure is auditable.
type StepResult struct {
	Step       string    `json:"step"`
	OK         bool      `json:"ok"`
	Detail     string    `json:"detail,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// CleanupAction is the unit of destructive work. It references exactly one
// IdleVerdict that was idle and not excluded at creation time, and is the
// only entity mutated after creation (status advancement only).
type CleanupAction struct {
	ActionID      string       `json:"action_id"`
	ScheduledDate time.Time    `json:"scheduled_date"`
	ResourceID    string       `json:"resource_id"`
	ResourceType  ResourceType `json:"resource_type"`
	// Region is where the executor must act. Empty for global resources.
	Region string       `json:"region,omitempty"`
	Kind   ActionKind   `json:"action_kind"`
	Status        ActionStatus `json:"status"`
	DryRun        bool         `json:"dry_run"`
	Reason        string       `json:"reason"`
	EstimatedMonthlySavings float64 `json:"estimated_monthly_savings_usd"`
	// Steps audits the sub-steps of composite actions, in execution order.
	Steps      []StepResult `json:"steps,omitempty"`
	ExecutedAt time.Time    `json:"executed_at,omitzero"`
	Expiry     time.Time    `json:"expiry"`
}
