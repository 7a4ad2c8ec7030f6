// Package store provides the durable record store shared by every
// component: point writes, conditional writes, and range scans over the
// governance entities, plus TTL-based retention pruning.
//
// Two access patterns are supported for every entity: "by key, recent
// first" and "by status, recent first". The conditional CreateAction write
// is the single serialization point that enforces the at-most-one-active
// cleanup action invariant per resource.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/finops-kit/costgov/internal/models"
)

// ErrConflict is returned by CreateAction when an active action for the
// same resource already exists within the cooldown window. This is
// expected concurrency, not a fault.
var ErrConflict = errors.New("conflicting active action")

// ErrNotFound is returned by point reads when no record matches.
var ErrNotFound = errors.New("record not found")

// Store is the durable record store contract consumed by the engine and
// evaluators.
type Store interface {
	// PutCostObservations records immutable daily cost facts. Re-recording
	// the same (service, date) overwrites with identical data; observations
	// are never mutated.
	PutCostObservations(ctx context.Context, obs []models.CostObservation) error

	// CostObservations returns observations for service in [since, until),
	// oldest first.
	CostObservations(ctx context.Context, service string, since, until time.Time) ([]models.CostObservation, error)

	// PutAnomaly records a detected anomaly.
	PutAnomaly(ctx context.Context, a models.CostAnomaly) error

	// AnomaliesSince returns anomalies detected on or after since,
	// recent first.
	AnomaliesSince(ctx context.Context, since time.Time) ([]models.CostAnomaly, error)

	// AdvanceAnomalyStatus moves an anomaly forward; backward transitions
	// are rejected. Anomalies are never retracted.
	AdvanceAnomalyStatus(ctx context.Context, anomalyID string, status models.AnomalyStatus) error

	// PutVerdict records one idle verdict per resource per scan.
	PutVerdict(ctx context.Context, v models.IdleVerdict) error

	// VerdictsSince returns verdicts scanned on or after since, recent first.
	VerdictsSince(ctx context.Context, since time.Time) ([]models.IdleVerdict, error)

	// PutCompliance records one tag compliance verdict.
	PutCompliance(ctx context.Context, rec models.TagComplianceRecord) error

	// ComplianceSince returns compliance records scanned on or after since,
	// recent first.
	ComplianceSince(ctx context.Context, since time.Time) ([]models.TagComplianceRecord, error)

	// CreateAction conditionally creates a cleanup action. The write is
	// rejected with ErrConflict when any action for the same resource is
	// PENDING or EXECUTED with a scheduled date inside the cooldown window.
	CreateAction(ctx context.Context, a models.CleanupAction, cooldown time.Duration) error

	// AdvanceAction moves a PENDING action to a terminal status, persisting
	// the transition together with step audit and execution time. Returns
	// an error if the action is not PENDING (the state machine is strictly
	// forward; terminal states never change).
	AdvanceAction(ctx context.Context, a models.CleanupAction) error

	// ActionsByStatus returns actions in the given status, recent first.
	ActionsByStatus(ctx context.Context, status models.ActionStatus) ([]models.CleanupAction, error)

	// ActionsSince returns actions scheduled on or after since, recent first.
	ActionsSince(ctx context.Context, since time.Time) ([]models.CleanupAction, error)

	// BudgetSnapshot returns the snapshot for a period instance, or
	// ErrNotFound when the instance has not been evaluated yet.
	BudgetSnapshot(ctx context.Context, period models.BudgetPeriod, periodKey string) (*models.BudgetSnapshot, error)

	// PutBudgetSnapshot upserts the snapshot for its period instance.
	PutBudgetSnapshot(ctx context.Context, s models.BudgetSnapshot) error

	// PruneExpired deletes every record whose TTL expiry is at or before
	// now, returning the number of rows removed.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)

	Close() error
}
