package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finops-kit/costgov/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "costgov.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCostObservations_RoundTripAndRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := []models.CostObservation{
		{Service: "compute", Date: day("2026-08-01"), Amount: 40},
		{Service: "compute", Date: day("2026-08-02"), Amount: 42},
		{Service: "compute", Date: day("2026-08-03"), Amount: 55},
		{Service: "storage", Date: day("2026-08-02"), Amount: 7},
	}
	require.NoError(t, s.PutCostObservations(ctx, obs))

	got, err := s.CostObservations(ctx, "compute", day("2026-08-02"), day("2026-08-04"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 42.0, got[0].Amount)
	assert.Equal(t, 55.0, got[1].Amount)

	// Re-recording the same (service, date) is an idempotent overwrite.
	require.NoError(t, s.PutCostObservations(ctx, obs[:1]))
	got, err = s.CostObservations(ctx, "compute", day("2026-08-01"), day("2026-08-02"))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestAnomaly_ForwardOnlyStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := models.CostAnomaly{
		AnomalyID:    "2026-08-30-compute",
		DetectedDate: day("2026-08-30"),
		Service:      "compute",
		Severity:     models.SeverityMedium,
		Status:       models.AnomalyOpen,
		DetectedAt:   time.Now().UTC(),
		Expiry:       time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, s.PutAnomaly(ctx, a))

	require.NoError(t, s.AdvanceAnomalyStatus(ctx, a.AnomalyID, models.AnomalyAcknowledged))
	require.NoError(t, s.AdvanceAnomalyStatus(ctx, a.AnomalyID, models.AnomalyResolved))

	// Backward and repeated transitions are rejected: anomalies are never retracted.
	assert.Error(t, s.AdvanceAnomalyStatus(ctx, a.AnomalyID, models.AnomalyOpen))
	assert.Error(t, s.AdvanceAnomalyStatus(ctx, a.AnomalyID, models.AnomalyResolved))

	assert.ErrorIs(t, s.AdvanceAnomalyStatus(ctx, "missing", models.AnomalyResolved), ErrNotFound)
}

func TestCreateAction_ConflictWithinCooldown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cooldown := 168 * time.Hour

	first := models.CleanupAction{
		ActionID:      "a-1",
		ScheduledDate: day("2026-08-20"),
		ResourceID:    "i-abc",
		ResourceType:  models.ResourceComputeInstance,
		Kind:          models.ActionStop,
		Status:        models.ActionPending,
		Expiry:        day("2026-09-20"),
	}
	require.NoError(t, s.CreateAction(ctx, first, cooldown))

	// Second action for the same resource within the cooldown window.
	second := first
	second.ActionID = "a-2"
	second.ScheduledDate = day("2026-08-22")
	err := s.CreateAction(ctx, second, cooldown)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	// A different resource is unaffected.
	other := first
	other.ActionID = "a-3"
	other.ResourceID = "i-def"
	assert.NoError(t, s.CreateAction(ctx, other, cooldown))

	// Once the first action reaches a non-active terminal state, the guard lifts.
	first.Status = models.ActionSkipped
	first.Reason = "gates failed"
	require.NoError(t, s.AdvanceAction(ctx, first))
	assert.NoError(t, s.CreateAction(ctx, second, cooldown))
}

func TestCreateAction_ExecutedStillBlocksUntilCooldownElapses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cooldown := 168 * time.Hour

	a := models.CleanupAction{
		ActionID:      "a-1",
		ScheduledDate: day("2026-08-01"),
		ResourceID:    "vol-1",
		ResourceType:  models.ResourceBlockVolume,
		Kind:          models.ActionDeleteVolume,
		Status:        models.ActionPending,
		Expiry:        day("2026-09-01"),
	}
	require.NoError(t, s.CreateAction(ctx, a, cooldown))

	a.Status = models.ActionExecuted
	a.ExecutedAt = day("2026-08-01").Add(2 * time.Hour)
	require.NoError(t, s.AdvanceAction(ctx, a))

	// Inside the cooldown window: EXECUTED still blocks.
	blocked := a
	blocked.ActionID = "a-2"
	blocked.Status = models.ActionPending
	blocked.ScheduledDate = day("2026-08-05")
	assert.ErrorIs(t, s.CreateAction(ctx, blocked, cooldown), ErrConflict)

	// After the cooldown has fully elapsed, creation succeeds again.
	later := blocked
	later.ActionID = "a-3"
	later.ScheduledDate = day("2026-08-20")
	assert.NoError(t, s.CreateAction(ctx, later, cooldown))
}

func TestAdvanceAction_OnlyFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := models.CleanupAction{
		ActionID:      "a-1",
		ScheduledDate: day("2026-08-20"),
		ResourceID:    "i-abc",
		ResourceType:  models.ResourceComputeInstance,
		Kind:          models.ActionStop,
		Status:        models.ActionPending,
		Expiry:        day("2026-09-20"),
	}
	require.NoError(t, s.CreateAction(ctx, a, time.Hour))

	// Non-terminal target is rejected outright.
	bad := a
	bad.Status = models.ActionPending
	assert.Error(t, s.AdvanceAction(ctx, bad))

	a.Status = models.ActionDryRunOnly
	a.Reason = "dry run enabled"
	require.NoError(t, s.AdvanceAction(ctx, a))

	// Terminal states never change.
	a.Status = models.ActionExecuted
	assert.Error(t, s.AdvanceAction(ctx, a))

	got, err := s.ActionsByStatus(ctx, models.ActionDryRunOnly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dry run enabled", got[0].Reason)
	assert.True(t, got[0].ExecutedAt.IsZero())
}

func TestActions_StepAuditRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := models.CleanupAction{
		ActionID:      "a-1",
		ScheduledDate: day("2026-08-20"),
		ResourceID:    "vol-9",
		ResourceType:  models.ResourceBlockVolume,
		Kind:          models.ActionDeleteVolume,
		Status:        models.ActionPending,
		Expiry:        day("2026-09-20"),
	}
	require.NoError(t, s.CreateAction(ctx, a, time.Hour))

	a.Status = models.ActionFailed
	a.Reason = "snapshot step failed"
	a.Steps = []models.StepResult{
		{Step: "snapshot", OK: false, Detail: "SnapshotCreationPerVolumeRateExceeded", FinishedAt: time.Now().UTC()},
	}
	require.NoError(t, s.AdvanceAction(ctx, a))

	got, err := s.ActionsByStatus(ctx, models.ActionFailed)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Steps, 1)
	assert.Equal(t, "snapshot", got[0].Steps[0].Step)
	assert.False(t, got[0].Steps[0].OK)
}

func TestBudgetSnapshot_UpsertAndNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BudgetSnapshot(ctx, models.PeriodMonthly, "2026-08")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := models.BudgetSnapshot{
		Period:             models.PeriodMonthly,
		PeriodKey:          "2026-08",
		AsOfDate:           day("2026-08-30"),
		SpendToDate:        164,
		BudgetLimit:        200,
		PctConsumed:        82,
		BreachedThresholds: []int{80},
		Expiry:             day("2026-12-01"),
	}
	require.NoError(t, s.PutBudgetSnapshot(ctx, snap))

	snap.SpendToDate = 205
	snap.PctConsumed = 102.5
	snap.BreachedThresholds = []int{80, 100}
	require.NoError(t, s.PutBudgetSnapshot(ctx, snap))

	got, err := s.BudgetSnapshot(ctx, models.PeriodMonthly, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, []int{80, 100}, got.BreachedThresholds)
	assert.True(t, got.Breached(80))
	assert.False(t, got.Breached(models.ProjectionThreshold))
}

func TestPruneExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := day("2026-08-31")

	require.NoError(t, s.PutVerdict(ctx, models.IdleVerdict{
		ResourceID: "i-old", ScanDate: day("2026-07-01"),
		ResourceType: models.ResourceComputeInstance, Expiry: day("2026-08-01"),
	}))
	require.NoError(t, s.PutVerdict(ctx, models.IdleVerdict{
		ResourceID: "i-new", ScanDate: day("2026-08-30"),
		ResourceType: models.ResourceComputeInstance, Expiry: day("2026-09-30"),
	}))

	n, err := s.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.VerdictsSince(ctx, day("2026-01-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "i-new", got[0].ResourceID)
}

func TestComplianceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := models.TagComplianceRecord{
		ResourceARN:     "arn:aws:ec2:us-east-1:111122223333:instance/i-abc",
		ResourceType:    models.ResourceComputeInstance,
		ScanDate:        day("2026-08-30"),
		Status:          models.TagViolation,
		MissingRequired: []string{"CostCenter"},
		InvalidTags: []models.InvalidTag{
			{Key: "Environment", Value: "prod", AllowedValues: []string{"Production", "Staging"}},
		},
		Expiry: day("2026-11-30"),
	}
	require.NoError(t, s.PutCompliance(ctx, rec))

	got, err := s.ComplianceSince(ctx, day("2026-08-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TagViolation, got[0].Status)
	assert.Equal(t, []string{"CostCenter"}, got[0].MissingRequired)
	require.Len(t, got[0].InvalidTags, 1)
	assert.Equal(t, "Environment", got[0].InvalidTags[0].Key)
}
