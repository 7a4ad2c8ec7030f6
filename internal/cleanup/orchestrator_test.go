package cleanup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/notify"
	"github.com/finops-kit/costgov/internal/policy"
	"github.com/finops-kit/costgov/internal/store"
)

var scanDate = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

type fakeExecutor struct {
	calls       []string
	snapshotErr error
	stopErr     error
}

func (f *fakeExecutor) record(call string, err error) error {
	f.calls = append(f.calls, call)
	return err
}

func (f *fakeExecutor) StopInstance(_ context.Context, _, id string) error {
	return f.record("stop-instance:"+id, f.stopErr)
}
func (f *fakeExecutor) TerminateInstance(_ context.Context, _, id string) error {
	return f.record("terminate:"+id, nil)
}
func (f *fakeExecutor) StopDatabase(_ context.Context, _, id string) error {
	return f.record("stop-database:"+id, nil)
}
func (f *fakeExecutor) SnapshotInstanceVolumes(_ context.Context, _, id string) ([]string, error) {
	return []string{"snap-a"}, f.record("snapshot-volumes:"+id, f.snapshotErr)
}
func (f *fakeExecutor) SnapshotVolume(_ context.Context, _, id string) (string, error) {
	return "snap-b", f.record("snapshot:"+id, f.snapshotErr)
}
func (f *fakeExecutor) DeleteVolume(_ context.Context, _, id string) error {
	return f.record("delete-volume:"+id, nil)
}
func (f *fakeExecutor) ReleaseAddress(_ context.Context, _, id string) error {
	return f.record("release:"+id, nil)
}
func (f *fakeExecutor) DeleteLoadBalancer(_ context.Context, _, arn string) error {
	return f.record("delete-lb:"+arn, nil)
}
func (f *fakeExecutor) DeleteSnapshot(_ context.Context, _, id string) error {
	return f.record("delete-snapshot:"+id, nil)
}
func (f *fakeExecutor) DeregisterImage(_ context.Context, _, id string) error {
	return f.record("deregister:"+id, nil)
}

type recordingNotifier struct {
	subjects []string
}

func (r *recordingNotifier) Publish(_ context.Context, _ notify.Topic, subject, _ string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "costgov.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func verdict(id string, rt models.ResourceType) models.IdleVerdict {
	return models.IdleVerdict{
		ResourceID:              id,
		ResourceType:            rt,
		Region:                  "eu-west-1",
		ScanDate:                scanDate,
		Idle:                    true,
		Reason:                  "idle for 7 days",
		EstimatedMonthlySavings: 60,
		Expiry:                  scanDate.AddDate(0, 1, 0),
	}
}

func eligibleMap(vs ...models.IdleVerdict) map[string]models.IdleVerdict {
	m := make(map[string]models.IdleVerdict, len(vs))
	for _, v := range vs {
		m[v.ResourceID] = v
	}
	return m
}

// armedPolicy returns a policy with destructive execution fully enabled.
func armedPolicy() policy.CleanupPolicy {
	cfg := policy.DefaultCleanupPolicy()
	cfg.DryRun = false
	cfg.EnableAutoCleanup = true
	return cfg
}

func TestPlanner(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	p := NewPlanner(s, cfg)

	excluded := verdict("i-prod", models.ResourceComputeInstance)
	excluded.Excluded = true
	busy := verdict("i-busy", models.ResourceComputeInstance)
	busy.Idle = false

	actions, stats, err := p.Plan(context.Background(), []models.IdleVerdict{
		verdict("i-idle", models.ResourceComputeInstance),
		verdict("vol-1", models.ResourceBlockVolume),
		excluded,
		busy,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 2, stats.Ineligible)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionStop, actions[0].Kind)
	assert.Equal(t, models.ActionDeleteVolume, actions[1].Kind)
	assert.Equal(t, models.ActionPending, actions[0].Status)

	// Replanning the same verdicts hits the cooldown guard; that is routine,
	// not an error.
	_, stats, err = p.Plan(context.Background(), []models.IdleVerdict{
		verdict("i-idle", models.ResourceComputeInstance),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Conflicted)
}

func TestOrchestratorDryRun(t *testing.T) {
	s := newTestStore(t)
	cfg := policy.DefaultCleanupPolicy() // dry_run defaults to true
	cfg.EnableAutoCleanup = true
	exec := &fakeExecutor{}

	v := verdict("i-idle", models.ResourceComputeInstance)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, &recordingNotifier{}, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{DryRun: 1}, stats)
	assert.Empty(t, exec.calls, "dry run must never reach the executor")

	resolved, err := s.ActionsByStatus(context.Background(), models.ActionDryRunOnly)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Contains(t, resolved[0].Reason, "gates would pass")
}

func TestOrchestratorExecutesStop(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{}
	notifier := &recordingNotifier{}

	v := verdict("i-idle", models.ResourceComputeInstance)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, notifier, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Executed: 1}, stats)
	assert.Equal(t, []string{"stop-instance:i-idle"}, exec.calls)
	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "cleanup executed")

	executed, err := s.ActionsByStatus(context.Background(), models.ActionExecuted)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.False(t, executed[0].ExecutedAt.IsZero())
	require.Len(t, executed[0].Steps, 1)
	assert.True(t, executed[0].Steps[0].OK)
}

func TestOrchestratorStopsDatabasesViaRDS(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{}

	v := verdict("db-quiet", models.ResourceDatabaseInstance)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, nil, cfg)
	_, err = o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, []string{"stop-database:db-quiet"}, exec.calls)
}

func TestOrchestratorSkipsWhenAutoCleanupDisabled(t *testing.T) {
	s := newTestStore(t)
	planCfg := armedPolicy()

	v := verdict("i-idle", models.ResourceComputeInstance)
	_, _, err := NewPlanner(s, planCfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	runCfg := planCfg
	runCfg.EnableAutoCleanup = false
	exec := &fakeExecutor{}
	o := NewOrchestrator(s, exec, nil, runCfg)

	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Skipped: 1}, stats)
	assert.Empty(t, exec.calls)
}

func TestOrchestratorSkipsStaleVerdicts(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{}

	v := verdict("i-idle", models.ResourceComputeInstance)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	// By execution time the resource woke up.
	woke := v
	woke.Idle = false
	woke.Reason = "peak CPU 64.0% at or above 5.0%"

	o := NewOrchestrator(s, exec, nil, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(woke))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Skipped: 1}, stats)
	assert.Empty(t, exec.calls, "a no-longer-idle resource must never be touched")

	skipped, err := s.ActionsByStatus(context.Background(), models.ActionSkipped)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "no longer eligible")
}

func TestOrchestratorExcludedNeverExecuted(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{}

	// The action exists, then the resource gains a protection tag.
	v := verdict("i-tagged", models.ResourceComputeInstance)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)
	v.Excluded = true

	o := NewOrchestrator(s, exec, nil, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Skipped: 1}, stats)
	assert.Empty(t, exec.calls)
}

func TestOrchestratorVolumeCompositeSuccess(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{}

	v := verdict("vol-1", models.ResourceBlockVolume)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, nil, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Executed: 1}, stats)
	assert.Equal(t, []string{"snapshot:vol-1", "delete-volume:vol-1"}, exec.calls)

	executed, err := s.ActionsByStatus(context.Background(), models.ActionExecuted)
	require.NoError(t, err)
	require.Len(t, executed[0].Steps, 2)
	assert.Equal(t, "snapshot", executed[0].Steps[0].Step)
	assert.Equal(t, "delete", executed[0].Steps[1].Step)
}

func TestOrchestratorSnapshotFailureForcesFailed(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{snapshotErr: errors.New("SnapshotCreationPerVolumeRateExceeded")}
	notifier := &recordingNotifier{}

	v := verdict("vol-1", models.ResourceBlockVolume)
	_, _, err := NewPlanner(s, cfg).Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, notifier, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Failed: 1}, stats)
	assert.Equal(t, []string{"snapshot:vol-1"}, exec.calls,
		"the delete step must never run without its safety snapshot")
	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "cleanup failed")

	failed, err := s.ActionsByStatus(context.Background(), models.ActionFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Len(t, failed[0].Steps, 1)
	assert.False(t, failed[0].Steps[0].OK)
	assert.Contains(t, failed[0].Steps[0].Detail, "SnapshotCreationPerVolumeRateExceeded")
}

func TestFailedActionRetriedNextCycleOnly(t *testing.T) {
	s := newTestStore(t)
	cfg := armedPolicy()
	exec := &fakeExecutor{stopErr: errors.New("UnauthorizedOperation")}

	v := verdict("i-idle", models.ResourceComputeInstance)
	p := NewPlanner(s, cfg)
	_, _, err := p.Plan(context.Background(), []models.IdleVerdict{v})
	require.NoError(t, err)

	o := NewOrchestrator(s, exec, nil, cfg)
	stats, err := o.Run(context.Background(), eligibleMap(v))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Failed: 1}, stats)

	// A FAILED action is not active, so the next cycle's verdict may plan a
	// fresh attempt; the failed record itself is never re-promoted.
	next := v
	next.ScanDate = scanDate.AddDate(0, 0, 1)
	_, planStats, err := p.Plan(context.Background(), []models.IdleVerdict{next})
	require.NoError(t, err)
	assert.Equal(t, 1, planStats.Created)

	exec.stopErr = nil
	exec.calls = nil
	stats, err = o.Run(context.Background(), eligibleMap(next))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Executed: 1}, stats)
}

func TestKindForCoversEveryResourceType(t *testing.T) {
	types := []models.ResourceType{
		models.ResourceComputeInstance,
		models.ResourceDatabaseInstance,
		models.ResourceBlockVolume,
		models.ResourceLoadBalancer,
		models.ResourceElasticIP,
		models.ResourceSnapshot,
		models.ResourceImage,
	}
	for _, rt := range types {
		if _, ok := KindFor(rt); !ok {
			t.Errorf("no action kind for %s", rt)
		}
	}
}
