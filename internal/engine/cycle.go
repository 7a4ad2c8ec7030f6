// Package engine orchestrates one governance cycle: policy snapshot,
// anomaly detection, resource scanning, cleanup, budget checks, and
// retention pruning. The engine never calls the AWS SDK directly; it
// delegates to the billing, inventory, and execution collaborators and
// assembles a machine-readable CycleSummary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/finops-kit/costgov/internal/anomaly"
	"github.com/finops-kit/costgov/internal/budget"
	"github.com/finops-kit/costgov/internal/cleanup"
	"github.com/finops-kit/costgov/internal/compliance"
	"github.com/finops-kit/costgov/internal/idle"
	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/notify"
	"github.com/finops-kit/costgov/internal/policy"
	"github.com/finops-kit/costgov/internal/store"
)

// maxConcurrentRegions caps parallel inventory collection. Keeps outbound
// AWS API concurrency predictable when many regions are active.
const maxConcurrentRegions = 4

// Biller supplies the daily cost series, window spend totals, and the
// provider's month-end forecast.
type Biller interface {
	DailyCostsByService(ctx context.Context, start, end time.Time) ([]models.CostObservation, error)
	SpendInPeriod(ctx context.Context, start, end time.Time) (float64, error)
	ForecastMonthEnd(ctx context.Context, asOf time.Time) (float64, error)
}

// Inventory collects resource observations for one region.
type Inventory interface {
	Collect(ctx context.Context, scanDate time.Time, observationDays int) ([]models.ResourceObservation, []error)
}

// Archiver persists cycle documents to external storage.
type Archiver interface {
	Put(ctx context.Context, kind, name string, day time.Time, doc any) (string, error)
}

// Deps wires the engine's collaborators. Source, Notifier, and Archiver
// may be nil: a nil Source means built-in policy defaults, a nil Notifier
// drops notifications, a nil Archiver skips archival.
type Deps struct {
	Store    store.Store
	Source   policy.Source
	Notifier notify.Notifier
	Bill     Biller

	// Regions lists the regions to scan.
	Regions func(ctx context.Context) ([]string, error)
	// Inventory returns the collector for one region.
	Inventory func(region string) Inventory

	Exec   cleanup.Executor
	Limits budget.Limits

	Archiver Archiver
}

// Options configures a single cycle.
type Options struct {
	// ScanDate is the cycle's nominal date. Zero means today (UTC).
	ScanDate time.Time
}

// Engine runs governance cycles over a fixed set of collaborators.
type Engine struct {
	deps Deps

	// now overrides the clock in tests.
	now func() time.Time
}

// New returns an Engine over deps.
func New(deps Deps) *Engine {
	return &Engine{deps: deps, now: time.Now}
}

// RunCycle executes one full cycle. Unit-level failures are captured in
// the summary and never abort the batch; RunCycle itself fails only when
// the cycle cannot proceed at all.
func (e *Engine) RunCycle(ctx context.Context, opts Options) (*models.CycleSummary, error) {
	started := e.now().UTC()
	scanDate := opts.ScanDate
	if scanDate.IsZero() {
		scanDate = started.Truncate(24 * time.Hour)
	}

	// One immutable snapshot per cycle; every evaluator sees the same
	// policy even if the source changes mid-cycle.
	snap := policy.Load(ctx, e.deps.Source)

	summary := &models.CycleSummary{
		CycleID:            uuid.NewString(),
		StartedAt:          started,
		DryRun:             snap.Cleanup.DryRun,
		DegradedComponents: snap.Degraded,
	}

	log.Info().
		Str("cycle_id", summary.CycleID).
		Time("scan_date", scanDate).
		Bool("dry_run", summary.DryRun).
		Msg("cycle started")

	e.detectAnomalies(ctx, snap.CostRules, scanDate, summary)
	verdicts := e.scanResources(ctx, snap, scanDate, summary)
	e.runCleanup(ctx, snap.Cleanup, verdicts, summary)
	e.checkBudgets(ctx, scanDate, summary)

	if pruned, err := e.deps.Store.PruneExpired(ctx, e.now()); err != nil {
		summary.AddFailure("store", "prune", "data", err)
	} else if pruned > 0 {
		log.Debug().Int64("pruned", pruned).Msg("expired records removed")
	}

	summary.FinishedAt = e.now().UTC()

	if e.deps.Archiver != nil {
		if _, err := e.deps.Archiver.Put(ctx, "summaries", summary.CycleID, scanDate, summary); err != nil {
			summary.AddFailure("archive", summary.CycleID, "data", err)
		}
	}

	log.Info().
		Str("cycle_id", summary.CycleID).
		Int("anomalies", summary.AnomaliesDetected).
		Int("idle_resources", summary.IdleResources).
		Int("violations", summary.Violations).
		Int("failures", len(summary.Failures)).
		Msg("cycle finished")
	return summary, nil
}

// detectAnomalies pulls the lookback cost series, persists the daily
// observations, and evaluates every service series. Insufficient history
// is a normal outcome for young accounts and is logged, not recorded as a
// failure.
func (e *Engine) detectAnomalies(ctx context.Context, rules policy.CostRules, scanDate time.Time, summary *models.CycleSummary) {
	start := scanDate.AddDate(0, 0, -rules.LookbackDays)
	end := scanDate.AddDate(0, 0, 1)

	obs, err := e.deps.Bill.DailyCostsByService(ctx, start, end)
	if err != nil {
		summary.AddFailure("anomaly", "cost-explorer", "data", err)
		return
	}
	if err := e.deps.Store.PutCostObservations(ctx, obs); err != nil {
		summary.AddFailure("anomaly", "cost-observations", "data", err)
	}

	// The forecast is advisory context on the summary; a failed call is
	// not a cycle failure.
	if forecast, err := e.deps.Bill.ForecastMonthEnd(ctx, scanDate); err != nil {
		log.Warn().Err(err).Msg("month-end forecast unavailable")
	} else {
		summary.ForecastedMonthEndSpend = forecast
	}

	detector := anomaly.New(rules)
	for _, series := range anomaly.GroupByService(obs) {
		summary.SeriesAnalyzed++
		a, err := detector.Evaluate(series, e.now())
		if errors.Is(err, models.ErrInsufficientHistory) {
			log.Debug().Str("service", series.Service).Msg("not enough history for anomaly detection")
			continue
		}
		if err != nil {
			summary.AddFailure("anomaly", series.Service, "data", err)
			continue
		}
		if a == nil {
			continue
		}
		if err := e.deps.Store.PutAnomaly(ctx, *a); err != nil {
			summary.AddFailure("anomaly", series.Service, "data", err)
			continue
		}
		summary.AnomaliesDetected++
		if anomaly.NotifyWorthy(a) {
			e.publish(ctx, notify.TopicAnomaly,
				fmt.Sprintf("%s cost anomaly: %s", a.Severity, a.Service),
				fmt.Sprintf("%s spend $%.2f deviates %.1f%% from baseline $%.2f",
					a.Service, a.ObservedAmount, a.DeviationPct, a.BaselineAmount))
		}
	}
}

// scanResources collects observations from every region in parallel, then
// evaluates idleness and tag compliance for each. One region's or
// resource's failure never aborts the batch.
func (e *Engine) scanResources(ctx context.Context, snap *policy.Snapshot, scanDate time.Time, summary *models.CycleSummary) []models.IdleVerdict {
	regions, err := e.deps.Regions(ctx)
	if err != nil {
		summary.AddFailure("inventory", "regions", "data", err)
		return nil
	}

	var (
		mu  sync.Mutex
		all []models.ResourceObservation
	)
	sem := make(chan struct{}, maxConcurrentRegions)
	g, gctx := errgroup.WithContext(ctx)
	for _, region := range regions {
		region := region
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			obs, errs := e.deps.Inventory(region).Collect(gctx, scanDate, snap.Cleanup.ObservationDays)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, obs...)
			for _, err := range errs {
				summary.AddFailure("inventory", region+"/"+unitOf(err), "data", err)
			}
			return nil
		})
	}
	g.Wait()

	idleEval := idle.NewEvaluator(snap.Cleanup)
	compEval := compliance.New(snap.TagPolicy)

	var verdicts []models.IdleVerdict
	for _, o := range all {
		summary.ResourcesScanned++

		v, err := idleEval.Evaluate(o)
		if err != nil {
			summary.AddFailure("idle", o.ResourceID, "data", err)
		} else if err := e.deps.Store.PutVerdict(ctx, v); err != nil {
			summary.AddFailure("idle", o.ResourceID, "data", err)
		} else {
			verdicts = append(verdicts, v)
			if v.Excluded {
				summary.ExcludedResources++
			}
			if v.Idle {
				summary.IdleResources++
				summary.EstimatedMonthlySavings += v.EstimatedMonthlySavings
			}
		}

		if o.ARN == "" {
			continue
		}
		rec := compEval.Evaluate(o)
		if err := e.deps.Store.PutCompliance(ctx, rec); err != nil {
			summary.AddFailure("compliance", o.ARN, "data", err)
			continue
		}
		summary.ComplianceChecked++
		switch rec.Status {
		case models.TagViolation:
			summary.Violations++
		case models.TagWarning:
			summary.Warnings++
		}
		if compliance.NotifyWorthy(rec, snap.TagPolicy) {
			e.publish(ctx, notify.TopicCompliance,
				fmt.Sprintf("tag %s: %s", rec.Status, o.ResourceID),
				fmt.Sprintf("%s is %s (missing required: %v)", rec.ResourceARN, rec.Status, rec.MissingRequired))
		}
	}
	return verdicts
}

// unitOf names the failed unit when the error carries one.
func unitOf(err error) string {
	var de *models.DataError
	if errors.As(err, &de) {
		return de.Unit
	}
	return "collect"
}

// runCleanup plans actions from this cycle's verdicts and resolves every
// pending action under the safety gates.
func (e *Engine) runCleanup(ctx context.Context, cfg policy.CleanupPolicy, verdicts []models.IdleVerdict, summary *models.CycleSummary) {
	planner := cleanup.NewPlanner(e.deps.Store, cfg)
	_, planStats, err := planner.Plan(ctx, verdicts)
	if err != nil {
		summary.AddFailure("cleanup", "planner", "data", err)
	}
	summary.ActionsPlanned = planStats.Created

	eligible := make(map[string]models.IdleVerdict, len(verdicts))
	for _, v := range verdicts {
		eligible[v.ResourceID] = v
	}

	orch := cleanup.NewOrchestrator(e.deps.Store, e.deps.Exec, e.deps.Notifier, cfg)
	runStats, err := orch.Run(ctx, eligible)
	if err != nil {
		summary.AddFailure("cleanup", "orchestrator", "execution", err)
	}
	summary.ActionsDryRun = runStats.DryRun
	summary.ActionsExecuted = runStats.Executed
	summary.ActionsSkipped = runStats.Skipped
	summary.ActionsFailed = runStats.Failed
}

// checkBudgets evaluates day and month spend against the configured
// limits and publishes one notification per newly crossed threshold.
func (e *Engine) checkBudgets(ctx context.Context, scanDate time.Time, summary *models.CycleSummary) {
	if e.deps.Limits.Daily <= 0 && e.deps.Limits.Monthly <= 0 {
		return
	}

	dayEnd := scanDate.AddDate(0, 0, 1)
	daySpend, err := e.deps.Bill.SpendInPeriod(ctx, scanDate, dayEnd)
	if err != nil {
		summary.AddFailure("budget", "day-spend", "data", err)
		return
	}
	monthStart := time.Date(scanDate.Year(), scanDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthSpend, err := e.deps.Bill.SpendInPeriod(ctx, monthStart, dayEnd)
	if err != nil {
		summary.AddFailure("budget", "month-spend", "data", err)
		return
	}

	monitor := budget.New(e.deps.Store, e.deps.Limits)
	alerts, err := monitor.Evaluate(ctx, scanDate, daySpend, monthSpend)
	if err != nil {
		summary.AddFailure("budget", "monitor", "data", err)
	}
	summary.BudgetBreaches += len(alerts)
	for _, a := range alerts {
		e.publish(ctx, notify.TopicBudget, fmt.Sprintf("%s budget alert", a.Period), a.Message)
	}
}

// publish sends a notification when a notifier is configured. Delivery
// failure is logged, never fatal.
func (e *Engine) publish(ctx context.Context, topic notify.Topic, subject, message string) {
	if e.deps.Notifier == nil {
		return
	}
	if err := e.deps.Notifier.Publish(ctx, topic, subject, message); err != nil {
		log.Warn().Err(err).Str("topic", string(topic)).Msg("notification failed")
	}
}
