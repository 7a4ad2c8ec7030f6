// Package budget tracks daily and monthly spend against configured limits.
// Each period instance keeps a persisted record of every threshold that has
// fired, so re-running the monitor within the same day or month never
// re-alerts.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/store"
)

const snapshotTTL = 90 * 24 * time.Hour

// thresholdLadder is the fixed percentage ladder every period is checked
// against, in ascending order.
var thresholdLadder = []int{80, 100}

// Limits holds the configured spend ceilings in USD. A zero or negative
// limit disables monitoring for that period.
type Limits struct {
	Daily   float64
	Monthly float64
}

// Store is the subset of the durable store the monitor needs.
type Store interface {
	BudgetSnapshot(ctx context.Context, period models.BudgetPeriod, periodKey string) (*models.BudgetSnapshot, error)
	PutBudgetSnapshot(ctx context.Context, s models.BudgetSnapshot) error
}

// Alert is one threshold crossing. Threshold is a ladder percentage, or
// models.ProjectionThreshold for the month-end run-rate warning.
type Alert struct {
	Period      models.BudgetPeriod
	PeriodKey   string
	Threshold   int
	SpendToDate float64
	Limit       float64
	PctConsumed float64
	// Projected is the run-rate month-end estimate; set only on
	// projection alerts.
	Projected float64
	Message   string
}

// Monitor evaluates spend against Limits and persists per-instance
// breach bookkeeping.
type Monitor struct {
	store  Store
	limits Limits
}

// New returns a Monitor over s with the given limits.
func New(s Store, limits Limits) *Monitor {
	return &Monitor{store: s, limits: limits}
}

// Evaluate checks the day and month containing asOf. daySpend is the
// cumulative spend for that day, monthSpend for that month. Alerts are
// returned only for thresholds crossing for the first time in their
// period instance.
func (m *Monitor) Evaluate(ctx context.Context, asOf time.Time, daySpend, monthSpend float64) ([]Alert, error) {
	var alerts []Alert

	if m.limits.Daily > 0 {
		a, err := m.evalPeriod(ctx, models.PeriodDaily, asOf.Format("2006-01-02"), asOf, daySpend, m.limits.Daily, 0)
		if err != nil {
			return alerts, err
		}
		alerts = append(alerts, a...)
	}

	if m.limits.Monthly > 0 {
		projected := projectMonthEnd(asOf, monthSpend)
		a, err := m.evalPeriod(ctx, models.PeriodMonthly, asOf.Format("2006-01"), asOf, monthSpend, m.limits.Monthly, projected)
		if err != nil {
			return alerts, err
		}
		alerts = append(alerts, a...)
	}

	return alerts, nil
}

// evalPeriod updates one period instance and returns its newly crossed
// thresholds. projected > 0 additionally arms the projection warning.
func (m *Monitor) evalPeriod(ctx context.Context, period models.BudgetPeriod, key string, asOf time.Time, spend, limit, projected float64) ([]Alert, error) {
	snap, err := m.store.BudgetSnapshot(ctx, period, key)
	if errors.Is(err, store.ErrNotFound) {
		snap = &models.BudgetSnapshot{Period: period, PeriodKey: key}
	} else if err != nil {
		return nil, fmt.Errorf("load %s budget snapshot %s: %w", period, key, err)
	}

	snap.AsOfDate = asOf
	snap.SpendToDate = spend
	snap.BudgetLimit = limit
	snap.PctConsumed = spend / limit * 100
	snap.Expiry = asOf.Add(snapshotTTL)

	var alerts []Alert
	for _, threshold := range thresholdLadder {
		if snap.PctConsumed < float64(threshold) || snap.Breached(threshold) {
			continue
		}
		snap.BreachedThresholds = append(snap.BreachedThresholds, threshold)
		alerts = append(alerts, Alert{
			Period:      period,
			PeriodKey:   key,
			Threshold:   threshold,
			SpendToDate: spend,
			Limit:       limit,
			PctConsumed: snap.PctConsumed,
			Message: fmt.Sprintf("%s budget %s: %.1f%% consumed ($%.2f of $%.2f)",
				period, key, snap.PctConsumed, spend, limit),
		})
	}

	if projected > limit && !snap.Breached(models.ProjectionThreshold) {
		snap.BreachedThresholds = append(snap.BreachedThresholds, models.ProjectionThreshold)
		alerts = append(alerts, Alert{
			Period:      period,
			PeriodKey:   key,
			Threshold:   models.ProjectionThreshold,
			SpendToDate: spend,
			Limit:       limit,
			PctConsumed: snap.PctConsumed,
			Projected:   projected,
			Message: fmt.Sprintf("%s budget %s: run rate projects $%.2f by month end, over the $%.2f limit",
				period, key, projected, limit),
		})
	}

	if err := m.store.PutBudgetSnapshot(ctx, *snap); err != nil {
		return alerts, fmt.Errorf("persist %s budget snapshot %s: %w", period, key, err)
	}
	if len(alerts) > 0 {
		log.Warn().
			Str("period", string(period)).
			Str("period_key", key).
			Float64("pct_consumed", snap.PctConsumed).
			Int("new_alerts", len(alerts)).
			Msg("budget threshold crossed")
	}
	return alerts, nil
}

// projectMonthEnd extrapolates month-end spend from the average daily run
// rate observed so far, counting the asOf day as elapsed.
func projectMonthEnd(asOf time.Time, monthSpend float64) float64 {
	elapsed := asOf.Day()
	daysInMonth := time.Date(asOf.Year(), asOf.Month()+1, 0, 0, 0, 0, 0, asOf.Location()).Day()
	return monthSpend / float64(elapsed) * float64(daysInMonth)
}
