// Package report assembles the periodic governance report. The aggregator
// performs no detection of its own: every figure is read back from records
// the other components persisted, plus the billing source for spend totals.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finops-kit/costgov/internal/models"
)

// topServiceCount caps the service breakdown in the report.
const topServiceCount = 10

// flatTrendPct is the band within which period-over-period change is
// reported as FLAT.
const flatTrendPct = 1.0

// Cost floors (USD per window) below which the service-specific
// recommendations stay quiet.
const (
	computeCostFloor  = 20
	databaseCostFloor = 15
	storageCostFloor  = 5
)

// Biller supplies window spend totals and the per-service breakdown.
type Biller interface {
	SpendInPeriod(ctx context.Context, start, end time.Time) (float64, error)
	ServiceBreakdown(ctx context.Context, start, end time.Time) ([]models.ServiceCost, error)
}

// Store is the subset of the durable store the aggregator reads.
type Store interface {
	AnomaliesSince(ctx context.Context, since time.Time) ([]models.CostAnomaly, error)
	VerdictsSince(ctx context.Context, since time.Time) ([]models.IdleVerdict, error)
	ComplianceSince(ctx context.Context, since time.Time) ([]models.TagComplianceRecord, error)
	ActionsSince(ctx context.Context, since time.Time) ([]models.CleanupAction, error)
}

// Aggregator builds reports over a trailing window.
type Aggregator struct {
	store Store
	bill  Biller

	// newID overrides report ID generation in tests.
	newID func() string
}

// New returns an Aggregator reading from s and b.
func New(s Store, b Biller) *Aggregator {
	return &Aggregator{store: s, bill: b, newID: uuid.NewString}
}

// Generate builds the report for the windowDays ending at windowEnd.
// The prior window of equal length supplies the trend comparison.
func (a *Aggregator) Generate(ctx context.Context, windowEnd time.Time, windowDays int) (*models.Report, error) {
	windowStart := windowEnd.AddDate(0, 0, -windowDays)
	priorStart := windowStart.AddDate(0, 0, -windowDays)

	total, err := a.bill.SpendInPeriod(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("window spend: %w", err)
	}
	prior, err := a.bill.SpendInPeriod(ctx, priorStart, windowStart)
	if err != nil {
		return nil, fmt.Errorf("prior window spend: %w", err)
	}
	breakdown, err := a.bill.ServiceBreakdown(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("service breakdown: %w", err)
	}
	if len(breakdown) > topServiceCount {
		breakdown = breakdown[:topServiceCount]
	}

	r := &models.Report{
		ReportID:    a.newID(),
		GeneratedAt: time.Now().UTC(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		TotalSpend:  total,
		PriorSpend:  prior,
		TopServices: breakdown,
	}
	r.Trend, r.TrendPct = trend(total, prior)

	if err := a.fillGovernanceCounts(ctx, r, windowStart); err != nil {
		return nil, err
	}
	r.Recommendations = recommendations(r, breakdown)

	log.Info().
		Str("report_id", r.ReportID).
		Float64("total_spend", r.TotalSpend).
		Int("idle_resources", r.IdleResourceCount).
		Int("recommendations", len(r.Recommendations)).
		Msg("report generated")
	return r, nil
}

// fillGovernanceCounts reads the persisted governance records for the
// window. Verdicts and compliance records are deduplicated per resource,
// keeping only the most recent scan.
func (a *Aggregator) fillGovernanceCounts(ctx context.Context, r *models.Report, since time.Time) error {
	verdicts, err := a.store.VerdictsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("verdicts: %w", err)
	}
	seen := make(map[string]bool)
	for _, v := range verdicts {
		if seen[v.ResourceID] {
			continue
		}
		seen[v.ResourceID] = true
		if v.Idle {
			r.IdleResourceCount++
			r.EstimatedSavings += v.EstimatedMonthlySavings
		}
	}

	compliance, err := a.store.ComplianceSince(ctx, since)
	if err != nil {
		return fmt.Errorf("compliance: %w", err)
	}
	seen = make(map[string]bool)
	for _, rec := range compliance {
		if seen[rec.ResourceARN] {
			continue
		}
		seen[rec.ResourceARN] = true
		if rec.Status == models.TagViolation {
			r.ViolationCount++
		}
	}

	anomalies, err := a.store.AnomaliesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("anomalies: %w", err)
	}
	r.AnomalyCount = len(anomalies)
	for _, an := range anomalies {
		if an.Severity == models.SeverityHigh {
			r.HighSeverityAnomalies++
		}
	}

	actions, err := a.store.ActionsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("actions: %w", err)
	}
	for _, act := range actions {
		switch act.Status {
		case models.ActionExecuted:
			r.CleanupExecuted++
		case models.ActionFailed:
			r.CleanupFailed++
		}
	}
	return nil
}

// trend classifies the period-over-period change. A prior period with no
// spend yields FLAT rather than an infinite percentage.
func trend(total, prior float64) (models.Trend, float64) {
	if prior <= 0 {
		return models.TrendFlat, 0
	}
	pct := (total - prior) / prior * 100
	switch {
	case pct > flatTrendPct:
		return models.TrendIncreasing, pct
	case pct < -flatTrendPct:
		return models.TrendDecreasing, pct
	default:
		return models.TrendFlat, pct
	}
}

// recommendations ranks the optimization suggestions: cleanup of known
// idle resources first, then service-specific suggestions keyed off the
// window's spend mix.
func recommendations(r *models.Report, breakdown []models.ServiceCost) []models.Recommendation {
	var recs []models.Recommendation

	if r.IdleResourceCount > 0 {
		recs = append(recs, models.Recommendation{
			Priority:         "high",
			Category:         "Resource Cleanup",
			Summary:          fmt.Sprintf("Clean up %d idle resources", r.IdleResourceCount),
			Action:           "Review and stop or delete unused resources",
			PotentialSavings: r.EstimatedSavings,
		})
	}

	if cost := serviceCost(breakdown, "EC2", "Elastic Compute"); cost > computeCostFloor {
		recs = append(recs, models.Recommendation{
			Priority:         "medium",
			Category:         "Compute Commitment",
			Summary:          "Consider Reserved Instances or Savings Plans for steady compute",
			Action:           "Review usage patterns and purchase commitments",
			PotentialSavings: cost * 0.3,
		})
	}
	if cost := serviceCost(breakdown, "RDS", "Database"); cost > databaseCostFloor {
		recs = append(recs, models.Recommendation{
			Priority:         "medium",
			Category:         "Database Rightsizing",
			Summary:          "Review database instance sizes against utilization",
			Action:           "Downsize underutilized databases or move to serverless",
			PotentialSavings: cost * 0.2,
		})
	}
	if cost := serviceCost(breakdown, "S3", "Simple Storage"); cost > storageCostFloor {
		recs = append(recs, models.Recommendation{
			Priority:         "low",
			Category:         "Storage Lifecycle",
			Summary:          "Implement storage lifecycle policies",
			Action:           "Transition infrequently accessed data to colder tiers",
			PotentialSavings: cost * 0.4,
		})
	}
	return recs
}

// serviceCost returns the first breakdown entry whose service name
// contains any of the markers.
func serviceCost(breakdown []models.ServiceCost, markers ...string) float64 {
	for _, sc := range breakdown {
		for _, m := range markers {
			if strings.Contains(sc.Service, m) {
				return sc.CostUSD
			}
		}
	}
	return 0
}
