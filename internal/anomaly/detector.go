// Package anomaly detects daily per-service spend deviations against a
// trailing baseline.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// retention for persisted anomalies.
const anomalyTTL = 30 * 24 * time.Hour

// Detector evaluates one cost series at a time against the configured
// deviation rules. Stateless; safe for concurrent use.
type Detector struct {
	rules policy.CostRules
}

// New returns a Detector using the given rules.
func New(rules policy.CostRules) *Detector {
	return &Detector{rules: rules}
}

// Evaluate inspects the series' current day against the mean of the prior
// observations and returns an anomaly when the deviation magnitude reaches
// the configured threshold.
//
// Returns (nil, nil) when spend is within bounds or the baseline is zero: a
// zero baseline means the service had no prior spend, and any ratio against
// it is meaningless. Returns ErrInsufficientHistory (wrapped) when fewer
// than the minimum lookback days of prior data exist, and a DataError when
// the series has no current-day observation at all.
func (d *Detector) Evaluate(series models.CostSeries, now time.Time) (*models.CostAnomaly, error) {
	current, ok := series.Current()
	if !ok {
		return nil, &models.DataError{
			Unit: series.Service,
			Err:  fmt.Errorf("no current-day observation"),
		}
	}

	prior := series.Observations[:len(series.Observations)-1]
	if len(prior) < d.rules.MinLookbackDays {
		return nil, fmt.Errorf("service %s: %d prior days: %w",
			series.Service, len(prior), models.ErrInsufficientHistory)
	}

	var sum float64
	for _, o := range prior {
		sum += o.Amount
	}
	baseline := sum / float64(len(prior))
	if baseline <= 0 {
		return nil, nil
	}

	deviation := (current.Amount - baseline) / baseline * 100
	if math.Abs(deviation) < d.rules.ThresholdPercentage {
		return nil, nil
	}

	return &models.CostAnomaly{
		AnomalyID:      fmt.Sprintf("%s#%s", current.Date.Format("2006-01-02"), series.Service),
		DetectedDate:   current.Date,
		Service:        series.Service,
		ObservedAmount: current.Amount,
		BaselineAmount: baseline,
		DeviationPct:   deviation,
		Severity:       severityFor(deviation),
		Status:         models.AnomalyOpen,
		DetectedAt:     now,
		Expiry:         now.Add(anomalyTTL),
	}, nil
}

// severityFor tiers the deviation magnitude: more than half again over the
// baseline is HIGH, anything else past the threshold is MEDIUM.
func severityFor(deviationPct float64) models.Severity {
	if math.Abs(deviationPct) > 50 {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// NotifyWorthy reports whether an anomaly should trigger a notification.
// Every detected anomaly alerts; severity only shapes the subject line.
func NotifyWorthy(a *models.CostAnomaly) bool {
	return a != nil
}
