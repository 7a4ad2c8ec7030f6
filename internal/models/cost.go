package models

import "time"

// Severity represents the impact level of a detected anomaly.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// AnomalyStatus is the lifecycle state of a recorded cost anomaly.
// Anomalies are never retracted; they only move forward through these states.
type AnomalyStatus string

const (
	AnomalyOpen         AnomalyStatus = "OPEN"
	AnomalyAcknowledged AnomalyStatus = "ACKNOWLEDGED"
	AnomalyResolved     AnomalyStatus = "RESOLVED"
)

// CostObservation is a single day of spend for one service.
// Immutable once recorded; the source of truth for anomaly baselines.
type CostObservation struct {
	Service string    `json:"service"`
	Date    time.Time `json:"date"`
	Amount  float64   `json:"amount_usd"`
}

// CostSeries is an ordered (oldest-first) sequence of daily observations
// for a single service. The last element is treated as the current day.
type CostSeries struct {
	Service      string            `json:"service"`
	Observations []CostObservation `json:"observations"`
}

// Current returns the most recent observation and true, or a zero
// observation and false when the series is empty.
func (s CostSeries) Current() (CostObservation, bool) {
	if len(s.Observations) == 0 {
		return CostObservation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// CostAnomaly records a daily spend deviation beyond the configured
// threshold. DeviationPct is always computed against the trailing baseline.
type CostAnomaly struct {
	AnomalyID      string        `json:"anomaly_id"`
	DetectedDate   time.Time     `json:"detected_date"`
	Service        string        `json:"service"`
	ObservedAmount float64       `json:"observed_amount_usd"`
	BaselineAmount float64       `json:"baseline_amount_usd"`
	DeviationPct   float64       `json:"deviation_pct"`
	Severity       Severity      `json:"severity"`
	Status         AnomalyStatus `json:"status"`
	DetectedAt     time.Time     `json:"detected_at"`
	// Expiry is the retention deadline; the store drops the record after it.
	Expiry time.Time `json:"expiry"`
}

// ServiceCost is one service's aggregate spend over a reporting window.
type ServiceCost struct {
	Service string  `json:"service"`
	CostUSD float64 `json:"cost_usd"`
	// PctOfTotal is the service share of the window total, 0-100.
	PctOfTotal float64 `json:"pct_of_total"`
}
