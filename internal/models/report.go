package models

import "time"

// Trend is the sign of the period-over-period spend change.
type Trend string

const (
	TrendIncreasing Trend = "INCREASING"
	TrendDecreasing Trend = "DECREASING"
	TrendFlat       Trend = "FLAT"
)

// Recommendation is one ranked cost-optimization suggestion.
type Recommendation struct {
	Priority         string  `json:"priority"` // high, medium, low
	Category         string  `json:"category"`
	Summary          string  `json:"summary"`
	Action           string  `json:"action"`
	PotentialSavings float64 `json:"potential_savings_usd"`
}

// Report is the structured weekly summary consumed by external renderers.
// The aggregator performs no detection of its own; every figure here is
// derived from records the other components persisted.
type Report struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalSpend    float64 `json:"total_spend_usd"`
	PriorSpend    float64 `json:"prior_period_spend_usd"`
	Trend         Trend   `json:"trend"`
	TrendPct      float64 `json:"trend_pct"`
	TopServices   []ServiceCost `json:"top_services"`

	IdleResourceCount int     `json:"idle_resource_count"`
	EstimatedSavings  float64 `json:"estimated_monthly_savings_usd"`
	ViolationCount    int     `json:"violation_count"`
	AnomalyCount      int     `json:"anomaly_count"`
	HighSeverityAnomalies int `json:"high_severity_anomalies"`

	CleanupExecuted int `json:"cleanup_executed"`
	CleanupFailed   int `json:"cleanup_failed"`

	Recommendations []Recommendation `json:"recommendations"`
}
