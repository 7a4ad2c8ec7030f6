package models

import "time"

// UnitFailure records one skipped or failed unit of work within a cycle.
// Failures are surfaced here rather than aborting the batch; no error may
// silently disappear.
type UnitFailure struct {
	Component string `json:"component"`
	Unit      string `json:"unit"` // resource ID, service name, or document name
	Kind      string `json:"kind"` // data, execution, config, conflict
	Detail    string `json:"detail"`
}

// CycleSummary is the machine-readable outcome of one engine invocation,
// written for manual inspection and archival.
type CycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	// DegradedComponents lists evaluators that fell back to built-in policy
	// defaults because their config document was missing or unparseable.
	DegradedComponents []string `json:"degraded_components,omitempty"`

	AnomaliesDetected int `json:"anomalies_detected"`
	SeriesAnalyzed    int `json:"series_analyzed"`
	// ForecastedMonthEndSpend is the billing provider's month-end forecast
	// as of the scan date. Zero when the forecast was unavailable.
	ForecastedMonthEndSpend float64 `json:"forecasted_month_end_spend_usd,omitempty"`

	ResourcesScanned  int `json:"resources_scanned"`
	IdleResources     int `json:"idle_resources"`
	ExcludedResources int `json:"excluded_resources"`
	ComplianceChecked int `json:"compliance_checked"`
	Violations        int `json:"violations"`
	Warnings          int `json:"warnings"`
	ActionsPlanned    int `json:"actions_planned"`
	ActionsExecuted   int `json:"actions_executed"`
	ActionsDryRun     int `json:"actions_dry_run"`
	ActionsSkipped    int `json:"actions_skipped"`
	ActionsFailed     int `json:"actions_failed"`
	BudgetBreaches    int `json:"budget_breaches"`

	EstimatedMonthlySavings float64 `json:"estimated_monthly_savings_usd"`

	Failures []UnitFailure `json:"failures,omitempty"`
}

// AddFailure appends a unit failure to the summary.
func (s *CycleSummary) AddFailure(component, unit, kind string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.Failures = append(s.Failures, UnitFailure{
		Component: component,
		Unit:      unit,
		Kind:      kind,
		Detail:    detail,
	})
}
