package models

import "time"

// BudgetPeriod identifies which budget a snapshot tracks.
type BudgetPeriod string

const (
	PeriodDaily   BudgetPeriod = "DAILY"
	PeriodMonthly BudgetPeriod = "MONTHLY"
)

// ProjectionThreshold is the pseudo-threshold recorded when the month-end
// run-rate projection exceeds the monthly limit. It participates in the
// same fire-at-most-once bookkeeping as the percentage ladder.
const ProjectionThreshold = -1

// BudgetSnapshot is the persisted state of one budget period instance.
// BreachedThresholds accumulates every ladder threshold that has already
// fired for this instance so repeated evaluations never re-alert.
type BudgetSnapshot struct {
	Period       BudgetPeriod `json:"period"`
	// PeriodKey identifies the period instance: "2026-08-31" for DAILY,
	// "2026-08" for MONTHLY. Threshold monotonicity is scoped to this key.
	PeriodKey   string    `json:"period_key"`
	AsOfDate    time.Time `json:"as_of_date"`
	SpendToDate float64   `json:"spend_to_date_usd"`
	BudgetLimit float64   `json:"budget_limit_usd"`
	PctConsumed float64   `json:"pct_consumed"`
	// BreachedThresholds holds ladder percentages (e.g. 80, 100) that have
	// fired, plus ProjectionThreshold when the projection warning fired.
	BreachedThresholds []int     `json:"breached_thresholds"`
	Expiry             time.Time `json:"expiry"`
}

// Breached reports whether threshold has already fired for this instance.
func (s BudgetSnapshot) Breached(threshold int) bool {
	for _, t := range s.BreachedThresholds {
		if t == threshold {
			return true
		}
	}
	return false
}
