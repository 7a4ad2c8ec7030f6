package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finops-kit/costgov/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS cost_observations (
	service  TEXT NOT NULL,
	date     TEXT NOT NULL,
	amount   REAL NOT NULL,
	PRIMARY KEY (service, date)
);

CREATE TABLE IF NOT EXISTS cost_anomalies (
	anomaly_id      TEXT PRIMARY KEY,
	detected_date   TEXT NOT NULL,
	service         TEXT NOT NULL,
	observed_amount REAL NOT NULL,
	baseline_amount REAL NOT NULL,
	deviation_pct   REAL NOT NULL,
	severity        TEXT NOT NULL,
	status          TEXT NOT NULL,
	detected_at     TEXT NOT NULL,
	expiry          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomalies_detected ON cost_anomalies (detected_date DESC);

CREATE TABLE IF NOT EXISTS idle_verdicts (
	resource_id   TEXT NOT NULL,
	scan_date     TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	region        TEXT NOT NULL DEFAULT '',
	idle          INTEGER NOT NULL,
	excluded      INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	savings       REAL NOT NULL,
	expiry        TEXT NOT NULL,
	PRIMARY KEY (resource_id, scan_date)
);
CREATE INDEX IF NOT EXISTS idx_verdicts_scan ON idle_verdicts (scan_date DESC);

CREATE TABLE IF NOT EXISTS tag_compliance (
	resource_arn  TEXT NOT NULL,
	scan_date     TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	status        TEXT NOT NULL,
	missing_required TEXT NOT NULL,
	missing_optional TEXT NOT NULL,
	invalid_tags  TEXT NOT NULL,
	expiry        TEXT NOT NULL,
	PRIMARY KEY (resource_arn, scan_date)
);
CREATE INDEX IF NOT EXISTS idx_compliance_scan ON tag_compliance (scan_date DESC);

CREATE TABLE IF NOT EXISTS cleanup_actions (
	action_id      TEXT PRIMARY KEY,
	scheduled_date TEXT NOT NULL,
	resource_id    TEXT NOT NULL,
	resource_type  TEXT NOT NULL,
	region         TEXT NOT NULL DEFAULT '',
	action_kind    TEXT NOT NULL,
	status         TEXT NOT NULL,
	dry_run        INTEGER NOT NULL,
	reason         TEXT NOT NULL,
	savings        REAL NOT NULL,
	steps          TEXT NOT NULL,
	executed_at    TEXT,
	expiry         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_status ON cleanup_actions (status, scheduled_date DESC);
CREATE INDEX IF NOT EXISTS idx_actions_resource ON cleanup_actions (resource_id, scheduled_date DESC);

CREATE TABLE IF NOT EXISTS budget_snapshots (
	period      TEXT NOT NULL,
	period_key  TEXT NOT NULL,
	as_of_date  TEXT NOT NULL,
	spend       REAL NOT NULL,
	budget      REAL NOT NULL,
	pct         REAL NOT NULL,
	breached    TEXT NOT NULL,
	expiry      TEXT NOT NULL,
	PRIMARY KEY (period, period_key)
);
`

// SQLiteStore implements Store on a local SQLite database. The pure-Go
// driver keeps the binary CGO-free.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The store is accessed from one process; a single connection avoids
	// SQLITE_BUSY churn under concurrent evaluator goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// ts renders a time for storage; dates and timestamps share one format so
// range predicates compare lexicographically.
func ts(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTS(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

func (s *SQLiteStore) PutCostObservations(ctx context.Context, obs []models.CostObservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cost_observations (service, date, amount) VALUES (?, ?, ?)
		 ON CONFLICT (service, date) DO UPDATE SET amount = excluded.amount`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Service, ts(o.Date), o.Amount); err != nil {
			return fmt.Errorf("insert observation %s/%s: %w", o.Service, o.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) CostObservations(ctx context.Context, service string, since, until time.Time) ([]models.CostObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, date, amount FROM cost_observations
		 WHERE service = ? AND date >= ? AND date < ? ORDER BY date ASC`,
		service, ts(since), ts(until))
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []models.CostObservation
	for rows.Next() {
		var o models.CostObservation
		var date string
		if err := rows.Scan(&o.Service, &date, &o.Amount); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Date = parseTS(date)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutAnomaly(ctx context.Context, a models.CostAnomaly) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_anomalies
		 (anomaly_id, detected_date, service, observed_amount, baseline_amount, deviation_pct, severity, status, detected_at, expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AnomalyID, ts(a.DetectedDate), a.Service, a.ObservedAmount, a.BaselineAmount,
		a.DeviationPct, string(a.Severity), string(a.Status), ts(a.DetectedAt), ts(a.Expiry))
	if err != nil {
		return fmt.Errorf("insert anomaly %s: %w", a.AnomalyID, err)
	}
	return nil
}

func (s *SQLiteStore) AnomaliesSince(ctx context.Context, since time.Time) ([]models.CostAnomaly, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT anomaly_id, detected_date, service, observed_amount, baseline_amount, deviation_pct, severity, status, detected_at, expiry
		 FROM cost_anomalies WHERE detected_date >= ? ORDER BY detected_date DESC`, ts(since))
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var out []models.CostAnomaly
	for rows.Next() {
		var a models.CostAnomaly
		var detected, at, expiry, sev, status string
		if err := rows.Scan(&a.AnomalyID, &detected, &a.Service, &a.ObservedAmount,
			&a.BaselineAmount, &a.DeviationPct, &sev, &status, &at, &expiry); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		a.DetectedDate, a.DetectedAt, a.Expiry = parseTS(detected), parseTS(at), parseTS(expiry)
		a.Severity, a.Status = models.Severity(sev), models.AnomalyStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// anomalyStatusRank orders the forward-only anomaly lifecycle.
var anomalyStatusRank = map[models.AnomalyStatus]int{
	models.AnomalyOpen:         0,
	models.AnomalyAcknowledged: 1,
	models.AnomalyResolved:     2,
}

func (s *SQLiteStore) AdvanceAnomalyStatus(ctx context.Context, anomalyID string, status models.AnomalyStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM cost_anomalies WHERE anomaly_id = ?`, anomalyID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read anomaly %s: %w", anomalyID, err)
	}
	if anomalyStatusRank[status] <= anomalyStatusRank[models.AnomalyStatus(current)] {
		return fmt.Errorf("anomaly %s: cannot move %s -> %s", anomalyID, current, status)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cost_anomalies SET status = ? WHERE anomaly_id = ?`, string(status), anomalyID); err != nil {
		return fmt.Errorf("update anomaly %s: %w", anomalyID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) PutVerdict(ctx context.Context, v models.IdleVerdict) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idle_verdicts (resource_id, scan_date, resource_type, region, idle, excluded, reason, savings, expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (resource_id, scan_date) DO UPDATE SET
		   idle = excluded.idle, excluded = excluded.excluded, reason = excluded.reason, savings = excluded.savings`,
		v.ResourceID, ts(v.ScanDate), string(v.ResourceType), v.Region, boolInt(v.Idle), boolInt(v.Excluded),
		v.Reason, v.EstimatedMonthlySavings, ts(v.Expiry))
	if err != nil {
		return fmt.Errorf("insert verdict %s: %w", v.ResourceID, err)
	}
	return nil
}

func (s *SQLiteStore) VerdictsSince(ctx context.Context, since time.Time) ([]models.IdleVerdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource_id, scan_date, resource_type, region, idle, excluded, reason, savings, expiry
		 FROM idle_verdicts WHERE scan_date >= ? ORDER BY scan_date DESC`, ts(since))
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []models.IdleVerdict
	for rows.Next() {
		var v models.IdleVerdict
		var scan, expiry, rtype string
		var idle, excluded int
		if err := rows.Scan(&v.ResourceID, &scan, &rtype, &v.Region, &idle, &excluded, &v.Reason,
			&v.EstimatedMonthlySavings, &expiry); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		v.ScanDate, v.Expiry = parseTS(scan), parseTS(expiry)
		v.ResourceType = models.ResourceType(rtype)
		v.Idle, v.Excluded = idle != 0, excluded != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutCompliance(ctx context.Context, rec models.TagComplianceRecord) error {
	missingReq, _ := json.Marshal(rec.MissingRequired)
	missingOpt, _ := json.Marshal(rec.MissingOptional)
	invalid, _ := json.Marshal(rec.InvalidTags)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tag_compliance (resource_arn, scan_date, resource_type, status, missing_required, missing_optional, invalid_tags, expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (resource_arn, scan_date) DO UPDATE SET
		   status = excluded.status, missing_required = excluded.missing_required,
		   missing_optional = excluded.missing_optional, invalid_tags = excluded.invalid_tags`,
		rec.ResourceARN, ts(rec.ScanDate), string(rec.ResourceType), string(rec.Status),
		string(missingReq), string(missingOpt), string(invalid), ts(rec.Expiry))
	if err != nil {
		return fmt.Errorf("insert compliance %s: %w", rec.ResourceARN, err)
	}
	return nil
}

func (s *SQLiteStore) ComplianceSince(ctx context.Context, since time.Time) ([]models.TagComplianceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource_arn, scan_date, resource_type, status, missing_required, missing_optional, invalid_tags, expiry
		 FROM tag_compliance WHERE scan_date >= ? ORDER BY scan_date DESC`, ts(since))
	if err != nil {
		return nil, fmt.Errorf("query compliance: %w", err)
	}
	defer rows.Close()

	var out []models.TagComplianceRecord
	for rows.Next() {
		var rec models.TagComplianceRecord
		var scan, expiry, rtype, status, missingReq, missingOpt, invalid string
		if err := rows.Scan(&rec.ResourceARN, &scan, &rtype, &status, &missingReq, &missingOpt, &invalid, &expiry); err != nil {
			return nil, fmt.Errorf("scan compliance: %w", err)
		}
		rec.ScanDate, rec.Expiry = parseTS(scan), parseTS(expiry)
		rec.ResourceType = models.ResourceType(rtype)
		rec.Status = models.ComplianceStatus(status)
		json.Unmarshal([]byte(missingReq), &rec.MissingRequired)
		json.Unmarshal([]byte(missingOpt), &rec.MissingOptional)
		json.Unmarshal([]byte(invalid), &rec.InvalidTags)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateAction performs the conditional write guarding the cleanup state
// machine: the INSERT succeeds only when no PENDING or EXECUTED action for
// the same resource exists with a scheduled date inside the cooldown
// window. A rejected write surfaces as ErrConflict.
func (s *SQLiteStore) CreateAction(ctx context.Context, a models.CleanupAction, cooldown time.Duration) error {
	steps, _ := json.Marshal(a.Steps)
	cutoff := a.ScheduledDate.Add(-cooldown)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cleanup_actions
		 (action_id, scheduled_date, resource_id, resource_type, region, action_kind, status, dry_run, reason, savings, steps, executed_at, expiry)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?
		 WHERE NOT EXISTS (
		   SELECT 1 FROM cleanup_actions
		   WHERE resource_id = ?
		     AND status IN ('PENDING', 'EXECUTED')
		     AND scheduled_date > ?
		 )`,
		a.ActionID, ts(a.ScheduledDate), a.ResourceID, string(a.ResourceType), a.Region, string(a.Kind),
		string(a.Status), boolInt(a.DryRun), a.Reason, a.EstimatedMonthlySavings, string(steps), ts(a.Expiry),
		a.ResourceID, ts(cutoff))
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resource %s: %w", a.ResourceID, ErrConflict)
	}
	return nil
}

func (s *SQLiteStore) AdvanceAction(ctx context.Context, a models.CleanupAction) error {
	if !a.Status.Terminal() {
		return fmt.Errorf("action %s: %s is not a terminal status", a.ActionID, a.Status)
	}
	steps, _ := json.Marshal(a.Steps)

	var executedAt any
	if !a.ExecutedAt.IsZero() {
		executedAt = ts(a.ExecutedAt)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cleanup_actions
		 SET status = ?, reason = ?, steps = ?, executed_at = ?
		 WHERE action_id = ? AND status = 'PENDING'`,
		string(a.Status), a.Reason, string(steps), executedAt, a.ActionID)
	if err != nil {
		return fmt.Errorf("update action %s: %w", a.ActionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("action %s: not pending, transition rejected", a.ActionID)
	}
	return nil
}

func (s *SQLiteStore) ActionsByStatus(ctx context.Context, status models.ActionStatus) ([]models.CleanupAction, error) {
	return s.queryActions(ctx,
		`SELECT action_id, scheduled_date, resource_id, resource_type, region, action_kind, status, dry_run, reason, savings, steps, executed_at, expiry
		 FROM cleanup_actions WHERE status = ? ORDER BY scheduled_date DESC`, string(status))
}

func (s *SQLiteStore) ActionsSince(ctx context.Context, since time.Time) ([]models.CleanupAction, error) {
	return s.queryActions(ctx,
		`SELECT action_id, scheduled_date, resource_id, resource_type, region, action_kind, status, dry_run, reason, savings, steps, executed_at, expiry
		 FROM cleanup_actions WHERE scheduled_date >= ? ORDER BY scheduled_date DESC`, ts(since))
}

func (s *SQLiteStore) queryActions(ctx context.Context, query string, arg any) ([]models.CleanupAction, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []models.CleanupAction
	for rows.Next() {
		var a models.CleanupAction
		var scheduled, rtype, kind, status, steps, expiry string
		var dryRun int
		var executedAt sql.NullString
		if err := rows.Scan(&a.ActionID, &scheduled, &a.ResourceID, &rtype, &a.Region, &kind, &status,
			&dryRun, &a.Reason, &a.EstimatedMonthlySavings, &steps, &executedAt, &expiry); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.ScheduledDate, a.Expiry = parseTS(scheduled), parseTS(expiry)
		a.ResourceType = models.ResourceType(rtype)
		a.Kind = models.ActionKind(kind)
		a.Status = models.ActionStatus(status)
		a.DryRun = dryRun != 0
		json.Unmarshal([]byte(steps), &a.Steps)
		if executedAt.Valid {
			a.ExecutedAt = parseTS(executedAt.String)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) BudgetSnapshot(ctx context.Context, period models.BudgetPeriod, periodKey string) (*models.BudgetSnapshot, error) {
	var snap models.BudgetSnapshot
	var asOf, breached, expiry, p string
	err := s.db.QueryRowContext(ctx,
		`SELECT period, period_key, as_of_date, spend, budget, pct, breached, expiry
		 FROM budget_snapshots WHERE period = ? AND period_key = ?`,
		string(period), periodKey).
		Scan(&p, &snap.PeriodKey, &asOf, &snap.SpendToDate, &snap.BudgetLimit, &snap.PctConsumed, &breached, &expiry)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query budget snapshot: %w", err)
	}
	snap.Period = models.BudgetPeriod(p)
	snap.AsOfDate, snap.Expiry = parseTS(asOf), parseTS(expiry)
	json.Unmarshal([]byte(breached), &snap.BreachedThresholds)
	return &snap, nil
}

func (s *SQLiteStore) PutBudgetSnapshot(ctx context.Context, snap models.BudgetSnapshot) error {
	breached, _ := json.Marshal(snap.BreachedThresholds)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_snapshots (period, period_key, as_of_date, spend, budget, pct, breached, expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (period, period_key) DO UPDATE SET
		   as_of_date = excluded.as_of_date, spend = excluded.spend, budget = excluded.budget,
		   pct = excluded.pct, breached = excluded.breached`,
		string(snap.Period), snap.PeriodKey, ts(snap.AsOfDate), snap.SpendToDate,
		snap.BudgetLimit, snap.PctConsumed, string(breached), ts(snap.Expiry))
	if err != nil {
		return fmt.Errorf("upsert budget snapshot %s/%s: %w", snap.Period, snap.PeriodKey, err)
	}
	return nil
}

func (s *SQLiteStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"cost_anomalies", "idle_verdicts", "tag_compliance", "cleanup_actions", "budget_snapshots"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE expiry <= ?", table), ts(now))
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
