package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/finops-kit/costgov/internal/models"
)

// ANSI color codes for severity output (used when Colored=true).
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[0;31m"
	ansiYellow = "\033[0;33m"
)

// Options controls table rendering.
type Options struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	s := string(sev)
	if !colored {
		return s
	}
	switch sev {
	case models.SeverityHigh:
		return ansiRed + s + ansiReset
	case models.SeverityMedium:
		return ansiYellow + s + ansiReset
	default:
		return s
	}
}

// Shorten truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func Shorten(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// truncateField shortens s to at most max bytes for ID/label columns.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are
// plain so subsequent columns stay aligned regardless of ANSI support.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return ColorSeverity(sev, true) + strings.Repeat(" ", spaces)
}

// RenderAnomalies writes a formatted anomaly table to w.
func RenderAnomalies(w io.Writer, anomalies []models.CostAnomaly, opts Options) {
	if len(anomalies) == 0 {
		fmt.Fprintln(w, "No anomalies detected.")
		return
	}

	const (
		wDate     = 12
		wService  = 40
		wAmount   = 10
		wSeverity = 8
	)

	header := fmt.Sprintf("%-*s  %-*s  %*s  %*s  %9s  %-*s",
		wDate, "DATE", wService, "SERVICE",
		wAmount, "OBSERVED", wAmount, "BASELINE", "DEVIATION", wSeverity, "SEVERITY")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, a := range anomalies {
		fmt.Fprintf(w, "%-*s  %-*s  %*.2f  %*.2f  %8.1f%%  %s\n",
			wDate, a.DetectedDate.Format("2006-01-02"),
			wService, truncateField(a.Service, wService),
			wAmount, a.ObservedAmount,
			wAmount, a.BaselineAmount,
			a.DeviationPct,
			severityCell(a.Severity, wSeverity, opts.Colored))
	}
}

// RenderVerdicts writes a scan summary and a table of idle resources to w.
// Resources that are in use are counted but not listed.
func RenderVerdicts(w io.Writer, verdicts []models.IdleVerdict, opts Options) {
	var idleCount, excludedCount int
	var savings float64
	for _, v := range verdicts {
		if v.Excluded {
			excludedCount++
		}
		if v.Idle {
			idleCount++
			savings += v.EstimatedMonthlySavings
		}
	}
	fmt.Fprintf(w, "Scanned: %d  Idle: %d  Excluded: %d  Est. Savings: $%.2f/mo\n",
		len(verdicts), idleCount, excludedCount, savings)
	if idleCount == 0 {
		return
	}

	const (
		wResource = 42
		wType     = 18
		wRegion   = 15
		wReason   = 45
	)

	fmt.Fprintln(w)
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %10s  %-*s",
		wResource, "RESOURCE ID", wType, "TYPE", wRegion, "REGION", "SAVINGS/MO", wReason, "REASON")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, v := range verdicts {
		if !v.Idle {
			continue
		}
		fmt.Fprintf(w, "%-*s  %-*s  %-*s  $%9.2f  %s\n",
			wResource, truncateField(v.ResourceID, wResource),
			wType, truncateField(string(v.ResourceType), wType),
			wRegion, truncateField(v.Region, wRegion),
			v.EstimatedMonthlySavings,
			Shorten(v.Reason, wReason))
	}
}

// RenderCompliance writes a tag compliance summary and a table of the
// non-compliant resources to w.
func RenderCompliance(w io.Writer, records []models.TagComplianceRecord, opts Options) {
	var violations, warnings int
	for _, r := range records {
		switch r.Status {
		case models.TagViolation:
			violations++
		case models.TagWarning:
			warnings++
		}
	}
	fmt.Fprintf(w, "Checked: %d  Violations: %d  Warnings: %d\n", len(records), violations, warnings)
	if violations == 0 && warnings == 0 {
		return
	}

	const (
		wARN    = 70
		wStatus = 10
	)

	fmt.Fprintln(w)
	header := fmt.Sprintf("%-*s  %-*s  %s", wARN, "RESOURCE ARN", wStatus, "STATUS", "PROBLEM")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+20))

	for _, r := range records {
		if r.Status == models.TagCompliant {
			continue
		}
		fmt.Fprintf(w, "%-*s  %-*s  %s\n",
			wARN, truncateField(r.ResourceARN, wARN),
			wStatus, r.Status,
			complianceProblem(r))
	}
}

// complianceProblem summarises the failed checks of one record.
func complianceProblem(r models.TagComplianceRecord) string {
	var parts []string
	if len(r.MissingRequired) > 0 {
		parts = append(parts, "missing: "+strings.Join(r.MissingRequired, ", "))
	}
	if len(r.MissingOptional) > 0 {
		parts = append(parts, "recommended: "+strings.Join(r.MissingOptional, ", "))
	}
	for _, tag := range r.InvalidTags {
		if tag.Pattern != "" {
			parts = append(parts, fmt.Sprintf("%s=%q does not match %q", tag.Key, tag.Value, tag.Pattern))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q not in %v", tag.Key, tag.Value, tag.AllowedValues))
	}
	return strings.Join(parts, "; ")
}

// RenderReport writes a human-readable report summary to w. The full
// document is available as JSON via the report command's --format=json.
func RenderReport(w io.Writer, r *models.Report) {
	fmt.Fprintf(w, "Window:    %s to %s\n", r.WindowStart.Format("2006-01-02"), r.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(w, "Spend:     $%.2f (%s %.1f%% vs prior period)\n", r.TotalSpend, r.Trend, r.TrendPct)
	fmt.Fprintf(w, "Idle:      %d resources, $%.2f/mo potential savings\n", r.IdleResourceCount, r.EstimatedSavings)
	fmt.Fprintf(w, "Tags:      %d violations\n", r.ViolationCount)
	fmt.Fprintf(w, "Anomalies: %d (%d high severity)\n", r.AnomalyCount, r.HighSeverityAnomalies)
	fmt.Fprintf(w, "Cleanup:   %d executed, %d failed\n", r.CleanupExecuted, r.CleanupFailed)

	if len(r.TopServices) > 0 {
		fmt.Fprintln(w, "\nTop Services")
		for _, s := range r.TopServices {
			fmt.Fprintf(w, "  %-50s  $%10.2f  %5.1f%%\n", truncateField(s.Service, 50), s.CostUSD, s.PctOfTotal)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  [%s] %s (save ~$%.2f/mo)\n",
				strings.ToUpper(rec.Priority), rec.Summary, rec.PotentialSavings)
		}
	}
}
