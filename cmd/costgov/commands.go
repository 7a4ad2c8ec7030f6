package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/finops-kit/costgov/internal/anomaly"
	"github.com/finops-kit/costgov/internal/archive"
	"github.com/finops-kit/costgov/internal/budget"
	"github.com/finops-kit/costgov/internal/cleanup"
	"github.com/finops-kit/costgov/internal/compliance"
	"github.com/finops-kit/costgov/internal/config"
	"github.com/finops-kit/costgov/internal/engine"
	"github.com/finops-kit/costgov/internal/idle"
	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/output"
	"github.com/finops-kit/costgov/internal/policy"
	awsexec "github.com/finops-kit/costgov/internal/providers/aws/exec"
	"github.com/finops-kit/costgov/internal/providers/aws/inventory"
	"github.com/finops-kit/costgov/internal/report"
	"github.com/finops-kit/costgov/internal/store"
	"github.com/finops-kit/costgov/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "costgov",
		Short: "Cost governance engine: anomalies, idle resources, tags, cleanup, budgets",
	}
	root.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
		newAnomaliesCmd(),
		newScanCmd(),
		newTagsCmd(),
		newCleanupCmd(),
		newBudgetCmd(),
		newReportCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)
	return root
}

// commonFlags are shared by every command that reaches AWS.
type commonFlags struct {
	cfgPath string
	profile string
	region  string
	regions []string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cfgPath, "config", "", "Config file path (default: ~/.config/costgov/config.yaml)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "AWS profile name (default: config file, then default profile)")
	cmd.Flags().StringVar(&f.region, "region", "", "Home AWS region for account resolution")
	cmd.Flags().StringSliceVar(&f.regions, "scan-region", nil, "Region(s) to scan (default: all active regions)")
}

func newRunCmd() *cobra.Command {
	var flags commonFlags
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full governance cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := engine.New(a.engineDeps(flags.regions)).RunCycle(ctx, engine.Options{})
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}
			if output != "" {
				if err := writeJSONFile(output, summary); err != nil {
					return err
				}
			}
			return printJSON(summary)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "Write the cycle summary JSON to this file path")
	return cmd
}

// costAnalysis is the analyze command's JSON output document.
type costAnalysis struct {
	ScanDate         time.Time            `json:"scan_date"`
	ForecastMonthEnd float64              `json:"forecast_month_end_usd,omitempty"`
	Anomalies        []models.CostAnomaly `json:"anomalies"`
}

func newAnalyzeCmd() *cobra.Command {
	var flags commonFlags
	var format string
	var colored bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect cost anomalies from daily spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := policy.Load(ctx, a.policySource())
			scanDate := today()
			bill := a.billing()
			obs, err := bill.DailyCostsByService(ctx,
				scanDate.AddDate(0, 0, -snap.CostRules.LookbackDays),
				scanDate.AddDate(0, 0, 1))
			if err != nil {
				return fmt.Errorf("fetch daily costs: %w", err)
			}
			if err := a.st.PutCostObservations(ctx, obs); err != nil {
				return err
			}

			detector := anomaly.New(snap.CostRules)
			var found []models.CostAnomaly
			for _, series := range anomaly.GroupByService(obs) {
				an, err := detector.Evaluate(series, time.Now())
				if errors.Is(err, models.ErrInsufficientHistory) {
					continue
				}
				if err != nil {
					log.Warn().Err(err).Str("service", series.Service).Msg("series skipped")
					continue
				}
				if an == nil {
					continue
				}
				if err := a.st.PutAnomaly(ctx, *an); err != nil {
					return err
				}
				found = append(found, *an)
			}

			forecast, err := bill.ForecastMonthEnd(ctx, scanDate)
			if err != nil {
				log.Warn().Err(err).Msg("month-end forecast unavailable")
			}

			if format == "json" {
				return printJSON(costAnalysis{
					ScanDate:         scanDate,
					ForecastMonthEnd: forecast,
					Anomalies:        found,
				})
			}
			output.RenderAnomalies(os.Stdout, found, output.Options{Colored: colored})
			if forecast > 0 {
				fmt.Printf("\nForecast month-end spend: $%.2f\n", forecast)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&colored, "color", false, "Colorize severity in table output")
	return cmd
}

func newAnomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List and update recorded cost anomalies",
	}
	cmd.AddCommand(
		newAnomaliesListCmd(),
		newAnomalyStatusCmd("ack", models.AnomalyAcknowledged),
		newAnomalyStatusCmd("resolve", models.AnomalyResolved),
	)
	return cmd
}

func newAnomaliesListCmd() *cobra.Command {
	var cfgPath string
	var days int
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List anomalies recorded in the trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()

			anomalies, err := st.AnomaliesSince(cmd.Context(), today().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(anomalies)
			}
			output.RenderAnomalies(cmd.OutOrStdout(), anomalies, output.Options{})
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.config/costgov/config.yaml)")
	cmd.Flags().IntVar(&days, "days", 7, "Window length in days")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

// newAnomalyStatusCmd builds the ack and resolve subcommands. Status moves
// forward only; the store rejects backward transitions.
func newAnomalyStatusCmd(verb string, status models.AnomalyStatus) *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   verb + " <anomaly-id>",
		Short: fmt.Sprintf("Mark an anomaly %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.AdvanceAnomalyStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.config/costgov/config.yaml)")
	return cmd
}

// openStore opens the configured SQLite store without resolving AWS
// credentials; anomaly bookkeeping is local-only.
func openStore(cfgPath string) (*store.SQLiteStore, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}
	return st, nil
}

func newScanCmd() *cobra.Command {
	var flags commonFlags
	var format string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan resources and evaluate idleness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := policy.Load(ctx, a.policySource())
			scanDate := today()
			obs, err := collectObservations(ctx, a, flags.regions, scanDate, snap.Cleanup.ObservationDays)
			if err != nil {
				return err
			}

			evaluator := idle.NewEvaluator(snap.Cleanup)
			var verdicts []models.IdleVerdict
			for _, o := range obs {
				v, err := evaluator.Evaluate(o)
				if err != nil {
					log.Warn().Err(err).Str("resource_id", o.ResourceID).Msg("resource skipped")
					continue
				}
				if err := a.st.PutVerdict(ctx, v); err != nil {
					return err
				}
				verdicts = append(verdicts, v)
			}

			if format == "json" {
				return printJSON(verdicts)
			}
			output.RenderVerdicts(os.Stdout, verdicts, output.Options{})
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func newTagsCmd() *cobra.Command {
	var flags commonFlags
	var format string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Check resource tags against the tag policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := policy.Load(ctx, a.policySource())
			scanDate := today()
			obs, err := collectObservations(ctx, a, flags.regions, scanDate, snap.Cleanup.ObservationDays)
			if err != nil {
				return err
			}

			evaluator := compliance.New(snap.TagPolicy)
			var records []models.TagComplianceRecord
			for _, o := range obs {
				if o.ARN == "" {
					continue
				}
				rec := evaluator.Evaluate(o)
				if err := a.st.PutCompliance(ctx, rec); err != nil {
					return err
				}
				records = append(records, rec)
			}

			if format == "json" {
				return printJSON(records)
			}
			output.RenderCompliance(os.Stdout, records, output.Options{})
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Plan and resolve cleanup actions from today's verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := policy.Load(ctx, a.policySource())
			all, err := a.st.VerdictsSince(ctx, today())
			if err != nil {
				return err
			}
			verdicts := latestPerResource(all)
			if len(verdicts) == 0 {
				fmt.Println("No verdicts recorded today; run `costgov scan` first.")
				return nil
			}

			planner := cleanup.NewPlanner(a.st, snap.Cleanup)
			_, planStats, err := planner.Plan(ctx, verdicts)
			if err != nil {
				return err
			}

			eligible := make(map[string]models.IdleVerdict, len(verdicts))
			for _, v := range verdicts {
				eligible[v.ResourceID] = v
			}
			orch := cleanup.NewOrchestrator(a.st, awsexec.New(a.acct), a.notifier(), snap.Cleanup)
			runStats, err := orch.Run(ctx, eligible)
			if err != nil {
				return err
			}

			fmt.Printf("Planned: %d  (conflicted: %d, ineligible: %d)\n",
				planStats.Created, planStats.Conflicted, planStats.Ineligible)
			fmt.Printf("Resolved: %d dry-run, %d executed, %d skipped, %d failed\n",
				runStats.DryRun, runStats.Executed, runStats.Skipped, runStats.Failed)
			if snap.Cleanup.DryRun {
				fmt.Println("Dry run is on; no destructive calls were made.")
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBudgetCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Check spend against configured budget limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			limits := a.limits()
			if limits.Daily <= 0 && limits.Monthly <= 0 {
				fmt.Println("No budget limits configured.")
				return nil
			}

			asOf := today()
			dayEnd := asOf.AddDate(0, 0, 1)
			bill := a.billing()
			daySpend, err := bill.SpendInPeriod(ctx, asOf, dayEnd)
			if err != nil {
				return fmt.Errorf("day spend: %w", err)
			}
			monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
			monthSpend, err := bill.SpendInPeriod(ctx, monthStart, dayEnd)
			if err != nil {
				return fmt.Errorf("month spend: %w", err)
			}

			alerts, err := budget.New(a.st, limits).Evaluate(ctx, asOf, daySpend, monthSpend)
			if err != nil {
				return err
			}
			fmt.Printf("Day:   $%.2f\nMonth: $%.2f\n", daySpend, monthSpend)
			if len(alerts) == 0 {
				fmt.Println("No new budget threshold crossings.")
				return nil
			}
			for _, al := range alerts {
				fmt.Println(al.Message)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newReportCmd() *cobra.Command {
	var flags commonFlags
	var days int
	var format, outputPath string
	var doArchive bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the governance report for a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags.cfgPath, flags.profile, flags.region)
			if err != nil {
				return err
			}
			defer a.Close()

			end := today()
			r, err := report.New(a.st, a.billing()).Generate(ctx, end, days)
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			if outputPath != "" {
				if err := writeJSONFile(outputPath, r); err != nil {
					return err
				}
			}
			if doArchive {
				if a.cfg.Archive.Bucket == "" {
					return fmt.Errorf("--archive requires archive.bucket in the config")
				}
				arch := archive.New(a.acct.Config, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix)
				key, err := arch.Put(ctx, "reports", r.ReportID, end, r)
				if err != nil {
					return err
				}
				log.Info().Str("key", key).Msg("report archived")
			}

			if format == "json" {
				return printJSON(r)
			}
			output.RenderReport(os.Stdout, r)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&days, "days", 7, "Reporting window length in days")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write the full JSON report to this file path")
	cmd.Flags().BoolVar(&doArchive, "archive", false, "Also write the report to the configured S3 archive")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// collectObservations gathers inventory across the resolved regions.
// Per-unit collection failures are logged and skipped.
func collectObservations(ctx context.Context, a *app, explicit []string, scanDate time.Time, observationDays int) ([]models.ResourceObservation, error) {
	regions, err := a.regionsFn(explicit)(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve regions: %w", err)
	}
	var all []models.ResourceObservation
	for _, region := range regions {
		collector := inventory.NewCollector(a.acct.ForRegion(region), a.acct.ID)
		obs, errs := collector.Collect(ctx, scanDate, observationDays)
		for _, err := range errs {
			log.Warn().Err(err).Str("region", region).Msg("collection unit failed")
		}
		all = append(all, obs...)
	}
	return all, nil
}

// latestPerResource keeps the most recent verdict per resource. Input is
// recent first, as returned by the store.
func latestPerResource(verdicts []models.IdleVerdict) []models.IdleVerdict {
	seen := make(map[string]bool, len(verdicts))
	var out []models.IdleVerdict
	for _, v := range verdicts {
		if seen[v.ResourceID] {
			continue
		}
		seen[v.ResourceID] = true
		out = append(out, v)
	}
	return out
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONFile serialises v as indented JSON and writes it to path,
// creating or overwriting the file.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

