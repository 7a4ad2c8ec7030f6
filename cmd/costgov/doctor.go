package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/finops-kit/costgov/internal/config"
	"github.com/finops-kit/costgov/internal/policy"
	"github.com/finops-kit/costgov/internal/providers/aws/common"
	"github.com/finops-kit/costgov/internal/store"
)

// DoctorResult is the structured output of costgov doctor. It can be
// serialised to JSON via --format=json or rendered as a table (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		RegionCount int    `json:"region_count,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Store struct {
		Path   string `json:"path"`
		OpenOK bool   `json:"open_ok"`
		Error  string `json:"error,omitempty"`
	} `json:"store"`

	Policy struct {
		Source   string   `json:"source"`
		Degraded []string `json:"degraded,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	var flags commonFlags
	var format string

	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runDoctor(cmd.Context(), cmd.OutOrStdout(), format, flags)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main.go's
				// stderr path.
				os.Exit(1)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	return cmd
}

// runDoctor collects the diagnostics and renders them to w. The returned
// error covers only rendering failures; callers must inspect
// result.OverallHealthy for the verdict.
func runDoctor(ctx context.Context, w io.Writer, format string, flags commonFlags) (DoctorResult, error) {
	result := collectDoctorResult(ctx, flags)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

func collectDoctorResult(ctx context.Context, flags commonFlags) DoctorResult {
	var result DoctorResult

	cfg, err := config.Load(flags.cfgPath)
	if err != nil {
		cfg = &config.Config{StorePath: "costgov.db"}
		result.Store.Error = err.Error()
	}
	profile := flags.profile
	if profile == "" {
		profile = cfg.AWS.Profile
	}
	region := flags.region
	if region == "" {
		region = cfg.AWS.Region
	}

	// AWS: credentials, STS account identity, region discovery.
	// An empty profile string selects the default credential chain.
	result.AWS.Profile = profile
	var loader common.Loader
	acct, err := loader.Load(ctx, profile, region)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = acct.ID
		regions, err := loader.ActiveRegions(ctx, acct)
		if err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.RegionsOK = true
			result.AWS.RegionCount = len(regions)
		}
	}

	// Store: open and close the SQLite database at the configured path.
	result.Store.Path = cfg.StorePath
	if result.Store.Error == "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			result.Store.Error = err.Error()
		} else {
			result.Store.OpenOK = true
			st.Close()
		}
	}

	// Policy: loading never fails outright, but documents that fell back
	// to built-in defaults are worth surfacing.
	switch {
	case cfg.Policy.Dir != "":
		result.Policy.Source = "dir:" + cfg.Policy.Dir
		snap := policy.Load(ctx, policy.NewFileSource(cfg.Policy.Dir))
		result.Policy.Degraded = snap.Degraded
	case cfg.Policy.SSMPrefix != "" && acct != nil:
		result.Policy.Source = "ssm:" + cfg.Policy.SSMPrefix
	default:
		result.Policy.Source = "defaults"
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		result.Store.OpenOK

	return result
}

func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		if result.AWS.RegionsOK {
			doctorPrint(w, "Regions API", "OK", fmt.Sprintf("%d active regions", result.AWS.RegionCount))
		} else {
			doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintln(w, "\nStore:")
	if result.Store.OpenOK {
		doctorPrint(w, "SQLite", "OK", result.Store.Path)
	} else {
		doctorPrint(w, "SQLite", "FAIL", result.Store.Error)
	}

	fmt.Fprintln(w, "\nPolicy:")
	doctorPrint(w, "Source", "OK", result.Policy.Source)
	for _, doc := range result.Policy.Degraded {
		doctorPrint(w, doc, "WARN", "using built-in defaults")
	}

	if result.OverallHealthy {
		fmt.Fprintln(w, "\nOverall: HEALTHY")
	} else {
		fmt.Fprintln(w, "\nOverall: UNHEALTHY")
	}
}

func doctorPrint(w io.Writer, name, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  [%-4s] %-14s %s\n", status, name, detail)
	} else {
		fmt.Fprintf(w, "  [%-4s] %-14s\n", status, name)
	}
}
