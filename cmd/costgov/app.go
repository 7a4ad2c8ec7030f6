package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/finops-kit/costgov/internal/archive"
	"github.com/finops-kit/costgov/internal/budget"
	"github.com/finops-kit/costgov/internal/config"
	"github.com/finops-kit/costgov/internal/engine"
	"github.com/finops-kit/costgov/internal/notify"
	"github.com/finops-kit/costgov/internal/policy"
	"github.com/finops-kit/costgov/internal/providers/aws/billing"
	"github.com/finops-kit/costgov/internal/providers/aws/common"
	awsexec "github.com/finops-kit/costgov/internal/providers/aws/exec"
	"github.com/finops-kit/costgov/internal/providers/aws/inventory"
	"github.com/finops-kit/costgov/internal/store"
)

// app bundles the wired collaborators shared by every command.
type app struct {
	cfg    *config.Config
	acct   *common.Account
	st     *store.SQLiteStore
	loader common.Loader
}

// newApp loads the configuration, resolves the AWS account, and opens the
// store. Flag values win over config file values.
func newApp(ctx context.Context, cfgPath, profile, region string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if profile == "" {
		profile = cfg.AWS.Profile
	}
	if region == "" {
		region = cfg.AWS.Region
	}

	var loader common.Loader
	acct, err := loader.Load(ctx, profile, region)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}

	return &app{cfg: cfg, acct: acct, st: st, loader: loader}, nil
}

func (a *app) Close() error { return a.st.Close() }

// notifier returns the SNS notifier when topic ARNs are configured, the
// log-only notifier otherwise.
func (a *app) notifier() notify.Notifier {
	if a.cfg.Topics.Configured() {
		return notify.NewSNSNotifier(a.acct.Config, a.cfg.Topics.ARNs())
	}
	return notify.LogNotifier{}
}

// policySource selects the policy document source from configuration.
// Nil means built-in defaults.
func (a *app) policySource() policy.Source {
	switch {
	case a.cfg.Policy.Dir != "":
		return policy.NewFileSource(a.cfg.Policy.Dir)
	case a.cfg.Policy.SSMPrefix != "":
		return policy.NewSSMSource(ssm.NewFromConfig(a.acct.Config), a.cfg.Policy.SSMPrefix)
	}
	return nil
}

func (a *app) billing() *billing.Client { return billing.NewClient(a.acct.Config) }

func (a *app) limits() budget.Limits {
	return budget.Limits{Daily: a.cfg.Budget.DailyLimit, Monthly: a.cfg.Budget.MonthlyLimit}
}

// regionsFn resolves the scan regions: the explicit flag list when given,
// otherwise every opted-in region of the account.
func (a *app) regionsFn(explicit []string) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		if len(explicit) > 0 {
			return explicit, nil
		}
		return a.loader.ActiveRegions(ctx, a.acct)
	}
}

// engineDeps wires the full cycle engine.
func (a *app) engineDeps(explicit []string) engine.Deps {
	deps := engine.Deps{
		Store:    a.st,
		Source:   a.policySource(),
		Notifier: a.notifier(),
		Bill:     a.billing(),
		Regions:  a.regionsFn(explicit),
		Inventory: func(region string) engine.Inventory {
			return inventory.NewCollector(a.acct.ForRegion(region), a.acct.ID)
		},
		Exec:   awsexec.New(a.acct),
		Limits: a.limits(),
	}
	if a.cfg.Archive.Bucket != "" {
		deps.Archiver = archive.New(a.acct.Config, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix)
	}
	return deps
}

// today returns the current UTC day at midnight.
func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
