package common

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Loader resolves the target account for a governance cycle. The zero value
// uses real SDK clients; tests inject stubs through the two factory fields.
type Loader struct {
	// NewSTS and NewRegions override SDK client construction in tests.
	NewSTS     func(cfg aws.Config) STSClient
	NewRegions func(cfg aws.Config) RegionClient
}

// Load reads the AWS shared config for the given profile (empty string for
// the default profile), resolves the account ID via STS, and returns the
// Account. The region falls back to us-east-1 when the profile carries none,
// so that every SDK client can be constructed.
func (l *Loader) Load(ctx context.Context, profile, region string) (*Account, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", displayName(profile), err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	stsClient := l.newSTS(cfg)
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("resolve account for profile %q: %w", displayName(profile), err)
	}
	if out.Account == nil {
		return nil, fmt.Errorf("STS GetCallerIdentity returned nil account")
	}

	return &Account{
		Profile: displayName(profile),
		ID:      aws.ToString(out.Account),
		Region:  cfg.Region,
		Config:  cfg,
	}, nil
}

// ActiveRegions returns all regions the account has opted into. EC2
// DescribeRegions is a global call and works from any home region.
func (l *Loader) ActiveRegions(ctx context.Context, acct *Account) ([]string, error) {
	client := l.newRegions(acct.Config)
	out, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions for account %s: %w", acct.ID, err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	return regions, nil
}

func (l *Loader) newSTS(cfg aws.Config) STSClient {
	if l.NewSTS != nil {
		return l.NewSTS(cfg)
	}
	return sts.NewFromConfig(cfg)
}

func (l *Loader) newRegions(cfg aws.Config) RegionClient {
	if l.NewRegions != nil {
		return l.NewRegions(cfg)
	}
	return ec2.NewFromConfig(cfg)
}

func displayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
