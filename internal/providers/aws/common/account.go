// Package common resolves AWS credentials, the target account, and the
// regions a governance cycle operates on. It is the sole entry point for
// AWS configuration management across the provider layer.
package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Account is a resolved AWS account with its SDK configuration. It is the
// unit handed to the billing, inventory, and exec adapters.
type Account struct {
	// Profile is the shared-config profile name, or "default".
	Profile string

	// ID is the numeric AWS account ID resolved via STS.
	ID string

	// Region is the home region of the loaded configuration.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config
}

// ForRegion returns a copy of the account's configuration with the region
// set. Use it to construct region-scoped SDK clients for collection and
// execution.
func (a *Account) ForRegion(region string) aws.Config {
	cfg := a.Config
	cfg.Region = region
	return cfg
}

// STSClient is the subset of STS operations used by the loader.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// RegionClient is the subset of EC2 operations used for region discovery.
type RegionClient interface {
	DescribeRegions(
		ctx context.Context,
		params *ec2.DescribeRegionsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeRegionsOutput, error)
}
