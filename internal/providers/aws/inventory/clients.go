// Package inventory collects governed resources from one region and
// normalizes them into observations with daily utilization history.
//
// Each collector pages through its service's listing API and enriches the
// result from CloudWatch. CloudWatch failures are non-fatal: an observation
// with no samples means "no data available", which the idle checks treat as
// insufficient evidence rather than idleness.
package inventory

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
)

// invEC2Client covers the EC2 operations used for collection. A single
// *ec2.Client satisfies every method, which also satisfies the SDK v2
// paginator interfaces for the Describe calls.
type invEC2Client interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2svc.DescribeInstancesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeInstancesOutput, error)

	DescribeVolumes(
		ctx context.Context,
		params *ec2svc.DescribeVolumesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeVolumesOutput, error)

	DescribeAddresses(
		ctx context.Context,
		params *ec2svc.DescribeAddressesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeAddressesOutput, error)

	DescribeSnapshots(
		ctx context.Context,
		params *ec2svc.DescribeSnapshotsInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeSnapshotsOutput, error)

	DescribeImages(
		ctx context.Context,
		params *ec2svc.DescribeImagesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeImagesOutput, error)
}

// invRDSClient covers the RDS operations used for collection.
type invRDSClient interface {
	DescribeDBInstances(
		ctx context.Context,
		params *rdssvc.DescribeDBInstancesInput,
		optFns ...func(*rdssvc.Options),
	) (*rdssvc.DescribeDBInstancesOutput, error)
}

// invELBClient covers the ELBv2 operations used for collection.
type invELBClient interface {
	DescribeLoadBalancers(
		ctx context.Context,
		params *elbv2svc.DescribeLoadBalancersInput,
		optFns ...func(*elbv2svc.Options),
	) (*elbv2svc.DescribeLoadBalancersOutput, error)

	DescribeTargetGroups(
		ctx context.Context,
		params *elbv2svc.DescribeTargetGroupsInput,
		optFns ...func(*elbv2svc.Options),
	) (*elbv2svc.DescribeTargetGroupsOutput, error)
}

// invCWClient covers the CloudWatch operations used for enrichment.
type invCWClient interface {
	GetMetricStatistics(
		ctx context.Context,
		params *cloudwatch.GetMetricStatisticsInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Collector gathers resource observations for one account region.
type Collector struct {
	accountID string
	region    string

	ec2 invEC2Client
	rds invRDSClient
	elb invELBClient
	cw  invCWClient
}

// NewCollector constructs a Collector with real SDK clients built from a
// region-scoped cfg.
func NewCollector(cfg aws.Config, accountID string) *Collector {
	return &Collector{
		accountID: accountID,
		region:    cfg.Region,
		ec2:       ec2svc.NewFromConfig(cfg),
		rds:       rdssvc.NewFromConfig(cfg),
		elb:       elbv2svc.NewFromConfig(cfg),
		cw:        cloudwatch.NewFromConfig(cfg),
	}
}
