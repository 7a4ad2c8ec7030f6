// Package exec performs the destructive operations the cleanup orchestrator
// schedules. Every method addresses a single resource in a single region and
// wraps failures in ExecutionError so the orchestrator can record them
// without losing the action kind.
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/providers/aws/common"
)

// execEC2Client covers the EC2 operations used for cleanup execution.
// DescribeSnapshots is included so the snapshot-completed waiter can poll;
// DescribeInstances resolves attached volumes before termination.
type execEC2Client interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2svc.DescribeInstancesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeInstancesOutput, error)

	StopInstances(
		ctx context.Context,
		params *ec2svc.StopInstancesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.StopInstancesOutput, error)

	TerminateInstances(
		ctx context.Context,
		params *ec2svc.TerminateInstancesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.TerminateInstancesOutput, error)

	CreateSnapshot(
		ctx context.Context,
		params *ec2svc.CreateSnapshotInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.CreateSnapshotOutput, error)

	DescribeSnapshots(
		ctx context.Context,
		params *ec2svc.DescribeSnapshotsInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeSnapshotsOutput, error)

	DeleteVolume(
		ctx context.Context,
		params *ec2svc.DeleteVolumeInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DeleteVolumeOutput, error)

	ReleaseAddress(
		ctx context.Context,
		params *ec2svc.ReleaseAddressInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.ReleaseAddressOutput, error)

	DeleteSnapshot(
		ctx context.Context,
		params *ec2svc.DeleteSnapshotInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DeleteSnapshotOutput, error)

	DeregisterImage(
		ctx context.Context,
		params *ec2svc.DeregisterImageInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DeregisterImageOutput, error)
}

// execRDSClient covers the RDS operations used for cleanup execution.
type execRDSClient interface {
	StopDBInstance(
		ctx context.Context,
		params *rdssvc.StopDBInstanceInput,
		optFns ...func(*rdssvc.Options),
	) (*rdssvc.StopDBInstanceOutput, error)
}

// execELBClient covers the ELBv2 operations used for cleanup execution.
type execELBClient interface {
	DeleteLoadBalancer(
		ctx context.Context,
		params *elbv2svc.DeleteLoadBalancerInput,
		optFns ...func(*elbv2svc.Options),
	) (*elbv2svc.DeleteLoadBalancerOutput, error)
}

// SnapshotWaitTimeout bounds the wait for a pre-deletion volume snapshot to
// complete. Large volumes can take a while; the orchestrator treats a
// timeout like any other snapshot-step failure.
const SnapshotWaitTimeout = 10 * time.Minute

// Executor executes cleanup operations against one account, building
// region-scoped clients on demand. Safe for concurrent use.
type Executor struct {
	account *common.Account

	// newEC2, newRDS, and newELB override SDK client construction in tests.
	newEC2 func(cfg aws.Config) execEC2Client
	newRDS func(cfg aws.Config) execRDSClient
	newELB func(cfg aws.Config) execELBClient

	mu   sync.Mutex
	ec2s map[string]execEC2Client
	rdss map[string]execRDSClient
	elbs map[string]execELBClient
}

// New returns an Executor for acct backed by real SDK clients.
func New(acct *common.Account) *Executor {
	return &Executor{
		account: acct,
		newEC2:  func(cfg aws.Config) execEC2Client { return ec2svc.NewFromConfig(cfg) },
		newRDS:  func(cfg aws.Config) execRDSClient { return rdssvc.NewFromConfig(cfg) },
		newELB:  func(cfg aws.Config) execELBClient { return elbv2svc.NewFromConfig(cfg) },
		ec2s:    make(map[string]execEC2Client),
		rdss:    make(map[string]execRDSClient),
		elbs:    make(map[string]execELBClient),
	}
}

func (e *Executor) ec2For(region string) execEC2Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.ec2s[region]; ok {
		return c
	}
	c := e.newEC2(e.account.ForRegion(region))
	e.ec2s[region] = c
	return c
}

func (e *Executor) rdsFor(region string) execRDSClient {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.rdss[region]; ok {
		return c
	}
	c := e.newRDS(e.account.ForRegion(region))
	e.rdss[region] = c
	return c
}

func (e *Executor) elbFor(region string) execELBClient {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.elbs[region]; ok {
		return c
	}
	c := e.newELB(e.account.ForRegion(region))
	e.elbs[region] = c
	return c
}

func execErr(resourceID string, kind models.ActionKind, err error) error {
	if err == nil {
		return nil
	}
	return &models.ExecutionError{ResourceID: resourceID, Kind: kind, Err: err}
}
