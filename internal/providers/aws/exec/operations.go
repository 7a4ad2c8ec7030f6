package exec

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/finops-kit/costgov/internal/models"
)

// StopInstance stops a running EC2 instance.
func (e *Executor) StopInstance(ctx context.Context, region, instanceID string) error {
	_, err := e.ec2For(region).StopInstances(ctx, &ec2svc.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return execErr(instanceID, models.ActionStop, err)
}

// TerminateInstance terminates an EC2 instance.
func (e *Executor) TerminateInstance(ctx context.Context, region, instanceID string) error {
	_, err := e.ec2For(region).TerminateInstances(ctx, &ec2svc.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return execErr(instanceID, models.ActionTerminate, err)
}

// StopDatabase stops an RDS instance. Stopped databases keep their storage;
// this is the reversible reclaim for idle databases.
func (e *Executor) StopDatabase(ctx context.Context, region, dbID string) error {
	_, err := e.rdsFor(region).StopDBInstance(ctx, &rdssvc.StopDBInstanceInput{
		DBInstanceIdentifier: aws.String(dbID),
	})
	return execErr(dbID, models.ActionStop, err)
}

// SnapshotInstanceVolumes snapshots every EBS volume attached to the
// instance and waits for each snapshot to complete, returning their IDs in
// attachment order. Used as the safety net before termination.
func (e *Executor) SnapshotInstanceVolumes(ctx context.Context, region, instanceID string) ([]string, error) {
	client := e.ec2For(region)
	out, err := client.DescribeInstances(ctx, &ec2svc.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, execErr(instanceID, models.ActionTerminate, fmt.Errorf("describe instance: %w", err))
	}

	var snapshots []string
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			for _, bdm := range inst.BlockDeviceMappings {
				if bdm.Ebs == nil || bdm.Ebs.VolumeId == nil {
					continue
				}
				snapID, err := e.SnapshotVolume(ctx, region, *bdm.Ebs.VolumeId)
				if err != nil {
					return snapshots, execErr(instanceID, models.ActionTerminate, err)
				}
				snapshots = append(snapshots, snapID)
			}
		}
	}
	return snapshots, nil
}

// SnapshotVolume creates a snapshot of the volume and blocks until the
// snapshot reaches the completed state, returning its ID. The returned
// snapshot is the recovery point for the subsequent volume deletion.
func (e *Executor) SnapshotVolume(ctx context.Context, region, volumeID string) (string, error) {
	client := e.ec2For(region)
	out, err := client.CreateSnapshot(ctx, &ec2svc.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(fmt.Sprintf("costgov pre-deletion snapshot of %s", volumeID)),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeSnapshot,
				Tags: []ec2types.Tag{
					{Key: aws.String("costgov:source-volume"), Value: aws.String(volumeID)},
				},
			},
		},
	})
	if err != nil {
		return "", execErr(volumeID, models.ActionDeleteVolume, fmt.Errorf("create snapshot: %w", err))
	}
	snapshotID := aws.ToString(out.SnapshotId)

	waiter := ec2svc.NewSnapshotCompletedWaiter(client)
	err = waiter.Wait(ctx, &ec2svc.DescribeSnapshotsInput{
		SnapshotIds: []string{snapshotID},
	}, SnapshotWaitTimeout)
	if err != nil {
		return snapshotID, execErr(volumeID, models.ActionDeleteVolume,
			fmt.Errorf("wait for snapshot %s: %w", snapshotID, err))
	}
	return snapshotID, nil
}

// DeleteVolume deletes an unattached EBS volume. Callers must have taken a
// completed snapshot first; this method performs no snapshot of its own.
func (e *Executor) DeleteVolume(ctx context.Context, region, volumeID string) error {
	_, err := e.ec2For(region).DeleteVolume(ctx, &ec2svc.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	return execErr(volumeID, models.ActionDeleteVolume, err)
}

// ReleaseAddress releases an unassociated Elastic IP allocation.
func (e *Executor) ReleaseAddress(ctx context.Context, region, allocationID string) error {
	_, err := e.ec2For(region).ReleaseAddress(ctx, &ec2svc.ReleaseAddressInput{
		AllocationId: aws.String(allocationID),
	})
	return execErr(allocationID, models.ActionReleaseAddress, err)
}

// DeleteLoadBalancer deletes an ELBv2 load balancer by ARN.
func (e *Executor) DeleteLoadBalancer(ctx context.Context, region, arn string) error {
	_, err := e.elbFor(region).DeleteLoadBalancer(ctx, &elbv2svc.DeleteLoadBalancerInput{
		LoadBalancerArn: aws.String(arn),
	})
	return execErr(arn, models.ActionDeleteLB, err)
}

// DeleteSnapshot deletes an EBS snapshot.
func (e *Executor) DeleteSnapshot(ctx context.Context, region, snapshotID string) error {
	_, err := e.ec2For(region).DeleteSnapshot(ctx, &ec2svc.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	return execErr(snapshotID, models.ActionDeleteSnapshot, err)
}

// DeregisterImage deregisters an AMI. Backing snapshots are left in place;
// they are governed by the snapshot age check independently.
func (e *Executor) DeregisterImage(ctx context.Context, region, imageID string) error {
	_, err := e.ec2For(region).DeregisterImage(ctx, &ec2svc.DeregisterImageInput{
		ImageId: aws.String(imageID),
	})
	return execErr(imageID, models.ActionDeregisterImage, err)
}
