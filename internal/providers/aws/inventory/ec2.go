package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/finops-kit/costgov/internal/models"
)

// Instances pages through running EC2 instances and enriches each with its
// daily average CPUUtilization over [start, end). Stopped instances are not
// collected; they already incur no compute cost.
func (c *Collector) Instances(ctx context.Context, scanDate, start, end time.Time) ([]models.ResourceObservation, error) {
	paginator := ec2svc.NewDescribeInstancesPaginator(c.ec2, &ec2svc.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	})

	var obs []models.ResourceObservation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeInstances page: %w", err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				id := aws.ToString(inst.InstanceId)
				o := models.ResourceObservation{
					ResourceID:   id,
					ResourceType: models.ResourceComputeInstance,
					ARN:          c.arn("instance", id),
					Region:       c.region,
					ScanDate:     scanDate,
					Tags:         ec2Tags(inst.Tags),
				}
				if inst.LaunchTime != nil {
					o.AgeDays = ageDays(*inst.LaunchTime, scanDate)
				}
				o.Samples = dailySamples(ctx, c.cw, "AWS/EC2", "CPUUtilization",
					[]cwtypes.Dimension{{Name: aws.String("InstanceId"), Value: aws.String(id)}},
					cwtypes.StatisticAverage, start, end)
				obs = append(obs, o)
			}
		}
	}
	return obs, nil
}

// Volumes collects EBS volumes in the "available" state, i.e. attached to
// nothing. AgeDays counts from volume creation.
func (c *Collector) Volumes(ctx context.Context, scanDate time.Time) ([]models.ResourceObservation, error) {
	paginator := ec2svc.NewDescribeVolumesPaginator(c.ec2, &ec2svc.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("status"), Values: []string{"available"}},
		},
	})

	var obs []models.ResourceObservation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeVolumes page: %w", err)
		}
		for _, vol := range page.Volumes {
			id := aws.ToString(vol.VolumeId)
			o := models.ResourceObservation{
				ResourceID:   id,
				ResourceType: models.ResourceBlockVolume,
				ARN:          c.arn("volume", id),
				Region:       c.region,
				ScanDate:     scanDate,
				Tags:         ec2Tags(vol.Tags),
				SizeGB:       int(aws.ToInt32(vol.Size)),
			}
			if vol.CreateTime != nil {
				o.AgeDays = ageDays(*vol.CreateTime, scanDate)
			}
			obs = append(obs, o)
		}
	}
	return obs, nil
}

// Addresses collects Elastic IPs that are not associated with any instance
// or network interface. DescribeAddresses has no paginator; the API returns
// every address in one call.
func (c *Collector) Addresses(ctx context.Context, scanDate time.Time) ([]models.ResourceObservation, error) {
	out, err := c.ec2.DescribeAddresses(ctx, &ec2svc.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("DescribeAddresses: %w", err)
	}

	var obs []models.ResourceObservation
	for _, addr := range out.Addresses {
		if addr.AssociationId != nil {
			continue
		}
		id := aws.ToString(addr.AllocationId)
		obs = append(obs, models.ResourceObservation{
			ResourceID:   id,
			ResourceType: models.ResourceElasticIP,
			ARN:          c.arn("elastic-ip", id),
			Region:       c.region,
			ScanDate:     scanDate,
			Tags:         ec2Tags(addr.Tags),
		})
	}
	return obs, nil
}

// Snapshots collects EBS snapshots owned by this account.
func (c *Collector) Snapshots(ctx context.Context, scanDate time.Time) ([]models.ResourceObservation, error) {
	paginator := ec2svc.NewDescribeSnapshotsPaginator(c.ec2, &ec2svc.DescribeSnapshotsInput{
		OwnerIds: []string{c.accountID},
	})

	var obs []models.ResourceObservation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeSnapshots page: %w", err)
		}
		for _, snap := range page.Snapshots {
			id := aws.ToString(snap.SnapshotId)
			o := models.ResourceObservation{
				ResourceID:   id,
				ResourceType: models.ResourceSnapshot,
				ARN:          c.arn("snapshot", id),
				Region:       c.region,
				ScanDate:     scanDate,
				Tags:         ec2Tags(snap.Tags),
				SizeGB:       int(aws.ToInt32(snap.VolumeSize)),
			}
			if snap.StartTime != nil {
				o.AgeDays = ageDays(*snap.StartTime, scanDate)
			}
			obs = append(obs, o)
		}
	}
	return obs, nil
}

// Images collects AMIs owned by this account. CreationDate is an RFC3339
// string in the EC2 API; unparseable dates leave AgeDays at 0, which the
// age check treats as not old enough.
func (c *Collector) Images(ctx context.Context, scanDate time.Time) ([]models.ResourceObservation, error) {
	out, err := c.ec2.DescribeImages(ctx, &ec2svc.DescribeImagesInput{
		Owners: []string{"self"},
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeImages: %w", err)
	}

	var obs []models.ResourceObservation
	for _, img := range out.Images {
		id := aws.ToString(img.ImageId)
		o := models.ResourceObservation{
			ResourceID:   id,
			ResourceType: models.ResourceImage,
			ARN:          c.arn("image", id),
			Region:       c.region,
			ScanDate:     scanDate,
			Tags:         ec2Tags(img.Tags),
		}
		if img.CreationDate != nil {
			if created, err := time.Parse(time.RFC3339, *img.CreationDate); err == nil {
				o.AgeDays = ageDays(created, scanDate)
			}
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func (c *Collector) arn(kind, id string) string {
	return fmt.Sprintf("arn:aws:ec2:%s:%s:%s/%s", c.region, c.accountID, kind, id)
}

func ec2Tags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		if t.Key != nil && t.Value != nil {
			m[*t.Key] = *t.Value
		}
	}
	return m
}
