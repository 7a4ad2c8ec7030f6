package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/finops-kit/costgov/internal/models"
)

var scanDate = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

type stubEC2 struct {
	volumePages  []*ec2svc.DescribeVolumesOutput
	volumePage   int
	addresses    *ec2svc.DescribeAddressesOutput
	images       *ec2svc.DescribeImagesOutput
	instancesErr error
}

func (s *stubEC2) DescribeInstances(context.Context, *ec2svc.DescribeInstancesInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeInstancesOutput, error) {
	if s.instancesErr != nil {
		return nil, s.instancesErr
	}
	return &ec2svc.DescribeInstancesOutput{}, nil
}

func (s *stubEC2) DescribeVolumes(context.Context, *ec2svc.DescribeVolumesInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeVolumesOutput, error) {
	out := s.volumePages[s.volumePage]
	if s.volumePage < len(s.volumePages)-1 {
		s.volumePage++
	}
	return out, nil
}

func (s *stubEC2) DescribeAddresses(context.Context, *ec2svc.DescribeAddressesInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeAddressesOutput, error) {
	return s.addresses, nil
}

func (s *stubEC2) DescribeSnapshots(context.Context, *ec2svc.DescribeSnapshotsInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeSnapshotsOutput, error) {
	return &ec2svc.DescribeSnapshotsOutput{}, nil
}

func (s *stubEC2) DescribeImages(context.Context, *ec2svc.DescribeImagesInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeImagesOutput, error) {
	return s.images, nil
}

type stubRDS struct{}

func (stubRDS) DescribeDBInstances(context.Context, *rdssvc.DescribeDBInstancesInput, ...func(*rdssvc.Options)) (*rdssvc.DescribeDBInstancesOutput, error) {
	return &rdssvc.DescribeDBInstancesOutput{}, nil
}

type stubELB struct{}

func (stubELB) DescribeLoadBalancers(context.Context, *elbv2svc.DescribeLoadBalancersInput, ...func(*elbv2svc.Options)) (*elbv2svc.DescribeLoadBalancersOutput, error) {
	return &elbv2svc.DescribeLoadBalancersOutput{}, nil
}

func (stubELB) DescribeTargetGroups(context.Context, *elbv2svc.DescribeTargetGroupsInput, ...func(*elbv2svc.Options)) (*elbv2svc.DescribeTargetGroupsOutput, error) {
	return &elbv2svc.DescribeTargetGroupsOutput{}, nil
}

type stubCW struct {
	datapoints []cwtypes.Datapoint
}

func (s *stubCW) GetMetricStatistics(context.Context, *cloudwatch.GetMetricStatisticsInput, ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	return &cloudwatch.GetMetricStatisticsOutput{Datapoints: s.datapoints}, nil
}

func TestVolumesAcrossPages(t *testing.T) {
	created := scanDate.AddDate(0, 0, -10)
	ec2Stub := &stubEC2{volumePages: []*ec2svc.DescribeVolumesOutput{
		{
			Volumes: []ec2types.Volume{
				{VolumeId: aws.String("vol-1"), Size: aws.Int32(100), CreateTime: aws.Time(created)},
			},
			NextToken: aws.String("p2"),
		},
		{
			Volumes: []ec2types.Volume{
				{VolumeId: aws.String("vol-2"), Size: aws.Int32(8), CreateTime: aws.Time(scanDate)},
			},
		},
	}}
	c := &Collector{accountID: "111122223333", region: "eu-west-1", ec2: ec2Stub}

	obs, err := c.Volumes(context.Background(), scanDate)
	if err != nil {
		t.Fatalf("Volumes: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 volumes across pages, got %d", len(obs))
	}
	if obs[0].AgeDays != 10 {
		t.Errorf("vol-1 age = %d, want 10", obs[0].AgeDays)
	}
	if obs[0].SizeGB != 100 {
		t.Errorf("vol-1 size = %d", obs[0].SizeGB)
	}
	want := "arn:aws:ec2:eu-west-1:111122223333:volume/vol-1"
	if obs[0].ARN != want {
		t.Errorf("ARN = %q, want %q", obs[0].ARN, want)
	}
}

func TestAddressesSkipsAssociated(t *testing.T) {
	ec2Stub := &stubEC2{addresses: &ec2svc.DescribeAddressesOutput{
		Addresses: []ec2types.Address{
			{AllocationId: aws.String("eipalloc-used"), AssociationId: aws.String("eipassoc-1")},
			{AllocationId: aws.String("eipalloc-free")},
		},
	}}
	c := &Collector{accountID: "111122223333", region: "eu-west-1", ec2: ec2Stub}

	obs, err := c.Addresses(context.Background(), scanDate)
	if err != nil {
		t.Fatalf("Addresses: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected only the unassociated address, got %d", len(obs))
	}
	if obs[0].ResourceID != "eipalloc-free" {
		t.Errorf("resource = %q", obs[0].ResourceID)
	}
}

func TestImagesAgeFromCreationDate(t *testing.T) {
	ec2Stub := &stubEC2{images: &ec2svc.DescribeImagesOutput{
		Images: []ec2types.Image{
			{ImageId: aws.String("ami-old"), CreationDate: aws.String("2025-08-30T12:00:00.000Z")},
			{ImageId: aws.String("ami-bad-date"), CreationDate: aws.String("not-a-date")},
		},
	}}
	c := &Collector{accountID: "111122223333", region: "eu-west-1", ec2: ec2Stub}

	obs, err := c.Images(context.Background(), scanDate)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if obs[0].AgeDays < 364 {
		t.Errorf("ami-old age = %d, want about a year", obs[0].AgeDays)
	}
	if obs[1].AgeDays != 0 {
		t.Errorf("unparseable date must leave age 0, got %d", obs[1].AgeDays)
	}
}

func TestCollectIsolatesUnitFailures(t *testing.T) {
	ec2Stub := &stubEC2{
		instancesErr: errors.New("throttled"),
		volumePages: []*ec2svc.DescribeVolumesOutput{
			{Volumes: []ec2types.Volume{{VolumeId: aws.String("vol-1"), CreateTime: aws.Time(scanDate)}}},
		},
		addresses: &ec2svc.DescribeAddressesOutput{},
		images:    &ec2svc.DescribeImagesOutput{},
	}
	c := &Collector{
		accountID: "111122223333", region: "eu-west-1",
		ec2: ec2Stub, rds: stubRDS{}, elb: stubELB{}, cw: &stubCW{},
	}

	obs, errs := c.Collect(context.Background(), scanDate, 7)
	if len(errs) != 1 {
		t.Fatalf("expected 1 unit failure, got %d: %v", len(errs), errs)
	}
	var dataErr *models.DataError
	if !errors.As(errs[0], &dataErr) {
		t.Fatalf("failure is not a DataError: %v", errs[0])
	}
	if dataErr.Unit != "ec2-instances" {
		t.Errorf("failing unit = %q", dataErr.Unit)
	}
	if len(obs) != 1 || obs[0].ResourceID != "vol-1" {
		t.Errorf("surviving observations = %v", obs)
	}
}

func TestDailySamplesSortedOldestFirst(t *testing.T) {
	d1 := scanDate.AddDate(0, 0, -3)
	d2 := scanDate.AddDate(0, 0, -1)
	cw := &stubCW{datapoints: []cwtypes.Datapoint{
		{Timestamp: aws.Time(d2), Average: aws.Float64(3.5)},
		{Timestamp: aws.Time(d1), Average: aws.Float64(1.2)},
	}}

	samples := dailySamples(context.Background(), cw, "AWS/EC2", "CPUUtilization",
		nil, cwtypes.StatisticAverage, scanDate.AddDate(0, 0, -7), scanDate)
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if !samples[0].Date.Before(samples[1].Date) {
		t.Errorf("samples not sorted oldest first: %v", samples)
	}
	if samples[0].Value != 1.2 {
		t.Errorf("first sample = %v", samples[0].Value)
	}
}
