package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/finops-kit/costgov/internal/models"
)

// LoadBalancers pages through active ELBv2 load balancers and enriches each
// with its daily healthy-target history: for every day in [start, end) the
// sample value is the maximum HealthyHostCount summed across the load
// balancer's target groups. A balancer whose every sample is zero routed
// traffic to nothing for the whole window.
func (c *Collector) LoadBalancers(ctx context.Context, scanDate, start, end time.Time) ([]models.ResourceObservation, error) {
	paginator := elbv2svc.NewDescribeLoadBalancersPaginator(c.elb, &elbv2svc.DescribeLoadBalancersInput{})

	var obs []models.ResourceObservation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeLoadBalancers page: %w", err)
		}
		for _, lb := range page.LoadBalancers {
			if lb.State != nil && lb.State.Code != "active" {
				continue
			}
			// The ARN doubles as the resource ID: every later operation on
			// a balancer (including deletion) addresses it by ARN.
			arn := aws.ToString(lb.LoadBalancerArn)
			o := models.ResourceObservation{
				ResourceID:   arn,
				ResourceType: models.ResourceLoadBalancer,
				ARN:          arn,
				Region:       c.region,
				ScanDate:     scanDate,
			}
			if lb.CreatedTime != nil {
				o.AgeDays = ageDays(*lb.CreatedTime, scanDate)
			}
			o.Samples = c.healthyTargetHistory(ctx, arn, string(lb.Type), start, end)
			obs = append(obs, o)
		}
	}
	return obs, nil
}

// healthyTargetHistory merges per-target-group HealthyHostCount series into
// one daily series for the balancer. Missing data for a target group leaves
// that group out of the day's sum; a balancer with no target groups gets no
// samples at all, which the idle check treats as insufficient evidence.
func (c *Collector) healthyTargetHistory(ctx context.Context, lbARN, lbType string, start, end time.Time) []models.UtilizationSample {
	tgs, err := c.elb.DescribeTargetGroups(ctx, &elbv2svc.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil || len(tgs.TargetGroups) == 0 {
		return nil
	}

	namespace := "AWS/ApplicationELB"
	if lbType == "network" {
		namespace = "AWS/NetworkELB"
	} else if lbType == "gateway" {
		namespace = "AWS/GatewayELB"
	}

	lbDim, ok := dimensionFromARN(lbARN, ":loadbalancer/")
	if !ok {
		return nil
	}

	byDay := make(map[time.Time]float64)
	for _, tg := range tgs.TargetGroups {
		tgDim, ok := dimensionFromARN(aws.ToString(tg.TargetGroupArn), ":")
		if !ok {
			continue
		}
		samples := dailySamples(ctx, c.cw, namespace, "HealthyHostCount",
			[]cwtypes.Dimension{
				{Name: aws.String("LoadBalancer"), Value: aws.String(lbDim)},
				{Name: aws.String("TargetGroup"), Value: aws.String(tgDim)},
			},
			cwtypes.StatisticMaximum, start, end)
		for _, s := range samples {
			byDay[s.Date] += s.Value
		}
	}
	if len(byDay) == 0 {
		return nil
	}

	merged := make([]models.UtilizationSample, 0, len(byDay))
	for day, v := range byDay {
		merged = append(merged, models.UtilizationSample{Date: day, Value: v})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	return merged
}

// dimensionFromARN extracts the CloudWatch dimension value embedded in an
// ELBv2 ARN: everything after the last occurrence of marker.
// For "...:loadbalancer/app/web/50dc6c495c0c9188" with marker ":loadbalancer/"
// that is "app/web/50dc6c495c0c9188"; for a target group ARN with marker ":"
// it is "targetgroup/web/73e2d6bc24d8a067".
func dimensionFromARN(arn, marker string) (string, bool) {
	idx := strings.LastIndex(arn, marker)
	if idx < 0 {
		return "", false
	}
	return arn[idx+len(marker):], true
}
