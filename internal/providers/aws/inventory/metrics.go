package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/finops-kit/costgov/internal/models"
)

// dailySamples calls GetMetricStatistics over [start, end) at 1-day
// granularity and returns one sample per returned datapoint, oldest first.
//
// Returns nil when the call fails or no data points exist. Callers must
// treat an empty sample set as "data unavailable", never as zero usage.
func dailySamples(
	ctx context.Context,
	cw invCWClient,
	namespace, metric string,
	dims []cwtypes.Dimension,
	stat cwtypes.Statistic,
	start, end time.Time,
) []models.UtilizationSample {
	out, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
		Dimensions: dims,
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{stat},
	})
	if err != nil || len(out.Datapoints) == 0 {
		return nil
	}

	samples := make([]models.UtilizationSample, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		if dp.Timestamp == nil {
			continue
		}
		var v *float64
		switch stat {
		case cwtypes.StatisticSum:
			v = dp.Sum
		case cwtypes.StatisticMaximum:
			v = dp.Maximum
		default:
			v = dp.Average
		}
		if v == nil {
			continue
		}
		samples = append(samples, models.UtilizationSample{
			Date:  dp.Timestamp.UTC().Truncate(24 * time.Hour),
			Value: *v,
		})
	}

	// CloudWatch returns datapoints in arbitrary order.
	sort.Slice(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })
	return samples
}

// ageDays returns full days elapsed between created and now, never negative.
func ageDays(created, now time.Time) int {
	if created.IsZero() || created.After(now) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}
