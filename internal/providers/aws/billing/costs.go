package billing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/finops-kit/costgov/internal/models"
)

const dateLayout = "2006-01-02"

// DailyCostsByService calls GetCostAndUsage for [start, end) at DAILY
// granularity grouped by SERVICE and returns one observation per
// (service, day). Observations come back ordered by date then service.
func (c *Client) DailyCostsByService(ctx context.Context, start, end time.Time) ([]models.CostObservation, error) {
	var obs []models.CostObservation

	var nextToken *string
	for {
		out, err := c.ce.GetCostAndUsage(ctx, &ce.GetCostAndUsageInput{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(start.Format(dateLayout)),
				End:   aws.String(end.Format(dateLayout)),
			},
			Granularity: cetypes.GranularityDaily,
			Metrics:     []string{"UnblendedCost"},
			GroupBy: []cetypes.GroupDefinition{
				{
					Key:  aws.String("SERVICE"),
					Type: cetypes.GroupDefinitionTypeDimension,
				},
			},
			NextPageToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("GetCostAndUsage (daily by service): %w", err)
		}

		for _, result := range out.ResultsByTime {
			if result.TimePeriod == nil || result.TimePeriod.Start == nil {
				continue
			}
			day, err := time.Parse(dateLayout, *result.TimePeriod.Start)
			if err != nil {
				continue
			}
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				metric, ok := group.Metrics["UnblendedCost"]
				if !ok {
					continue
				}
				obs = append(obs, models.CostObservation{
					Service: group.Keys[0],
					Date:    day,
					Amount:  parseAmount(metric.Amount),
				})
			}
		}

		if out.NextPageToken == nil {
			break
		}
		nextToken = out.NextPageToken
	}

	return obs, nil
}

// ServiceBreakdown aggregates per-service cost for [start, end) and returns
// the breakdown sorted descending by cost, with each service's share of the
// total filled in.
func (c *Client) ServiceBreakdown(ctx context.Context, start, end time.Time) ([]models.ServiceCost, error) {
	totals := make(map[string]float64)

	var nextToken *string
	for {
		out, err := c.ce.GetCostAndUsage(ctx, &ce.GetCostAndUsageInput{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(start.Format(dateLayout)),
				End:   aws.String(end.Format(dateLayout)),
			},
			Granularity: cetypes.GranularityMonthly,
			Metrics:     []string{"UnblendedCost"},
			GroupBy: []cetypes.GroupDefinition{
				{
					Key:  aws.String("SERVICE"),
					Type: cetypes.GroupDefinitionTypeDimension,
				},
			},
			NextPageToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("GetCostAndUsage (service breakdown): %w", err)
		}

		for _, result := range out.ResultsByTime {
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				metric, ok := group.Metrics["UnblendedCost"]
				if !ok {
					continue
				}
				totals[group.Keys[0]] += parseAmount(metric.Amount)
			}
		}

		if out.NextPageToken == nil {
			break
		}
		nextToken = out.NextPageToken
	}

	var grand float64
	for _, v := range totals {
		grand += v
	}

	breakdown := make([]models.ServiceCost, 0, len(totals))
	for service, cost := range totals {
		if cost <= 0 {
			continue
		}
		sc := models.ServiceCost{Service: service, CostUSD: cost}
		if grand > 0 {
			sc.PctOfTotal = cost / grand * 100
		}
		breakdown = append(breakdown, sc)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].CostUSD > breakdown[j].CostUSD
	})
	return breakdown, nil
}

// SpendInPeriod returns total unblended spend for [start, end).
func (c *Client) SpendInPeriod(ctx context.Context, start, end time.Time) (float64, error) {
	out, err := c.ce.GetCostAndUsage(ctx, &ce.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"UnblendedCost"},
	})
	if err != nil {
		return 0, fmt.Errorf("GetCostAndUsage (period spend): %w", err)
	}

	var total float64
	for _, result := range out.ResultsByTime {
		metric, ok := result.Total["UnblendedCost"]
		if !ok {
			continue
		}
		total += parseAmount(metric.Amount)
	}
	return total, nil
}

// ForecastMonthEnd asks Cost Explorer for the predicted total spend from
// asOf through the end of asOf's calendar month. Returns 0 when the forecast
// window is empty (asOf is the last day of the month).
func (c *Client) ForecastMonthEnd(ctx context.Context, asOf time.Time) (float64, error) {
	start := asOf.AddDate(0, 0, 1)
	end := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !start.Before(end) {
		return 0, nil
	}

	out, err := c.ce.GetCostForecast(ctx, &ce.GetCostForecastInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metric:      cetypes.MetricUnblendedCost,
	})
	if err != nil {
		return 0, fmt.Errorf("GetCostForecast: %w", err)
	}
	if out.Total == nil {
		return 0, nil
	}
	return parseAmount(out.Total.Amount), nil
}

// parseAmount parses a Cost Explorer amount string ("1234.5678"). CE strings
// are always valid decimals, so 0 is a safe sentinel on failure.
func parseAmount(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return v
}
