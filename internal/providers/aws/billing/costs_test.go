package billing

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

type stubCE struct {
	usagePages []*ce.GetCostAndUsageOutput
	forecast   *ce.GetCostForecastOutput
	page       int
}

func (s *stubCE) GetCostAndUsage(_ context.Context, _ *ce.GetCostAndUsageInput, _ ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error) {
	out := s.usagePages[s.page]
	if s.page < len(s.usagePages)-1 {
		s.page++
	}
	return out, nil
}

func (s *stubCE) GetCostForecast(_ context.Context, _ *ce.GetCostForecastInput, _ ...func(*ce.Options)) (*ce.GetCostForecastOutput, error) {
	return s.forecast, nil
}

func usageDay(day string, groups map[string]string) cetypes.ResultByTime {
	r := cetypes.ResultByTime{
		TimePeriod: &cetypes.DateInterval{Start: aws.String(day)},
	}
	for service, amount := range groups {
		r.Groups = append(r.Groups, cetypes.Group{
			Keys: []string{service},
			Metrics: map[string]cetypes.MetricValue{
				"UnblendedCost": {Amount: aws.String(amount)},
			},
		})
	}
	return r
}

func TestDailyCostsByService(t *testing.T) {
	stub := &stubCE{usagePages: []*ce.GetCostAndUsageOutput{
		{
			ResultsByTime: []cetypes.ResultByTime{
				usageDay("2026-08-29", map[string]string{"Amazon Elastic Compute Cloud - Compute": "40.25"}),
			},
			NextPageToken: aws.String("p2"),
		},
		{
			ResultsByTime: []cetypes.ResultByTime{
				usageDay("2026-08-30", map[string]string{"Amazon Elastic Compute Cloud - Compute": "55.00"}),
			},
		},
	}}
	c := &Client{ce: stub}

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	obs, err := c.DailyCostsByService(context.Background(), start, end)
	if err != nil {
		t.Fatalf("DailyCostsByService: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations across pages, got %d", len(obs))
	}
	if obs[0].Amount != 40.25 || obs[1].Amount != 55.00 {
		t.Errorf("amounts = %v, %v", obs[0].Amount, obs[1].Amount)
	}
	if obs[1].Date.Day() != 30 {
		t.Errorf("second observation date = %v", obs[1].Date)
	}
}

func TestServiceBreakdownSortsAndShares(t *testing.T) {
	stub := &stubCE{usagePages: []*ce.GetCostAndUsageOutput{
		{
			ResultsByTime: []cetypes.ResultByTime{
				usageDay("2026-08-01", map[string]string{
					"Amazon Relational Database Service": "300",
					"Amazon Simple Storage Service":      "100",
					"AWS Free Tier Thing":                "0",
				}),
			},
		},
	}}
	c := &Client{ce: stub}

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	got, err := c.ServiceBreakdown(context.Background(), start, end)
	if err != nil {
		t.Fatalf("ServiceBreakdown: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("zero-cost services must be dropped, got %d entries", len(got))
	}
	if got[0].Service != "Amazon Relational Database Service" {
		t.Errorf("breakdown not sorted by cost: %v", got)
	}
	if got[0].PctOfTotal != 75 {
		t.Errorf("PctOfTotal = %v, want 75", got[0].PctOfTotal)
	}
}

func TestForecastMonthEnd(t *testing.T) {
	t.Run("returns forecast total", func(t *testing.T) {
		stub := &stubCE{forecast: &ce.GetCostForecastOutput{
			Total: &cetypes.MetricValue{Amount: aws.String("212.40")},
		}}
		c := &Client{ce: stub}

		got, err := c.ForecastMonthEnd(context.Background(), time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("ForecastMonthEnd: %v", err)
		}
		if got != 212.40 {
			t.Errorf("forecast = %v", got)
		}
	})

	t.Run("empty window on last day of month", func(t *testing.T) {
		c := &Client{ce: &stubCE{}}
		got, err := c.ForecastMonthEnd(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("ForecastMonthEnd: %v", err)
		}
		if got != 0 {
			t.Errorf("expected 0 for empty forecast window, got %v", got)
		}
	})
}
