// Package billing adapts Cost Explorer into the observation types the
// detectors consume. Cost Explorer is a global service; the factory always
// points the client at us-east-1.
package billing

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
)

// ceClient covers the Cost Explorer operations used by this package.
// A real *costexplorer.Client satisfies it; tests substitute a stub.
type ceClient interface {
	GetCostAndUsage(
		ctx context.Context,
		params *ce.GetCostAndUsageInput,
		optFns ...func(*ce.Options),
	) (*ce.GetCostAndUsageOutput, error)

	GetCostForecast(
		ctx context.Context,
		params *ce.GetCostForecastInput,
		optFns ...func(*ce.Options),
	) (*ce.GetCostForecastOutput, error)
}

// Client wraps Cost Explorer for daily cost collection, spend aggregation,
// and month-end forecasting.
type Client struct {
	ce ceClient
}

// NewClient constructs a billing client. cfg's region is overridden to
// us-east-1, the only region Cost Explorer is reachable in.
func NewClient(cfg aws.Config) *Client {
	ceCfg := cfg
	ceCfg.Region = "us-east-1"
	return &Client{ce: ce.NewFromConfig(ceCfg)}
}
