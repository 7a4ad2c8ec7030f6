package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/finops-kit/costgov/internal/models"
)

// Databases pages through available RDS instances and enriches each with its
// daily maximum DatabaseConnections over [start, end). The maximum is used
// so a short nightly batch connection still counts as database activity.
func (c *Collector) Databases(ctx context.Context, scanDate, start, end time.Time) ([]models.ResourceObservation, error) {
	paginator := rdssvc.NewDescribeDBInstancesPaginator(c.rds, &rdssvc.DescribeDBInstancesInput{})

	var obs []models.ResourceObservation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeDBInstances page: %w", err)
		}
		for _, db := range page.DBInstances {
			if aws.ToString(db.DBInstanceStatus) != "available" {
				continue
			}
			id := aws.ToString(db.DBInstanceIdentifier)
			o := models.ResourceObservation{
				ResourceID:   id,
				ResourceType: models.ResourceDatabaseInstance,
				ARN:          aws.ToString(db.DBInstanceArn),
				Region:       c.region,
				ScanDate:     scanDate,
				Tags:         rdsTags(db.TagList),
				SizeGB:       int(aws.ToInt32(db.AllocatedStorage)),
			}
			if db.InstanceCreateTime != nil {
				o.AgeDays = ageDays(*db.InstanceCreateTime, scanDate)
			}
			o.Samples = dailySamples(ctx, c.cw, "AWS/RDS", "DatabaseConnections",
				[]cwtypes.Dimension{{Name: aws.String("DBInstanceIdentifier"), Value: aws.String(id)}},
				cwtypes.StatisticMaximum, start, end)
			obs = append(obs, o)
		}
	}
	return obs, nil
}

func rdsTags(tags []rdstypes.Tag) map[string]string {
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
