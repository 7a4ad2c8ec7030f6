package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finops-kit/costgov/internal/models"
)

// Collect runs every per-type collector for this region and returns the
// combined observations. One collector's failure never discards another's
// results; failures come back as DataErrors alongside whatever was gathered.
func (c *Collector) Collect(ctx context.Context, scanDate time.Time, observationDays int) ([]models.ResourceObservation, []error) {
	if observationDays <= 0 {
		observationDays = 7
	}
	end := scanDate
	start := end.AddDate(0, 0, -observationDays)

	type unit struct {
		name string
		run  func() ([]models.ResourceObservation, error)
	}
	units := []unit{
		{"ec2-instances", func() ([]models.ResourceObservation, error) { return c.Instances(ctx, scanDate, start, end) }},
		{"rds-instances", func() ([]models.ResourceObservation, error) { return c.Databases(ctx, scanDate, start, end) }},
		{"ebs-volumes", func() ([]models.ResourceObservation, error) { return c.Volumes(ctx, scanDate) }},
		{"load-balancers", func() ([]models.ResourceObservation, error) { return c.LoadBalancers(ctx, scanDate, start, end) }},
		{"elastic-ips", func() ([]models.ResourceObservation, error) { return c.Addresses(ctx, scanDate) }},
		{"snapshots", func() ([]models.ResourceObservation, error) { return c.Snapshots(ctx, scanDate) }},
		{"images", func() ([]models.ResourceObservation, error) { return c.Images(ctx, scanDate) }},
	}

	var all []models.ResourceObservation
	var errs []error
	for _, u := range units {
		obs, err := u.run()
		if err != nil {
			log.Warn().Err(err).
				Str("region", c.region).
				Str("collector", u.name).
				Msg("collection unit failed")
			errs = append(errs, &models.DataError{Unit: u.name, Err: err})
			continue
		}
		all = append(all, obs...)
	}
	return all, errs
}
