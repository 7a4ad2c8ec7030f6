package anomaly

import (
	"sort"

	"github.com/finops-kit/costgov/internal/models"
)

// GroupByService partitions daily observations into per-service series,
// each sorted oldest first, with services in deterministic name order.
func GroupByService(obs []models.CostObservation) []models.CostSeries {
	byService := make(map[string][]models.CostObservation)
	for _, o := range obs {
		byService[o.Service] = append(byService[o.Service], o)
	}
	names := make([]string, 0, len(byService))
	for name := range byService {
		names = append(names, name)
	}
	sort.Strings(names)

	series := make([]models.CostSeries, 0, len(names))
	for _, name := range names {
		s := byService[name]
		sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
		series = append(series, models.CostSeries{Service: name, Observations: s})
	}
	return series
}
