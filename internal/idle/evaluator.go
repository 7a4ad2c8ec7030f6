package idle

import (
	"fmt"
	"time"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// retention for persisted verdicts.
const verdictTTL = 30 * 24 * time.Hour

// Evaluator turns observations into idle verdicts under one policy. The
// policy is fixed at construction; one evaluator serves exactly one cycle.
type Evaluator struct {
	registry *Registry
	cfg      policy.CleanupPolicy
}

// NewEvaluator returns an evaluator over the built-in checks.
func NewEvaluator(cfg policy.CleanupPolicy) *Evaluator {
	return &Evaluator{registry: DefaultRegistry(), cfg: cfg}
}

// NewEvaluatorWithRegistry allows a custom check set.
func NewEvaluatorWithRegistry(cfg policy.CleanupPolicy, r *Registry) *Evaluator {
	return &Evaluator{registry: r, cfg: cfg}
}

// Evaluate produces the verdict for one observation. Idleness and exclusion
// are computed independently: an excluded resource still gets a truthful
// Idle value for reporting, it just never becomes cleanup-eligible.
func (e *Evaluator) Evaluate(obs models.ResourceObservation) (models.IdleVerdict, error) {
	check := e.registry.For(obs.ResourceType)
	if check == nil {
		return models.IdleVerdict{}, fmt.Errorf("no idle check registered for type %q", obs.ResourceType)
	}

	assessment := check.Assess(obs, e.cfg)

	v := models.IdleVerdict{
		ResourceID:   obs.ResourceID,
		ResourceType: obs.ResourceType,
		Region:       obs.Region,
		ScanDate:     obs.ScanDate,
		Idle:         assessment.Idle,
		Reason:       assessment.Reason,
		Expiry:       obs.ScanDate.Add(verdictTTL),
	}

	for _, rule := range e.cfg.ExclusionTags {
		if rule.Matches(obs.Tags) {
			v.Excluded = true
			v.Reason = fmt.Sprintf("%s (excluded by tag %s)", v.Reason, rule.Key)
			break
		}
	}

	if v.Idle {
		v.EstimatedMonthlySavings = estimateMonthlySavings(obs)
	}
	return v, nil
}
