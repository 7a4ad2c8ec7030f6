package idle

import (
	"fmt"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// LoadBalancerTargetsCheck flags load balancers that had zero healthy
// targets on every day of the observation window. Samples are daily maxima
// of healthy target counts; one day with a healthy target disqualifies.
type LoadBalancerTargetsCheck struct{}

func (LoadBalancerTargetsCheck) Type() models.ResourceType { return models.ResourceLoadBalancer }
func (LoadBalancerTargetsCheck) Name() string              { return "Load balancer without healthy targets" }

func (LoadBalancerTargetsCheck) Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment {
	if !windowComplete(obs, cfg) {
		return Assessment{Reason: reasonInsufficientWindow}
	}
	peak := maxSample(obs)
	if peak > 0 {
		return Assessment{Reason: fmt.Sprintf("had up to %.0f healthy targets in window", peak)}
	}
	return Assessment{
		Idle:   true,
		Reason: fmt.Sprintf("zero healthy targets for %d days", len(obs.Samples)),
	}
}

// UnassociatedAddressCheck flags elastic IPs that are allocated but not
// associated with anything. The collector only observes unassociated
// addresses, so presence alone establishes idleness.
type UnassociatedAddressCheck struct{}

func (UnassociatedAddressCheck) Type() models.ResourceType { return models.ResourceElasticIP }
func (UnassociatedAddressCheck) Name() string              { return "Unassociated elastic IP" }

func (UnassociatedAddressCheck) Assess(models.ResourceObservation, policy.CleanupPolicy) Assessment {
	return Assessment{Idle: true, Reason: "allocated but not associated"}
}
