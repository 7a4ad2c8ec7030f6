// Package idle determines which governed resources are doing no useful work.
//
// Each resource type has exactly one Check registered for it. A check is a
// pure predicate over the observation and the active cleanup policy; checks
// never make network calls or read external state.
package idle

import (
	"fmt"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// Assessment is a check's conclusion for one resource.
type Assessment struct {
	Idle   bool
	Reason string
}

// Check decides idleness for a single resource type. Checks must be
// stateless and safe to call concurrently.
type Check interface {
	// Type returns the resource type this check governs.
	Type() models.ResourceType

	// Name returns a short human-readable check name.
	Name() string

	// Assess inspects one observation. It must treat missing utilization
	// samples as insufficient evidence, never as idleness.
	Assess(obs models.ResourceObservation, cfg policy.CleanupPolicy) Assessment
}

// Registry maps resource types to their checks. Register panics on a
// duplicate type to catch wiring mistakes at startup.
type Registry struct {
	checks map[models.ResourceType]Check
}

// NewRegistry returns an empty registry ready for check registration.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[models.ResourceType]Check)}
}

// Register adds check to the registry. Panics if its type is already taken.
func (r *Registry) Register(check Check) {
	if _, exists := r.checks[check.Type()]; exists {
		panic(fmt.Sprintf("duplicate idle check for type %q", check.Type()))
	}
	r.checks[check.Type()] = check
}

// For returns the check registered for t, or nil.
func (r *Registry) For(t models.ResourceType) Check {
	return r.checks[t]
}

// DefaultRegistry returns a registry with every built-in check registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ComputeCPUCheck{})
	r.Register(DatabaseConnectionsCheck{})
	r.Register(UnattachedVolumeCheck{})
	r.Register(LoadBalancerTargetsCheck{})
	r.Register(UnassociatedAddressCheck{})
	r.Register(SnapshotAgeCheck{})
	r.Register(ImageAgeCheck{})
	return r
}

const reasonInsufficientWindow = "insufficient-observation-window"

// windowComplete reports whether obs carries at least the configured days of
// utilization history.
func windowComplete(obs models.ResourceObservation, cfg policy.CleanupPolicy) bool {
	return len(obs.Samples) >= cfg.ObservationDays
}

// maxSample returns the largest sample value. Call only with samples present.
func maxSample(obs models.ResourceObservation) float64 {
	max := obs.Samples[0].Value
	for _, s := range obs.Samples[1:] {
		if s.Value > max {
			max = s.Value
		}
	}
	return max
}
