// Package policy defines the three governance documents (cost-rules,
// tag-policy, cleanup-policy) and the per-cycle immutable Snapshot the
// engine passes into every evaluator. Documents are fetched once per cycle;
// a missing or unparseable document degrades to built-in defaults and is
// flagged in the snapshot rather than halting the cycle.
package policy

// TagMatch is one exclusion-tag rule. An empty Value matches any value of
// Key (presence check); a non-empty Value requires an exact match.
type TagMatch struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value,omitempty"`
}

// Matches reports whether tags satisfies this rule.
func (m TagMatch) Matches(tags map[string]string) bool {
	v, ok := tags[m.Key]
	if !ok {
		return false
	}
	return m.Value == "" || m.Value == v
}

// CostRules configures the anomaly detector.
type CostRules struct {
	Version int `yaml:"version"`
	// ThresholdPercentage is the minimum |deviation| (percent) that emits
	// an anomaly.
	ThresholdPercentage float64 `yaml:"threshold_percentage"`
	// LookbackDays is the trailing baseline window length, excluding the
	// current day.
	LookbackDays int `yaml:"lookback_days"`
	// MinLookbackDays is the minimum history below which detection is
	// skipped with an insufficient-history outcome.
	MinLookbackDays int `yaml:"min_lookback_days"`
}

// RequiredTag is one mandatory tag, optionally restricted to a value set
// or shape.
type RequiredTag struct {
	Key string `yaml:"key"`
	// AllowedValues, when non-empty, restricts the tag value. An empty set
	// accepts any non-empty value.
	AllowedValues []string `yaml:"allowed_values,omitempty"`
	// Pattern, when non-empty, is a regular expression the tag value must
	// match from its start. Checked independently of AllowedValues.
	Pattern string `yaml:"pattern,omitempty"`
}

// TagPolicy configures the tag compliance evaluator.
type TagPolicy struct {
	Version  int           `yaml:"version"`
	Required []RequiredTag `yaml:"required_tags"`
	// Optional lists warning-only tags: missing ones yield WARNING when all
	// required tags are present and valid.
	Optional []string `yaml:"optional_tags,omitempty"`
	// NotifyOnWarning controls whether WARNING records also notify.
	// Violations always notify.
	NotifyOnWarning bool `yaml:"notify_on_warning"`
}

// CleanupPolicy configures the idle evaluator and cleanup orchestrator.
type CleanupPolicy struct {
	Version int `yaml:"version"`

	// ObservationDays is the required utilization history length. Shorter
	// histories always produce a non-idle verdict.
	ObservationDays int `yaml:"observation_days"`
	// CPUThreshold is the compute-instance idle ceiling: idle when max CPU
	// percent across the window stays below it.
	CPUThreshold float64 `yaml:"cpu_threshold"`
	// ConnectionThreshold is the database-instance idle ceiling on daily
	// connection counts.
	ConnectionThreshold float64 `yaml:"connection_threshold"`
	// UnattachedDays is the minimum age for an unattached volume to count
	// as idle.
	UnattachedDays int `yaml:"unattached_days"`
	// SnapshotAgeDays and ImageAgeDays are the age cutoffs for the
	// age-based checks.
	SnapshotAgeDays int `yaml:"snapshot_age_days"`
	ImageAgeDays    int `yaml:"image_age_days"`

	// ExclusionTags makes a resource cleanup-ineligible regardless of
	// idleness. Applies to every resource type.
	ExclusionTags []TagMatch `yaml:"exclusion_tags"`

	// CooldownHours is the minimum time between successive cleanup attempts
	// on the same resource.
	CooldownHours int `yaml:"cooldown_hours"`
	// EnableAutoCleanup gates all transitions toward EXECUTED.
	EnableAutoCleanup bool `yaml:"enable_auto_cleanup"`
	// DryRun short-circuits every action to DRY_RUN_ONLY before any
	// destructive call is attempted.
	DryRun bool `yaml:"dry_run"`
}

// Snapshot is the immutable per-cycle view of all three documents. Every
// evaluation within one cycle sees the same snapshot; it is never mutated
// mid-cycle.
type Snapshot struct {
	CostRules CostRules
	TagPolicy TagPolicy
	Cleanup   CleanupPolicy
	// Degraded names the documents that fell back to built-in defaults.
	Degraded []string
}

// DefaultCostRules returns the built-in anomaly detection defaults.
func DefaultCostRules() CostRules {
	return CostRules{
		Version:             1,
		ThresholdPercentage: 25,
		LookbackDays:        30,
		MinLookbackDays:     7,
	}
}

// DefaultTagPolicy returns the built-in tagging defaults: Environment with
// a fixed value set, Owner and CostCenter free-form, Project warning-only.
func DefaultTagPolicy() TagPolicy {
	return TagPolicy{
		Version: 1,
		Required: []RequiredTag{
			{Key: "Environment", AllowedValues: []string{"Production", "Staging", "Development", "Testing"}},
			{Key: "Owner"},
			{Key: "CostCenter"},
		},
		Optional:        []string{"Project"},
		NotifyOnWarning: false,
	}
}

// DefaultCleanupPolicy returns the built-in idle thresholds and safety
// settings. DryRun defaults to true: destructive execution is opt-in.
func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{
		Version:             1,
		ObservationDays:     7,
		CPUThreshold:        5,
		ConnectionThreshold: 1,
		UnattachedDays:      7,
		SnapshotAgeDays:     90,
		ImageAgeDays:        180,
		ExclusionTags: []TagMatch{
			{Key: "DoNotStop"},
			{Key: "DoNotDelete"},
			{Key: "Environment", Value: "Production"},
		},
		CooldownHours:     168,
		EnableAutoCleanup: false,
		DryRun:            true,
	}
}

// DefaultSnapshot returns a snapshot built entirely from defaults with no
// degraded markers. Used by tests and by callers that run without a config
// source.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		CostRules: DefaultCostRules(),
		TagPolicy: DefaultTagPolicy(),
		Cleanup:   DefaultCleanupPolicy(),
	}
}
