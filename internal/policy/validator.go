package policy

import (
	"fmt"
	"regexp"
)

// validateDocument dispatches semantic validation by document name.
// All errors found are collected before returning; validation never stops
// at the first error.
func validateDocument(name string, doc any) []error {
	switch d := doc.(type) {
	case *CostRules:
		return validateCostRules(d)
	case *TagPolicy:
		return validateTagPolicy(d)
	case *CleanupPolicy:
		return validateCleanupPolicy(d)
	default:
		return []error{fmt.Errorf("%s: unknown document type %T", name, doc)}
	}
}

func validateCostRules(d *CostRules) []error {
	var errs []error
	if d.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", d.Version))
	}
	if d.ThresholdPercentage <= 0 {
		errs = append(errs, fmt.Errorf("threshold_percentage: must be > 0, got %v", d.ThresholdPercentage))
	}
	if d.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("lookback_days: must be > 0, got %d", d.LookbackDays))
	}
	if d.MinLookbackDays <= 0 {
		// Omitted in the document; inherit the default rather than failing.
		d.MinLookbackDays = DefaultCostRules().MinLookbackDays
	}
	if d.MinLookbackDays > d.LookbackDays {
		errs = append(errs, fmt.Errorf("min_lookback_days: %d exceeds lookback_days %d", d.MinLookbackDays, d.LookbackDays))
	}
	return errs
}

func validateTagPolicy(d *TagPolicy) []error {
	var errs []error
	if d.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", d.Version))
	}
	seen := make(map[string]struct{}, len(d.Required))
	for i, rt := range d.Required {
		if rt.Key == "" {
			errs = append(errs, fmt.Errorf("required_tags[%d]: key must not be empty", i))
			continue
		}
		if _, dup := seen[rt.Key]; dup {
			errs = append(errs, fmt.Errorf("required_tags: duplicate key %q", rt.Key))
		}
		seen[rt.Key] = struct{}{}
		if rt.Pattern != "" {
			if _, err := regexp.Compile(rt.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("required_tags[%d]: pattern: %v", i, err))
			}
		}
	}
	for _, opt := range d.Optional {
		if _, clash := seen[opt]; clash {
			errs = append(errs, fmt.Errorf("optional_tags: %q is also a required tag", opt))
		}
	}
	return errs
}

func validateCleanupPolicy(d *CleanupPolicy) []error {
	var errs []error
	if d.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", d.Version))
	}
	if d.ObservationDays <= 0 {
		errs = append(errs, fmt.Errorf("observation_days: must be > 0, got %d", d.ObservationDays))
	}
	if d.CPUThreshold < 0 || d.CPUThreshold > 100 {
		errs = append(errs, fmt.Errorf("cpu_threshold: must be within [0,100], got %v", d.CPUThreshold))
	}
	if d.CooldownHours <= 0 {
		errs = append(errs, fmt.Errorf("cooldown_hours: must be > 0, got %d", d.CooldownHours))
	}
	for i, m := range d.ExclusionTags {
		if m.Key == "" {
			errs = append(errs, fmt.Errorf("exclusion_tags[%d]: key must not be empty", i))
		}
	}
	return errs
}
