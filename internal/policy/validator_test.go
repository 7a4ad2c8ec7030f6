package policy

import "testing"

func TestValidateCostRules(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		d := DefaultCostRules()
		if errs := validateCostRules(&d); len(errs) != 0 {
			t.Errorf("default cost rules invalid: %v", errs)
		}
	})

	t.Run("min lookback exceeding lookback is rejected", func(t *testing.T) {
		d := CostRules{Version: 1, ThresholdPercentage: 25, LookbackDays: 7, MinLookbackDays: 14}
		if errs := validateCostRules(&d); len(errs) == 0 {
			t.Error("expected error for min_lookback_days > lookback_days")
		}
	})

	t.Run("omitted min lookback inherits default", func(t *testing.T) {
		d := CostRules{Version: 1, ThresholdPercentage: 25, LookbackDays: 30}
		if errs := validateCostRules(&d); len(errs) != 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
		if d.MinLookbackDays != DefaultCostRules().MinLookbackDays {
			t.Errorf("MinLookbackDays = %d; want inherited default", d.MinLookbackDays)
		}
	})

	t.Run("all errors are collected", func(t *testing.T) {
		d := CostRules{Version: 2, ThresholdPercentage: 0, LookbackDays: 0}
		if errs := validateCostRules(&d); len(errs) < 3 {
			t.Errorf("expected >= 3 errors, got %d: %v", len(errs), errs)
		}
	})
}

func TestValidateTagPolicy(t *testing.T) {
	t.Run("duplicate required keys are rejected", func(t *testing.T) {
		d := TagPolicy{Version: 1, Required: []RequiredTag{{Key: "Owner"}, {Key: "Owner"}}}
		if errs := validateTagPolicy(&d); len(errs) == 0 {
			t.Error("expected duplicate-key error")
		}
	})

	t.Run("optional overlapping required is rejected", func(t *testing.T) {
		d := TagPolicy{Version: 1, Required: []RequiredTag{{Key: "Owner"}}, Optional: []string{"Owner"}}
		if errs := validateTagPolicy(&d); len(errs) == 0 {
			t.Error("expected overlap error")
		}
	})

	t.Run("malformed pattern is rejected", func(t *testing.T) {
		d := TagPolicy{Version: 1, Required: []RequiredTag{{Key: "CostCenter", Pattern: `CC-[`}}}
		if errs := validateTagPolicy(&d); len(errs) == 0 {
			t.Error("expected pattern error")
		}
	})

	t.Run("valid pattern passes", func(t *testing.T) {
		d := TagPolicy{Version: 1, Required: []RequiredTag{{Key: "CostCenter", Pattern: `CC-\d{3,4}`}}}
		if errs := validateTagPolicy(&d); len(errs) != 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
	})
}

func TestValidateCleanupPolicy(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		d := DefaultCleanupPolicy()
		if errs := validateCleanupPolicy(&d); len(errs) != 0 {
			t.Errorf("default cleanup policy invalid: %v", errs)
		}
	})

	t.Run("empty exclusion tag key is rejected", func(t *testing.T) {
		d := DefaultCleanupPolicy()
		d.ExclusionTags = append(d.ExclusionTags, TagMatch{Value: "orphan"})
		if errs := validateCleanupPolicy(&d); len(errs) == 0 {
			t.Error("expected empty-key error")
		}
	})
}

func TestTagMatch(t *testing.T) {
	tags := map[string]string{"Environment": "Production", "DoNotStop": "true"}

	cases := []struct {
		name  string
		match TagMatch
		want  bool
	}{
		{"presence match", TagMatch{Key: "DoNotStop"}, true},
		{"exact value match", TagMatch{Key: "Environment", Value: "Production"}, true},
		{"value mismatch", TagMatch{Key: "Environment", Value: "Staging"}, false},
		{"absent key", TagMatch{Key: "DoNotDelete"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.match.Matches(tags); got != tc.want {
				t.Errorf("Matches = %v; want %v", got, tc.want)
			}
		})
	}
}
