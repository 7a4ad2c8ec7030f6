// Package compliance checks resource tag sets against the tag policy.
package compliance

import (
	"regexp"
	"slices"
	"time"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/policy"
)

// retention for persisted compliance records.
const recordTTL = 90 * 24 * time.Hour

// Evaluator applies one TagPolicy. Stateless; safe for concurrent use.
type Evaluator struct {
	pol policy.TagPolicy
	// patterns holds the compiled Pattern per required tag key. Patterns
	// match from the start of the value.
	patterns map[string]*regexp.Regexp
}

// New returns an Evaluator for pol. Invalid patterns are dropped; the
// policy validator rejects them before a document reaches evaluation.
func New(pol policy.TagPolicy) *Evaluator {
	patterns := make(map[string]*regexp.Regexp)
	for _, req := range pol.Required {
		if req.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + req.Pattern + ")")
		if err != nil {
			continue
		}
		patterns[req.Key] = re
	}
	return &Evaluator{pol: pol, patterns: patterns}
}

// Evaluate grades one resource's tag set. Any missing required tag, or
// required tag whose value is outside the allowed set or fails the
// configured pattern, is a VIOLATION; with all required
// tags in order, a missing warning-only tag downgrades to WARNING; otherwise
// the resource is COMPLIANT. An empty tag value counts as missing.
func (e *Evaluator) Evaluate(obs models.ResourceObservation) models.TagComplianceRecord {
	rec := models.TagComplianceRecord{
		ResourceARN:  obs.ARN,
		ResourceType: obs.ResourceType,
		ScanDate:     obs.ScanDate,
		Status:       models.TagCompliant,
		Expiry:       obs.ScanDate.Add(recordTTL),
	}

	for _, req := range e.pol.Required {
		v, ok := obs.Tags[req.Key]
		if !ok || v == "" {
			rec.MissingRequired = append(rec.MissingRequired, req.Key)
			continue
		}
		if len(req.AllowedValues) > 0 && !slices.Contains(req.AllowedValues, v) {
			rec.InvalidTags = append(rec.InvalidTags, models.InvalidTag{
				Key:           req.Key,
				Value:         v,
				AllowedValues: req.AllowedValues,
			})
		}
		if re, ok := e.patterns[req.Key]; ok && !re.MatchString(v) {
			rec.InvalidTags = append(rec.InvalidTags, models.InvalidTag{
				Key:     req.Key,
				Value:   v,
				Pattern: req.Pattern,
			})
		}
	}

	for _, opt := range e.pol.Optional {
		if v, ok := obs.Tags[opt]; !ok || v == "" {
			rec.MissingOptional = append(rec.MissingOptional, opt)
		}
	}

	switch {
	case len(rec.MissingRequired) > 0 || len(rec.InvalidTags) > 0:
		rec.Status = models.TagViolation
	case len(rec.MissingOptional) > 0:
		rec.Status = models.TagWarning
	}
	return rec
}

// NotifyWorthy reports whether rec should trigger a notification under pol.
func NotifyWorthy(rec models.TagComplianceRecord, pol policy.TagPolicy) bool {
	if rec.Status == models.TagViolation {
		return true
	}
	return rec.Status == models.TagWarning && pol.NotifyOnWarning
}
