package models

import "time"

// ComplianceStatus is the outcome of evaluating one resource against the
// tag policy.
type ComplianceStatus string

const (
	TagCompliant ComplianceStatus = "COMPLIANT"
	TagWarning   ComplianceStatus = "WARNING"
	TagViolation ComplianceStatus = "VIOLATION"
)

// InvalidTag records a required tag present with a value outside its
// allowed set.
type InvalidTag struct {
	Key           string   `json:"key"`
	Value         string   `json:"value"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	// Pattern is set instead of AllowedValues when the value failed a
	// regular-expression check.
	Pattern string `json:"pattern,omitempty"`
}

// TagComplianceRecord is the per-cycle compliance verdict for one resource.
type TagComplianceRecord struct {
	ResourceARN  string           `json:"resource_arn"`
	ResourceType ResourceType     `json:"resource_type"`
	ScanDate     time.Time        `json:"scan_date"`
	Status       ComplianceStatus `json:"compliance_status"`
	// MissingRequired lists absent required tag keys.
	MissingRequired []string `json:"missing_required,omitempty"`
	// MissingOptional lists absent warning-only tag keys.
	MissingOptional []string `json:"missing_optional,omitempty"`
	// InvalidTags lists required tags whose value failed the allowed set.
	InvalidTags []InvalidTag `json:"invalid_tags,omitempty"`
	Expiry      time.Time    `json:"expiry"`
}
