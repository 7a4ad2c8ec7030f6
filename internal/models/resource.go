package models

import "time"

// ResourceType identifies the kind of cloud resource an observation or
// verdict refers to. The idle evaluator dispatches on this value.
type ResourceType string

const (
	ResourceComputeInstance  ResourceType = "COMPUTE_INSTANCE"
	ResourceDatabaseInstance ResourceType = "DATABASE_INSTANCE"
	ResourceBlockVolume      ResourceType = "BLOCK_VOLUME"
	ResourceLoadBalancer     ResourceType = "LOAD_BALANCER"
	ResourceElasticIP        ResourceType = "ELASTIC_IP"
	ResourceSnapshot         ResourceType = "SNAPSHOT"
	ResourceImage            ResourceType = "IMAGE"
)

// UtilizationSample is one day of a utilization metric for a resource.
// The metric meaning is type-specific: CPU percent for compute instances,
// connection count for database instances, healthy target count for load
// balancers. Attachment-style types (volumes, addresses) use Value as a
// boolean-ish 0/1 "in use" signal.
type UtilizationSample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ResourceObservation is one scan cycle's view of a single resource.
// Observations are never merged across cycles; idle verdicts are recomputed
// from the current observation each cycle.
type ResourceObservation struct {
	ResourceID   string       `json:"resource_id"`
	ResourceType ResourceType `json:"resource_type"`
	// ARN identifies the resource for tag-compliance records.
	ARN string `json:"arn,omitempty"`
	// Region the resource lives in. Empty for global resources.
	Region   string    `json:"region,omitempty"`
	ScanDate time.Time `json:"scan_date"`
	// Samples is the utilization history, oldest first, at daily granularity.
	Samples []UtilizationSample `json:"utilization_samples"`
	Tags    map[string]string   `json:"tags,omitempty"`
	// AgeDays is the resource age at scan time. Used by age-based checks
	// (snapshots, images) and by the unattached-volume check.
	AgeDays int `json:"age_days,omitempty"`
	// SizeGB is populated for storage-backed types to refine savings estimates.
	SizeGB int `json:"size_gb,omitempty"`
}

// IdleVerdict is the per-cycle, per-resource idleness determination.
// Excluded verdicts are recorded for audit but never enter cleanup
// eligibility, regardless of the Idle value.
type IdleVerdict struct {
	ResourceID              string       `json:"resource_id"`
	ResourceType            ResourceType `json:"resource_type"`
	Region                  string       `json:"region,omitempty"`
	ScanDate                time.Time    `json:"scan_date"`
	Idle                    bool         `json:"idle"`
	Excluded                bool         `json:"excluded"`
	Reason                  string       `json:"reason"`
	EstimatedMonthlySavings float64      `json:"estimated_monthly_savings_usd"`
	Expiry                  time.Time    `json:"expiry"`
}

// CleanupEligible reports whether this verdict may feed the cleanup
// orchestrator: the resource must be idle and carry no exclusion marker.
func (v IdleVerdict) CleanupEligible() bool {
	return v.Idle && !v.Excluded
}
