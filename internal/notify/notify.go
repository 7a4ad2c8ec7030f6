// Package notify delivers governance events to operators.
//
// Every detector and the cleanup orchestrator report through the same
// Notifier interface. Delivery failures are logged and swallowed by the
// callers: a lost notification never aborts a governance cycle.
package notify

import "context"

// Topic routes an event to the channel operators subscribed for it.
type Topic string

const (
	TopicAnomaly    Topic = "cost-anomaly"
	TopicCompliance Topic = "tag-compliance"
	TopicBudget     Topic = "budget-alert"
	TopicCleanup    Topic = "cleanup-action"
)

// Notifier publishes a single event. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Publish(ctx context.Context, topic Topic, subject, message string) error
}
