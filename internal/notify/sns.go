package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// snsClient covers the single SNS operation used for delivery.
// A real *sns.Client satisfies it; tests substitute a stub.
type snsClient interface {
	Publish(
		ctx context.Context,
		params *sns.PublishInput,
		optFns ...func(*sns.Options),
	) (*sns.PublishOutput, error)
}

// SNSNotifier publishes events to per-topic SNS topics. Topic ARNs are
// resolved from a map built at startup; events for topics without an ARN
// are logged at debug level and dropped.
type SNSNotifier struct {
	client snsClient
	arns   map[Topic]string
}

// NewSNSNotifier builds a notifier from a regional aws.Config and a
// Topic -> topic-ARN map.
func NewSNSNotifier(cfg aws.Config, arns map[Topic]string) *SNSNotifier {
	return &SNSNotifier{client: sns.NewFromConfig(cfg), arns: arns}
}

func (n *SNSNotifier) Publish(ctx context.Context, topic Topic, subject, message string) error {
	arn, ok := n.arns[topic]
	if !ok || arn == "" {
		log.Debug().Str("topic", string(topic)).Msg("no topic ARN configured, dropping notification")
		return nil
	}
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// LogNotifier writes events to the structured log instead of SNS. Used
// when no topic ARNs are configured and in local runs.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, topic Topic, subject, message string) error {
	log.Info().
		Str("topic", string(topic)).
		Str("subject", subject).
		Str("message", message).
		Msg("notification")
	return nil
}
