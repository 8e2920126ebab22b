package awsclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
)

// Message attribute names set on every published event
const (
	AttrEventType = "event_type"
	AttrTenantID  = "tenant_id"
)

// SNSAPI is the subset of the SNS client used by the publisher
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher forwards domain events to an SNS topic as JSON
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	logger   *zap.Logger
}

// NewSNSPublisher creates a new SNSPublisher
func NewSNSPublisher(client SNSAPI, topicARN string, logger *zap.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

// NewSNSPublisherFromConfig builds the SNS client from an AWS config
func NewSNSPublisherFromConfig(cfg aws.Config, topicARN string, logger *zap.Logger) *SNSPublisher {
	return NewSNSPublisher(sns.NewFromConfig(cfg), topicARN, logger)
}

// Publish implements port.EventPublisher. Its signature also fits dispatcher.Handler.
func (p *SNSPublisher) Publish(ctx context.Context, evt *event.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			AttrEventType: {DataType: aws.String("String"), StringValue: aws.String(evt.Type.String())},
			AttrTenantID:  {DataType: aws.String("String"), StringValue: aws.String(evt.TenantID)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type.String()),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

var _ port.EventPublisher = (*SNSPublisher)(nil)
