package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
)

// SESAPI is the subset of the SESv2 client used by the email notifier
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends plain-text notification emails through SES
type SESNotifier struct {
	client    SESAPI
	fromEmail string
	replyTo   string
	logger    *zap.Logger
}

// NewSESNotifier creates a new SESNotifier
func NewSESNotifier(client SESAPI, fromEmail, replyTo string, logger *zap.Logger) *SESNotifier {
	return &SESNotifier{
		client:    client,
		fromEmail: fromEmail,
		replyTo:   replyTo,
		logger:    logger,
	}
}

// NewSESNotifierFromConfig builds the SES client from an AWS config
func NewSESNotifierFromConfig(cfg aws.Config, fromEmail, replyTo string, logger *zap.Logger) *SESNotifier {
	return NewSESNotifier(sesv2.NewFromConfig(cfg), fromEmail, replyTo, logger)
}

func (s *SESNotifier) Name() string { return "ses" }

// Notify implements port.Notifier. Users without an email address are skipped.
func (s *SESNotifier) Notify(ctx context.Context, n *port.Notification) error {
	if n.Recipient == nil || n.Recipient.Email == "" {
		s.logger.Debug("Recipient has no email, skipping", zap.String("requisition_id", n.RequisitionID))
		return nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination:      &sestypes.Destination{ToAddresses: []string{n.Recipient.Email}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(n.Subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(n.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("Email sent",
		zap.String("user_id", n.Recipient.ID),
		zap.String("message_id", aws.ToString(out.MessageId)),
		zap.String("event_type", n.EventType.String()))
	return nil
}

var _ port.Notifier = (*SESNotifier)(nil)
