package service

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/garyjia/procurement-approvals/internal/application/dispatcher"
	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
)

// NotificationService tells approvers when a stage needs them and
// requesters when their requisition is decided
type NotificationService interface {
	// Register subscribes the service to the events it notifies on
	Register(d dispatcher.Dispatcher)

	HandleEvent(ctx context.Context, evt *event.Event) error

	// NotifyUser sends a message to one user through every channel
	NotifyUser(ctx context.Context, tenantID, userID, subject, body string) error
}

type notificationServiceImpl struct {
	userRepo        port.UserRepository
	requisitionRepo port.RequisitionRepository
	notifiers       []port.Notifier
	logger          Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	requisitionRepo port.RequisitionRepository,
	notifiers []port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		userRepo:        userRepo,
		requisitionRepo: requisitionRepo,
		notifiers:       notifiers,
		logger:          logger,
	}
}

var notifiedEvents = []event.Type{
	event.TypeRequisitionSubmitted,
	event.TypeStageAdvanced,
	event.TypeRequisitionApproved,
	event.TypeRequisitionRejected,
	event.TypeRequisitionReturned,
	event.TypeDocumentGenerated,
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, t := range notifiedEvents {
		d.SubscribeNamed(t, "notification:"+t.String(), s.HandleEvent)
	}
}

// HandleEvent builds the message for an event and fans it out to the recipients.
// Delivery errors are aggregated and logged; they never reach the workflow.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	req, err := s.requisitionRepo.GetByID(ctx, evt.TenantID, evt.RequisitionID)
	if err != nil {
		return fmt.Errorf("get requisition: %w", err)
	}
	if req == nil {
		return notFound("requisition", evt.RequisitionID)
	}

	var recipients []string
	switch evt.Type {
	case event.TypeRequisitionSubmitted, event.TypeStageAdvanced:
		recipients = evt.GetPayloadStrings(event.KeyApproverIDs)
	default:
		recipients = []string{req.CreatedBy}
	}
	if len(recipients) == 0 {
		return nil
	}
	subject, body := composeMessage(evt, req)

	users, err := s.userRepo.GetByIDs(ctx, evt.TenantID, recipients)
	if err != nil {
		return fmt.Errorf("get recipients: %w", err)
	}

	var errs error
	for _, user := range users {
		errs = multierr.Append(errs, s.deliver(ctx, &port.Notification{
			TenantID:      evt.TenantID,
			RequisitionID: evt.RequisitionID,
			EventType:     evt.Type,
			Recipient:     user,
			Subject:       subject,
			Body:          body,
		}))
	}
	if errs != nil {
		s.logger.Error("Some notifications failed", "error", errs,
			"event_type", evt.Type, "requisition_id", evt.RequisitionID)
	}
	return errs
}

// NotifyUser sends an ad hoc message
func (s *notificationServiceImpl) NotifyUser(ctx context.Context, tenantID, userID, subject, body string) error {
	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return notFound("user", userID)
	}
	return s.deliver(ctx, &port.Notification{TenantID: tenantID, Recipient: user, Subject: subject, Body: body})
}

func (s *notificationServiceImpl) deliver(ctx context.Context, n *port.Notification) error {
	var errs error
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		s.logger.Info("Notification sent", "channel", notifier.Name(),
			"user_id", n.Recipient.ID, "requisition_id", n.RequisitionID, "event_type", n.EventType)
	}
	return errs
}

func composeMessage(evt *event.Event, req *entity.Requisition) (string, string) {
	ref := req.Number
	if ref == "" {
		ref = req.ID
	}
	amount := req.TotalAmount.StringFixed(2) + " " + req.Currency
	comments := evt.GetPayloadString(event.KeyComments)

	switch evt.Type {
	case event.TypeRequisitionSubmitted, event.TypeStageAdvanced:
		stage := evt.GetPayloadString(event.KeyStageName)
		return fmt.Sprintf("Approval requested: %s", ref),
			fmt.Sprintf("Requisition %s (%s, %s) is waiting for your decision at stage %q.", ref, req.Title, amount, stage)
	case event.TypeRequisitionApproved:
		return fmt.Sprintf("Requisition approved: %s", ref),
			fmt.Sprintf("Your requisition %s (%s) has been approved.", ref, amount)
	case event.TypeRequisitionRejected:
		return fmt.Sprintf("Requisition rejected: %s", ref),
			withComments(fmt.Sprintf("Your requisition %s has been rejected.", ref), comments)
	case event.TypeRequisitionReturned:
		return fmt.Sprintf("Requisition returned: %s", ref),
			withComments(fmt.Sprintf("Your requisition %s was returned for changes. Edit it and submit again.", ref), comments)
	case event.TypeDocumentGenerated:
		docType := evt.GetPayloadString(event.KeyDocumentType)
		number := evt.GetPayloadString(event.KeyDocumentNo)
		return fmt.Sprintf("%s %s created", docLabel(docType), number),
			fmt.Sprintf("%s %s was created from requisition %s.", docLabel(docType), number, ref)
	default:
		return fmt.Sprintf("Requisition update: %s", ref), fmt.Sprintf("Requisition %s: %s", ref, evt.Type)
	}
}

func withComments(body, comments string) string {
	if comments == "" {
		return body
	}
	return body + "\nComments: " + comments
}

func docLabel(docType string) string {
	if entity.DocumentType(docType) == entity.DocumentTypeRFQ {
		return "RFQ"
	}
	return "Purchase order"
}
