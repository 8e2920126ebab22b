package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
)

// LogNotifier writes notifications to the application log. It is always enabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, msg *port.Notification) error {
	userID := ""
	if msg.Recipient != nil {
		userID = msg.Recipient.ID
	}
	n.logger.Info("Notification",
		zap.String("tenant_id", msg.TenantID),
		zap.String("requisition_id", msg.RequisitionID),
		zap.String("event_type", msg.EventType.String()),
		zap.String("user_id", userID),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
