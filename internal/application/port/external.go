package port

import (
	"context"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
)

// Notification is a message addressed to one user
type Notification struct {
	TenantID      string
	RequisitionID string
	EventType     event.Type
	Recipient     *entity.User
	Subject       string
	Body          string
}

// Notifier delivers notifications over one channel
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n *Notification) error
}

// EventPublisher forwards domain events to an external bus
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// DocumentExporter renders generated documents to a downloadable file
type DocumentExporter interface {
	ContentType() string
	Extension() string
	ExportPurchaseOrder(po *entity.PurchaseOrder, req *entity.Requisition) ([]byte, error)
	ExportRFQ(rfq *entity.RFQ, req *entity.Requisition) ([]byte, error)
}
