package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Notifier fans ledger news out to parents and staff. Delivery is best
// effort; the ledger never waits on it.
type Notifier interface {
	NotifyInvoiceGenerated(ctx context.Context, schoolID, invoiceID uuid.UUID) error
	NotifyPaymentReceived(ctx context.Context, schoolID, paymentID uuid.UUID) error
	NotifyBulkInvoices(ctx context.Context, schoolID uuid.UUID, invoiceIDs []uuid.UUID) error
}

// NotificationHandler bridges domain events to a Notifier
type NotificationHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifier Notifier, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		finance.EventTypeInvoiceGenerated,
		finance.EventTypeInvoicesBulkGenerated,
		finance.EventTypePaymentReceived,
	}
}

// Handle forwards the event to the notifier. Notifier errors are logged
// and swallowed.
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var err error
	switch e := event.(type) {
	case *finance.InvoiceGeneratedEvent:
		err = h.notifier.NotifyInvoiceGenerated(ctx, e.SchoolID(), e.InvoiceID)
	case *finance.InvoicesBulkGeneratedEvent:
		err = h.notifier.NotifyBulkInvoices(ctx, e.SchoolID(), e.InvoiceIDs)
	case *finance.PaymentReceivedEvent:
		err = h.notifier.NotifyPaymentReceived(ctx, e.SchoolID(), e.PaymentID)
	default:
		return fmt.Errorf("notification handler: unexpected event %T", event)
	}
	if err != nil {
		h.logger.Warn("Notification delivery failed",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err))
	}
	return nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
