// Package notification delivers ledger news (new invoices, received
// payments) to whatever sink the deployment configures.
package notification

import (
	"context"

	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log. It is the
// default sink for development and single-node deployments.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log.Named("notification")}
}

func (n *LogNotifier) NotifyInvoiceGenerated(ctx context.Context, schoolID, invoiceID uuid.UUID) error {
	logger.WithTraceContext(ctx, n.logger).Info("Invoice generated",
		zap.String("school_id", schoolID.String()),
		zap.String("invoice_id", invoiceID.String()))
	return nil
}

func (n *LogNotifier) NotifyPaymentReceived(ctx context.Context, schoolID, paymentID uuid.UUID) error {
	logger.WithTraceContext(ctx, n.logger).Info("Payment received",
		zap.String("school_id", schoolID.String()),
		zap.String("payment_id", paymentID.String()))
	return nil
}

func (n *LogNotifier) NotifyBulkInvoices(ctx context.Context, schoolID uuid.UUID, invoiceIDs []uuid.UUID) error {
	logger.WithTraceContext(ctx, n.logger).Info("Invoices generated",
		zap.String("school_id", schoolID.String()),
		zap.Int("count", len(invoiceIDs)))
	return nil
}

var _ appfinance.Notifier = (*LogNotifier)(nil)
