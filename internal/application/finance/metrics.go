package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerMetrics records business metrics for ledger operations.
// telemetry.LedgerMetrics is the OpenTelemetry implementation.
type LedgerMetrics interface {
	RecordInvoicesGenerated(ctx context.Context, schoolID uuid.UUID, created, skipped, failed int)
	RecordPayment(ctx context.Context, schoolID uuid.UUID, method, status string, amount decimal.Decimal)
	RecordFeeSync(ctx context.Context, schoolID uuid.UUID, processed, failed int)
	RecordWebhook(ctx context.Context, kind, outcome string)
}

// NoopLedgerMetrics discards all measurements
type NoopLedgerMetrics struct{}

func (NoopLedgerMetrics) RecordInvoicesGenerated(context.Context, uuid.UUID, int, int, int) {}

func (NoopLedgerMetrics) RecordPayment(context.Context, uuid.UUID, string, string, decimal.Decimal) {}

func (NoopLedgerMetrics) RecordFeeSync(context.Context, uuid.UUID, int, int) {}

func (NoopLedgerMetrics) RecordWebhook(context.Context, string, string) {}

var _ LedgerMetrics = NoopLedgerMetrics{}
