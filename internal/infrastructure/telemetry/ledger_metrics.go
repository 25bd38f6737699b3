package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrSchoolID = attribute.Key("school_id")
	AttrOutcome  = attribute.Key("outcome")
	AttrMethod   = attribute.Key("method")
	AttrStatus   = attribute.Key("status")
	AttrKind     = attribute.Key("kind")
)

// LedgerMetrics records ledger counters through OpenTelemetry
type LedgerMetrics struct {
	invoicesGenerated *Counter
	paymentsTotal     *Counter
	paymentAmount     *FloatCounter
	feeSyncStudents   *Counter
	webhooksTotal     *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		m   LedgerMetrics
		err error
	)
	if m.invoicesGenerated, err = NewCounter(meter, "ledger_invoices_generated_total",
		"Invoices processed by bulk generation, by outcome", "{invoice}"); err != nil {
		return nil, err
	}
	if m.paymentsTotal, err = NewCounter(meter, "ledger_payments_total",
		"Payments recorded, by method and status", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = NewFloatCounter(meter, "ledger_payment_amount_total",
		"Sum of completed payment amounts", "KES"); err != nil {
		return nil, err
	}
	if m.feeSyncStudents, err = NewCounter(meter, "ledger_fee_sync_students_total",
		"Students processed by fee structure sync, by outcome", "{student}"); err != nil {
		return nil, err
	}
	if m.webhooksTotal, err = NewCounter(meter, "ledger_webhooks_total",
		"Gateway webhooks handled, by kind and outcome", "{webhook}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordInvoicesGenerated counts one generation run
func (m *LedgerMetrics) RecordInvoicesGenerated(ctx context.Context, schoolID uuid.UUID, created, skipped, failed int) {
	school := AttrSchoolID.String(schoolID.String())
	m.invoicesGenerated.Add(ctx, int64(created), school, AttrOutcome.String("created"))
	m.invoicesGenerated.Add(ctx, int64(skipped), school, AttrOutcome.String("skipped"))
	m.invoicesGenerated.Add(ctx, int64(failed), school, AttrOutcome.String("failed"))
}

// RecordPayment counts a payment; completed amounts are also summed
func (m *LedgerMetrics) RecordPayment(ctx context.Context, schoolID uuid.UUID, method, status string, amount decimal.Decimal) {
	attrs := []attribute.KeyValue{
		AttrSchoolID.String(schoolID.String()),
		AttrMethod.String(method),
		AttrStatus.String(status),
	}
	m.paymentsTotal.Inc(ctx, attrs...)
	if status == "COMPLETED" && amount.IsPositive() {
		m.paymentAmount.Add(ctx, amount.InexactFloat64(), attrs[:2]...)
	}
}

// RecordFeeSync counts one sync run
func (m *LedgerMetrics) RecordFeeSync(ctx context.Context, schoolID uuid.UUID, processed, failed int) {
	school := AttrSchoolID.String(schoolID.String())
	m.feeSyncStudents.Add(ctx, int64(processed-failed), school, AttrOutcome.String("ok"))
	m.feeSyncStudents.Add(ctx, int64(failed), school, AttrOutcome.String("failed"))
}

// RecordWebhook counts one gateway webhook
func (m *LedgerMetrics) RecordWebhook(ctx context.Context, kind, outcome string) {
	m.webhooksTotal.Inc(ctx, AttrKind.String(kind), AttrOutcome.String(outcome))
}
