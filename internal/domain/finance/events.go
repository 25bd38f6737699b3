package finance

import (
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	EventTypeInvoiceGenerated       = "InvoiceGenerated"
	EventTypeInvoicesBulkGenerated  = "InvoicesBulkGenerated"
	EventTypeInvoiceCancelled       = "InvoiceCancelled"
	EventTypeInvoiceBalanceAdjusted = "InvoiceBalanceAdjusted"
	EventTypePaymentReceived        = "PaymentReceived"

	AggregateTypeInvoice = "Invoice"
	AggregateTypePayment = "Payment"
)

// InvoiceGeneratedEvent is raised for each invoice issued by the generator
type InvoiceGeneratedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	StudentID     uuid.UUID       `json:"student_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewInvoiceGeneratedEvent creates an InvoiceGeneratedEvent
func NewInvoiceGeneratedEvent(inv *Invoice) *InvoiceGeneratedEvent {
	return &InvoiceGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceGenerated, AggregateTypeInvoice, inv.ID, inv.SchoolID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		StudentID:       inv.StudentID,
		TotalAmount:     inv.TotalAmount,
	}
}

// InvoicesBulkGeneratedEvent is raised once per bulk run that created more than one invoice
type InvoicesBulkGeneratedEvent struct {
	shared.BaseDomainEvent
	AcademicPeriodID uuid.UUID   `json:"academic_period_id"`
	InvoiceIDs       []uuid.UUID `json:"invoice_ids"`
}

// NewInvoicesBulkGeneratedEvent creates an InvoicesBulkGeneratedEvent
func NewInvoicesBulkGeneratedEvent(schoolID, periodID uuid.UUID, invoiceIDs []uuid.UUID) *InvoicesBulkGeneratedEvent {
	return &InvoicesBulkGeneratedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoicesBulkGenerated, AggregateTypeInvoice, periodID, schoolID),
		AcademicPeriodID: periodID,
		InvoiceIDs:       invoiceIDs,
	}
}

// InvoiceCancelledEvent is raised when an approved cancellation executes
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason"`
}

// NewInvoiceCancelledEvent creates an InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID, inv.SchoolID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Reason:          inv.CancellationReason,
	}
}

// InvoiceBalanceAdjustedEvent is raised when an approved balance adjustment executes
type InvoiceBalanceAdjustedEvent struct {
	shared.BaseDomainEvent
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Balance     decimal.Decimal `json:"balance"`
}

// NewInvoiceBalanceAdjustedEvent creates an InvoiceBalanceAdjustedEvent
func NewInvoiceBalanceAdjustedEvent(inv *Invoice) *InvoiceBalanceAdjustedEvent {
	return &InvoiceBalanceAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceBalanceAdjusted, AggregateTypeInvoice, inv.ID, inv.SchoolID),
		InvoiceID:       inv.ID,
		TotalAmount:     inv.TotalAmount,
		Balance:         inv.Balance,
	}
}

// PaymentReceivedEvent is raised when a payment becomes COMPLETED
type PaymentReceivedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
}

// NewPaymentReceivedEvent creates a PaymentReceivedEvent
func NewPaymentReceivedEvent(p *Payment) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReceived, AggregateTypePayment, p.ID, p.SchoolID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		StudentID:       p.StudentLabel(),
		Amount:          p.Amount,
		Method:          p.Method,
	}
}
