package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how money reached the school
type PaymentMethod string

const (
	PaymentMethodMpesa        PaymentMethod = "MPESA"     // STK push
	PaymentMethodMpesaC2B     PaymentMethod = "MPESA_C2B" // paybill
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodManual       PaymentMethod = "MANUAL"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodAdjustment   PaymentMethod = "ADJUSTMENT" // written by an approved balance adjustment
)

// IsValid checks if the method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMpesa, PaymentMethodMpesaC2B, PaymentMethodBankTransfer,
		PaymentMethodManual, PaymentMethodCash, PaymentMethodCheque, PaymentMethodAdjustment:
		return true
	}
	return false
}

// IsManualEntry reports whether staff may record the method by hand
func (m PaymentMethod) IsManualEntry() bool {
	switch m {
	case PaymentMethodManual, PaymentMethodCash, PaymentMethodCheque, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus is the payment lifecycle state
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// IsFinal reports whether the status is terminal
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// UnassignedStudent is how a payment with no matched student is labelled
const UnassignedStudent = "UNASSIGNED"

// Payment is a money movement. STK pushes start PENDING and are finalized by
// the gateway callback; manual, bank transfer and C2B payments are created
// COMPLETED. COMPLETED and FAILED are never left.
type Payment struct {
	shared.SchoolAggregateRoot
	StudentID      *uuid.UUID
	InvoiceID      *uuid.UUID
	Amount         decimal.Decimal
	Method         PaymentMethod
	Status         PaymentStatus
	TransactionRef string
	ReceiptNumber  string
	PayerPhone     string
	PayerName      string
	Unassigned     bool
	FailureReason  string
	Notes          string
	RecordedBy     *uuid.UUID
	CompletedAt    *time.Time
}

func newPayment(schoolID uuid.UUID, studentID, invoiceID *uuid.UUID, amount decimal.Decimal, method PaymentMethod, ref string) (*Payment, error) {
	if schoolID == uuid.Nil {
		return nil, shared.InvalidInput("School ID cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Invalid payment method: "+string(method))
	}
	if method != PaymentMethodAdjustment && !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Payment{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		StudentID:           studentID,
		InvoiceID:           invoiceID,
		Amount:              amount.Round(2),
		Method:              method,
		TransactionRef:      strings.TrimSpace(ref),
	}, nil
}

// NewPendingPayment creates a payment awaiting a gateway callback
func NewPendingPayment(schoolID uuid.UUID, studentID, invoiceID *uuid.UUID, amount decimal.Decimal, method PaymentMethod, ref string) (*Payment, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_REF", "Pending payments need a transaction reference")
	}
	p, err := newPayment(schoolID, studentID, invoiceID, amount, method, ref)
	if err != nil {
		return nil, err
	}
	p.Status = PaymentStatusPending
	return p, nil
}

// NewCompletedPayment creates a payment that is final on creation
func NewCompletedPayment(schoolID uuid.UUID, studentID, invoiceID *uuid.UUID, amount decimal.Decimal, method PaymentMethod, ref string) (*Payment, error) {
	p, err := newPayment(schoolID, studentID, invoiceID, amount, method, ref)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &now
	p.AddDomainEvent(NewPaymentReceivedEvent(p))
	return p, nil
}

// NewUnassignedPayment records money that could not be matched to a student.
// It is kept COMPLETED so no revenue is lost and waits for manual assignment.
func NewUnassignedPayment(schoolID uuid.UUID, amount decimal.Decimal, method PaymentMethod, ref string) (*Payment, error) {
	p, err := NewCompletedPayment(schoolID, nil, nil, amount, method, ref)
	if err != nil {
		return nil, err
	}
	p.Unassigned = true
	return p, nil
}

// Complete finalizes a pending payment with the gateway receipt. A non-zero
// confirmedAmount replaces the requested amount.
func (p *Payment) Complete(receiptNumber string, confirmedAmount decimal.Decimal, payerPhone string) error {
	if p.Status != PaymentStatusPending {
		return ErrPaymentAlreadyFinal
	}
	if confirmedAmount.IsPositive() {
		p.Amount = confirmedAmount.Round(2)
	}
	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.ReceiptNumber = receiptNumber
	if payerPhone != "" {
		p.PayerPhone = payerPhone
	}
	p.CompletedAt = &now
	p.Touch()
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentReceivedEvent(p))
	return nil
}

// Fail finalizes a pending payment as failed
func (p *Payment) Fail(reason string) error {
	if p.Status != PaymentStatusPending {
		return ErrPaymentAlreadyFinal
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.Touch()
	p.IncrementVersion()
	return nil
}

// AssignTo attaches an unassigned payment to a student's invoice
func (p *Payment) AssignTo(studentID, invoiceID uuid.UUID) error {
	if !p.Unassigned || p.Status != PaymentStatusCompleted {
		return shared.NewDomainError("PAYMENT_NOT_UNASSIGNED", "Only unassigned completed payments can be assigned")
	}
	p.StudentID = &studentID
	p.InvoiceID = &invoiceID
	p.Unassigned = false
	p.Touch()
	p.IncrementVersion()
	return nil
}

// SetPayer records who paid
func (p *Payment) SetPayer(phone, name string) {
	p.PayerPhone = strings.TrimSpace(phone)
	p.PayerName = strings.TrimSpace(name)
}

// StudentLabel renders the student reference, "UNASSIGNED" when unmatched
func (p *Payment) StudentLabel() string {
	if p.StudentID == nil {
		return UnassignedStudent
	}
	return p.StudentID.String()
}

// IsCompleted reports whether the payment counts towards invoice balances
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
