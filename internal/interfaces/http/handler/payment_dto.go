package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// PaymentResponse is a money movement. student_id reads "UNASSIGNED" for
// paybill payments that matched no student.
// @Description Payment
type PaymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	SchoolID       uuid.UUID       `json:"school_id"`
	StudentID      string          `json:"student_id" example:"UNASSIGNED"`
	InvoiceID      *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount         decimal.Decimal `json:"amount" swaggertype:"string" example:"5000.00"`
	Method         string          `json:"method" example:"MPESA_C2B"`
	Status         string          `json:"status" example:"COMPLETED"`
	TransactionRef string          `json:"transaction_ref" example:"QKJ81H2XYZ"`
	ReceiptNumber  string          `json:"receipt_number,omitempty"`
	PayerPhone     string          `json:"payer_phone,omitempty"`
	PayerName      string          `json:"payer_name,omitempty"`
	Unassigned     bool            `json:"unassigned"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	RecordedBy     *uuid.UUID      `json:"recorded_by,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		SchoolID:       p.SchoolID,
		StudentID:      p.StudentLabel(),
		InvoiceID:      p.InvoiceID,
		Amount:         p.Amount,
		Method:         string(p.Method),
		Status:         string(p.Status),
		TransactionRef: p.TransactionRef,
		ReceiptNumber:  p.ReceiptNumber,
		PayerPhone:     p.PayerPhone,
		PayerName:      p.PayerName,
		Unassigned:     p.Unassigned,
		FailureReason:  p.FailureReason,
		Notes:          p.Notes,
		RecordedBy:     p.RecordedBy,
		CompletedAt:    p.CompletedAt,
		CreatedAt:      p.CreatedAt,
	}
}

func toPaymentResponses(payments []*finance.Payment) []PaymentResponse {
	return lo.Map(payments, func(p *finance.Payment, _ int) PaymentResponse { return toPaymentResponse(p) })
}

// AllocationResponse is the share of a payment applied to one invoice
// @Description Payment allocation
type AllocationResponse struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string"`
	FullyPaid     bool            `json:"fully_paid"`
}

// ManualPaymentResponse describes how a manual payment was spread
// @Description Manual payment outcome
type ManualPaymentResponse struct {
	Payments       []PaymentResponse    `json:"payments"`
	Allocations    []AllocationResponse `json:"allocations"`
	TotalAllocated decimal.Decimal      `json:"total_allocated" swaggertype:"string"`
	Unallocated    decimal.Decimal      `json:"unallocated" swaggertype:"string"`
}

func toManualPaymentResponse(r *appfinance.ManualPaymentResult) ManualPaymentResponse {
	return ManualPaymentResponse{
		Payments: toPaymentResponses(r.Payments),
		Allocations: lo.Map(r.Allocations, func(a finance.Allocation, _ int) AllocationResponse {
			return AllocationResponse{
				InvoiceID:     a.TargetID,
				InvoiceNumber: a.TargetNumber,
				Amount:        a.Amount,
				FullyPaid:     a.FullyPaid,
			}
		}),
		TotalAllocated: r.TotalAllocated,
		Unallocated:    r.Unallocated,
	}
}

// ManualPaymentRequest records money received at the bursar's office
// @Description Cash, cheque or manual entry spread over outstanding invoices oldest first
type ManualPaymentRequest struct {
	StudentID string          `json:"student_id" binding:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"12000.00"`
	Method    string          `json:"method" binding:"omitempty,oneof=MANUAL CASH CHEQUE" example:"CASH"`
	Reference string          `json:"reference" binding:"max=100" example:"RCPT-0042"`
	PayerName string          `json:"payer_name" binding:"max=200"`
	Notes     string          `json:"notes" binding:"max=500"`
}

// BankTransferRequest records a transfer against an invoice
// @Description Bank transfer. Any excess over the balance is kept as a credit.
type BankTransferRequest struct {
	InvoiceID     string          `json:"invoice_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"20000.00"`
	BankReference string          `json:"bank_reference" binding:"required,max=100" example:"FT25006ABC"`
	PayerName     string          `json:"payer_name" binding:"max=200"`
}

// STKPushRequest prompts a phone for payment
// @Description M-Pesa STK push. Amount defaults to the outstanding balance.
type STKPushRequest struct {
	InvoiceID   string          `json:"invoice_id" binding:"required,uuid"`
	PhoneNumber string          `json:"phone_number" binding:"required,phone_ke" example:"0712345678"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"5000.00"`
}

// AssignPaymentRequest attaches an unassigned payment to an invoice
// @Description Invoice to credit
type AssignPaymentRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
}

// ListPaymentsQuery filters the payment list
type ListPaymentsQuery struct {
	dto.ListRequest
	InvoiceID      string `form:"invoice_id" binding:"omitempty,uuid"`
	StudentID      string `form:"student_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED"`
	UnassignedOnly bool   `form:"unassigned_only"`
}

func (q ListPaymentsQuery) filter() finance.PaymentFilter {
	f := finance.PaymentFilter{UnassignedOnly: q.UnassignedOnly}
	f.InvoiceID, _ = optionalUUID(q.InvoiceID)
	f.StudentID, _ = optionalUUID(q.StudentID)
	if q.Status != "" {
		status := finance.PaymentStatus(q.Status)
		f.Status = &status
	}
	return f
}
