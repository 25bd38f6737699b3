package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// ApprovalResponse is a dual-authorization request
// @Description Approval request
type ApprovalResponse struct {
	ID            uuid.UUID              `json:"id"`
	SchoolID      uuid.UUID              `json:"school_id"`
	Type          string                 `json:"type" example:"INVOICE_CANCELLATION"`
	Action        finance.ApprovalAction `json:"action" swaggertype:"object"`
	Reason        string                 `json:"reason"`
	Status        string                 `json:"status" example:"PENDING"`
	RequestedByID uuid.UUID              `json:"requested_by_id"`
	ApprovedByID  *uuid.UUID             `json:"approved_by_id,omitempty"`
	DecidedAt     *time.Time             `json:"decided_at,omitempty"`
	DecisionNote  string                 `json:"decision_note,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func toApprovalResponse(r *finance.ApprovalRequest) ApprovalResponse {
	return ApprovalResponse{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		Type:          string(r.Type()),
		Action:        r.Action,
		Reason:        r.Reason,
		Status:        string(r.Status),
		RequestedByID: r.RequestedByID,
		ApprovedByID:  r.ApprovedByID,
		DecidedAt:     r.DecidedAt,
		DecisionNote:  r.DecisionNote,
		CreatedAt:     r.CreatedAt,
	}
}

// CreateApprovalRequest asks for a second person to approve a sensitive
// invoice change
// @Description new_balance and new_total are required for BALANCE_ADJUSTMENT
type CreateApprovalRequest struct {
	Type       string           `json:"type" binding:"required,oneof=INVOICE_CANCELLATION BALANCE_ADJUSTMENT" example:"BALANCE_ADJUSTMENT"`
	InvoiceID  string           `json:"invoice_id" binding:"required,uuid"`
	NewBalance *decimal.Decimal `json:"new_balance,omitempty" swaggertype:"string" example:"0.00"`
	NewTotal   *decimal.Decimal `json:"new_total,omitempty" swaggertype:"string" example:"10000.00"`
	Reason     string           `json:"reason" binding:"required,max=500" example:"Bursary awarded"`
}

// action builds the domain action, or nil when adjustment amounts are missing
func (r CreateApprovalRequest) action() finance.ApprovalAction {
	invoiceID := uuid.MustParse(r.InvoiceID)
	switch finance.ApprovalType(r.Type) {
	case finance.ApprovalTypeInvoiceCancellation:
		return finance.InvoiceCancellation{InvoiceID: invoiceID}
	case finance.ApprovalTypeBalanceAdjustment:
		if r.NewBalance == nil || r.NewTotal == nil {
			return nil
		}
		return finance.BalanceAdjustment{InvoiceID: invoiceID, NewBalance: *r.NewBalance, NewTotal: *r.NewTotal}
	}
	return nil
}

// DecideApprovalRequest approves or rejects a pending request
// @Description Approver verdict
type DecideApprovalRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVE REJECT" example:"APPROVE"`
	Note     string `json:"note" binding:"max=500"`
}

// ListApprovalsQuery filters the approval list
type ListApprovalsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}
