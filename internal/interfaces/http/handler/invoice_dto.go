package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// dateLayout is the wire format of calendar dates
const dateLayout = "2006-01-02"

// InvoiceItemResponse is one invoice line
// @Description Invoice line item
type InvoiceItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	FeeStructureID *uuid.UUID      `json:"fee_structure_id,omitempty"`
	Description    string          `json:"description" example:"Tuition Term 1"`
	Amount         decimal.Decimal `json:"amount" swaggertype:"string" example:"15000.00"`
	Category       string          `json:"category" example:"TUITION"`
	IsDismissed    bool            `json:"is_dismissed"`
	IsMandatory    bool            `json:"is_mandatory"`
}

// InvoiceResponse is an invoice with its lines
// @Description Student invoice for an academic period
type InvoiceResponse struct {
	ID                 uuid.UUID             `json:"id"`
	SchoolID           uuid.UUID             `json:"school_id"`
	InvoiceNumber      string                `json:"invoice_number" example:"INV-2025-1-ADM001"`
	StudentID          uuid.UUID             `json:"student_id"`
	AcademicPeriodID   uuid.UUID             `json:"academic_period_id"`
	TotalAmount        decimal.Decimal       `json:"total_amount" swaggertype:"string" example:"20000.00"`
	PaidAmount         decimal.Decimal       `json:"paid_amount" swaggertype:"string" example:"5000.00"`
	Balance            decimal.Decimal       `json:"balance" swaggertype:"string" example:"15000.00"`
	Status             string                `json:"status" example:"PARTIALLY_PAID"`
	DueDate            string                `json:"due_date" example:"2025-04-04"`
	Items              []InvoiceItemResponse `json:"items"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	CancellationReason string                `json:"cancellation_reason,omitempty"`
	Version            int                   `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func toInvoiceResponse(inv *finance.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, 0, len(inv.Items))
	for i := range inv.Items {
		item := &inv.Items[i]
		items = append(items, InvoiceItemResponse{
			ID:             item.ID,
			FeeStructureID: item.FeeStructureID,
			Description:    item.Description,
			Amount:         item.Amount,
			Category:       string(item.Category),
			IsDismissed:    item.IsDismissed,
			IsMandatory:    item.IsMandatory(),
		})
	}
	return InvoiceResponse{
		ID:                 inv.ID,
		SchoolID:           inv.SchoolID,
		InvoiceNumber:      inv.InvoiceNumber,
		StudentID:          inv.StudentID,
		AcademicPeriodID:   inv.AcademicPeriodID,
		TotalAmount:        inv.TotalAmount,
		PaidAmount:         inv.PaidAmount,
		Balance:            inv.Balance,
		Status:             string(inv.Status),
		DueDate:            inv.DueDate.Format(dateLayout),
		Items:              items,
		CancelledAt:        inv.CancelledAt,
		CancellationReason: inv.CancellationReason,
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

// GenerateInvoicesRequest bills students of a period
// @Description Bulk invoice generation. Omit class_id to bill the whole school.
type GenerateInvoicesRequest struct {
	AcademicPeriodID string   `json:"academic_period_id" binding:"required,uuid"`
	ClassID          string   `json:"class_id" binding:"omitempty,uuid"`
	FeeStructureIDs  []string `json:"fee_structure_ids" binding:"omitempty,dive,uuid"`
	DueDate          string   `json:"due_date" binding:"omitempty,datetime=2006-01-02" example:"2025-04-04"`
}

// GenerateStudentInvoiceRequest bills one student
// @Description Single student invoice generation
type GenerateStudentInvoiceRequest struct {
	StudentID        string `json:"student_id" binding:"required,uuid"`
	AcademicPeriodID string `json:"academic_period_id" binding:"required,uuid"`
	DueDate          string `json:"due_date" binding:"omitempty,datetime=2006-01-02" example:"2025-04-04"`
}

// GenerateStudentInvoiceResponse tells whether the invoice was new
// @Description Result of single student invoice generation
type GenerateStudentInvoiceResponse struct {
	Created bool            `json:"created"`
	Invoice InvoiceResponse `json:"invoice"`
}

// AddInvoiceItemRequest appends an ad-hoc charge
// @Description Ad-hoc invoice line
type AddInvoiceItemRequest struct {
	Description string          `json:"description" binding:"required,max=255" example:"Lost library book"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"850.00"`
	Category    string          `json:"category" binding:"required,fee_category" example:"OTHER"`
}

// DismissItemRequest toggles an optional line
// @Description Dismiss or restore an optional invoice line
type DismissItemRequest struct {
	Dismissed *bool `json:"dismissed" binding:"required"`
}

// ListInvoicesQuery filters the invoice list
type ListInvoicesQuery struct {
	dto.ListRequest
	StudentID        string `form:"student_id" binding:"omitempty,uuid"`
	AcademicPeriodID string `form:"academic_period_id" binding:"omitempty,uuid"`
	Status           string `form:"status" binding:"omitempty,oneof=PENDING PARTIALLY_PAID PAID CANCELLED"`
}

func (q ListInvoicesQuery) filter() finance.InvoiceFilter {
	var f finance.InvoiceFilter
	f.StudentID, _ = optionalUUID(q.StudentID)
	f.AcademicPeriodID, _ = optionalUUID(q.AcademicPeriodID)
	if q.Status != "" {
		status := finance.InvoiceStatus(q.Status)
		f.Status = &status
	}
	return f
}

// parseDate parses an optional calendar date. Empty input yields nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
