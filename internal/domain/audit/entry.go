package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// Action names a state-changing operation
type Action string

const (
	ActionInvoiceItemAdded        Action = "INVOICE_ITEM_ADDED"
	ActionInvoiceItemRemoved      Action = "INVOICE_ITEM_REMOVED"
	ActionInvoiceItemDismissed    Action = "INVOICE_ITEM_DISMISSED"
	ActionInvoiceItemRestored     Action = "INVOICE_ITEM_RESTORED"
	ActionInvoiceCancelled        Action = "INVOICE_CANCELLED"
	ActionInvoiceBalanceAdjusted  Action = "INVOICE_BALANCE_ADJUSTED"
	ActionPaymentRecorded         Action = "PAYMENT_RECORDED"
	ActionPaymentAssigned         Action = "PAYMENT_ASSIGNED"
	ActionApprovalRequested       Action = "APPROVAL_REQUESTED"
	ActionApprovalApproved        Action = "APPROVAL_APPROVED"
	ActionApprovalRejected        Action = "APPROVAL_REJECTED"
	ActionAcademicPeriodActivated Action = "ACADEMIC_PERIOD_ACTIVATED"
	ActionFeeStructureSynced      Action = "FEE_STRUCTURE_SYNCED"
)

// Entity types referenced by audit entries
const (
	EntityInvoice         = "Invoice"
	EntityInvoiceItem     = "InvoiceItem"
	EntityPayment         = "Payment"
	EntityApprovalRequest = "ApprovalRequest"
	EntityAcademicPeriod  = "AcademicPeriod"
	EntityFeeStructure    = "FeeStructure"
)

// Entry is an immutable audit record. Entries are only ever appended.
type Entry struct {
	ID         uuid.UUID
	SchoolID   uuid.UUID
	UserID     *uuid.UUID
	Action     Action
	EntityType string
	EntityID   uuid.UUID
	Details    map[string]any
	CreatedAt  time.Time
}

// NewEntry creates an audit entry. A nil userID marks a system action.
func NewEntry(schoolID uuid.UUID, userID uuid.UUID, action Action, entityType string, entityID uuid.UUID, details map[string]any) (*Entry, error) {
	if schoolID == uuid.Nil {
		return nil, shared.InvalidInput("School ID cannot be empty")
	}
	if action == "" || entityType == "" || entityID == uuid.Nil {
		return nil, shared.InvalidInput("Audit entry needs an action and an entity")
	}
	e := &Entry{
		ID:         uuid.New(),
		SchoolID:   schoolID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if userID != uuid.Nil {
		e.UserID = &userID
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return e, nil
}

// Repository appends and reads audit entries
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, schoolID uuid.UUID, entityType string, entityID uuid.UUID) ([]Entry, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID, page shared.Filter) ([]Entry, int64, error)
}
