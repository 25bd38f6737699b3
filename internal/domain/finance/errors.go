package finance

import "github.com/schoolfees/backend/internal/domain/shared"

// Ledger errors
var (
	ErrInvalidAmount               = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrInvoiceCancelled            = shared.NewDomainError("INVOICE_CANCELLED", "Invoice is cancelled")
	ErrInvoiceItemNotFound         = shared.NewDomainError("NOT_FOUND", "Invoice item not found")
	ErrMandatoryItemNotDismissable = shared.NewDomainError("MANDATORY_ITEM_NOT_DISMISSABLE", "Mandatory fees such as tuition cannot be dismissed")
	ErrPaymentAlreadyFinal         = shared.NewDomainError("PAYMENT_ALREADY_FINAL", "Payment has already been finalized")
	ErrDuplicatePayment            = shared.NewDomainError("DUPLICATE_PAYMENT", "A payment with this reference already exists")
	ErrSelfApproval                = shared.NewDomainError("SELF_APPROVAL", "An approval request cannot be decided by its requester")
	ErrApprovalNotPending          = shared.NewDomainError("APPROVAL_NOT_PENDING", "Approval request has already been decided")
	ErrNoOutstandingInvoices       = shared.NewDomainError("NO_OUTSTANDING_INVOICES", "Student has no outstanding invoices")
	ErrAdjustmentCategoryReserved  = shared.NewDomainError("INVALID_CATEGORY", "ADJUSTMENT lines are only written by approved balance adjustments")
)
