package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FeeStructureFilter narrows fee structure listings
type FeeStructureFilter struct {
	AcademicPeriodID *uuid.UUID
	ClassID          *uuid.UUID
	ActiveOnly       bool
}

// FeeStructureRepository persists fee structures
type FeeStructureRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*FeeStructure, error)
	FindByIDs(ctx context.Context, schoolID uuid.UUID, ids []uuid.UUID) ([]FeeStructure, error)
	FindActiveForPeriod(ctx context.Context, schoolID, periodID uuid.UUID) ([]FeeStructure, error)
	List(ctx context.Context, schoolID uuid.UUID, filter FeeStructureFilter) ([]FeeStructure, error)
	Save(ctx context.Context, fs *FeeStructure) error
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	StudentID        *uuid.UUID
	AcademicPeriodID *uuid.UUID
	Status           *InvoiceStatus
}

// InvoiceRepository persists invoices together with their items.
// A uuid.Nil schoolID on the by-ID finders means no tenant filter; it is
// only passed for super admins.
type InvoiceRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate loads the invoice holding a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*Invoice, error)
	FindByItemID(ctx context.Context, itemID uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, schoolID uuid.UUID, invoiceNumber string) (*Invoice, error)
	FindByStudentAndPeriod(ctx context.Context, studentID, periodID uuid.UUID) (*Invoice, error)
	// FindOutstandingByStudentForUpdate returns PENDING/PARTIALLY_PAID invoices
	// oldest first, locked
	FindOutstandingByStudentForUpdate(ctx context.Context, schoolID, studentID uuid.UUID) ([]Invoice, error)
	// CreateIfAbsent inserts the invoice unless one exists for the same
	// (student, period); returns false when the row already existed
	CreateIfAbsent(ctx context.Context, invoice *Invoice) (bool, error)
	Save(ctx context.Context, invoice *Invoice) error
	List(ctx context.Context, schoolID uuid.UUID, filter InvoiceFilter, page shared.Filter) ([]Invoice, int64, error)
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	InvoiceID      *uuid.UUID
	StudentID      *uuid.UUID
	Status         *PaymentStatus
	UnassignedOnly bool
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*Payment, error)
	// FindByTransactionRefForUpdate looks a payment up by gateway reference
	// across schools, holding a row lock
	FindByTransactionRefForUpdate(ctx context.Context, method PaymentMethod, ref string) (*Payment, error)
	FindByTransactionRef(ctx context.Context, method PaymentMethod, ref string) (*Payment, error)
	SumCompletedByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	// Create inserts a new payment; a duplicate (method, transaction_ref)
	// yields shared.ErrAlreadyExists
	Create(ctx context.Context, payment *Payment) error
	Save(ctx context.Context, payment *Payment) error
	List(ctx context.Context, schoolID uuid.UUID, filter PaymentFilter, page shared.Filter) ([]Payment, int64, error)
}

// ApprovalRequestRepository persists approval requests
type ApprovalRequestRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*ApprovalRequest, error)
	FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*ApprovalRequest, error)
	List(ctx context.Context, schoolID uuid.UUID, status *ApprovalStatus) ([]ApprovalRequest, error)
	Save(ctx context.Context, request *ApprovalRequest) error
}
