package finance

import (
	"context"

	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, committed
// when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the ledger repositories bound to the
// current transaction.
//
// Invoices is the aggregate root for line items: items are persisted with
// their invoice and never saved on their own. Row locks taken through the
// *ForUpdate finders are held until the transaction ends.
type TransactionalRepositories interface {
	Invoices() finance.InvoiceRepository
	Payments() finance.PaymentRepository
	FeeStructures() finance.FeeStructureRepository
	Approvals() finance.ApprovalRequestRepository
	Students() academic.StudentRepository
	Periods() academic.AcademicPeriodRepository
	Schools() identity.SchoolRepository
	Audit() audit.Repository
}
