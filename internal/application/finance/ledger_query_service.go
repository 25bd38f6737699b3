package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// LedgerQueryService serves read-only views of the ledger
type LedgerQueryService struct {
	scope TransactionScope
}

// NewLedgerQueryService creates a new LedgerQueryService
func NewLedgerQueryService(scope TransactionScope) *LedgerQueryService {
	return &LedgerQueryService{scope: scope}
}

// ListInvoices pages through the school's invoices. Parents must filter by
// a student they are guardian of.
func (s *LedgerQueryService) ListInvoices(ctx context.Context, actor identity.Actor, filter finance.InvoiceFilter, page shared.Filter) ([]finance.Invoice, int64, error) {
	var (
		invoices []finance.Invoice
		total    int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.ensureStudentVisible(ctx, repos, actor, filter.StudentID); err != nil {
			return err
		}
		var err error
		invoices, total, err = repos.Invoices().List(ctx, actor.SchoolID, filter, page)
		return err
	})
	return invoices, total, err
}

// ListPayments pages through the school's payments
func (s *LedgerQueryService) ListPayments(ctx context.Context, actor identity.Actor, filter finance.PaymentFilter, page shared.Filter) ([]finance.Payment, int64, error) {
	var (
		payments []finance.Payment
		total    int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.ensureStudentVisible(ctx, repos, actor, filter.StudentID); err != nil {
			return err
		}
		if actor.IsParent() && filter.UnassignedOnly {
			return shared.Forbidden("Only finance staff can list unassigned payments")
		}
		var err error
		payments, total, err = repos.Payments().List(ctx, actor.SchoolID, filter, page)
		return err
	})
	return payments, total, err
}

// AuditTrail returns the audit entries of one entity, oldest first
func (s *LedgerQueryService) AuditTrail(ctx context.Context, actor identity.Actor, entityType string, entityID uuid.UUID) ([]audit.Entry, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	var entries []audit.Entry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entries, err = repos.Audit().ListByEntity(ctx, actor.SchoolID, entityType, entityID)
		return err
	})
	return entries, err
}

func (s *LedgerQueryService) ensureStudentVisible(ctx context.Context, repos TransactionalRepositories, actor identity.Actor, studentID *uuid.UUID) error {
	if actor.IsStaff() {
		return nil
	}
	if studentID == nil {
		return shared.Forbidden("Parents must select one of their students")
	}
	ok, err := repos.Students().IsGuardian(ctx, *studentID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.Forbidden("Parent is not a guardian of this student")
	}
	return nil
}
