package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// recalculateInvoice recomputes total, paid, balance and status from the
// invoice's items and completed payments, then saves it. The invoice must
// have been loaded with a row lock in the same transaction.
func recalculateInvoice(ctx context.Context, repos TransactionalRepositories, inv *finance.Invoice) error {
	paid, err := repos.Payments().SumCompletedByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("sum completed payments for %s: %w", inv.InvoiceNumber, err)
	}
	inv.Recalculate(paid)
	if err := repos.Invoices().Save(ctx, inv); err != nil {
		return fmt.Errorf("save invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

// findOrCreateInvoice returns the locked invoice of the student for the
// period, creating an empty one first when none exists. The insert relies on
// the unique (student_id, academic_period_id) index, so concurrent callers
// converge on the same row.
func findOrCreateInvoice(
	ctx context.Context,
	repos TransactionalRepositories,
	student *academic.Student,
	period *academic.AcademicPeriod,
	dueDate *time.Time,
) (*finance.Invoice, bool, error) {
	existing, err := repos.Invoices().FindByStudentAndPeriod(ctx, student.ID, period.ID)
	if err == nil {
		locked, err := repos.Invoices().FindByIDForUpdate(ctx, existing.SchoolID, existing.ID)
		return locked, false, err
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	due := period.EndDate
	if dueDate != nil {
		due = *dueDate
	}
	number := finance.FormatInvoiceNumber(period.AcademicYear, period.Term, student.AdmissionNumber)
	inv, err := finance.NewInvoice(student.SchoolID, student.ID, period.ID, number, due)
	if err != nil {
		return nil, false, err
	}
	created, err := repos.Invoices().CreateIfAbsent(ctx, inv)
	if err != nil {
		return nil, false, fmt.Errorf("create invoice %s: %w", number, err)
	}
	if created {
		return inv, true, nil
	}

	// Lost the race against a concurrent writer; use its row.
	existing, err = repos.Invoices().FindByStudentAndPeriod(ctx, student.ID, period.ID)
	if err != nil {
		return nil, false, err
	}
	locked, err := repos.Invoices().FindByIDForUpdate(ctx, existing.SchoolID, existing.ID)
	return locked, false, err
}

// authorizeInvoiceAccess checks that the actor may touch the invoice.
// Staff must share the school; parents must be a guardian of the student
// and are only let through when parentAllowed is set.
func authorizeInvoiceAccess(
	ctx context.Context,
	repos TransactionalRepositories,
	actor identity.Actor,
	inv *finance.Invoice,
	parentAllowed bool,
) error {
	if err := actor.EnsureSchool(inv.SchoolID); err != nil {
		return err
	}
	if actor.IsStaff() {
		return nil
	}
	if !actor.IsParent() || !parentAllowed {
		return shared.Forbidden("Only finance staff can perform this action")
	}
	ok, err := repos.Students().IsGuardian(ctx, inv.StudentID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check guardian: %w", err)
	}
	if !ok {
		return shared.Forbidden("Parent is not a guardian of this student")
	}
	return nil
}
