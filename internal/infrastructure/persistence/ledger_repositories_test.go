package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAcademicPeriodRepository_SingleActivePeriod(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	repo := NewGormAcademicPeriodRepository(db)
	ctx := context.Background()

	start := fx.period.EndDate.AddDate(0, 0, 14)
	next, err := academic.NewAcademicPeriod(fx.school.ID, 2025, 2, start, start.AddDate(0, 3, 0))
	require.NoError(t, err)
	next.Activate()

	t.Run("second active period is rejected", func(t *testing.T) {
		err := repo.Save(ctx, next)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("activation after deactivating the rest", func(t *testing.T) {
		require.NoError(t, repo.DeactivateAll(ctx, fx.school.ID))
		require.NoError(t, repo.Save(ctx, next))

		active, err := repo.FindActive(ctx, fx.school.ID)
		require.NoError(t, err)
		assert.Equal(t, next.ID, active.ID)

		periods, err := repo.FindBySchool(ctx, fx.school.ID)
		require.NoError(t, err)
		require.Len(t, periods, 2)
		assert.Equal(t, 2, periods[0].Term)
		assert.False(t, periods[1].IsActive)
	})

	t.Run("year and term are unique per school", func(t *testing.T) {
		dup, err := academic.NewAcademicPeriod(fx.school.ID, 2025, 1, start, start.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})
}

func TestGormStudentRepository(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	repo := NewGormStudentRepository(db)
	ctx := context.Background()

	classID := uuid.New()
	inClass, err := academic.NewStudent(fx.school.ID, "ADM002", "Baraka", "Mwangi", &classID)
	require.NoError(t, err)
	guardian := uuid.New()
	inClass.AddGuardian(guardian)
	require.NoError(t, repo.Save(ctx, inClass))

	left, err := academic.NewStudent(fx.school.ID, "ADM003", "Chebet", "Kiprop", &classID)
	require.NoError(t, err)
	require.NoError(t, left.ChangeStatus(academic.StudentStatusTransferred))
	require.NoError(t, repo.Save(ctx, left))

	t.Run("filters by class and status", func(t *testing.T) {
		students, err := repo.FindBySchool(ctx, fx.school.ID, academic.StudentFilter{ClassID: &classID, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "ADM002", students[0].AdmissionNumber)

		all, err := repo.FindBySchool(ctx, fx.school.ID, academic.StudentFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("admission number ignores case", func(t *testing.T) {
		found, err := repo.FindByAdmissionNumber(ctx, fx.school.ID, "adm002")
		require.NoError(t, err)
		assert.Equal(t, inClass.ID, found.ID)
		assert.True(t, found.HasGuardian(guardian))
	})

	t.Run("guardian links", func(t *testing.T) {
		ok, err := repo.IsGuardian(ctx, inClass.ID, guardian)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IsGuardian(ctx, fx.student.ID, guardian)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("saving twice keeps links", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, inClass))
		found, err := repo.FindByID(ctx, fx.school.ID, inClass.ID)
		require.NoError(t, err)
		assert.Len(t, found.GuardianIDs, 1)
	})
}

func TestGormSchoolRepository_FindByPaybillShortcode(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	repo := NewGormSchoolRepository(db)
	ctx := context.Background()

	found, err := repo.FindByPaybillShortcode(ctx, "600100")
	require.NoError(t, err)
	assert.Equal(t, fx.school.ID, found.ID)
	assert.Equal(t, "SCH001", found.Code)

	_, err = repo.FindByPaybillShortcode(ctx, "999999")
	assert.True(t, shared.IsNotFound(err))
}

func TestGormApprovalRequestRepository(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	repo := NewGormApprovalRequestRepository(db)
	ctx := context.Background()

	invoiceID := uuid.New()
	requester, approver := uuid.New(), uuid.New()
	adjust, err := finance.NewApprovalRequest(fx.school.ID, finance.BalanceAdjustment{
		InvoiceID:  invoiceID,
		NewTotal:   decimal.NewFromInt(900),
		NewBalance: decimal.NewFromInt(400),
	}, "Bursary awarded", requester)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, adjust))

	cancel, err := finance.NewApprovalRequest(fx.school.ID, finance.InvoiceCancellation{InvoiceID: invoiceID}, "Student left", requester)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, cancel))

	loaded, err := repo.FindByIDForUpdate(ctx, fx.school.ID, adjust.ID)
	require.NoError(t, err)
	action, ok := loaded.Action.(finance.BalanceAdjustment)
	require.True(t, ok)
	assert.True(t, action.NewBalance.Equal(decimal.NewFromInt(400)))

	require.NoError(t, loaded.Decide(finance.ApprovalDecisionApprove, approver, "ok"))
	require.NoError(t, repo.Save(ctx, loaded))

	pending := finance.ApprovalStatusPending
	requests, err := repo.List(ctx, fx.school.ID, &pending)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, finance.ApprovalTypeInvoiceCancellation, requests[0].Type())

	approved, err := repo.FindByID(ctx, fx.school.ID, adjust.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())
	require.NotNil(t, approved.ApprovedByID)
	assert.Equal(t, approver, *approved.ApprovedByID)
}

func TestGormApprovalRequestRepository_FindByIDForUpdate_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormApprovalRequestRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "approval_requests" WHERE school_id = \$1 AND id = \$2 ORDER BY .* LIMIT .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByIDForUpdate(context.Background(), uuid.New(), uuid.New())
	assert.True(t, shared.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormAuditRepository(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()

	invoiceID := uuid.New()
	userID := uuid.New()
	for i, action := range []audit.Action{audit.ActionInvoiceItemAdded, audit.ActionInvoiceItemDismissed} {
		entry, err := audit.NewEntry(fx.school.ID, userID, action, audit.EntityInvoice, invoiceID, map[string]any{
			"new_total": decimal.NewFromInt(int64(1000 + i*100)).StringFixed(2),
		})
		require.NoError(t, err)
		entry.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Append(ctx, entry))
	}
	system, err := audit.NewEntry(fx.school.ID, uuid.Nil, audit.ActionPaymentRecorded, audit.EntityPayment, uuid.New(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, system))

	trail, err := repo.ListByEntity(ctx, fx.school.ID, audit.EntityInvoice, invoiceID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, audit.ActionInvoiceItemAdded, trail[0].Action)
	assert.Equal(t, "1100.00", trail[1].Details["new_total"])
	require.NotNil(t, trail[0].UserID)
	assert.Equal(t, userID, *trail[0].UserID)

	page, total, err := repo.ListBySchool(ctx, fx.school.ID, shared.Filter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	_, total, err = repo.ListBySchool(ctx, uuid.New(), shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGormTransactionScope(t *testing.T) {
	db := newSQLiteDB(t)
	fx := seedLedger(t, db)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	inv := newTestInvoice(t, fx)
	_, err := NewGormInvoiceRepository(db).CreateIfAbsent(ctx, inv)
	require.NoError(t, err)

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
			p, err := finance.NewCompletedPayment(fx.school.ID, &fx.student.ID, &inv.ID, decimal.NewFromInt(400), finance.PaymentMethodManual, "R-1")
			if err != nil {
				return err
			}
			if err := repos.Payments().Create(ctx, p); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sum, err := NewGormPaymentRepository(db).SumCompletedByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("commits payment and invoice together", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
			p, err := finance.NewCompletedPayment(fx.school.ID, &fx.student.ID, &inv.ID, decimal.NewFromInt(400), finance.PaymentMethodManual, "R-2")
			if err != nil {
				return err
			}
			if err := repos.Payments().Create(ctx, p); err != nil {
				return err
			}
			locked, err := repos.Invoices().FindByIDForUpdate(ctx, fx.school.ID, inv.ID)
			if err != nil {
				return err
			}
			paid, err := repos.Payments().SumCompletedByInvoice(ctx, inv.ID)
			if err != nil {
				return err
			}
			locked.Recalculate(paid)
			return repos.Invoices().Save(ctx, locked)
		})
		require.NoError(t, err)

		stored, err := NewGormInvoiceRepository(db).FindByID(ctx, fx.school.ID, inv.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(decimal.NewFromInt(1100)))
		assert.True(t, stored.Balance.Equal(stored.TotalAmount.Sub(stored.PaidAmount)))
	})
}
