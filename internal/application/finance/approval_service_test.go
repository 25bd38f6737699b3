package finance_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalService_InvoiceCancellation(t *testing.T) {
	h := newLedgerHarness(t)
	h.seedStandardFees(t)
	_, invB := h.generate(t)
	ctx := context.Background()
	svc := appfinance.NewApprovalService(h.scope, nil, nil)

	req, err := svc.Create(ctx, h.principal, finance.InvoiceCancellation{InvoiceID: invB.ID}, "Student left before term started")
	require.NoError(t, err)
	assert.Equal(t, finance.ApprovalStatusPending, req.Status)
	assert.Equal(t, h.principal.UserID, req.RequestedByID)

	t.Run("requester cannot approve", func(t *testing.T) {
		_, err := svc.Decide(ctx, h.principal, req.ID, finance.ApprovalDecisionApprove, "")
		assert.ErrorIs(t, err, finance.ErrSelfApproval)
	})

	t.Run("bursar cannot decide", func(t *testing.T) {
		_, err := svc.Decide(ctx, h.bursar, req.ID, finance.ApprovalDecisionApprove, "")
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	decided, err := svc.Decide(ctx, h.deputy, req.ID, finance.ApprovalDecisionApprove, "Confirmed with registrar")
	require.NoError(t, err)
	assert.Equal(t, finance.ApprovalStatusApproved, decided.Status)
	require.NotNil(t, decided.ApprovedByID)
	assert.Equal(t, h.deputy.UserID, *decided.ApprovedByID)

	cancelled := h.reload(t, invB)
	assert.Equal(t, finance.InvoiceStatusCancelled, cancelled.Status)
	assert.Equal(t, "Student left before term started", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, []audit.Action{audit.ActionInvoiceCancelled}, h.auditActions(t, audit.EntityInvoice, invB.ID))
	assert.Equal(t,
		[]audit.Action{audit.ActionApprovalRequested, audit.ActionApprovalApproved},
		h.auditActions(t, audit.EntityApprovalRequest, req.ID))

	t.Run("decided request cannot be decided again", func(t *testing.T) {
		_, err := svc.Decide(ctx, h.deputy, req.ID, finance.ApprovalDecisionReject, "")
		assert.ErrorIs(t, err, finance.ErrApprovalNotPending)
	})

	t.Run("cancelled invoice takes no new requests", func(t *testing.T) {
		_, err := svc.Create(ctx, h.bursar, finance.BalanceAdjustment{
			InvoiceID:  invB.ID,
			NewTotal:   decimal.NewFromInt(100),
			NewBalance: decimal.NewFromInt(100),
		}, "late fix")
		assert.ErrorIs(t, err, finance.ErrInvoiceCancelled)
	})

	t.Run("cancelled invoice is frozen", func(t *testing.T) {
		_, err := appfinance.NewInvoiceMutationService(h.scope, nil).AddItem(ctx, h.bursar, appfinance.AddItemCommand{
			InvoiceID:   invB.ID,
			Description: "Trip",
			Amount:      decimal.NewFromInt(10),
			Category:    finance.FeeCategoryOther,
		})
		assert.ErrorIs(t, err, finance.ErrInvoiceCancelled)
	})
}

func TestApprovalService_BalanceAdjustment(t *testing.T) {
	h := newLedgerHarness(t)
	h.seedStandardFees(t)
	invA, _ := h.generate(t)
	ctx := context.Background()
	svc := appfinance.NewApprovalService(h.scope, nil, nil)

	_, err := h.reconciler(nil).RecordManual(ctx, h.bursar, appfinance.ManualPaymentCommand{
		StudentID: h.studentA.ID,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	h.assertLedger(t, invA, 1500, 500)

	req, err := svc.Create(ctx, h.bursar, finance.BalanceAdjustment{
		InvoiceID:  invA.ID,
		NewTotal:   decimal.NewFromInt(1200),
		NewBalance: decimal.NewFromInt(400),
	}, "Bursary award")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, h.principal, req.ID, finance.ApprovalDecisionApprove, "")
	require.NoError(t, err)

	adjusted := h.assertLedger(t, invA, 1200, 800)
	assert.True(t, adjusted.Balance.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, finance.InvoiceStatusPartiallyPaid, adjusted.Status)

	adjustmentLine := itemByCategory(t, adjusted, finance.FeeCategoryAdjustment)
	assert.True(t, adjustmentLine.Amount.Equal(decimal.NewFromInt(-300)))

	bookEntry, err := h.payments.FindByTransactionRef(ctx, finance.PaymentMethodAdjustment, "APR-"+req.ID.String())
	require.NoError(t, err)
	assert.True(t, bookEntry.Amount.Equal(decimal.NewFromInt(300)))

	entries, err := h.audit.ListByEntity(ctx, h.school.ID, audit.EntityInvoice, invA.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionInvoiceBalanceAdjusted, entries[0].Action)
	assert.Equal(t, "1500.00", entries[0].Details["old_total"])
	assert.Equal(t, "400.00", entries[0].Details["new_balance"])

	t.Run("adjustment lines cannot be waived", func(t *testing.T) {
		_, err := appfinance.NewInvoiceMutationService(h.scope, nil).SetDismissed(ctx, h.bursar, adjustmentLine.ID, true)
		assert.ErrorIs(t, err, finance.ErrMandatoryItemNotDismissable)
	})

	t.Run("adjustment lines cannot be removed", func(t *testing.T) {
		_, err := appfinance.NewInvoiceMutationService(h.scope, nil).RemoveItem(ctx, h.bursar, adjustmentLine.ID)
		assert.ErrorIs(t, err, finance.ErrAdjustmentCategoryReserved)

		kept := h.assertLedger(t, invA, 1200, 800)
		assert.True(t, kept.Balance.Equal(decimal.NewFromInt(400)))
		itemByCategory(t, kept, finance.FeeCategoryAdjustment)
	})
}

func TestApprovalService_Reject(t *testing.T) {
	h := newLedgerHarness(t)
	h.seedStandardFees(t)
	invA, _ := h.generate(t)
	ctx := context.Background()
	svc := appfinance.NewApprovalService(h.scope, nil, nil)

	req, err := svc.Create(ctx, h.bursar, finance.InvoiceCancellation{InvoiceID: invA.ID}, "Duplicate enrolment")
	require.NoError(t, err)

	rejected, err := svc.Decide(ctx, h.principal, req.ID, finance.ApprovalDecisionReject, "Not a duplicate")
	require.NoError(t, err)
	assert.Equal(t, finance.ApprovalStatusRejected, rejected.Status)
	assert.Equal(t, "Not a duplicate", rejected.DecisionNote)

	assert.Equal(t, finance.InvoiceStatusPending, h.reload(t, invA).Status)
	assert.Empty(t, h.auditActions(t, audit.EntityInvoice, invA.ID))

	stored, err := svc.Get(ctx, h.bursar, req.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ApprovalStatusRejected, stored.Status)
	assert.IsType(t, finance.InvoiceCancellation{}, stored.Action)
}

func TestApprovalService_CreateValidation(t *testing.T) {
	h := newLedgerHarness(t)
	h.seedStandardFees(t)
	invA, _ := h.generate(t)
	ctx := context.Background()
	svc := appfinance.NewApprovalService(h.scope, nil, nil)

	_, err := svc.Create(ctx, h.parent, finance.InvoiceCancellation{InvoiceID: invA.ID}, "please")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(ctx, h.bursar, finance.InvoiceCancellation{InvoiceID: uuid.New()}, "missing")
	assert.True(t, shared.IsNotFound(err))

	_, err = svc.Create(ctx, h.bursar, finance.BalanceAdjustment{
		InvoiceID:  invA.ID,
		NewTotal:   decimal.NewFromInt(100),
		NewBalance: decimal.NewFromInt(200),
	}, "bad")
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_ADJUSTMENT", domainErr.Code)

	_, err = svc.Create(ctx, h.bursar, finance.InvoiceCancellation{InvoiceID: invA.ID}, "  ")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_REASON", domainErr.Code)
}

func TestApprovalService_List(t *testing.T) {
	h := newLedgerHarness(t)
	h.seedStandardFees(t)
	invA, invB := h.generate(t)
	ctx := context.Background()
	svc := appfinance.NewApprovalService(h.scope, nil, nil)

	first, err := svc.Create(ctx, h.bursar, finance.InvoiceCancellation{InvoiceID: invA.ID}, "one")
	require.NoError(t, err)
	_, err = svc.Create(ctx, h.bursar, finance.InvoiceCancellation{InvoiceID: invB.ID}, "two")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, h.principal, first.ID, finance.ApprovalDecisionReject, "")
	require.NoError(t, err)

	all, err := svc.List(ctx, h.bursar, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := finance.ApprovalStatusPending
	open, err := svc.List(ctx, h.principal, &pending)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "two", open[0].Reason)

	_, err = svc.List(ctx, h.parent, nil)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
