package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestInvoice(t *testing.T) *Invoice {
	inv, err := NewInvoice(uuid.New(), uuid.New(), uuid.New(), "INV-2025-1-ADM001", time.Now().AddDate(0, 1, 0))
	require.NoError(t, err)
	return inv
}

func assertBalanced(t *testing.T, inv *Invoice) {
	t.Helper()
	assert.True(t, inv.Balance.Equal(inv.TotalAmount.Sub(inv.PaidAmount)),
		"balance %s != total %s - paid %s", inv.Balance, inv.TotalAmount, inv.PaidAmount)
	assert.True(t, inv.TotalAmount.Equal(inv.ItemsTotal()))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-1-ADM001", FormatInvoiceNumber(2025, 1, "adm001"))
	assert.Equal(t, "INV-2026-3-1234", FormatInvoiceNumber(2026, 3, " 1234 "))
}

func TestDeriveInvoiceStatus(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		paid    string
		balance string
		want    InvoiceStatus
	}{
		{"unpaid", "1000", "0", "1000", InvoiceStatusPending},
		{"partial", "1000", "400", "600", InvoiceStatusPartiallyPaid},
		{"exact", "1000", "1000", "0", InvoiceStatusPaid},
		{"overpaid", "1000", "1200", "-200", InvoiceStatusPaid},
		{"empty invoice", "0", "0", "0", InvoiceStatusPending},
		{"credit on empty invoice", "0", "100", "-100", InvoiceStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveInvoiceStatus(dec(tt.total), dec(tt.paid), dec(tt.balance)))
		})
	}
}

func TestInvoice_AddItemAndRecalculate(t *testing.T) {
	inv := createTestInvoice(t)

	_, err := inv.AddItem("Tuition", dec("15000"), FeeCategoryTuition, nil)
	require.NoError(t, err)
	bus, err := inv.AddItem("Bus", dec("3000"), FeeCategoryTransport, nil)
	require.NoError(t, err)

	inv.Recalculate(decimal.Zero)
	assert.True(t, inv.TotalAmount.Equal(dec("18000")))
	assert.Equal(t, InvoiceStatusPending, inv.Status)
	assertBalanced(t, inv)

	_, err = inv.SetItemDismissed(bus.ID, true)
	require.NoError(t, err)
	inv.Recalculate(dec("5000"))
	assert.True(t, inv.TotalAmount.Equal(dec("15000")))
	assert.True(t, inv.Balance.Equal(dec("10000")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	assertBalanced(t, inv)

	inv.Recalculate(dec("15000"))
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assertBalanced(t, inv)
}

func TestInvoice_AddItemValidation(t *testing.T) {
	inv := createTestInvoice(t)

	_, err := inv.AddItem("", dec("10"), FeeCategoryOther, nil)
	assert.Error(t, err)
	_, err = inv.AddItem("Trip", dec("0"), FeeCategoryActivity, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = inv.AddItem("Trip", dec("-5"), FeeCategoryActivity, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = inv.AddItem("Trip", dec("5"), FeeCategory("SNACKS"), nil)
	assert.Error(t, err)
}

func TestInvoice_DismissTuitionRejected(t *testing.T) {
	inv := createTestInvoice(t)
	tuition, err := inv.AddItem("Tuition", dec("20000"), FeeCategoryTuition, nil)
	require.NoError(t, err)
	inv.Recalculate(decimal.Zero)

	_, err = inv.SetItemDismissed(tuition.ID, true)
	assert.ErrorIs(t, err, ErrMandatoryItemNotDismissable)
	assert.False(t, inv.FindItem(tuition.ID).IsDismissed)
	assert.True(t, inv.TotalAmount.Equal(dec("20000")))

	// restoring a mandatory item is harmless
	_, err = inv.SetItemDismissed(tuition.ID, false)
	assert.NoError(t, err)
}

func TestInvoice_RemoveItem(t *testing.T) {
	inv := createTestInvoice(t)
	a, _ := inv.AddItem("Lunch", dec("2500"), FeeCategoryMeals, nil)
	_, _ = inv.AddItem("Trip", dec("1000"), FeeCategoryActivity, nil)

	removed, err := inv.RemoveItem(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", removed.Description)
	assert.Len(t, inv.Items, 1)
	assert.Equal(t, []uuid.UUID{removed.ID}, inv.RemovedItemIDs())

	_, err = inv.RemoveItem(uuid.New())
	assert.ErrorIs(t, err, ErrInvoiceItemNotFound)

	inv.ClearRemovedItems()
	assert.Empty(t, inv.RemovedItemIDs())

	adj := inv.addAdjustmentItem(dec("-300"), "Bursary")
	_, err = inv.RemoveItem(adj.ID)
	assert.ErrorIs(t, err, ErrAdjustmentCategoryReserved)
	assert.NotNil(t, inv.FindItem(adj.ID))
	assert.Empty(t, inv.RemovedItemIDs())
}

func TestInvoice_FeeItemUpsertAndRemove(t *testing.T) {
	inv := createTestInvoice(t)
	fs, err := NewFeeStructure(inv.SchoolID, inv.AcademicPeriodID, nil, "Transport", "", dec("2000"), FeeCategoryTransport)
	require.NoError(t, err)

	created, err := inv.UpsertFeeItem(fs)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, fs.Update("Transport", "Zone B", dec("2500"), FeeCategoryTransport))
	created, err = inv.UpsertFeeItem(fs)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].Amount.Equal(dec("2500")))
	assert.Equal(t, "Transport - Zone B", inv.Items[0].Description)

	removed, err := inv.RemoveFeeItem(fs.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = inv.RemoveFeeItem(fs.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	inv.Recalculate(decimal.Zero)
	assert.True(t, inv.TotalAmount.IsZero())
	assertBalanced(t, inv)
}

func TestInvoice_Cancel(t *testing.T) {
	inv := createTestInvoice(t)
	_, _ = inv.AddItem("Tuition", dec("1000"), FeeCategoryTuition, nil)
	inv.Recalculate(decimal.Zero)

	require.NoError(t, inv.Cancel("student left"))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	assert.NotNil(t, inv.CancelledAt)
	require.Len(t, inv.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeInvoiceCancelled, inv.GetDomainEvents()[0].EventType())

	assert.ErrorIs(t, inv.Cancel("again"), ErrInvoiceCancelled)
	_, err := inv.AddItem("Trip", dec("10"), FeeCategoryActivity, nil)
	assert.ErrorIs(t, err, ErrInvoiceCancelled)

	// recalculation keeps the cancelled status
	inv.Recalculate(decimal.Zero)
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
}

func TestInvoice_BalanceAdjustment(t *testing.T) {
	inv := createTestInvoice(t)
	_, _ = inv.AddItem("Tuition", dec("10000"), FeeCategoryTuition, nil)
	inv.Recalculate(dec("2000"))

	itemDelta, paymentDelta, err := inv.PlanBalanceAdjustment(dec("9000"), dec("5000"), dec("2000"))
	require.NoError(t, err)
	assert.True(t, itemDelta.Equal(dec("-1000")))
	assert.True(t, paymentDelta.Equal(dec("2000")))

	inv.ApplyAdjustmentItem(itemDelta, "bursary")
	inv.Recalculate(dec("2000").Add(paymentDelta))
	assert.True(t, inv.TotalAmount.Equal(dec("9000")))
	assert.True(t, inv.Balance.Equal(dec("5000")))
	assertBalanced(t, inv)

	adj := inv.Items[len(inv.Items)-1]
	assert.Equal(t, FeeCategoryAdjustment, adj.Category)
	_, err = inv.SetItemDismissed(adj.ID, true)
	assert.ErrorIs(t, err, ErrMandatoryItemNotDismissable)

	_, _, err = inv.PlanBalanceAdjustment(dec("100"), dec("200"), decimal.Zero)
	assert.Error(t, err)
	_, _, err = inv.PlanBalanceAdjustment(dec("-1"), dec("0"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInvoice_OutstandingAmount(t *testing.T) {
	inv := createTestInvoice(t)
	_, _ = inv.AddItem("Tuition", dec("100"), FeeCategoryTuition, nil)
	inv.Recalculate(dec("150"))
	assert.True(t, inv.Balance.Equal(dec("-50")))
	assert.True(t, inv.OutstandingAmount().IsZero())
}
