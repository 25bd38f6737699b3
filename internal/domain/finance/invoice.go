package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceItem is a single line on an invoice. Items generated from a fee
// structure keep a reference to it so later edits can patch them.
type InvoiceItem struct {
	shared.BaseEntity
	InvoiceID      uuid.UUID
	FeeStructureID *uuid.UUID
	Description    string
	Amount         decimal.Decimal
	Category       FeeCategory
	IsDismissed    bool
}

// IsMandatory reports whether the item may never be dismissed
func (i *InvoiceItem) IsMandatory() bool {
	return i.Category.IsMandatory()
}

// Invoice is the ledger unit for one student in one academic period.
//
// Money columns are never edited incrementally: Recalculate derives
// TotalAmount from non-dismissed items and PaidAmount from completed
// payments, so Balance == TotalAmount - PaidAmount after every mutation.
type Invoice struct {
	shared.SchoolAggregateRoot
	InvoiceNumber      string
	StudentID          uuid.UUID
	AcademicPeriodID   uuid.UUID
	TotalAmount        decimal.Decimal
	PaidAmount         decimal.Decimal
	Balance            decimal.Decimal
	Status             InvoiceStatus
	DueDate            time.Time
	Items              []InvoiceItem
	CancelledAt        *time.Time
	CancellationReason string

	removedItemIDs []uuid.UUID
}

// FormatInvoiceNumber builds the deterministic invoice number
// INV-{academicYear}-{term}-{admissionNumber}. One student has at most one
// invoice per period, so the number doubles as a natural idempotency key.
func FormatInvoiceNumber(academicYear, term int, admissionNumber string) string {
	return fmt.Sprintf("INV-%d-%d-%s", academicYear, term, strings.ToUpper(strings.TrimSpace(admissionNumber)))
}

// NewInvoice creates an empty PENDING invoice
func NewInvoice(schoolID, studentID, periodID uuid.UUID, invoiceNumber string, dueDate time.Time) (*Invoice, error) {
	if schoolID == uuid.Nil || studentID == uuid.Nil || periodID == uuid.Nil {
		return nil, shared.InvalidInput("School, student and academic period are required")
	}
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	return &Invoice{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		InvoiceNumber:       invoiceNumber,
		StudentID:           studentID,
		AcademicPeriodID:    periodID,
		TotalAmount:         decimal.Zero,
		PaidAmount:          decimal.Zero,
		Balance:             decimal.Zero,
		Status:              InvoiceStatusPending,
		DueDate:             dueDate,
		Items:               make([]InvoiceItem, 0),
	}, nil
}

// IsCancelled reports whether the invoice was cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

func (inv *Invoice) ensureMutable() error {
	if inv.IsCancelled() {
		return ErrInvoiceCancelled
	}
	return nil
}

// AddItem appends an ad-hoc or fee-linked line item
func (inv *Invoice) AddItem(description string, amount decimal.Decimal, category FeeCategory, feeStructureID *uuid.UUID) (*InvoiceItem, error) {
	if err := inv.ensureMutable(); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Item description cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Invalid fee category: "+string(category))
	}
	inv.Items = append(inv.Items, InvoiceItem{
		BaseEntity:     shared.NewBaseEntity(),
		InvoiceID:      inv.ID,
		FeeStructureID: feeStructureID,
		Description:    description,
		Amount:         amount.Round(2),
		Category:       category,
	})
	return &inv.Items[len(inv.Items)-1], nil
}

// addAdjustmentItem appends a signed ADJUSTMENT line. It bypasses the
// positive-amount rule because adjustments may reduce the total.
func (inv *Invoice) addAdjustmentItem(delta decimal.Decimal, reason string) *InvoiceItem {
	desc := "Balance adjustment"
	if reason != "" {
		desc += ": " + reason
	}
	inv.Items = append(inv.Items, InvoiceItem{
		BaseEntity:  shared.NewBaseEntity(),
		InvoiceID:   inv.ID,
		Description: desc,
		Amount:      delta.Round(2),
		Category:    FeeCategoryAdjustment,
	})
	return &inv.Items[len(inv.Items)-1]
}

// FindItem returns the item with the given ID
func (inv *Invoice) FindItem(itemID uuid.UUID) *InvoiceItem {
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			return &inv.Items[i]
		}
	}
	return nil
}

// ItemForFeeStructure returns the line generated by a fee structure, if any
func (inv *Invoice) ItemForFeeStructure(feeStructureID uuid.UUID) *InvoiceItem {
	for i := range inv.Items {
		if fs := inv.Items[i].FeeStructureID; fs != nil && *fs == feeStructureID {
			return &inv.Items[i]
		}
	}
	return nil
}

// UpsertFeeItem creates the fee structure's line or refreshes its amount,
// description and category. Returns true when a new line was created.
// A dismissed line stays dismissed.
func (inv *Invoice) UpsertFeeItem(fs *FeeStructure) (bool, error) {
	if existing := inv.ItemForFeeStructure(fs.ID); existing != nil {
		if err := inv.ensureMutable(); err != nil {
			return false, err
		}
		existing.Amount = fs.Amount
		existing.Description = fs.ItemDescription()
		existing.Category = fs.Category
		if existing.Category.IsMandatory() {
			existing.IsDismissed = false
		}
		existing.Touch()
		return false, nil
	}
	fsID := fs.ID
	if _, err := inv.AddItem(fs.ItemDescription(), fs.Amount, fs.Category, &fsID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFeeItem drops the line generated by the fee structure.
// Returns false when the invoice has no such line.
func (inv *Invoice) RemoveFeeItem(feeStructureID uuid.UUID) (bool, error) {
	item := inv.ItemForFeeStructure(feeStructureID)
	if item == nil {
		return false, nil
	}
	if _, err := inv.RemoveItem(item.ID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveItem deletes a line and returns a copy of it. ADJUSTMENT lines
// belong to approved balance adjustments and stay.
func (inv *Invoice) RemoveItem(itemID uuid.UUID) (InvoiceItem, error) {
	if err := inv.ensureMutable(); err != nil {
		return InvoiceItem{}, err
	}
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			if inv.Items[i].Category == FeeCategoryAdjustment {
				return InvoiceItem{}, ErrAdjustmentCategoryReserved
			}
			removed := inv.Items[i]
			inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
			inv.removedItemIDs = append(inv.removedItemIDs, itemID)
			return removed, nil
		}
	}
	return InvoiceItem{}, ErrInvoiceItemNotFound
}

// SetItemDismissed waives or restores a line. Mandatory categories
// (TUITION) cannot be waived.
func (inv *Invoice) SetItemDismissed(itemID uuid.UUID, dismissed bool) (*InvoiceItem, error) {
	if err := inv.ensureMutable(); err != nil {
		return nil, err
	}
	item := inv.FindItem(itemID)
	if item == nil {
		return nil, ErrInvoiceItemNotFound
	}
	if dismissed && item.IsMandatory() {
		return nil, ErrMandatoryItemNotDismissable
	}
	item.IsDismissed = dismissed
	item.Touch()
	return item, nil
}

// ItemsTotal is the sum of all non-dismissed item amounts
func (inv *Invoice) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		if !item.IsDismissed {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// Recalculate recomputes the money columns from source rows:
// TotalAmount from non-dismissed items, PaidAmount from the sum of
// completed payments (supplied by the caller), Balance as the difference,
// and Status from DeriveInvoiceStatus. A cancelled invoice keeps its status.
func (inv *Invoice) Recalculate(completedPayments decimal.Decimal) {
	inv.TotalAmount = inv.ItemsTotal()
	inv.PaidAmount = completedPayments.Round(2)
	inv.Balance = inv.TotalAmount.Sub(inv.PaidAmount)
	if !inv.IsCancelled() {
		inv.Status = DeriveInvoiceStatus(inv.TotalAmount, inv.PaidAmount, inv.Balance)
	}
	inv.Touch()
	inv.IncrementVersion()
}

// OutstandingAmount is the positive part of the balance
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	if inv.Balance.IsNegative() {
		return decimal.Zero
	}
	return inv.Balance
}

// Cancel marks the invoice CANCELLED. Only the approval workflow calls this.
func (inv *Invoice) Cancel(reason string) error {
	if inv.IsCancelled() {
		return ErrInvoiceCancelled
	}
	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancellationReason = reason
	inv.Touch()
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))
	return nil
}

// PlanBalanceAdjustment computes the compensating entries that make the
// invoice read newTotal/newBalance after recalculation: an ADJUSTMENT line
// for the total delta and a signed ADJUSTMENT payment for the paid delta.
// Either delta may be zero.
func (inv *Invoice) PlanBalanceAdjustment(newTotal, newBalance, completedPayments decimal.Decimal) (itemDelta, paymentDelta decimal.Decimal, err error) {
	if err := inv.ensureMutable(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if newTotal.IsNegative() || newBalance.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	if newBalance.GreaterThan(newTotal) {
		return decimal.Zero, decimal.Zero, shared.NewDomainError("INVALID_ADJUSTMENT", "New balance cannot exceed new total")
	}
	itemDelta = newTotal.Sub(inv.ItemsTotal())
	paymentDelta = newTotal.Sub(newBalance).Sub(completedPayments)
	return itemDelta, paymentDelta, nil
}

// ApplyAdjustmentItem records the total delta planned by PlanBalanceAdjustment
func (inv *Invoice) ApplyAdjustmentItem(delta decimal.Decimal, reason string) {
	if delta.IsZero() {
		return
	}
	inv.addAdjustmentItem(delta, reason)
}

// MarkAdjusted raises the balance-adjusted event after recalculation
func (inv *Invoice) MarkAdjusted() {
	inv.AddDomainEvent(NewInvoiceBalanceAdjustedEvent(inv))
}

// RemovedItemIDs returns IDs of items removed since load, for persistence
func (inv *Invoice) RemovedItemIDs() []uuid.UUID {
	return inv.removedItemIDs
}

// ClearRemovedItems resets removal tracking after a successful save
func (inv *Invoice) ClearRemovedItems() {
	inv.removedItemIDs = nil
}
