package finance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationTarget is an outstanding invoice competing for a payment
type AllocationTarget struct {
	ID                uuid.UUID
	Number            string
	OutstandingAmount decimal.Decimal
	CreatedAt         time.Time
}

// Allocation is the share of a payment applied to one invoice
type Allocation struct {
	TargetID     uuid.UUID
	TargetNumber string
	Amount       decimal.Decimal
	FullyPaid    bool
}

// AllocationResult is the outcome of spreading a payment over invoices
type AllocationResult struct {
	Allocations     []Allocation
	TotalAllocated  decimal.Decimal
	RemainingAmount decimal.Decimal
}

// FullyAllocated reports whether no money is left over
func (r *AllocationResult) FullyAllocated() bool {
	return r.RemainingAmount.IsZero()
}

// AllocationStrategy spreads a payment across outstanding invoices
type AllocationStrategy interface {
	Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationResult, error)
}

// FIFOAllocationStrategy pays the oldest-created invoice first, applying
// min(remaining, outstanding) to each until the money runs out.
type FIFOAllocationStrategy struct{}

// NewFIFOAllocationStrategy creates a FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{}
}

// Allocate allocates the amount to targets oldest first
func (s *FIFOAllocationStrategy) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Number < sorted[j].Number
	})

	result := &AllocationResult{
		Allocations:    make([]Allocation, 0, len(sorted)),
		TotalAllocated: decimal.Zero,
	}
	remaining := amount
	for _, target := range sorted {
		if remaining.IsZero() {
			break
		}
		if !target.OutstandingAmount.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, target.OutstandingAmount)
		result.Allocations = append(result.Allocations, Allocation{
			TargetID:     target.ID,
			TargetNumber: target.Number,
			Amount:       applied,
			FullyPaid:    applied.Equal(target.OutstandingAmount),
		})
		remaining = remaining.Sub(applied)
		result.TotalAllocated = result.TotalAllocated.Add(applied)
	}
	result.RemainingAmount = remaining
	return result, nil
}

// AllocationTargetsFromInvoices converts outstanding invoices into targets
func AllocationTargetsFromInvoices(invoices []Invoice) []AllocationTarget {
	targets := make([]AllocationTarget, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		if !inv.Status.IsOutstanding() {
			continue
		}
		targets = append(targets, AllocationTarget{
			ID:                inv.ID,
			Number:            inv.InvoiceNumber,
			OutstandingAmount: inv.OutstandingAmount(),
			CreatedAt:         inv.CreatedAt,
		})
	}
	return targets
}
