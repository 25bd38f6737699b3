package finance

import "github.com/shopspring/decimal"

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED" // only reachable through an approved cancellation
)

// IsValid checks if the status is valid
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsOutstanding reports whether the invoice still expects money
func (s InvoiceStatus) IsOutstanding() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPartiallyPaid
}

// OutstandingInvoiceStatuses are the statuses eligible for payment allocation
var OutstandingInvoiceStatuses = []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPartiallyPaid}

// DeriveInvoiceStatus computes the status from the money columns:
//
//	balance <= 0 and total > 0  -> PAID
//	paid > 0 and balance > 0    -> PARTIALLY_PAID
//	otherwise                   -> PENDING
func DeriveInvoiceStatus(total, paid, balance decimal.Decimal) InvoiceStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero) && total.IsPositive():
		return InvoiceStatusPaid
	case paid.IsPositive() && balance.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusPending
	}
}
