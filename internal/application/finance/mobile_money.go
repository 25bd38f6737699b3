package finance

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// STKPushRequest asks the gateway to prompt a phone for payment
type STKPushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// STKPushResponse is the gateway's synchronous acknowledgement. The final
// outcome arrives later through the STK callback.
type STKPushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// MobileMoneyGateway initiates mobile-money collections
type MobileMoneyGateway interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

// STKCallback is the decoded result of an STK push
type STKCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            decimal.Decimal
	ReceiptNumber     string
	PhoneNumber       string
	TransactionDate   string
}

// IsSuccess reports whether the customer completed the payment
func (c STKCallback) IsSuccess() bool {
	return c.ResultCode == 0
}

// C2BConfirmation is a paybill payment pushed by the gateway
type C2BConfirmation struct {
	TransactionType   string
	TransID           string
	TransTime         string
	TransAmount       decimal.Decimal
	BusinessShortCode string
	BillRefNumber     string
	InvoiceNumber     string
	MSISDN            string
	FirstName         string
	MiddleName        string
	LastName          string
}

// PayerName joins the payer's name parts
func (c C2BConfirmation) PayerName() string {
	return strings.Join(strings.Fields(c.FirstName+" "+c.MiddleName+" "+c.LastName), " ")
}

// C2B validation result codes
const (
	C2BResultAccepted             = "0"
	C2BResultInvalidAccountNumber = "C2B00012"
	C2BResultAccountNotFound      = "C2B00011"
	C2BResultInvalidAmount        = "C2B00013"
	C2BResultOtherError           = "C2B00016"
)

// C2BValidationResult is returned to the gateway before it accepts a
// paybill payment
type C2BValidationResult struct {
	ResultCode string
	ResultDesc string
}

// Accepted reports whether the payment may proceed
func (r C2BValidationResult) Accepted() bool {
	return r.ResultCode == C2BResultAccepted
}
