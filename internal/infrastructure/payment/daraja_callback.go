package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/shopspring/decimal"
)

// Callback metadata item names
const (
	stkItemAmount          = "Amount"
	stkItemReceiptNumber   = "MpesaReceiptNumber"
	stkItemTransactionDate = "TransactionDate"
	stkItemPhoneNumber     = "PhoneNumber"
)

// DecodeSTKCallback parses an STK callback body. Failed payments carry no
// metadata, so the amount stays zero.
func DecodeSTKCallback(body []byte) (appfinance.STKCallback, error) {
	var envelope STKCallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return appfinance.STKCallback{}, fmt.Errorf("daraja: malformed stk callback: %w", err)
	}
	raw := envelope.Body.STKCallback
	if raw.CheckoutRequestID == "" {
		return appfinance.STKCallback{}, fmt.Errorf("daraja: stk callback without CheckoutRequestID")
	}

	cb := appfinance.STKCallback{
		MerchantRequestID: raw.MerchantRequestID,
		CheckoutRequestID: raw.CheckoutRequestID,
		ResultCode:        raw.ResultCode,
		ResultDesc:        raw.ResultDesc,
	}
	if raw.CallbackMetadata == nil {
		return cb, nil
	}

	for _, item := range raw.CallbackMetadata.Item {
		value := itemValue(item.Value)
		switch item.Name {
		case stkItemAmount:
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return appfinance.STKCallback{}, fmt.Errorf("daraja: invalid callback amount %q: %w", value, err)
			}
			cb.Amount = amount
		case stkItemReceiptNumber:
			cb.ReceiptNumber = value
		case stkItemTransactionDate:
			cb.TransactionDate = value
		case stkItemPhoneNumber:
			cb.PhoneNumber = value
		}
	}
	return cb, nil
}

// itemValue renders a metadata value as text without losing digits of
// large numbers such as phone numbers
func itemValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}

// DecodeC2B parses a C2B validation or confirmation body
func DecodeC2B(body []byte) (appfinance.C2BConfirmation, error) {
	var p C2BPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return appfinance.C2BConfirmation{}, fmt.Errorf("daraja: malformed c2b payload: %w", err)
	}

	var amount decimal.Decimal
	if s := strings.TrimSpace(itemValue(p.TransAmount)); s != "" {
		var err error
		amount, err = decimal.NewFromString(s)
		if err != nil {
			return appfinance.C2BConfirmation{}, fmt.Errorf("daraja: invalid TransAmount %q: %w", s, err)
		}
	}

	return appfinance.C2BConfirmation{
		TransactionType:   p.TransactionType,
		TransID:           strings.TrimSpace(p.TransID),
		TransTime:         p.TransTime,
		TransAmount:       amount,
		BusinessShortCode: strings.TrimSpace(p.BusinessShortCode),
		BillRefNumber:     strings.TrimSpace(p.BillRefNumber),
		InvoiceNumber:     p.InvoiceNumber,
		MSISDN:            p.MSISDN,
		FirstName:         p.FirstName,
		MiddleName:        p.MiddleName,
		LastName:          p.LastName,
	}, nil
}
