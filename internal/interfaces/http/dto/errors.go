package dto

import (
	"net/http"
	"strings"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeGatewayUnavailable is returned when the mobile money gateway cannot be reached
	ErrCodeGatewayUnavailable = "ERR_GATEWAY_UNAVAILABLE"
	// ErrCodeGatewayRejected is returned when the gateway refused the request
	ErrCodeGatewayRejected = "ERR_GATEWAY_REJECTED"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeSelfApproval = "ERR_SELF_APPROVAL"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicatePayment    = "ERR_DUPLICATE_PAYMENT"
	ErrCodeApprovalNotPending  = "ERR_APPROVAL_NOT_PENDING"
	ErrCodePaymentAlreadyFinal = "ERR_PAYMENT_ALREADY_FINAL"
	ErrCodePaymentNotAssigned  = "ERR_PAYMENT_NOT_UNASSIGNED"
)

// Business rule error codes
const (
	ErrCodeInvalidState          = "ERR_INVALID_STATE"
	ErrCodeBusinessRule          = "ERR_BUSINESS_RULE"
	ErrCodeInvoiceCancelled      = "ERR_INVOICE_CANCELLED"
	ErrCodeMandatoryItem         = "ERR_MANDATORY_ITEM_NOT_DISMISSABLE"
	ErrCodeNoActivePeriod        = "ERR_NO_ACTIVE_PERIOD"
	ErrCodeNoOutstandingInvoices = "ERR_NO_OUTSTANDING_INVOICES"
	ErrCodeStudentNotActive      = "ERR_STUDENT_NOT_ACTIVE"
	ErrCodeNoApplicableFees      = "ERR_NO_APPLICABLE_FEES"
)

// Input error codes
const (
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON   = "ERR_INVALID_JSON"
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeGatewayUnavailable: http.StatusServiceUnavailable,
	ErrCodeGatewayRejected:    http.StatusBadGateway,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeSelfApproval: http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicatePayment:    http.StatusConflict,
	ErrCodeApprovalNotPending:  http.StatusConflict,
	ErrCodePaymentAlreadyFinal: http.StatusConflict,
	ErrCodePaymentNotAssigned:  http.StatusConflict,

	ErrCodeInvalidState:          http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:          http.StatusUnprocessableEntity,
	ErrCodeInvoiceCancelled:      http.StatusUnprocessableEntity,
	ErrCodeMandatoryItem:         http.StatusUnprocessableEntity,
	ErrCodeNoActivePeriod:        http.StatusUnprocessableEntity,
	ErrCodeNoOutstandingInvoices: http.StatusUnprocessableEntity,
	ErrCodeStudentNotActive:      http.StatusUnprocessableEntity,
	ErrCodeNoApplicableFees:      http.StatusUnprocessableEntity,

	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidJSON:   http.StatusBadRequest,
	ErrCodeInvalidAmount: http.StatusBadRequest,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// ERR_INVALID_* codes not listed explicitly are 400; anything else
// unknown is 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "ERR_INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                      ErrCodeNotFound,
	"ALREADY_EXISTS":                 ErrCodeAlreadyExists,
	"INVALID_INPUT":                  ErrCodeInvalidInput,
	"INVALID_STATE":                  ErrCodeInvalidState,
	"UNAUTHORIZED":                   ErrCodeUnauthorized,
	"FORBIDDEN":                      ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":           ErrCodeConcurrencyConflict,
	"INVALID_AMOUNT":                 ErrCodeInvalidAmount,
	"INVOICE_CANCELLED":              ErrCodeInvoiceCancelled,
	"MANDATORY_ITEM_NOT_DISMISSABLE": ErrCodeMandatoryItem,
	"PAYMENT_ALREADY_FINAL":          ErrCodePaymentAlreadyFinal,
	"PAYMENT_NOT_UNASSIGNED":         ErrCodePaymentNotAssigned,
	"DUPLICATE_PAYMENT":              ErrCodeDuplicatePayment,
	"SELF_APPROVAL":                  ErrCodeSelfApproval,
	"APPROVAL_NOT_PENDING":           ErrCodeApprovalNotPending,
	"NO_OUTSTANDING_INVOICES":        ErrCodeNoOutstandingInvoices,
	"NO_ACTIVE_PERIOD":               ErrCodeNoActivePeriod,
	"STUDENT_NOT_ACTIVE":             ErrCodeStudentNotActive,
	"NO_APPLICABLE_FEES":             ErrCodeNoApplicableFees,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unlisted INVALID_* validation codes keep their suffix (INVALID_TERM
// becomes ERR_INVALID_TERM); ERR_* codes pass through.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	if strings.HasPrefix(code, "INVALID_") {
		return "ERR_" + code
	}
	return code
}
