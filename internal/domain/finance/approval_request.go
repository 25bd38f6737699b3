package finance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ApprovalType discriminates the action an approval request guards
type ApprovalType string

const (
	ApprovalTypeInvoiceCancellation ApprovalType = "INVOICE_CANCELLATION"
	ApprovalTypeBalanceAdjustment   ApprovalType = "BALANCE_ADJUSTMENT"
)

// ApprovalStatus is the request lifecycle state
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// IsValid checks if the status is valid
func (s ApprovalStatus) IsValid() bool {
	return s == ApprovalStatusPending || s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// ApprovalDecision is the approver's verdict
type ApprovalDecision string

const (
	ApprovalDecisionApprove ApprovalDecision = "APPROVE"
	ApprovalDecisionReject  ApprovalDecision = "REJECT"
)

// ApprovalAction is the sensitive mutation a request carries. The set of
// implementations is closed: InvoiceCancellation and BalanceAdjustment.
type ApprovalAction interface {
	Type() ApprovalType
	TargetInvoiceID() uuid.UUID
	Validate() error
	isApprovalAction()
}

// InvoiceCancellation cancels an invoice
type InvoiceCancellation struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

func (InvoiceCancellation) Type() ApprovalType           { return ApprovalTypeInvoiceCancellation }
func (a InvoiceCancellation) TargetInvoiceID() uuid.UUID { return a.InvoiceID }
func (InvoiceCancellation) isApprovalAction()            {}

// Validate checks the action's fields
func (a InvoiceCancellation) Validate() error {
	if a.InvoiceID == uuid.Nil {
		return shared.InvalidInput("Invoice ID is required")
	}
	return nil
}

// BalanceAdjustment overwrites an invoice's total and balance
type BalanceAdjustment struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
	NewTotal   decimal.Decimal `json:"new_total"`
}

func (BalanceAdjustment) Type() ApprovalType           { return ApprovalTypeBalanceAdjustment }
func (a BalanceAdjustment) TargetInvoiceID() uuid.UUID { return a.InvoiceID }
func (BalanceAdjustment) isApprovalAction()            {}

// Validate checks the action's fields
func (a BalanceAdjustment) Validate() error {
	if a.InvoiceID == uuid.Nil {
		return shared.InvalidInput("Invoice ID is required")
	}
	if a.NewBalance.IsNegative() || a.NewTotal.IsNegative() {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "Adjusted amounts cannot be negative")
	}
	if a.NewBalance.GreaterThan(a.NewTotal) {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "New balance cannot exceed new total")
	}
	return nil
}

// EncodeApprovalAction serialises the action payload for storage
func EncodeApprovalAction(action ApprovalAction) ([]byte, error) {
	return json.Marshal(action)
}

// DecodeApprovalAction restores an action from its stored type and payload
func DecodeApprovalAction(t ApprovalType, payload []byte) (ApprovalAction, error) {
	switch t {
	case ApprovalTypeInvoiceCancellation:
		var a InvoiceCancellation
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return a, nil
	case ApprovalTypeBalanceAdjustment:
		var a BalanceAdjustment
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return a, nil
	default:
		return nil, shared.NewDomainError("INVALID_APPROVAL_TYPE", "Unknown approval type: "+string(t))
	}
}

// ApprovalRequest gates a sensitive mutation behind a second person.
// ApprovedByID is never equal to RequestedByID.
type ApprovalRequest struct {
	shared.SchoolAggregateRoot
	Action        ApprovalAction
	Reason        string
	Status        ApprovalStatus
	RequestedByID uuid.UUID
	ApprovedByID  *uuid.UUID
	DecidedAt     *time.Time
	DecisionNote  string
}

// NewApprovalRequest creates a PENDING request after validating the action
func NewApprovalRequest(schoolID uuid.UUID, action ApprovalAction, reason string, requestedBy uuid.UUID) (*ApprovalRequest, error) {
	if action == nil {
		return nil, shared.InvalidInput("Approval action is required")
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}
	if requestedBy == uuid.Nil {
		return nil, shared.InvalidInput("Requester is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "A reason is required")
	}
	return &ApprovalRequest{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		Action:              action,
		Reason:              reason,
		Status:              ApprovalStatusPending,
		RequestedByID:       requestedBy,
	}, nil
}

// Type returns the action's discriminator
func (r *ApprovalRequest) Type() ApprovalType {
	return r.Action.Type()
}

// Decide records the approver's verdict
func (r *ApprovalRequest) Decide(decision ApprovalDecision, approverID uuid.UUID, note string) error {
	if approverID == r.RequestedByID {
		return ErrSelfApproval
	}
	if r.Status != ApprovalStatusPending {
		return ErrApprovalNotPending
	}
	switch decision {
	case ApprovalDecisionApprove:
		r.Status = ApprovalStatusApproved
	case ApprovalDecisionReject:
		r.Status = ApprovalStatusRejected
	default:
		return shared.NewDomainError("INVALID_DECISION", "Decision must be APPROVE or REJECT")
	}
	now := time.Now()
	r.ApprovedByID = &approverID
	r.DecidedAt = &now
	r.DecisionNote = strings.TrimSpace(note)
	r.Touch()
	r.IncrementVersion()
	return nil
}

// IsApproved reports whether the request was approved
func (r *ApprovalRequest) IsApproved() bool {
	return r.Status == ApprovalStatusApproved
}
