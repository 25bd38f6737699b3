package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ApprovalService runs the two-person rule for invoice cancellations and
// balance adjustments. A request is executed in the same transaction that
// marks it approved.
type ApprovalService struct {
	scope      TransactionScope
	dispatcher *EventDispatcher
	audit      *AuditRecorder
	logger     *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(scope TransactionScope, dispatcher *EventDispatcher, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		scope:      scope,
		dispatcher: dispatcher,
		audit:      NewAuditRecorder(),
		logger:     logger,
	}
}

// Create files a request. The action is validated against the invoice now,
// so approval only has to re-check state that may have changed since.
func (s *ApprovalService) Create(ctx context.Context, actor identity.Actor, action finance.ApprovalAction, reason string) (*finance.ApprovalRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "approval", "create")
	defer span.End()

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	if action == nil {
		return nil, shared.InvalidInput("Approval action is required")
	}

	var req *finance.ApprovalRequest
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByID(ctx, ActorScope(actor), action.TargetInvoiceID())
		if err != nil {
			return err
		}
		if err := actor.EnsureSchool(inv.SchoolID); err != nil {
			return err
		}
		if inv.IsCancelled() {
			return finance.ErrInvoiceCancelled
		}

		req, err = finance.NewApprovalRequest(inv.SchoolID, action, reason, actor.UserID)
		if err != nil {
			return err
		}
		if err := repos.Approvals().Save(ctx, req); err != nil {
			return fmt.Errorf("save approval request: %w", err)
		}
		return s.audit.Record(ctx, repos, actor, req.SchoolID, audit.ActionApprovalRequested, audit.EntityApprovalRequest, req.ID, map[string]any{
			"type":           string(req.Type()),
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.InvoiceNumber,
			"reason":         req.Reason,
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Approval requested",
		zap.String("request_id", req.ID.String()),
		zap.String("type", string(req.Type())),
		zap.String("requested_by", actor.UserID.String()))
	return req, nil
}

// Decide approves or rejects a pending request. Requesters cannot decide
// their own requests.
func (s *ApprovalService) Decide(ctx context.Context, actor identity.Actor, requestID uuid.UUID, decision finance.ApprovalDecision, note string) (*finance.ApprovalRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "approval", "decide")
	defer span.End()
	telemetry.SetAttributes(span, "decision", string(decision))

	if err := actor.EnsureRole(identity.Approvers...); err != nil {
		return nil, err
	}

	var (
		req    *finance.ApprovalRequest
		events []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		req, err = repos.Approvals().FindByIDForUpdate(ctx, ActorScope(actor), requestID)
		if err != nil {
			return err
		}
		if err := actor.EnsureSchool(req.SchoolID); err != nil {
			return err
		}
		if err := req.Decide(decision, actor.UserID, note); err != nil {
			return err
		}

		action := audit.ActionApprovalRejected
		if req.IsApproved() {
			action = audit.ActionApprovalApproved
			inv, err := s.execute(ctx, repos, actor, req)
			if err != nil {
				return err
			}
			events = collectEvents(inv)
		}
		if err := repos.Approvals().Save(ctx, req); err != nil {
			return fmt.Errorf("save approval request: %w", err)
		}
		return s.audit.Record(ctx, repos, actor, req.SchoolID, action, audit.EntityApprovalRequest, req.ID, map[string]any{
			"type":         string(req.Type()),
			"requested_by": req.RequestedByID.String(),
			"note":         req.DecisionNote,
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, events...)
	s.logger.Info("Approval decided",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(req.Status)),
		zap.String("approved_by", actor.UserID.String()))
	return req, nil
}

func (s *ApprovalService) execute(ctx context.Context, repos TransactionalRepositories, actor identity.Actor, req *finance.ApprovalRequest) (*finance.Invoice, error) {
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, req.SchoolID, req.Action.TargetInvoiceID())
	if err != nil {
		return nil, err
	}

	switch action := req.Action.(type) {
	case finance.InvoiceCancellation:
		if err := inv.Cancel(req.Reason); err != nil {
			return nil, err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return nil, fmt.Errorf("save invoice: %w", err)
		}
		return inv, s.audit.Record(ctx, repos, actor, inv.SchoolID, audit.ActionInvoiceCancelled, audit.EntityInvoice, inv.ID, map[string]any{
			"invoice_number": inv.InvoiceNumber,
			"approval_id":    req.ID.String(),
			"reason":         req.Reason,
			"balance":        inv.Balance.StringFixed(2),
		})

	case finance.BalanceAdjustment:
		paid, err := repos.Payments().SumCompletedByInvoice(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		oldTotal, oldBalance := inv.TotalAmount, inv.Balance
		itemDelta, paymentDelta, err := inv.PlanBalanceAdjustment(action.NewTotal, action.NewBalance, paid)
		if err != nil {
			return nil, err
		}
		inv.ApplyAdjustmentItem(itemDelta, req.Reason)
		if !paymentDelta.IsZero() {
			p, err := finance.NewCompletedPayment(inv.SchoolID, &inv.StudentID, &inv.ID, paymentDelta, finance.PaymentMethodAdjustment, "APR-"+req.ID.String())
			if err != nil {
				return nil, err
			}
			// Book entry only; no money moved.
			p.ClearDomainEvents()
			p.Notes = "Balance adjustment: " + req.Reason
			p.RecordedBy = &actor.UserID
			if err := repos.Payments().Create(ctx, p); err != nil {
				return nil, fmt.Errorf("create adjustment payment: %w", err)
			}
		}
		if err := recalculateInvoice(ctx, repos, inv); err != nil {
			return nil, err
		}
		inv.MarkAdjusted()
		return inv, s.audit.Record(ctx, repos, actor, inv.SchoolID, audit.ActionInvoiceBalanceAdjusted, audit.EntityInvoice, inv.ID, map[string]any{
			"invoice_number": inv.InvoiceNumber,
			"approval_id":    req.ID.String(),
			"old_total":      oldTotal.StringFixed(2),
			"old_balance":    oldBalance.StringFixed(2),
			"new_total":      inv.TotalAmount.StringFixed(2),
			"new_balance":    inv.Balance.StringFixed(2),
			"item_delta":     itemDelta.StringFixed(2),
			"payment_delta":  paymentDelta.StringFixed(2),
		})

	default:
		return nil, shared.NewDomainError("INVALID_APPROVAL_TYPE", "Unsupported approval action")
	}
}

// List returns the school's requests, optionally filtered by status
func (s *ApprovalService) List(ctx context.Context, actor identity.Actor, status *finance.ApprovalStatus) ([]finance.ApprovalRequest, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	var requests []finance.ApprovalRequest
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		requests, err = repos.Approvals().List(ctx, actor.SchoolID, status)
		return err
	})
	return requests, err
}

// Get returns one request of the actor's school
func (s *ApprovalService) Get(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*finance.ApprovalRequest, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	var req *finance.ApprovalRequest
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		req, err = repos.Approvals().FindByID(ctx, ActorScope(actor), requestID)
		if err != nil {
			return err
		}
		return actor.EnsureSchool(req.SchoolID)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
