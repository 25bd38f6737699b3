package finance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrGatewayUnavailable is returned when no mobile-money gateway is configured
	ErrGatewayUnavailable = errors.New("payment reconciler: mobile money gateway not configured")
	// ErrUnknownShortcode is returned when a paybill shortcode maps to no school
	ErrUnknownShortcode = errors.New("payment reconciler: unknown paybill shortcode")
	// ErrSTKPushRejected is returned when the gateway refuses to start an STK push
	ErrSTKPushRejected = errors.New("payment reconciler: stk push rejected by gateway")
)

// Account references are invoice or admission numbers
var billRefPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/_-]{0,63}$`)

const defaultWebhookDedupTTL = 72 * time.Hour

// PaymentReconcilerService matches incoming money to invoices.
//
// Gateway webhooks are safe to replay: a Redis key on the gateway reference
// short-circuits most retries, and the authoritative guards are the unique
// (method, transaction_ref) index plus the payment status checked under a
// row lock.
type PaymentReconcilerService struct {
	scope       TransactionScope
	gateway     MobileMoneyGateway
	idempotency shared.IdempotencyStore
	allocator   finance.AllocationStrategy
	dispatcher  *EventDispatcher
	audit       *AuditRecorder
	metrics     LedgerMetrics
	dedupTTL    time.Duration
	logger      *zap.Logger
}

// PaymentReconcilerServiceConfig holds the PaymentReconcilerService dependencies
type PaymentReconcilerServiceConfig struct {
	Scope       TransactionScope
	Gateway     MobileMoneyGateway
	Idempotency shared.IdempotencyStore
	Allocator   finance.AllocationStrategy
	Dispatcher  *EventDispatcher
	Metrics     LedgerMetrics
	DedupTTL    time.Duration
	Logger      *zap.Logger
}

// NewPaymentReconcilerService creates a new PaymentReconcilerService
func NewPaymentReconcilerService(config PaymentReconcilerServiceConfig) *PaymentReconcilerService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	allocator := config.Allocator
	if allocator == nil {
		allocator = finance.NewFIFOAllocationStrategy()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NoopLedgerMetrics{}
	}
	ttl := config.DedupTTL
	if ttl <= 0 {
		ttl = defaultWebhookDedupTTL
	}
	return &PaymentReconcilerService{
		scope:       config.Scope,
		gateway:     config.Gateway,
		idempotency: config.Idempotency,
		allocator:   allocator,
		dispatcher:  config.Dispatcher,
		audit:       NewAuditRecorder(),
		metrics:     metrics,
		dedupTTL:    ttl,
		logger:      logger,
	}
}

// ManualPaymentCommand records money received at the bursar's office
type ManualPaymentCommand struct {
	StudentID uuid.UUID
	Amount    decimal.Decimal
	Method    finance.PaymentMethod
	Reference string
	PayerName string
	Notes     string
}

// ManualPaymentResult describes how a manual payment was spread
type ManualPaymentResult struct {
	Payments       []*finance.Payment   `json:"payments"`
	Allocations    []finance.Allocation `json:"allocations"`
	TotalAllocated decimal.Decimal      `json:"total_allocated"`
	Unallocated    decimal.Decimal      `json:"unallocated"`
}

// RecordManual spreads a payment over the student's outstanding invoices,
// oldest first. Money left once every invoice is settled is kept as a
// credit payment without an invoice.
func (s *PaymentReconcilerService) RecordManual(ctx context.Context, actor identity.Actor, cmd ManualPaymentCommand) (*ManualPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_manual")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrStudentID, cmd.StudentID.String(),
		telemetry.SpanAttrAmount, cmd.Amount.String(),
	)

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	if cmd.Method == "" {
		cmd.Method = finance.PaymentMethodManual
	}
	if !cmd.Method.IsManualEntry() || cmd.Method == finance.PaymentMethodBankTransfer {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Manual payments must be MANUAL, CASH or CHEQUE")
	}
	if !cmd.Amount.IsPositive() {
		return nil, finance.ErrInvalidAmount
	}

	var (
		result   *ManualPaymentResult
		schoolID uuid.UUID
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		student, err := repos.Students().FindByID(ctx, ActorScope(actor), cmd.StudentID)
		if err != nil {
			return err
		}
		if err := actor.EnsureSchool(student.SchoolID); err != nil {
			return err
		}
		schoolID = student.SchoolID

		invoices, err := repos.Invoices().FindOutstandingByStudentForUpdate(ctx, student.SchoolID, student.ID)
		if err != nil {
			return fmt.Errorf("load outstanding invoices: %w", err)
		}
		allocation, err := s.allocator.Allocate(cmd.Amount, finance.AllocationTargetsFromInvoices(invoices))
		if err != nil {
			return err
		}
		byID := lo.SliceToMap(invoices, func(inv finance.Invoice) (uuid.UUID, *finance.Invoice) {
			return inv.ID, &inv
		})

		result = &ManualPaymentResult{
			Allocations:    allocation.Allocations,
			TotalAllocated: allocation.TotalAllocated,
			Unallocated:    allocation.RemainingAmount,
		}
		for _, alloc := range allocation.Allocations {
			inv := byID[alloc.TargetID]
			p, err := s.recordStaffPayment(ctx, repos, actor, student, &inv.ID, alloc.Amount, cmd.Method, cmd.Reference, cmd.PayerName, cmd.Notes)
			if err != nil {
				return err
			}
			if err := recalculateInvoice(ctx, repos, inv); err != nil {
				return err
			}
			result.Payments = append(result.Payments, p)
		}
		if allocation.RemainingAmount.IsPositive() {
			notes := strings.TrimSpace("Unallocated credit. " + cmd.Notes)
			p, err := s.recordStaffPayment(ctx, repos, actor, student, nil, allocation.RemainingAmount, cmd.Method, cmd.Reference, cmd.PayerName, notes)
			if err != nil {
				return err
			}
			result.Payments = append(result.Payments, p)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.afterPayments(ctx, schoolID, result.Payments...)
	s.logger.Info("Manual payment recorded",
		zap.String("student_id", cmd.StudentID.String()),
		zap.String("amount", cmd.Amount.String()),
		zap.Int("invoices_touched", len(result.Allocations)),
		zap.String("unallocated", result.Unallocated.String()))
	return result, nil
}

// BankTransferCommand records a transfer against one named invoice
type BankTransferCommand struct {
	InvoiceID     uuid.UUID
	Amount        decimal.Decimal
	BankReference string
	PayerName     string
}

// RecordBankTransfer applies a bank transfer to a single invoice. The part
// exceeding the outstanding balance is kept as a student credit so the
// invoice balance never goes below zero. A bank reference is accepted once.
func (s *PaymentReconcilerService) RecordBankTransfer(ctx context.Context, actor identity.Actor, cmd BankTransferCommand) ([]*finance.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_bank_transfer")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, cmd.InvoiceID.String(),
		telemetry.SpanAttrAmount, cmd.Amount.String(),
	)

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(cmd.BankReference)
	if ref == "" {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_REF", "Bank reference is required")
	}
	if !cmd.Amount.IsPositive() {
		return nil, finance.ErrInvalidAmount
	}

	var (
		payments []*finance.Payment
		schoolID uuid.UUID
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Payments().FindByTransactionRef(ctx, finance.PaymentMethodBankTransfer, ref); err == nil {
			return finance.ErrDuplicatePayment
		} else if !shared.IsNotFound(err) {
			return err
		}

		inv, err := repos.Invoices().FindByIDForUpdate(ctx, ActorScope(actor), cmd.InvoiceID)
		if err != nil {
			return err
		}
		if err := authorizeInvoiceAccess(ctx, repos, actor, inv, false); err != nil {
			return err
		}
		if inv.IsCancelled() {
			return finance.ErrInvoiceCancelled
		}
		schoolID = inv.SchoolID
		student, err := repos.Students().FindByID(ctx, inv.SchoolID, inv.StudentID)
		if err != nil {
			return err
		}

		applied := decimal.Min(cmd.Amount, inv.OutstandingAmount())
		excess := cmd.Amount.Sub(applied)
		if applied.IsPositive() {
			p, err := s.recordStaffPayment(ctx, repos, actor, student, &inv.ID, applied, finance.PaymentMethodBankTransfer, ref, cmd.PayerName, "")
			if err != nil {
				return err
			}
			payments = append(payments, p)
			if err := recalculateInvoice(ctx, repos, inv); err != nil {
				return err
			}
		}
		if excess.IsPositive() {
			// The credit row shares the bank reference, so it is stored
			// under the manual method to stay clear of the unique index.
			p, err := s.recordStaffPayment(ctx, repos, actor, student, nil, excess, finance.PaymentMethodManual, ref, cmd.PayerName, "Overpayment credit from bank transfer "+ref)
			if err != nil {
				return err
			}
			payments = append(payments, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			err = finance.ErrDuplicatePayment
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.afterPayments(ctx, schoolID, payments...)
	s.logger.Info("Bank transfer recorded",
		zap.String("invoice_id", cmd.InvoiceID.String()),
		zap.String("bank_reference", ref),
		zap.String("amount", cmd.Amount.String()))
	return payments, nil
}

// STKPushCommand starts a mobile-money payment for an invoice
type STKPushCommand struct {
	InvoiceID   uuid.UUID
	PhoneNumber string
	// Amount defaults to the outstanding balance when zero
	Amount decimal.Decimal
}

// InitiateSTKPush prompts the payer's phone and records a PENDING payment
// keyed by the gateway's CheckoutRequestID
func (s *PaymentReconcilerService) InitiateSTKPush(ctx context.Context, actor identity.Actor, cmd STKPushCommand) (*finance.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "initiate_stk_push")
	defer span.End()

	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByID(ctx, ActorScope(actor), cmd.InvoiceID)
		if err != nil {
			return err
		}
		return authorizeInvoiceAccess(ctx, repos, actor, inv, true)
	})
	if err != nil {
		return nil, err
	}
	if inv.IsCancelled() {
		return nil, finance.ErrInvoiceCancelled
	}
	amount := cmd.Amount
	if amount.IsZero() {
		amount = inv.OutstandingAmount()
	}
	if !amount.IsPositive() {
		return nil, finance.ErrInvalidAmount
	}

	resp, err := s.gateway.InitiateSTKPush(ctx, STKPushRequest{
		PhoneNumber:      cmd.PhoneNumber,
		Amount:           amount,
		AccountReference: inv.InvoiceNumber,
		Description:      "School fees " + inv.InvoiceNumber,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("stk push: %w", err)
	}
	if resp.CheckoutRequestID == "" || (resp.ResponseCode != "" && resp.ResponseCode != "0") {
		return nil, fmt.Errorf("%w: %s", ErrSTKPushRejected, resp.ResponseDescription)
	}

	payment, err := finance.NewPendingPayment(inv.SchoolID, &inv.StudentID, &inv.ID, amount, finance.PaymentMethodMpesa, resp.CheckoutRequestID)
	if err != nil {
		return nil, err
	}
	payment.SetPayer(cmd.PhoneNumber, "")
	if !actor.IsSystem() {
		payment.RecordedBy = &actor.UserID
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Payments().Create(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("store pending payment: %w", err)
	}

	s.metrics.RecordPayment(ctx, inv.SchoolID, string(payment.Method), string(payment.Status), amount)
	s.logger.Info("STK push initiated",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("amount", amount.String()))
	return payment, nil
}

// HandleSTKCallback finalizes the PENDING payment matching the checkout
// request. Unknown and already-final references are ignored and return
// (nil, nil); callers acknowledge the gateway regardless of the outcome.
func (s *PaymentReconcilerService) HandleSTKCallback(ctx context.Context, cb STKCallback) (*finance.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "handle_stk_callback")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGatewayRef, cb.CheckoutRequestID,
		"result_code", cb.ResultCode,
	)

	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		s.metrics.RecordWebhook(ctx, "stk", "invalid")
		return nil, shared.InvalidInput("CheckoutRequestID is required")
	}

	key := "mpesa:stk:" + cb.CheckoutRequestID
	if !s.claim(ctx, key) {
		s.metrics.RecordWebhook(ctx, "stk", "duplicate")
		s.logger.Info("STK callback already processed (idempotency check)",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		return nil, nil
	}

	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.Payments().FindByTransactionRefForUpdate(ctx, finance.PaymentMethodMpesa, cb.CheckoutRequestID)
		if err != nil {
			if shared.IsNotFound(err) {
				s.logger.Warn("STK callback for unknown checkout request",
					zap.String("checkout_request_id", cb.CheckoutRequestID))
				return nil
			}
			return err
		}
		if p.Status.IsFinal() {
			s.logger.Info("STK callback for finalized payment ignored",
				zap.String("payment_id", p.ID.String()),
				zap.String("status", string(p.Status)))
			return nil
		}

		system := identity.SystemActor(p.SchoolID)
		if !cb.IsSuccess() {
			if err := p.Fail(fmt.Sprintf("%d: %s", cb.ResultCode, cb.ResultDesc)); err != nil {
				return err
			}
			if err := repos.Payments().Save(ctx, p); err != nil {
				return err
			}
			payment = p
			return nil
		}

		if err := p.Complete(cb.ReceiptNumber, cb.Amount, cb.PhoneNumber); err != nil {
			return err
		}
		if err := repos.Payments().Save(ctx, p); err != nil {
			return err
		}
		if p.InvoiceID != nil {
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, p.SchoolID, *p.InvoiceID)
			if err != nil {
				return fmt.Errorf("lock invoice: %w", err)
			}
			if err := recalculateInvoice(ctx, repos, inv); err != nil {
				return err
			}
		}
		payment = p
		return s.audit.Record(ctx, repos, system, p.SchoolID, audit.ActionPaymentRecorded, audit.EntityPayment, p.ID, paymentDetails(p))
	})
	if err != nil {
		s.release(ctx, key)
		s.metrics.RecordWebhook(ctx, "stk", "error")
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to handle STK callback",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err))
		return nil, err
	}
	if payment == nil {
		s.metrics.RecordWebhook(ctx, "stk", "ignored")
		return nil, nil
	}

	s.metrics.RecordWebhook(ctx, "stk", strings.ToLower(string(payment.Status)))
	s.afterPayments(ctx, payment.SchoolID, payment)
	s.logger.Info("STK callback processed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(payment.Status)),
		zap.String("receipt", payment.ReceiptNumber))
	return payment, nil
}

// HandleC2BConfirmation records a paybill payment. The bill reference is
// matched against an invoice number, then an admission number (paying the
// student's oldest unpaid invoice). Unmatched money is stored as an
// UNASSIGNED completed payment for manual reconciliation. Replaying a
// TransID returns the payment recorded the first time.
func (s *PaymentReconcilerService) HandleC2BConfirmation(ctx context.Context, c C2BConfirmation) (*finance.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "handle_c2b_confirmation")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGatewayRef, c.TransID,
		"bill_ref", c.BillRefNumber,
	)

	transID := strings.TrimSpace(c.TransID)
	if transID == "" {
		s.metrics.RecordWebhook(ctx, "c2b", "invalid")
		return nil, shared.InvalidInput("TransID is required")
	}
	if !c.TransAmount.IsPositive() {
		s.metrics.RecordWebhook(ctx, "c2b", "invalid")
		return nil, finance.ErrInvalidAmount
	}

	key := "mpesa:c2b:" + transID
	if !s.claim(ctx, key) {
		s.metrics.RecordWebhook(ctx, "c2b", "duplicate")
		return s.findC2B(ctx, transID)
	}

	var payment *finance.Payment
	replay := false
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if existing, err := repos.Payments().FindByTransactionRef(ctx, finance.PaymentMethodMpesaC2B, transID); err == nil {
			payment = existing
			replay = true
			return nil
		} else if !shared.IsNotFound(err) {
			return err
		}

		school, err := repos.Schools().FindByPaybillShortcode(ctx, strings.TrimSpace(c.BusinessShortCode))
		if err != nil {
			if shared.IsNotFound(err) {
				return fmt.Errorf("%w: %s", ErrUnknownShortcode, c.BusinessShortCode)
			}
			return err
		}

		inv, student, err := matchBillRef(ctx, repos, school.ID, c.BillRefNumber)
		if err != nil {
			return err
		}

		var p *finance.Payment
		switch {
		case student != nil:
			var invoiceID *uuid.UUID
			if inv != nil {
				invoiceID = &inv.ID
			}
			p, err = finance.NewCompletedPayment(school.ID, &student.ID, invoiceID, c.TransAmount, finance.PaymentMethodMpesaC2B, transID)
		default:
			p, err = finance.NewUnassignedPayment(school.ID, c.TransAmount, finance.PaymentMethodMpesaC2B, transID)
		}
		if err != nil {
			return err
		}
		p.ReceiptNumber = transID
		p.SetPayer(c.MSISDN, c.PayerName())
		p.Notes = "BillRef: " + strings.TrimSpace(c.BillRefNumber)
		if err := repos.Payments().Create(ctx, p); err != nil {
			return err
		}
		if inv != nil {
			if err := recalculateInvoice(ctx, repos, inv); err != nil {
				return err
			}
		}
		payment = p
		return s.audit.Record(ctx, repos, identity.SystemActor(school.ID), school.ID, audit.ActionPaymentRecorded, audit.EntityPayment, p.ID, paymentDetails(p))
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// A concurrent delivery of the same TransID won the insert.
			s.metrics.RecordWebhook(ctx, "c2b", "duplicate")
			return s.findC2B(ctx, transID)
		}
		s.release(ctx, key)
		s.metrics.RecordWebhook(ctx, "c2b", "error")
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to handle C2B confirmation",
			zap.String("trans_id", transID),
			zap.String("bill_ref", c.BillRefNumber),
			zap.Error(err))
		return nil, err
	}
	if replay {
		telemetry.AddEvent(span, "c2b_replay", telemetry.SpanAttrPaymentID, payment.ID.String())
		s.metrics.RecordWebhook(ctx, "c2b", "duplicate")
		return payment, nil
	}

	outcome := "matched"
	if payment.Unassigned {
		outcome = "unassigned"
		telemetry.AddEvent(span, "c2b_unassigned",
			telemetry.SpanAttrPaymentID, payment.ID.String(),
			"bill_ref", c.BillRefNumber)
		s.logger.Warn("C2B payment could not be matched; stored as unassigned",
			zap.String("trans_id", transID),
			zap.String("bill_ref", c.BillRefNumber),
			zap.String("amount", c.TransAmount.String()))
	}
	s.metrics.RecordWebhook(ctx, "c2b", outcome)
	s.afterPayments(ctx, payment.SchoolID, payment)
	return payment, nil
}

// ValidateC2B tells the gateway whether to accept a paybill payment.
// Internal failures accept the payment: the confirmation path stores
// unmatched money as unassigned, so nothing is lost by failing open.
func (s *PaymentReconcilerService) ValidateC2B(ctx context.Context, c C2BConfirmation) C2BValidationResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "validate_c2b")
	defer span.End()

	ref := strings.TrimSpace(c.BillRefNumber)
	if !billRefPattern.MatchString(ref) {
		s.metrics.RecordWebhook(ctx, "c2b_validation", "rejected")
		return C2BValidationResult{ResultCode: C2BResultInvalidAccountNumber, ResultDesc: "Rejected: invalid account number"}
	}
	if !c.TransAmount.IsPositive() {
		s.metrics.RecordWebhook(ctx, "c2b_validation", "rejected")
		return C2BValidationResult{ResultCode: C2BResultInvalidAmount, ResultDesc: "Rejected: invalid amount"}
	}

	var matched bool
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		school, err := repos.Schools().FindByPaybillShortcode(ctx, strings.TrimSpace(c.BusinessShortCode))
		if err != nil {
			return err
		}
		if _, err := repos.Invoices().FindByNumber(ctx, school.ID, strings.ToUpper(ref)); err == nil {
			matched = true
			return nil
		} else if !shared.IsNotFound(err) {
			return err
		}
		if _, err := repos.Students().FindByAdmissionNumber(ctx, school.ID, ref); err == nil {
			matched = true
			return nil
		} else if !shared.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil && !shared.IsNotFound(err) {
		telemetry.RecordError(span, err)
		s.metrics.RecordWebhook(ctx, "c2b_validation", "fail_open")
		s.logger.Warn("C2B validation failed, accepting payment",
			zap.String("bill_ref", ref),
			zap.Error(err))
		return C2BValidationResult{ResultCode: C2BResultAccepted, ResultDesc: "Accepted"}
	}
	if !matched {
		s.metrics.RecordWebhook(ctx, "c2b_validation", "rejected")
		return C2BValidationResult{ResultCode: C2BResultAccountNotFound, ResultDesc: "Rejected: account not found"}
	}
	s.metrics.RecordWebhook(ctx, "c2b_validation", "accepted")
	return C2BValidationResult{ResultCode: C2BResultAccepted, ResultDesc: "Accepted"}
}

// AssignUnassignedPayment attaches an UNASSIGNED paybill payment to an
// invoice and recomputes it
func (s *PaymentReconcilerService) AssignUnassignedPayment(ctx context.Context, actor identity.Actor, paymentID, invoiceID uuid.UUID) (*finance.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "assign_unassigned")
	defer span.End()

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}

	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.Payments().FindByIDForUpdate(ctx, ActorScope(actor), paymentID)
		if err != nil {
			return err
		}
		if err := actor.EnsureSchool(p.SchoolID); err != nil {
			return err
		}
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, p.SchoolID, invoiceID)
		if err != nil {
			return err
		}
		if inv.IsCancelled() {
			return finance.ErrInvoiceCancelled
		}
		if err := p.AssignTo(inv.StudentID, inv.ID); err != nil {
			return err
		}
		if err := repos.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := recalculateInvoice(ctx, repos, inv); err != nil {
			return err
		}
		payment = p
		return s.audit.Record(ctx, repos, actor, p.SchoolID, audit.ActionPaymentAssigned, audit.EntityPayment, p.ID, map[string]any{
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.InvoiceNumber,
			"student_id":     inv.StudentID.String(),
			"amount":         p.Amount.StringFixed(2),
			"new_balance":    inv.Balance.StringFixed(2),
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Unassigned payment assigned",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("user_id", actor.UserID.String()))
	return payment, nil
}

// matchBillRef resolves a paybill account reference inside a school.
// It returns the locked invoice to credit (nil when the student has nothing
// outstanding) and the student, or two nils when nothing matched.
func matchBillRef(ctx context.Context, repos TransactionalRepositories, schoolID uuid.UUID, billRef string) (*finance.Invoice, *academic.Student, error) {
	ref := strings.TrimSpace(billRef)
	if ref == "" {
		return nil, nil, nil
	}

	var student *academic.Student
	found, err := repos.Invoices().FindByNumber(ctx, schoolID, strings.ToUpper(ref))
	switch {
	case err == nil:
		if !found.IsCancelled() {
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, schoolID, found.ID)
			if err != nil {
				return nil, nil, err
			}
			student, err = repos.Students().FindByID(ctx, schoolID, inv.StudentID)
			if err != nil {
				return nil, nil, err
			}
			return inv, student, nil
		}
		student, err = repos.Students().FindByID(ctx, schoolID, found.StudentID)
		if err != nil {
			return nil, nil, err
		}
	case shared.IsNotFound(err):
		student, err = repos.Students().FindByAdmissionNumber(ctx, schoolID, ref)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
	default:
		return nil, nil, err
	}

	outstanding, err := repos.Invoices().FindOutstandingByStudentForUpdate(ctx, schoolID, student.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(outstanding) == 0 {
		return nil, student, nil
	}
	return &outstanding[0], student, nil
}

func (s *PaymentReconcilerService) recordStaffPayment(
	ctx context.Context,
	repos TransactionalRepositories,
	actor identity.Actor,
	student *academic.Student,
	invoiceID *uuid.UUID,
	amount decimal.Decimal,
	method finance.PaymentMethod,
	ref, payerName, notes string,
) (*finance.Payment, error) {
	studentID := student.ID
	p, err := finance.NewCompletedPayment(student.SchoolID, &studentID, invoiceID, amount, method, ref)
	if err != nil {
		return nil, err
	}
	p.PayerName = strings.TrimSpace(payerName)
	p.Notes = notes
	if !actor.IsSystem() {
		p.RecordedBy = &actor.UserID
	}
	if err := repos.Payments().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.audit.Record(ctx, repos, actor, student.SchoolID, audit.ActionPaymentRecorded, audit.EntityPayment, p.ID, paymentDetails(p)); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PaymentReconcilerService) afterPayments(ctx context.Context, schoolID uuid.UUID, payments ...*finance.Payment) {
	var events []shared.DomainEvent
	for _, p := range payments {
		s.metrics.RecordPayment(ctx, schoolID, string(p.Method), string(p.Status), p.Amount)
		events = append(events, collectEvents(p)...)
	}
	s.dispatcher.Dispatch(ctx, events...)
}

func (s *PaymentReconcilerService) findC2B(ctx context.Context, transID string) (*finance.Payment, error) {
	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = repos.Payments().FindByTransactionRef(ctx, finance.PaymentMethodMpesaC2B, transID)
		return err
	})
	if shared.IsNotFound(err) {
		// Claimed by an attempt that is still in flight.
		return nil, nil
	}
	return payment, err
}

// claim marks a gateway reference as being processed. Without a store, or
// when the store is unreachable, processing goes ahead and the database
// guards decide.
func (s *PaymentReconcilerService) claim(ctx context.Context, key string) bool {
	if s.idempotency == nil {
		return true
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.dedupTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return true
	}
	return fresh
}

func (s *PaymentReconcilerService) release(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		// Don't fail the callback; the gateway retry will hit the DB guards
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func paymentDetails(p *finance.Payment) map[string]any {
	details := map[string]any{
		"amount":          p.Amount.StringFixed(2),
		"method":          string(p.Method),
		"status":          string(p.Status),
		"transaction_ref": p.TransactionRef,
		"student":         p.StudentLabel(),
		"unassigned":      p.Unassigned,
	}
	if p.InvoiceID != nil {
		details["invoice_id"] = p.InvoiceID.String()
	}
	if p.ReceiptNumber != "" {
		details["receipt_number"] = p.ReceiptNumber
	}
	return details
}
